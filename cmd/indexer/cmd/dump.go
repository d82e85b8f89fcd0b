package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/segment"
)

var dumpFlags struct {
	prefix string
	limit  int
}

// dumpCmd prints the term blocks of an index or segment file.
var dumpCmd = &cobra.Command{
	Use:   "dump [path]",
	Short: "dump prints the terms and postings in the specified file",
	Long: `The dump command streams an index or segment file and prints one line
per term: the term, its document count and every posting as docID:[positions].`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return fmt.Errorf("must specify index file path")
		}
		r, err := segment.OpenReader(args[0])
		if err != nil {
			return err
		}
		defer r.Close()
		return dump(cmd.OutOrStdout(), r, dumpFlags.prefix, dumpFlags.limit)
	},
}

func init() {
	dumpCmd.Flags().StringVar(&dumpFlags.prefix, "prefix", "", "only print terms with this prefix")
	dumpCmd.Flags().IntVar(&dumpFlags.limit, "limit", 0, "stop after this many terms (0 prints all)")
	RootCmd.AddCommand(dumpCmd)
}

func dump(w io.Writer, r *segment.Reader, prefix string, limit int) error {
	printed := 0
	for limit <= 0 || printed < limit {
		entry, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !strings.HasPrefix(entry.Term, prefix) {
			continue
		}
		fmt.Fprintln(w, formatEntry(entry))
		printed++
	}
	return nil
}

func formatEntry(entry index.TermEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\tdocs=%d\t", entry.Term, entry.Postings.DocCount())
	for i, p := range entry.Postings {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d:%v", p.DocID, p.Positions)
	}
	return b.String()
}
