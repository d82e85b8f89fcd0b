// Package source provides the document sources the indexer can read from:
// files and directories on disk, in-memory texts, the documents table in
// PostgreSQL and the document ingest topic in Kafka.
package source

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/pipeline"
	sperrors "github.com/Adithya-Monish-Kumar-K/fingertips/pkg/errors"
)

// Files yields the contents of files on disk. Each path may name a file or a
// directory; directories are walked recursively in lexical order. A path or
// file that cannot be read becomes a Document carrying the read error.
type Files struct {
	Paths []string
	// Extensions restricts directory walks to files with one of these
	// extensions (".txt"). Empty accepts every file. Paths naming a file
	// directly are always read.
	Extensions []string
}

var _ pipeline.Source = (*Files)(nil)

func (f *Files) Documents(ctx context.Context, yield func(pipeline.Document) error) error {
	logger := slog.Default().With("component", "files-source")
	for _, root := range f.Paths {
		info, err := os.Stat(root)
		if err != nil {
			if err := yield(unreadable(root, err)); err != nil {
				return err
			}
			continue
		}
		if !info.IsDir() {
			if err := f.readFile(ctx, root, yield); err != nil {
				return err
			}
			continue
		}
		logger.Debug("walking directory", "path", root)
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if yerr := yield(unreadable(path, err)); yerr != nil {
					return yerr
				}
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !f.accepts(path) {
				return nil
			}
			return f.readFile(ctx, path, yield)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *Files) readFile(ctx context.Context, path string, yield func(pipeline.Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return yield(unreadable(path, err))
	}
	return yield(pipeline.Document{Hint: path, Body: body})
}

func (f *Files) accepts(path string) bool {
	if len(f.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, want := range f.Extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

func unreadable(hint string, err error) pipeline.Document {
	return pipeline.Document{Hint: hint, Err: sperrors.Read("reading document", hint, err)}
}
