// Package merge performs the external k-way merge of sorted segment files
// into one final index file.
package merge

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/segment"
	sperrors "github.com/Adithya-Monish-Kumar-K/fingertips/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/metrics"
)

// Result summarises a completed merge.
type Result struct {
	Segments int
	Terms    int
	Bytes    int64
}

// Merger streams any number of segments into a single output file holding
// one term block per distinct term. Only the current block of each segment is
// kept in memory.
type Merger struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(m *metrics.Metrics) *Merger {
	return &Merger{
		metrics: m,
		logger:  slog.Default().With("component", "merger"),
	}
}

// Merge consumes segments and writes their union to outputPath. The output is
// built under a temporary name next to outputPath and renamed into place only
// after every segment has been read to the end and closed; the segments are
// deleted after that. On any error outputPath is untouched and every segment
// is left on disk.
func (mg *Merger) Merge(ctx context.Context, segments []string, outputPath string) (Result, error) {
	start := time.Now()
	res := Result{Segments: len(segments)}

	readers := make([]*segment.Reader, 0, len(segments))
	closeReaders := func() error {
		var firstErr error
		for _, r := range readers {
			if err := r.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		readers = nil
		return firstErr
	}
	defer closeReaders()

	for _, path := range segments {
		r, err := segment.OpenReader(path)
		if err != nil {
			return res, err
		}
		readers = append(readers, r)
	}

	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return res, sperrors.Write("creating output directory", dir, err)
	}
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%s", filepath.Base(outputPath), uuid.NewString()))
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return res, sperrors.Write("creating temp index file", tmpPath, err)
	}
	committed := false
	defer func() {
		if !committed {
			out.Close()
			os.Remove(tmpPath)
		}
	}()

	mg.logger.Info("merge started",
		"segments", len(segments),
		"output", outputPath,
	)

	enc := index.NewEncoder(out)
	terms, err := mergeCursors(ctx, readers, func(entry index.TermEntry) error {
		if err := enc.Encode(entry); err != nil {
			return sperrors.Write("writing term block", tmpPath, err)
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	if err := enc.Flush(); err != nil {
		return res, sperrors.Write("flushing index file", tmpPath, err)
	}
	if err := out.Sync(); err != nil {
		return res, sperrors.Write("syncing index file", tmpPath, err)
	}
	if err := out.Close(); err != nil {
		return res, sperrors.Write("closing index file", tmpPath, err)
	}
	if err := closeReaders(); err != nil {
		return res, fmt.Errorf("closing segment readers: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return res, sperrors.Write("renaming index file", outputPath, err)
	}
	committed = true
	res.Terms = terms
	res.Bytes = enc.Written()

	for _, path := range segments {
		if err := os.Remove(path); err != nil {
			mg.logger.Warn("failed to remove merged segment", "segment", path, "error", err)
		}
	}

	elapsed := time.Since(start)
	mg.metrics.Merged(res.Segments, res.Terms, elapsed)
	mg.logger.Info("merge complete",
		"segments", res.Segments,
		"terms", res.Terms,
		"size", humanize.IBytes(uint64(res.Bytes)),
		"duration", elapsed,
	)
	return res, nil
}

// mergeCursors drives the k-way merge and calls emit once per distinct term
// in ascending order. It returns the number of terms emitted.
func mergeCursors(ctx context.Context, readers []*segment.Reader, emit func(index.TermEntry) error) (int, error) {
	h := make(cursorHeap, 0, len(readers))
	for i, r := range readers {
		c := &cursor{reader: r, order: i}
		ok, err := c.advance()
		if err != nil {
			return 0, err
		}
		if ok {
			h = append(h, c)
		}
	}
	heap.Init(&h)

	terms := 0
	contributors := make([]*cursor, 0, len(readers))
	for h.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return terms, err
		}
		contributors = contributors[:0]
		first := heap.Pop(&h).(*cursor)
		contributors = append(contributors, first)
		for h.Len() > 0 && h[0].entry.Term == first.entry.Term {
			contributors = append(contributors, heap.Pop(&h).(*cursor))
		}

		merged := first.entry
		for _, c := range contributors[1:] {
			merged.Postings = index.MergePostings(merged.Postings, c.entry.Postings)
		}
		if err := emit(merged); err != nil {
			return terms, err
		}
		terms++

		for _, c := range contributors {
			ok, err := c.advance()
			if err != nil {
				return terms, err
			}
			if ok {
				heap.Push(&h, c)
			}
		}
	}
	return terms, nil
}

// cursor holds the current term block of one segment.
type cursor struct {
	reader *segment.Reader
	entry  index.TermEntry
	order  int
}

// advance loads the next block and reports false once the segment is done.
func (c *cursor) advance() (bool, error) {
	entry, err := c.reader.Next()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.entry = entry
	return true, nil
}

// cursorHeap orders cursors by current term, then by segment order so that
// postings from earlier spills come first.
type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	if h[i].entry.Term != h[j].entry.Term {
		return h[i].entry.Term < h[j].entry.Term
	}
	return h[i].order < h[j].order
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x interface{}) {
	*h = append(*h, x.(*cursor))
}

func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
