package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/tokenizer"
	sperrors "github.com/Adithya-Monish-Kumar-K/fingertips/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/tracing"
)

// Every stage closes its output channel only after it has finished cleanly.
// A failing stage returns without closing, and its neighbours are released
// by the cancellation of the shared context instead, so a closed channel
// always means a complete stream.

func send[T any](ctx context.Context, out chan<- T, v T) error {
	select {
	case out <- v:
		return nil
	case <-ctx.Done():
		return sperrors.ErrChannelClosed
	}
}

// recv returns ok=false once in is closed.
func recv[T any](ctx context.Context, in <-chan T) (v T, ok bool, err error) {
	select {
	case v, ok = <-in:
		return v, ok, nil
	case <-ctx.Done():
		return v, false, sperrors.ErrChannelClosed
	}
}

// feed pulls documents from src into out.
func feed(ctx context.Context, src Source, out chan<- Document) error {
	ctx, span := tracing.StartChildSpan(ctx, "feed")
	defer span.End()
	count := 0
	err := src.Documents(ctx, func(doc Document) error {
		count++
		return send(ctx, out, doc)
	})
	span.SetAttr("documents", count)
	if err != nil {
		if errors.Is(err, sperrors.ErrChannelClosed) {
			return err
		}
		return fmt.Errorf("enumerating documents: %w", err)
	}
	close(out)
	return nil
}

// indexer is the IndexingStage: it assigns DocIDs in arrival order and turns
// each readable document into a single-document MemoryIndex.
type indexer struct {
	tokenize tokenizer.Func
	metrics  *metrics.Metrics
	logger   *slog.Logger

	nextID  index.DocID
	skipped []ReadFailure
}

func (ix *indexer) run(ctx context.Context, in <-chan Document, out chan<- *index.MemoryIndex) error {
	ctx, span := tracing.StartChildSpan(ctx, "index")
	defer span.End()
	for {
		doc, ok, err := recv(ctx, in)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if doc.Err != nil {
			ix.skip(doc)
			continue
		}
		ix.nextID++
		m := index.NewMemoryIndex()
		m.AddTokens(ix.nextID, ix.tokenize(string(doc.Body)))
		ix.metrics.DocIndexed()
		ix.logger.Debug("document indexed",
			"doc_id", ix.nextID,
			"hint", doc.Hint,
			"terms", m.TermCount(),
		)
		if err := send(ctx, out, m); err != nil {
			return err
		}
	}
	span.SetAttr("documents", int(ix.nextID))
	span.SetAttr("skipped", len(ix.skipped))
	close(out)
	return nil
}

func (ix *indexer) skip(doc Document) {
	err := doc.Err
	if !errors.Is(err, sperrors.ErrRead) {
		err = sperrors.Read("reading document", doc.Hint, err)
	}
	ix.skipped = append(ix.skipped, ReadFailure{Hint: doc.Hint, Err: err})
	ix.metrics.DocSkipped()
	ix.logger.Warn("skipping unreadable document", "hint", doc.Hint, "error", doc.Err)
}

// accumulator is the MergeAccumulatorStage. It folds per-document indexes
// into a running index and emits it whenever it reaches threshold bytes,
// which bounds memory to about one threshold of index data.
type accumulator struct {
	threshold int64
	logger    *slog.Logger
	emitted   int
}

func (a *accumulator) run(ctx context.Context, in <-chan *index.MemoryIndex, out chan<- *index.MemoryIndex) error {
	ctx, span := tracing.StartChildSpan(ctx, "accumulate")
	defer span.End()
	running := index.NewMemoryIndex()
	for {
		m, ok, err := recv(ctx, in)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		running.Merge(m)
		if running.IsLarge(a.threshold) {
			a.logger.Debug("spill threshold reached",
				"size", humanize.IBytes(uint64(running.Size())),
				"threshold", humanize.IBytes(uint64(a.threshold)),
				"docs", running.DocCount(),
			)
			if err := send(ctx, out, running); err != nil {
				return err
			}
			a.emitted++
			running = index.NewMemoryIndex()
		}
	}
	if !running.IsEmpty() {
		if err := send(ctx, out, running); err != nil {
			return err
		}
		a.emitted++
	}
	span.SetAttr("emitted", a.emitted)
	close(out)
	return nil
}

// SpillWriter persists one accumulated index and returns the path of the
// complete segment file.
type SpillWriter interface {
	Write(m *index.MemoryIndex) (string, error)
}

// spiller is the SpillWriterStage.
type spiller struct {
	writer  SpillWriter
	metrics *metrics.Metrics
	logger  *slog.Logger
	written int
	bytes   int64
}

func (s *spiller) run(ctx context.Context, in <-chan *index.MemoryIndex, out chan<- string) error {
	ctx, span := tracing.StartChildSpan(ctx, "spill")
	defer span.End()
	for {
		m, ok, err := recv(ctx, in)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		size := m.Size()
		path, err := s.writer.Write(m)
		s.metrics.Spill(size, err)
		if err != nil {
			return fmt.Errorf("spilling segment %d: %w", s.written+1, err)
		}
		s.written++
		s.bytes += size
		s.logger.Info("segment spilled",
			"segment", path,
			"terms", m.TermCount(),
			"docs", m.DocCount(),
			"size", humanize.IBytes(uint64(size)),
		)
		if err := send(ctx, out, path); err != nil {
			return err
		}
	}
	span.SetAttr("segments", s.written)
	span.SetAttr("bytes", s.bytes)
	close(out)
	return nil
}

// collect drains the segment paths for the merge stage. It holds paths only,
// never segment contents.
func collect(ctx context.Context, in <-chan string) ([]string, error) {
	var paths []string
	for {
		path, ok, err := recv(ctx, in)
		if err != nil {
			return nil, err
		}
		if !ok {
			return paths, nil
		}
		paths = append(paths, path)
	}
}
