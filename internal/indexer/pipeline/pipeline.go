// Package pipeline wires the indexing stages together and runs them as one
// bounded-memory build:
//
//	source -> feed -> index -> accumulate -> spill -> merge -> final index
//
// Stages run concurrently and are connected by bounded channels, so a slow
// stage applies backpressure to everything upstream of it. Values crossing a
// channel are owned by the receiver from then on.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/merge"
	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/tokenizer"
	sperrors "github.com/Adithya-Monish-Kumar-K/fingertips/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/tracing"
)

const DefaultChannelCapacity = 16

// Options configures a run.
type Options struct {
	// OutputPath is where the final index is published.
	OutputPath string
	// TempDir is the root for segment files. Each run works in its own
	// sub-directory. Defaults to os.TempDir().
	TempDir string
	// SpillThreshold is the serialized size in bytes at which the
	// accumulated index is spilled to a segment.
	SpillThreshold int64
	// ChannelCapacity bounds every inter-stage channel.
	ChannelCapacity int
	// KeepSegmentsOnFailure leaves the run directory in place after any
	// failed run. Segments are always kept after a format or segment read
	// error.
	KeepSegmentsOnFailure bool

	Tokenize tokenizer.Func
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// NewSpillWriter overrides how segments are written. The default is a
	// segment.Writer.
	NewSpillWriter func(dir, runID string) SpillWriter
}

func (o *Options) validate() error {
	if o.OutputPath == "" {
		return fmt.Errorf("%w: output path is required", sperrors.ErrInvalidInput)
	}
	if o.SpillThreshold <= 0 {
		return fmt.Errorf("%w: spill threshold must be positive, got %d", sperrors.ErrInvalidInput, o.SpillThreshold)
	}
	if o.ChannelCapacity < 0 {
		return fmt.Errorf("%w: channel capacity must not be negative, got %d", sperrors.ErrInvalidInput, o.ChannelCapacity)
	}
	if o.ChannelCapacity == 0 {
		o.ChannelCapacity = DefaultChannelCapacity
	}
	if o.TempDir == "" {
		o.TempDir = os.TempDir()
	}
	if o.Tokenize == nil {
		o.Tokenize = tokenizer.Tokenize
	}
	if o.NewSpillWriter == nil {
		o.NewSpillWriter = func(dir, runID string) SpillWriter {
			return segment.NewWriter(dir, runID)
		}
	}
	return nil
}

// Result describes a successful run.
type Result struct {
	RunID      string
	OutputPath string
	Documents  int
	Skipped    []ReadFailure
	Segments   int
	Terms      int
	Bytes      int64
	Duration   time.Duration
}

// Run indexes every document of src and publishes the final index at
// opts.OutputPath. Unreadable documents are skipped and listed in the
// Result. Any other failure stops all stages, waits for them to exit and
// returns the first error; the output path is then left untouched and the
// run's segment files are removed unless they are kept for inspection.
func Run(ctx context.Context, src Source, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	runID := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "pipeline")
	}
	logger = logger.With("run_id", runID)

	runDir := filepath.Join(opts.TempDir, "fingertips-"+runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, sperrors.Write("creating run directory", runDir, err)
	}

	logger.Info("indexing run started",
		"output", opts.OutputPath,
		"temp_dir", runDir,
		"spill_threshold", humanize.IBytes(uint64(opts.SpillThreshold)),
	)

	ctx, span := tracing.StartSpan(ctx, "index.run", runID)
	g, gctx := errgroup.WithContext(ctx)

	docs := make(chan Document, opts.ChannelCapacity)
	perDoc := make(chan *index.MemoryIndex, opts.ChannelCapacity)
	spills := make(chan *index.MemoryIndex, opts.ChannelCapacity)
	segments := make(chan string, opts.ChannelCapacity)

	ix := &indexer{tokenize: opts.Tokenize, metrics: opts.Metrics, logger: logger}
	acc := &accumulator{threshold: opts.SpillThreshold, logger: logger}
	sp := &spiller{writer: opts.NewSpillWriter(runDir, runID), metrics: opts.Metrics, logger: logger}
	var merged merge.Result

	g.Go(func() error { return feed(gctx, src, docs) })
	g.Go(func() error { return ix.run(gctx, docs, perDoc) })
	g.Go(func() error { return acc.run(gctx, perDoc, spills) })
	g.Go(func() error { return sp.run(gctx, spills, segments) })
	g.Go(func() error {
		mctx, mspan := tracing.StartChildSpan(gctx, "merge")
		defer mspan.End()
		paths, err := collect(mctx, segments)
		if err != nil {
			return err
		}
		merged, err = merge.New(opts.Metrics).Merge(mctx, paths, opts.OutputPath)
		mspan.SetAttr("segments", merged.Segments)
		mspan.SetAttr("terms", merged.Terms)
		return err
	})

	err := g.Wait()
	if err != nil && errors.Is(err, sperrors.ErrChannelClosed) && ctx.Err() != nil {
		err = ctx.Err()
	}
	elapsed := time.Since(start)
	opts.Metrics.Run(elapsed, err)
	span.SetAttr("status", statusOf(err))
	span.End()
	span.Log(logger)

	if err != nil {
		if sperrors.RetainsSegments(err) || opts.KeepSegmentsOnFailure {
			logger.Error("indexing run failed, segments kept", "dir", runDir, "error", err)
		} else {
			logger.Error("indexing run failed", "error", err)
			if rmErr := os.RemoveAll(runDir); rmErr != nil {
				logger.Warn("failed to remove run directory", "dir", runDir, "error", rmErr)
			}
		}
		return nil, err
	}
	if rmErr := os.RemoveAll(runDir); rmErr != nil {
		logger.Warn("failed to remove run directory", "dir", runDir, "error", rmErr)
	}

	res := &Result{
		RunID:      runID,
		OutputPath: opts.OutputPath,
		Documents:  int(ix.nextID),
		Skipped:    ix.skipped,
		Segments:   sp.written,
		Terms:      merged.Terms,
		Bytes:      merged.Bytes,
		Duration:   elapsed,
	}
	logger.Info("indexing run complete",
		"documents", res.Documents,
		"skipped", len(res.Skipped),
		"segments", res.Segments,
		"terms", res.Terms,
		"size", humanize.IBytes(uint64(res.Bytes)),
		"duration", elapsed,
	)
	return res, nil
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
