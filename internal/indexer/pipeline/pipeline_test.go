package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/segment"
	sperrors "github.com/Adithya-Monish-Kumar-K/fingertips/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/metrics"
)

func textSource(texts ...string) Source {
	return SourceFunc(func(ctx context.Context, yield func(Document) error) error {
		for i, text := range texts {
			if err := yield(Document{Hint: fmt.Sprintf("doc-%d", i+1), Body: []byte(text)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func testOptions(t *testing.T, threshold int64) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		OutputPath:     filepath.Join(dir, "out", "final.idx"),
		TempDir:        filepath.Join(dir, "tmp"),
		SpillThreshold: threshold,
	}
}

func assertNoRunLeftovers(t *testing.T, tempDir string) {
	t.Helper()
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunEndToEndExample(t *testing.T) {
	opts := testOptions(t, 1<<30)

	res, err := Run(context.Background(), textSource("the cat sat", "the dog sat"), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 1, res.Segments)
	assert.Equal(t, 4, res.Terms)
	assert.Empty(t, res.Skipped)

	final, err := segment.Load(opts.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, index.PostingList{{DocID: 1, Positions: []uint32{0}}, {DocID: 2, Positions: []uint32{0}}}, final.Postings("the"))
	assert.Equal(t, index.PostingList{{DocID: 1, Positions: []uint32{2}}, {DocID: 2, Positions: []uint32{2}}}, final.Postings("sat"))
	assert.Equal(t, index.PostingList{{DocID: 1, Positions: []uint32{1}}}, final.Postings("cat"))
	assert.Equal(t, index.PostingList{{DocID: 2, Positions: []uint32{1}}}, final.Postings("dog"))
	assertNoRunLeftovers(t, opts.TempDir)
}

func TestRunSpillsAndMergesManySegments(t *testing.T) {
	var texts []string
	want := index.NewMemoryIndex()
	for i := 1; i <= 40; i++ {
		text := fmt.Sprintf("common word%d word%d Common", i%9, i%4)
		texts = append(texts, text)
		doc := index.NewMemoryIndex()
		doc.AddDocument(index.DocID(i), text)
		want.Merge(doc)
	}
	opts := testOptions(t, 200)
	opts.ChannelCapacity = 1

	res, err := Run(context.Background(), textSource(texts...), opts)
	require.NoError(t, err)
	assert.Greater(t, res.Segments, 1)
	assert.Equal(t, 40, res.Documents)
	assert.Equal(t, want.Size(), res.Bytes)

	final, err := segment.Load(opts.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, want.Entries(), final.Entries())
	assertNoRunLeftovers(t, opts.TempDir)
}

func TestRunSpillEveryDocument(t *testing.T) {
	opts := testOptions(t, 1)
	res, err := Run(context.Background(), textSource("a b", "b c", "c d"), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Segments)

	final, err := segment.Load(opts.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, index.PostingList{{DocID: 1, Positions: []uint32{1}}, {DocID: 2, Positions: []uint32{0}}}, final.Postings("b"))
}

type failingWriter struct {
	inner  SpillWriter
	failOn int
	calls  int
	err    error
}

func (w *failingWriter) Write(m *index.MemoryIndex) (string, error) {
	w.calls++
	if w.calls == w.failOn {
		return "", w.err
	}
	return w.inner.Write(m)
}

func TestRunWriteErrorOnSecondSegment(t *testing.T) {
	injected := sperrors.Write("writing segment", "seg-2", errors.New("disk full"))
	opts := testOptions(t, 1)
	opts.NewSpillWriter = func(dir, runID string) SpillWriter {
		return &failingWriter{inner: segment.NewWriter(dir, runID), failOn: 2, err: injected}
	}

	res, err := Run(context.Background(), textSource("one", "two", "three", "four"), opts)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, injected)
	assert.True(t, errors.Is(err, sperrors.ErrWrite))

	assert.NoFileExists(t, opts.OutputPath)
	assertNoRunLeftovers(t, opts.TempDir)
}

func TestRunKeepSegmentsOnFailure(t *testing.T) {
	opts := testOptions(t, 1)
	opts.KeepSegmentsOnFailure = true
	opts.NewSpillWriter = func(dir, runID string) SpillWriter {
		return &failingWriter{inner: segment.NewWriter(dir, runID), failOn: 2, err: errors.New("boom")}
	}

	_, err := Run(context.Background(), textSource("one", "two"), opts)
	require.Error(t, err)

	runs, err := os.ReadDir(opts.TempDir)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	segs, err := os.ReadDir(filepath.Join(opts.TempDir, runs[0].Name()))
	require.NoError(t, err)
	assert.Len(t, segs, 1)
}

// vanishingWriter spills normally but removes the segment before the merge
// can open it.
type vanishingWriter struct {
	inner SpillWriter
}

func (w *vanishingWriter) Write(m *index.MemoryIndex) (string, error) {
	path, err := w.inner.Write(m)
	if err != nil {
		return "", err
	}
	return path, os.Remove(path)
}

func TestRunUnreadableSegmentKeepsRunDirectory(t *testing.T) {
	opts := testOptions(t, 1)
	opts.NewSpillWriter = func(dir, runID string) SpillWriter {
		return &vanishingWriter{inner: segment.NewWriter(dir, runID)}
	}

	_, err := Run(context.Background(), textSource("one", "two"), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, sperrors.ErrRead)
	assert.NoFileExists(t, opts.OutputPath)

	runs, err := os.ReadDir(opts.TempDir)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunSkipsUnreadableDocument(t *testing.T) {
	readErr := errors.New("permission denied")
	src := SourceFunc(func(ctx context.Context, yield func(Document) error) error {
		for i := 1; i <= 10; i++ {
			doc := Document{Hint: fmt.Sprintf("doc-%d", i), Body: []byte(fmt.Sprintf("shared text%d", i))}
			if i == 4 {
				doc = Document{Hint: "doc-4", Err: readErr}
			}
			if err := yield(doc); err != nil {
				return err
			}
		}
		return nil
	})
	opts := testOptions(t, 1<<20)
	opts.Metrics = metrics.New(prometheus.NewRegistry())

	res, err := Run(context.Background(), src, opts)
	require.NoError(t, err)
	assert.Equal(t, 9, res.Documents)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "doc-4", res.Skipped[0].Hint)
	assert.True(t, errors.Is(res.Skipped[0].Err, sperrors.ErrRead))
	assert.ErrorIs(t, res.Skipped[0].Err, readErr)

	final, err := segment.Load(opts.OutputPath)
	require.NoError(t, err)
	assert.Len(t, final.Postings("shared"), 9)
	assert.Nil(t, final.Postings("text4"))

	assert.Equal(t, 9.0, testutil.ToFloat64(opts.Metrics.DocsIndexedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.DocsSkippedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.RunsTotal.WithLabelValues("success")))
}

func TestRunSourceFailure(t *testing.T) {
	boom := errors.New("listing failed")
	src := SourceFunc(func(ctx context.Context, yield func(Document) error) error {
		if err := yield(Document{Hint: "a", Body: []byte("hello")}); err != nil {
			return err
		}
		return boom
	})
	opts := testOptions(t, 1)

	_, err := Run(context.Background(), src, opts)
	assert.ErrorIs(t, err, boom)
	assert.NoFileExists(t, opts.OutputPath)
	assertNoRunLeftovers(t, opts.TempDir)
}

func TestRunLeavesExistingOutputOnFailure(t *testing.T) {
	opts := testOptions(t, 1)
	require.NoError(t, os.MkdirAll(filepath.Dir(opts.OutputPath), 0755))
	require.NoError(t, os.WriteFile(opts.OutputPath, []byte("previous"), 0644))
	opts.NewSpillWriter = func(dir, runID string) SpillWriter {
		return &failingWriter{inner: segment.NewWriter(dir, runID), failOn: 1, err: errors.New("boom")}
	}

	_, err := Run(context.Background(), textSource("x"), opts)
	require.Error(t, err)
	data, err := os.ReadFile(opts.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := SourceFunc(func(ctx context.Context, yield func(Document) error) error {
		if err := yield(Document{Hint: "a", Body: []byte("hello")}); err != nil {
			return err
		}
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	opts := testOptions(t, 1<<20)

	done := make(chan error, 1)
	go func() {
		_, err := Run(ctx, src, opts)
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
	assert.NoFileExists(t, opts.OutputPath)
}

func TestRunEmptySource(t *testing.T) {
	opts := testOptions(t, 1)
	res, err := Run(context.Background(), textSource(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Segments)
	assert.Equal(t, 0, res.Terms)

	info, err := os.Stat(opts.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestRunTokenlessDocumentsSpillNothing(t *testing.T) {
	opts := testOptions(t, 1<<20)
	res, err := Run(context.Background(), textSource("", "...", "!!"), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Documents)
	assert.Equal(t, 0, res.Segments)
}

func TestRunInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no output", Options{SpillThreshold: 10}},
		{"zero threshold", Options{OutputPath: "x"}},
		{"negative capacity", Options{OutputPath: "x", SpillThreshold: 1, ChannelCapacity: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), textSource("a"), tt.opts)
			assert.ErrorIs(t, err, sperrors.ErrInvalidInput)
		})
	}
}
