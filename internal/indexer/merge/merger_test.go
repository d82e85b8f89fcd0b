package merge

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/segment"
	sperrors "github.com/Adithya-Monish-Kumar-K/fingertips/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/metrics"
)

var vocabulary = []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta", "iota", "kappa"}

// writeSegments spills docsPerSegment random documents per segment and
// returns the paths together with the expected union.
func writeSegments(t *testing.T, dir string, k, docsPerSegment int, rng *rand.Rand) ([]string, *index.MemoryIndex) {
	t.Helper()
	want := index.NewMemoryIndex()
	w := segment.NewWriter(dir, "test")
	var paths []string
	docID := index.DocID(1)
	for s := 0; s < k; s++ {
		seg := index.NewMemoryIndex()
		for d := 0; d < docsPerSegment; d++ {
			text := ""
			for n := 0; n < 1+rng.Intn(12); n++ {
				text += vocabulary[rng.Intn(len(vocabulary))] + " "
			}
			doc := index.NewMemoryIndex()
			doc.AddDocument(docID, text)
			expected := index.NewMemoryIndex()
			expected.AddDocument(docID, text)
			seg.Merge(doc)
			want.Merge(expected)
			docID++
		}
		path, err := w.Write(seg)
		require.NoError(t, err)
		paths = append(paths, path)
	}
	return paths, want
}

func TestMergeUnionOfSegments(t *testing.T) {
	for _, k := range []int{1, 2, 5, 17} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			dir := t.TempDir()
			paths, want := writeSegments(t, filepath.Join(dir, "segments"), k, 8, rand.New(rand.NewSource(int64(k))))
			out := filepath.Join(dir, "final.idx")

			res, err := New(nil).Merge(context.Background(), paths, out)
			require.NoError(t, err)
			assert.Equal(t, k, res.Segments)
			assert.Equal(t, want.TermCount(), res.Terms)
			assert.Equal(t, want.Size(), res.Bytes)

			got, err := segment.Load(out)
			require.NoError(t, err)
			assert.Equal(t, want.Entries(), got.Entries())

			for _, p := range paths {
				assert.NoFileExists(t, p)
			}
		})
	}
}

func TestMergeInterleavedDocumentRanges(t *testing.T) {
	dir := t.TempDir()
	w := segment.NewWriter(dir, "run")
	odd, even := index.NewMemoryIndex(), index.NewMemoryIndex()
	for id := index.DocID(1); id <= 6; id++ {
		doc := index.NewMemoryIndex()
		doc.AddDocument(id, "shared")
		if id%2 == 1 {
			odd.Merge(doc)
		} else {
			even.Merge(doc)
		}
	}
	p1, err := w.Write(even)
	require.NoError(t, err)
	p2, err := w.Write(odd)
	require.NoError(t, err)

	out := filepath.Join(dir, "final.idx")
	_, err = New(nil).Merge(context.Background(), []string{p1, p2}, out)
	require.NoError(t, err)

	got, err := segment.Load(out)
	require.NoError(t, err)
	postings := got.Postings("shared")
	require.Len(t, postings, 6)
	for i, p := range postings {
		assert.Equal(t, index.DocID(i+1), p.DocID)
	}
}

func TestMergeNoSegmentsWritesEmptyIndex(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "final.idx")
	res, err := New(nil).Merge(context.Background(), nil, out)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Terms)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestMergeMalformedSegmentPreservesInputs(t *testing.T) {
	dir := t.TempDir()
	paths, _ := writeSegments(t, dir, 3, 4, rand.New(rand.NewSource(1)))
	info, err := os.Stat(paths[1])
	require.NoError(t, err)
	require.NoError(t, os.Truncate(paths[1], info.Size()-2))

	outDir := filepath.Join(dir, "out")
	out := filepath.Join(outDir, "final.idx")
	_, err = New(nil).Merge(context.Background(), paths, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sperrors.ErrFormat), "got %v", err)

	assert.NoFileExists(t, out)
	for _, p := range paths {
		assert.FileExists(t, p)
	}
	leftovers, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestMergeOutOfOrderSegmentIsFormatError(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.seg")
	var data []byte
	for _, term := range []string{"b", "a"} {
		data = append(data, byte(len(term)), 0, 0, 0)
		data = append(data, term...)
		data = append(data, 1, 0, 0, 0)
		data = append(data, 1, 0, 0, 0, 0, 0, 0, 0)
		data = append(data, 1, 0, 0, 0)
		data = append(data, 0, 0, 0, 0)
	}
	require.NoError(t, os.WriteFile(bad, data, 0644))

	out := filepath.Join(dir, "final.idx")
	_, err := New(nil).Merge(context.Background(), []string{bad}, out)
	assert.True(t, errors.Is(err, sperrors.ErrFormat), "got %v", err)
	assert.NoFileExists(t, out)
	assert.FileExists(t, bad)
}

func TestMergeMissingSegment(t *testing.T) {
	dir := t.TempDir()
	paths, _ := writeSegments(t, dir, 2, 2, rand.New(rand.NewSource(2)))
	paths = append(paths, filepath.Join(dir, "missing.seg"))

	out := filepath.Join(dir, "final.idx")
	_, err := New(nil).Merge(context.Background(), paths, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, sperrors.ErrRead)
	assert.NoFileExists(t, out)
	assert.FileExists(t, paths[0])
}

func TestMergeCancelled(t *testing.T) {
	dir := t.TempDir()
	paths, _ := writeSegments(t, dir, 2, 4, rand.New(rand.NewSource(3)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := filepath.Join(dir, "final.idx")
	_, err := New(nil).Merge(ctx, paths, out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, out)
}

func TestMergeRecordsMetrics(t *testing.T) {
	dir := t.TempDir()
	paths, want := writeSegments(t, dir, 3, 3, rand.New(rand.NewSource(4)))
	m := metrics.New(prometheus.NewRegistry())

	_, err := New(m).Merge(context.Background(), paths, filepath.Join(dir, "final.idx"))
	require.NoError(t, err)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SegmentsMerged))
	assert.Equal(t, float64(want.TermCount()), testutil.ToFloat64(m.TermsWrittenTotal))
}

func BenchmarkMerge(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		dir := b.TempDir()
		w := segment.NewWriter(dir, "bench")
		var paths []string
		for s := 0; s < 8; s++ {
			seg := index.NewMemoryIndex()
			for d := 0; d < 200; d++ {
				doc := index.NewMemoryIndex()
				doc.AddDocument(index.DocID(s*200+d+1), fmt.Sprintf("term%d term%d common words here", d%50, d%13))
				seg.Merge(doc)
			}
			p, err := w.Write(seg)
			if err != nil {
				b.Fatal(err)
			}
			paths = append(paths, p)
		}
		b.StartTimer()
		if _, err := New(nil).Merge(context.Background(), paths, filepath.Join(dir, "final.idx")); err != nil {
			b.Fatal(err)
		}
	}
}
