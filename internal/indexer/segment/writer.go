// Package segment manages spilled index segments on disk: allocating unique
// file names inside a run directory, writing a MemoryIndex durably, and
// streaming term blocks back out.
package segment

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/index"
	sperrors "github.com/Adithya-Monish-Kumar-K/fingertips/pkg/errors"
)

// Extension is the file suffix of every segment.
const Extension = ".seg"

// Writer serialises MemoryIndex instances into new segment files. Names are
// drawn from a counter owned by the Writer and prefixed with the run ID, so
// two runs sharing a directory never collide. A Writer must only be used
// from one goroutine.
type Writer struct {
	dir   string
	runID string
	seq   uint64
}

// NewWriter creates a Writer that writes segments into dir.
func NewWriter(dir, runID string) *Writer {
	return &Writer{dir: dir, runID: runID}
}

// Dir returns the directory segments are written to.
func (w *Writer) Dir() string {
	return w.dir
}

// Write creates a new segment file holding m. The file is written under a
// .tmp name, synced, closed and renamed, so the returned path always refers
// to a complete segment.
func (w *Writer) Write(m *index.MemoryIndex) (string, error) {
	w.seq++
	name := fmt.Sprintf("seg-%s-%06d%s", w.runID, w.seq, Extension)
	finalPath := filepath.Join(w.dir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", sperrors.Write("creating segment directory", w.dir, err)
	}
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", sperrors.Write("creating temp segment file", tmpPath, err)
	}
	if _, err := m.WriteTo(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", sperrors.Write("writing segment", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", sperrors.Write("syncing segment file", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", sperrors.Write("closing segment file", tmpPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", sperrors.Write("renaming segment file", finalPath, err)
	}
	return finalPath, nil
}
