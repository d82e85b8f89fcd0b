package segment

import (
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/index"
	sperrors "github.com/Adithya-Monish-Kumar-K/fingertips/pkg/errors"
)

// Reader streams the term blocks of one segment or final-index file. Only
// the current block is held in memory.
type Reader struct {
	file  *os.File
	path  string
	dec   *index.Decoder
	terms int
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sperrors.Read("opening segment file", path, err)
	}
	return &Reader{
		file: f,
		path: path,
		dec:  index.NewDecoder(f),
	}, nil
}

// Next returns the next term block, or io.EOF once the file is exhausted.
// Structural problems are reported as ErrFormat errors.
func (r *Reader) Next() (index.TermEntry, error) {
	entry, err := r.dec.Decode()
	if err == io.EOF {
		return index.TermEntry{}, io.EOF
	}
	if err != nil {
		return index.TermEntry{}, fmt.Errorf("segment %s, block %d: %w", r.path, r.terms, err)
	}
	r.terms++
	return entry, nil
}

func (r *Reader) Path() string {
	return r.path
}

// Terms returns the number of blocks read so far.
func (r *Reader) Terms() int {
	return r.terms
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// Load reads a whole file into a MemoryIndex.
func Load(path string) (*index.MemoryIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sperrors.Read("opening segment file", path, err)
	}
	defer f.Close()
	m, err := index.ReadIndex(f)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}
	return m, nil
}
