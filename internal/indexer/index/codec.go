package index

import (
	"bufio"
	"encoding/binary"
	"io"

	sperrors "github.com/Adithya-Monish-Kumar-K/fingertips/pkg/errors"
)

// On-disk layout, all integers little-endian. A file is a sequence of term
// blocks in strictly ascending byte order of the term:
//
//	term length  uint32
//	term bytes
//	posting count uint32
//	postings, each:
//	    doc id         uint64
//	    position count uint32
//	    positions      uint32 each
//
// An empty file is an empty index.
const (
	lengthSize   = 4
	docIDSize    = 8
	positionSize = 4

	// MaxTermLength bounds a single term so a corrupt length cannot force a
	// huge allocation.
	MaxTermLength = 1 << 24

	preallocLimit = 1024
)

func termHeaderSize(term string) int64 {
	return int64(lengthSize + len(term) + lengthSize)
}

func postingSize(positions int) int64 {
	return int64(docIDSize + lengthSize + positions*positionSize)
}

func postingsSize(postings PostingList) int64 {
	var n int64
	for _, p := range postings {
		n += postingSize(len(p.Positions))
	}
	return n
}

// EntrySize returns the number of bytes entry occupies on disk.
func EntrySize(entry TermEntry) int64 {
	return termHeaderSize(entry.Term) + postingsSize(entry.Postings)
}

// Encoder writes term blocks and refuses any entry that would break the
// ordering invariants of the format.
type Encoder struct {
	w       *bufio.Writer
	prev    string
	started bool
	written int64
	buf     [docIDSize]byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriterSize(w, 64*1024)}
}

// Encode appends one term block. Data may stay buffered until Flush.
func (e *Encoder) Encode(entry TermEntry) error {
	if err := checkEntry(entry, e.prev, e.started); err != nil {
		return err
	}
	if err := e.putUint32(uint32(len(entry.Term))); err != nil {
		return err
	}
	if _, err := e.w.WriteString(entry.Term); err != nil {
		return err
	}
	e.written += int64(len(entry.Term))
	if err := e.putUint32(uint32(len(entry.Postings))); err != nil {
		return err
	}
	for _, p := range entry.Postings {
		binary.LittleEndian.PutUint64(e.buf[:], uint64(p.DocID))
		if _, err := e.w.Write(e.buf[:docIDSize]); err != nil {
			return err
		}
		e.written += docIDSize
		if err := e.putUint32(uint32(len(p.Positions))); err != nil {
			return err
		}
		for _, pos := range p.Positions {
			if err := e.putUint32(pos); err != nil {
				return err
			}
		}
	}
	e.prev = entry.Term
	e.started = true
	return nil
}

func (e *Encoder) putUint32(v uint32) error {
	binary.LittleEndian.PutUint32(e.buf[:lengthSize], v)
	if _, err := e.w.Write(e.buf[:lengthSize]); err != nil {
		return err
	}
	e.written += lengthSize
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}

// Written returns the number of bytes encoded so far, flushed or not.
func (e *Encoder) Written() int64 {
	return e.written
}

// Decoder reads term blocks and validates them as it goes. Decode returns
// io.EOF only at a block boundary; anything else that is wrong with the
// stream is an ErrFormat error.
type Decoder struct {
	r       *bufio.Reader
	prev    string
	started bool
	buf     [docIDSize]byte
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Decode reads the next term block.
func (d *Decoder) Decode() (TermEntry, error) {
	termLen, err := d.uint32()
	if err == io.EOF {
		return TermEntry{}, io.EOF
	}
	if err != nil {
		return TermEntry{}, d.fail("read term length", err)
	}
	if termLen > MaxTermLength {
		return TermEntry{}, sperrors.Formatf("", "term length %d exceeds limit", termLen)
	}
	term := make([]byte, termLen)
	if _, err := io.ReadFull(d.r, term); err != nil {
		return TermEntry{}, d.fail("read term", err)
	}
	count, err := d.uint32()
	if err != nil {
		return TermEntry{}, d.fail("read posting count", err)
	}
	postings := make(PostingList, 0, min(int(count), preallocLimit))
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(d.r, d.buf[:docIDSize]); err != nil {
			return TermEntry{}, d.fail("read doc id", err)
		}
		docID := DocID(binary.LittleEndian.Uint64(d.buf[:docIDSize]))
		npos, err := d.uint32()
		if err != nil {
			return TermEntry{}, d.fail("read position count", err)
		}
		positions := make([]uint32, 0, min(int(npos), preallocLimit))
		for k := uint32(0); k < npos; k++ {
			pos, err := d.uint32()
			if err != nil {
				return TermEntry{}, d.fail("read position", err)
			}
			positions = append(positions, pos)
		}
		postings = append(postings, Posting{DocID: docID, Positions: positions})
	}
	entry := TermEntry{Term: string(term), Postings: postings}
	if err := checkEntry(entry, d.prev, d.started); err != nil {
		return TermEntry{}, err
	}
	d.prev = entry.Term
	d.started = true
	return entry, nil
}

// uint32 returns io.EOF only when no byte at all could be read.
func (d *Decoder) uint32() (uint32, error) {
	if _, err := io.ReadFull(d.r, d.buf[:lengthSize]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(d.buf[:lengthSize]), nil
}

func (d *Decoder) fail(op string, err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err == io.ErrUnexpectedEOF {
		return sperrors.Format(op, "", err)
	}
	return sperrors.Read(op, "", err)
}

// checkEntry enforces the ordering invariants of a single block and its
// position relative to the previous term.
func checkEntry(entry TermEntry, prev string, started bool) error {
	if len(entry.Term) > MaxTermLength {
		return sperrors.Formatf("", "term length %d exceeds limit", len(entry.Term))
	}
	if started && entry.Term <= prev {
		return sperrors.Formatf("", "term %q not after %q", entry.Term, prev)
	}
	if len(entry.Postings) == 0 {
		return sperrors.Formatf("", "term %q has no postings", entry.Term)
	}
	for i, p := range entry.Postings {
		if i > 0 && p.DocID <= entry.Postings[i-1].DocID {
			return sperrors.Formatf("", "term %q: doc %d not after doc %d", entry.Term, p.DocID, entry.Postings[i-1].DocID)
		}
		for k := 1; k < len(p.Positions); k++ {
			if p.Positions[k] <= p.Positions[k-1] {
				return sperrors.Formatf("", "term %q doc %d: positions not ascending", entry.Term, p.DocID)
			}
		}
	}
	return nil
}
