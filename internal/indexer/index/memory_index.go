// Package index implements the in-memory inverted index, the postings merge,
// and the term-block codec shared by segment files and the final index.
package index

import (
	"io"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/tokenizer"
)

// MemoryIndex maps terms to DocID-sorted posting lists. It is not safe for
// concurrent use: the pipeline hands an index from stage to stage and the
// sender never touches it again.
type MemoryIndex struct {
	terms    map[string]PostingList
	docCount int
	size     int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		terms: make(map[string]PostingList),
	}
}

// AddDocument tokenizes text with the default tokenizer and records every
// token under docID.
func (m *MemoryIndex) AddDocument(docID DocID, text string) {
	m.AddTokens(docID, tokenizer.Tokenize(text))
}

// AddTokens records already tokenized text under docID. Repeated terms
// accumulate positions in a single Posting.
func (m *MemoryIndex) AddTokens(docID DocID, tokens []tokenizer.Token) {
	for _, token := range tokens {
		m.addOccurrence(token.Term, docID, uint32(token.Position))
	}
	m.docCount++
}

func (m *MemoryIndex) addOccurrence(term string, docID DocID, pos uint32) {
	postings, exists := m.terms[term]
	if !exists {
		m.terms[term] = PostingList{{DocID: docID, Positions: []uint32{pos}}}
		m.size += termHeaderSize(term) + postingSize(1)
		return
	}
	last := &postings[len(postings)-1]
	switch {
	case last.DocID == docID:
		last.Positions = append(last.Positions, pos)
		m.size += positionSize
	case last.DocID < docID:
		m.terms[term] = append(postings, Posting{DocID: docID, Positions: []uint32{pos}})
		m.size += postingSize(1)
	default:
		before := postingsSize(postings)
		merged := MergePostings(postings, PostingList{{DocID: docID, Positions: []uint32{pos}}})
		m.terms[term] = merged
		m.size += postingsSize(merged) - before
	}
}

// Merge folds other into m and leaves other empty. Terms missing from m take
// other's list verbatim; shared terms get a DocID-ordered merge.
func (m *MemoryIndex) Merge(other *MemoryIndex) {
	if other == nil || other == m {
		return
	}
	if len(m.terms) == 0 {
		m.terms, other.terms = other.terms, m.terms
		m.size, m.docCount = other.size, m.docCount+other.docCount
		other.reset()
		return
	}
	for term, postings := range other.terms {
		existing, exists := m.terms[term]
		if !exists {
			m.terms[term] = postings
			m.size += termHeaderSize(term) + postingsSize(postings)
			continue
		}
		before := postingsSize(existing)
		merged := MergePostings(existing, postings)
		m.terms[term] = merged
		m.size += postingsSize(merged) - before
	}
	m.docCount += other.docCount
	other.reset()
}

// Postings returns the list stored for term, or nil.
func (m *MemoryIndex) Postings(term string) PostingList {
	return m.terms[term]
}

// Entries returns every term with its postings in ascending term order, the
// order required on disk.
func (m *MemoryIndex) Entries() []TermEntry {
	terms := make([]string, 0, len(m.terms))
	for term := range m.terms {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	entries := make([]TermEntry, 0, len(terms))
	for _, term := range terms {
		entries = append(entries, TermEntry{Term: term, Postings: m.terms[term]})
	}
	return entries
}

// Size returns the byte size the index occupies once serialized.
func (m *MemoryIndex) Size() int64 {
	return m.size
}

// IsLarge reports whether the index has reached threshold bytes.
func (m *MemoryIndex) IsLarge(threshold int64) bool {
	return m.size >= threshold
}

func (m *MemoryIndex) IsEmpty() bool {
	return len(m.terms) == 0
}

// TermCount returns the number of distinct terms.
func (m *MemoryIndex) TermCount() int {
	return len(m.terms)
}

// DocCount returns the number of documents folded into the index.
func (m *MemoryIndex) DocCount() int {
	return m.docCount
}

// WriteTo serializes the index as term blocks in ascending term order.
func (m *MemoryIndex) WriteTo(w io.Writer) (int64, error) {
	enc := NewEncoder(w)
	for _, entry := range m.Entries() {
		if err := enc.Encode(entry); err != nil {
			return enc.Written(), err
		}
	}
	err := enc.Flush()
	return enc.Written(), err
}

// ReadIndex deserializes a complete index written by WriteTo.
func ReadIndex(r io.Reader) (*MemoryIndex, error) {
	m := NewMemoryIndex()
	docs := make(map[DocID]struct{})
	dec := NewDecoder(r)
	for {
		entry, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		m.terms[entry.Term] = entry.Postings
		m.size += termHeaderSize(entry.Term) + postingsSize(entry.Postings)
		for _, p := range entry.Postings {
			docs[p.DocID] = struct{}{}
		}
	}
	m.docCount = len(docs)
	return m, nil
}

func (m *MemoryIndex) reset() {
	m.terms = make(map[string]PostingList)
	m.docCount = 0
	m.size = 0
}
