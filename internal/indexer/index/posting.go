package index

// DocID identifies a document within one indexing run. IDs are assigned in
// arrival order and strictly increase.
type DocID uint64

// Posting records one document's occurrences of a term as ascending 0-based
// token offsets.
type Posting struct {
	DocID     DocID
	Positions []uint32
}

// PostingList holds at most one Posting per document, sorted by DocID.
type PostingList []Posting

// TermEntry is one term and its postings, the unit written to segment files.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// DocCount returns the number of documents in the list.
func (pl PostingList) DocCount() int {
	return len(pl)
}

// MergePostings folds two DocID-sorted lists into one. When every DocID of b
// is above every DocID of a, which is the common case for lists built from
// disjoint document ranges, b is appended as is. Otherwise the lists are
// interleaved with a two-pointer merge and a DocID present in both gets the
// union of its positions. a may be modified; b is not.
func MergePostings(a, b PostingList) PostingList {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return append(PostingList(nil), b...)
	}
	if a[len(a)-1].DocID < b[0].DocID {
		return append(a, b...)
	}
	merged := make(PostingList, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].DocID < b[j].DocID:
			merged = append(merged, a[i])
			i++
		case a[i].DocID > b[j].DocID:
			merged = append(merged, b[j])
			j++
		default:
			merged = append(merged, Posting{
				DocID:     a[i].DocID,
				Positions: mergePositions(a[i].Positions, b[j].Positions),
			})
			i++
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return merged
}

// mergePositions returns the sorted union of two ascending position lists.
func mergePositions(a, b []uint32) []uint32 {
	out := make([]uint32, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
