// Package lexicon implements the string dictionary described in
// spec.md §4.2: an arena-backed entry vector plus an open-addressed,
// linear-probe hash index, carrying per-document frequency stats and
// a TF·IDF score computed at finalization.
//
// Entries are addressed by index into the entry slice, never by
// pointer — sort and rehash reorder the backing slice, and a pointer
// taken before either would dangle (spec.md §9, "pointer-into-vector
// hazards").
package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/corpuslex/w2n/src/go/arena"
	"github.com/corpuslex/w2n/src/go/werr"
)

// NoToken is the sentinel TokenId meaning "no token" — stopwords,
// filtered words, and document boundaries all resolve to it.
const NoToken int32 = -1

// emptySlot marks an unused hash-index bucket.
const emptySlot uint32 = ^uint32(0)

// Entry mirrors spec.md's LexiconEntry.
type Entry struct {
	Text     []byte
	DocLast  int32
	Count    uint64
	DocCount uint64
	TFIDF    float64
}

// SortOrder selects Lexicon.Sort's comparison.
type SortOrder int

const (
	// SortByText orders entries lexicographically by Text.
	SortByText SortOrder = iota
	// SortByTFIDFDesc orders entries by descending TFIDF.
	SortByTFIDFDesc
)

// EmitMask bits select which columns Export writes.
const (
	EmitCount EmitMask = 1 << iota
	EmitDocCount
	EmitTFIDF
)

// EmitMask is a bitmask of EmitCount|EmitDocCount|EmitTFIDF.
type EmitMask int

// Lexicon is the mutable string dictionary. Once callers are done
// adding, Sort+SetTFIDF finalize it for persistence and query use;
// nothing in this package enforces a separate read-only type because
// the matrix (tile.Matrix) is the component whose mutability the spec
// actually gates — the lexicon keeps accepting Add after Sort, at the
// cost of another rehash, which callers simply avoid doing mid-build.
type Lexicon struct {
	entries []Entry
	index   []uint32

	granularity int
	heap        *arena.Arena

	docID       int32
	lemmasCount uint64
	docsCount   uint64
}

// New creates a Lexicon sized for roughly `capacity` entries, growing
// the entry slice by `granularity` elements at a time once the
// preallocated capacity is exhausted.
func New(capacity, granularity int) *Lexicon {
	if capacity <= 0 {
		capacity = 1024
	}
	if granularity <= 0 {
		granularity = capacity
	}
	l := &Lexicon{
		entries:     make([]Entry, 0, capacity),
		granularity: granularity,
		heap:        arena.New(0),
		docID:       -1,
	}
	l.index = newIndex(hashSizeFor(capacity))
	return l
}

func hashSizeFor(n int) int {
	h := n*13 - 17
	if h < 17 {
		h = 17
	}
	return h
}

func newIndex(size int) []uint32 {
	idx := make([]uint32, size)
	for i := range idx {
		idx[i] = emptySlot
	}
	return idx
}

func djb2(b []byte) uint32 {
	var hash uint32 = 5381
	for _, c := range b {
		hash = ((hash << 5) + hash) + uint32(c) // hash*33 + c
	}
	return hash
}

// Len reports the number of distinct entries.
func (l *Lexicon) Len() int { return len(l.entries) }

// Entry returns the entry at id, which must satisfy 0 <= id < Len().
func (l *Lexicon) Entry(id int32) *Entry { return &l.entries[id] }

// TotalLemmas is the cumulative occurrence count across every Add call.
func (l *Lexicon) TotalLemmas() uint64 { return l.lemmasCount }

// TotalDocs is the number of distinct doc ids seen across every Add call.
func (l *Lexicon) TotalDocs() uint64 { return l.docsCount }

// Find looks up text and returns its id, or (-1, false) if absent.
func (l *Lexicon) Find(text []byte) (int32, bool) {
	hsize := len(l.index)
	i := djb2(text) % uint32(hsize)
	for l.index[i] != emptySlot {
		id := l.index[i]
		if string(l.entries[id].Text) == string(text) {
			return int32(id), true
		}
		i = (i + 1) % uint32(hsize)
	}
	return -1, false
}

func (l *Lexicon) updateGlobalStats(docID int32, delta uint64) {
	if l.docID != docID {
		l.docID = docID
		l.docsCount++
	}
	l.lemmasCount += delta
}

// Add locates text, or inserts it if absent, and applies delta to its
// count (spec.md §4.2 `add`). docID identifies the current document
// for document-frequency bookkeeping. Returns the entry's stable id.
func (l *Lexicon) Add(text []byte, docID int32, delta uint64) (int32, error) {
	hsize := len(l.index)
	i := djb2(text) % uint32(hsize)
	miss := 0
	for l.index[i] != emptySlot {
		id := l.index[i]
		if string(l.entries[id].Text) == string(text) {
			e := &l.entries[id]
			e.Count += delta
			if e.DocLast != docID {
				e.DocCount++
				e.DocLast = docID
			}
			l.updateGlobalStats(docID, delta)
			return int32(id), nil
		}
		i = (i + 1) % uint32(hsize)
		miss++
		if miss > hsize {
			// Every bucket was probed without finding an empty slot or a
			// match: the resize discipline below failed to keep up.
			return -1, werr.ErrLexiconFull
		}
	}

	l.growEntries()
	id := int32(len(l.entries))
	l.entries = append(l.entries, Entry{
		Text:     l.heap.Intern(text),
		DocLast:  docID,
		Count:    delta,
		DocCount: 1,
	})
	l.index[i] = uint32(id)
	l.updateGlobalStats(docID, delta)

	if len(l.entries) > hsize/2 {
		l.rehash(hashSizeFor(len(l.entries)))
	}
	return id, nil
}

// growEntries reallocates the entry slice in granularity-sized steps
// once its preallocated capacity is exhausted, instead of leaving the
// growth strategy entirely to append's built-in doubling (spec.md §4.2:
// "if entry vector full, grow by granularity"). Every insert, including
// ImportFrom's, goes through Add, so append never grows the slice itself.
func (l *Lexicon) growEntries() {
	if len(l.entries) < cap(l.entries) {
		return
	}
	grown := make([]Entry, len(l.entries), cap(l.entries)+l.granularity)
	copy(grown, l.entries)
	l.entries = grown
}

func (l *Lexicon) rehash(newSize int) {
	l.index = newIndex(newSize)
	hsize := uint32(newSize)
	for id := range l.entries {
		i := djb2(l.entries[id].Text) % hsize
		for l.index[i] != emptySlot {
			i = (i + 1) % hsize
		}
		l.index[i] = uint32(id)
	}
}

// SetTFIDF computes, for every entry, tf = count/max_count and
// idf = ln(max_doc_count/(1+doc_count)), storing tf*idf. This is the
// normalized, max-scaled definition from spec.md §4.2 — not the
// textbook log-tf/idf — and must be reproduced exactly.
func (l *Lexicon) SetTFIDF() {
	if len(l.entries) == 0 {
		return
	}
	counts := make([]float64, len(l.entries))
	docCounts := make([]float64, len(l.entries))
	for i, e := range l.entries {
		counts[i] = float64(e.Count)
		docCounts[i] = float64(e.DocCount)
	}
	maxCount := floats.Max(counts)
	maxDocCount := floats.Max(docCounts)
	for i := range l.entries {
		tf := counts[i] / maxCount
		idf := math.Log(maxDocCount / (1 + docCounts[i]))
		l.entries[i].TFIDF = tf * idf
	}
}

// Sort reorders entries per order and rebuilds the hash index to
// match the new positions — finalize's sort and rehash happen in the
// same critical section so no stale id ever leaks out (spec.md §9).
func (l *Lexicon) Sort(order SortOrder) {
	switch order {
	case SortByText:
		sort.SliceStable(l.entries, func(i, j int) bool {
			return string(l.entries[i].Text) < string(l.entries[j].Text)
		})
	case SortByTFIDFDesc:
		sort.SliceStable(l.entries, func(i, j int) bool {
			return l.entries[i].TFIDF > l.entries[j].TFIDF
		})
	}
	l.rehash(hashSizeFor(len(l.entries)))
}

// Import reads a lexicon text file (spec.md §6.1). Lines are
// TAB-separated: text, optional count, optional doc_count. A leading
// "# lemma" header line is skipped. Returns a new Lexicon holding the
// imported entries.
func Import(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: open %s: %w", path, err)
	}
	defer f.Close()

	l := New(256*1024, 64*1024)
	if err := l.ImportFrom(f); err != nil {
		return nil, err
	}
	return l, nil
}

// ImportFrom reads lexicon rows from r into l, for callers that
// already have a Lexicon (e.g. a stopword list merged into a
// build-time instance).
func (l *Lexicon) ImportFrom(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if first {
			first = false
			if strings.HasPrefix(line, "# lemma") {
				continue
			}
		}
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		text := cols[0]
		if text == "" {
			continue
		}
		id, err := l.Add([]byte(text), 1, 1)
		if err != nil {
			return err
		}
		if len(cols) >= 3 {
			cnt, errC := strconv.ParseUint(cols[1], 10, 64)
			doc, errD := strconv.ParseUint(cols[2], 10, 64)
			if errC == nil && errD == nil && cnt != 0 && doc != 0 {
				e := l.Entry(id)
				e.Count = cnt
				e.DocCount = doc
			}
		}
	}
	return scanner.Err()
}

// Export writes the lexicon as text (spec.md §6.1). mask selects
// which of count/doc_count/tfidf columns appear. Entries with
// count <= minCount are skipped, as are entries with doc_count <=
// minDocCount when minDocCount > 256 (spec.md §4.2 preserves this gate
// as-is: it makes the doc-count cut unreachable at the default call,
// which passes minDocCount=1; see DESIGN.md Open Question). Once more
// than one document has been seen, entries with tfidf <= 0 are also
// skipped. Returns the number of rows actually written.
func (l *Lexicon) Export(path string, mask EmitMask, minCount, minDocCount uint64) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("lexicon: create %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	header := "# lemma"
	if mask&EmitCount != 0 {
		header += fmt.Sprintf("\tcount(%d)", l.lemmasCount)
	}
	if mask&EmitDocCount != 0 {
		header += fmt.Sprintf("\tdoccount(%d)", l.docsCount)
	}
	if mask&EmitTFIDF != 0 {
		header += "\tTFxIDF"
	}
	if _, err := w.WriteString(header + "\r\n"); err != nil {
		return 0, err
	}

	written := 0
	for _, e := range l.entries {
		if e.Count <= minCount || (minDocCount > 256 && e.DocCount <= minDocCount) {
			continue
		}
		if l.docsCount > 1 && e.TFIDF <= 0 {
			continue
		}
		row := string(e.Text)
		if mask&EmitCount != 0 {
			row += fmt.Sprintf("\t%d", e.Count)
		}
		if mask&EmitDocCount != 0 {
			row += fmt.Sprintf("\t%d", e.DocCount)
		}
		if mask&EmitTFIDF != 0 {
			row += fmt.Sprintf("\t%.4f", e.TFIDF)
		}
		if _, err := w.WriteString(row + "\r\n"); err != nil {
			return written, err
		}
		written++
	}
	return written, w.Flush()
}
