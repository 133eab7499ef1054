// Package query implements row fetch, distance scoring, and top-k
// retrieval over a finalized lexicon and ReadOnly tile matrix, per
// spec.md §4.7.
package query

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/corpuslex/w2n/src/go/lexicon"
	"github.com/corpuslex/w2n/src/go/tile"
	"github.com/corpuslex/w2n/src/go/werr"
)

const (
	// TopK is the fixed top-k size from spec.md §4.7.
	TopK = 16
	// maxQueryWords bounds a "show w1 w2 ..." intersection query.
	maxQueryWords = 8
)

// Direction selects which end of the score range BestAdd favors.
type Direction int

const (
	// Nearest prefers larger scores (dot-product share).
	Nearest Direction = 1
	// Farthest prefers smaller scores (Euclidean-like distance).
	Farthest Direction = -1
)

// Engine answers similarity queries over a finalized lexicon and a
// ReadOnly tile matrix.
type Engine struct {
	Lex    *lexicon.Lexicon
	Matrix *tile.Matrix
	Area   int
}

// New creates an Engine; area <= 0 defaults to 64 (spec.md default).
func New(lex *lexicon.Lexicon, m *tile.Matrix, area int) *Engine {
	if area <= 0 {
		area = 64
	}
	return &Engine{Lex: lex, Matrix: m, Area: area}
}

// Row fetches and column-sorts id's row, capped at e.Area pairs — the
// query engine always works on column-ascending rows, unlike the
// matrix's own count-descending persisted order.
func (e *Engine) Row(id int32) []tile.RowPair {
	row := e.Matrix.GetRow(int(id), e.Area)
	sort.Slice(row, func(i, j int) bool { return row[i].Col < row[j].Col })
	return row
}

// rowDistance is the Euclidean-like metric: sum of squared
// differences over matched columns plus sum of squares of unmatched
// entries from both sides, square-rooted. Smaller is more similar.
func rowDistance(word, check []tile.RowPair) float64 {
	var matchedA, matchedB, onlyA, onlyB []float64
	mergeRows(word, check, &matchedA, &matchedB, &onlyA, &onlyB)

	diff := make([]float64, len(matchedA))
	for i := range matchedA {
		diff[i] = matchedB[i] - matchedA[i]
	}
	sum := floats.Dot(diff, diff) + floats.Dot(onlyA, onlyA) + floats.Dot(onlyB, onlyB)
	return math.Sqrt(sum)
}

// rowDistanceShare is the dot-product share: sum of products over
// matched columns, square-rooted. Larger is more similar; this is the
// default metric (spec.md §4.7).
func rowDistanceShare(word, check []tile.RowPair) float64 {
	var matchedA, matchedB, onlyA, onlyB []float64
	mergeRows(word, check, &matchedA, &matchedB, &onlyA, &onlyB)
	_ = onlyA
	_ = onlyB
	sum := floats.Dot(matchedA, matchedB)
	if sum == 0 {
		return 0
	}
	return math.Sqrt(sum)
}

// mergeRows walks two column-sorted rows in lockstep, the same
// two-pointer merge as the original's row_distance/row_distanceshare,
// splitting counts into matched pairs and each side's unmatched tail.
func mergeRows(a, b []tile.RowPair, matchedA, matchedB, onlyA, onlyB *[]float64) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		for i < len(a) && (j >= len(b) || a[i].Col < b[j].Col) {
			*onlyA = append(*onlyA, float64(a[i].Count))
			i++
		}
		for j < len(b) && (i >= len(a) || b[j].Col < a[i].Col) {
			*onlyB = append(*onlyB, float64(b[j].Count))
			j++
		}
		for i < len(a) && j < len(b) && a[i].Col == b[j].Col {
			*matchedA = append(*matchedA, float64(a[i].Count))
			*matchedB = append(*matchedB, float64(b[j].Count))
			i++
			j++
		}
	}
	for ; i < len(a); i++ {
		*onlyA = append(*onlyA, float64(a[i].Count))
	}
	for ; j < len(b); j++ {
		*onlyB = append(*onlyB, float64(b[j].Count))
	}
}

// Nearest returns the top-k (spec.md TopK=16) most similar words to
// word using the dot-product share metric, by iterating only rows
// the matrix's row-presence bitmap reports as non-empty (rather than
// every lexicon id, per the original's `for y:=0;y<dict->num;y++`
// scan).
func (e *Engine) Nearest(word string) ([]string, error) {
	id, ok := e.Lex.Find([]byte(word))
	if !ok {
		return nil, fmt.Errorf("%q: %w", word, werr.ErrWordNotInLexicon)
	}
	wordRow := e.Row(id)

	best := make([]Best, TopK)
	BestReset(best)

	bm := e.Matrix.RowBitmap()
	it := bm.Iterator()
	for it.HasNext() {
		y := int32(it.Next())
		if y == id {
			continue
		}
		checkRow := e.Row(y)
		if len(checkRow) == 0 {
			continue
		}
		score := rowDistanceShare(wordRow, checkRow)
		BestAdd(best, y, score, Nearest)
	}

	var out []string
	for _, b := range best {
		if b.ID == -1 {
			break
		}
		out = append(out, string(e.Lex.Entry(b.ID).Text))
	}
	return out, nil
}

// Show answers a multi-word context intersection (spec.md §4.7): for
// each of up to 8 words present in the lexicon, accumulate per-column
// sums and a per-word bitmask, then keep only columns whose mask
// covers every resolved input word, sorted by sum descending. Words
// absent from the lexicon are skipped (reported via notFound) rather
// than aborting the whole query, matching the original REPL's
// behavior of printing one "not in dictionary" line per miss and
// continuing with whatever words it did resolve.
func (e *Engine) Show(words []string) (neighbors []string, notFound []string, err error) {
	if len(words) > maxQueryWords {
		words = words[:maxQueryWords]
	}
	ids := make([]int32, 0, len(words))
	for _, w := range words {
		id, ok := e.Lex.Find([]byte(w))
		if !ok {
			notFound = append(notFound, w)
			continue
		}
		ids = append(ids, id)
	}

	sum := make(map[int]int64)
	mask := make(map[int]uint8)
	var wantMask uint8
	for i, id := range ids {
		bit := uint8(1) << uint(i)
		wantMask |= bit
		for _, pair := range e.Matrix.GetRow(int(id), e.Area) {
			if pair.Count <= 1 {
				continue
			}
			sum[pair.Col] += int64(pair.Count)
			mask[pair.Col] |= bit
		}
	}

	type cand struct {
		col int
		sum int64
	}
	var cands []cand
	for col, m := range mask {
		if m == wantMask {
			cands = append(cands, cand{col: col, sum: sum[col]})
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].sum > cands[j].sum })

	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = string(e.Lex.Entry(int32(c.col)).Text)
	}
	return out, notFound, nil
}

// JoinWords is a small helper for CLI display of a multi-word query.
func JoinWords(words []string) string { return strings.Join(words, " ") }
