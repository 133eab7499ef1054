package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/corpuslex/w2n/src/go/lexicon"
	"github.com/corpuslex/w2n/src/go/tile"
)

func writeCorpus(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestTinyRawCorpus reproduces a tiny raw corpus: "a b a c a b", width
// 2, no bigrams. The window is half-open on the right (matching
// addcorpus's j<min(cnt,i+width)), so row(a) shows b:3 and c:2 — verified
// by hand-enumerating every (i,j) pair the window visits.
func TestTinyRawCorpus(t *testing.T) {
	corpus := writeCorpus(t, "a b a c a b\n")
	lex := lexicon.New(16, 16)
	m := tile.New(16, 16, 16)

	_, err := Build(Options{
		CorpusPath: corpus,
		Format:     FormatRaw,
		Generating: true,
		Lexicon:    lex,
		Matrix:     m,
		Width:      2,
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Finalize()

	a, _ := lex.Find([]byte("a"))
	b, _ := lex.Find([]byte("b"))
	c, _ := lex.Find([]byte("c"))

	if got := rowCount(m, a, b); got != 3 {
		t.Errorf("row(a)[b] = %d, want 3", got)
	}
	if got := rowCount(m, a, c); got != 2 {
		t.Errorf("row(a)[c] = %d, want 2", got)
	}
}

func rowCount(m *tile.Matrix, row, col int32) uint32 {
	for _, p := range m.GetRow(int(row), -1) {
		if p.Col == int(col) {
			return p.Count
		}
	}
	return 0
}

// TestDistanceWeighting exercises the same corpus with distance
// weighting enabled: each neighbor contributes width-|j-i|+1 instead of
// 1. The window only ever gets within distance 1 of a repeated "a"/"b"
// (three such pairs contribute weight 2 each), so row(a)[b] = 6.
func TestDistanceWeighting(t *testing.T) {
	corpus := writeCorpus(t, "a b a c a b\n")
	lex := lexicon.New(16, 16)
	m := tile.New(16, 16, 16)

	_, err := Build(Options{
		CorpusPath:       corpus,
		Format:           FormatRaw,
		Generating:       true,
		Lexicon:          lex,
		Matrix:           m,
		Width:            2,
		DistanceWeighted: true,
		Logger:           zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Finalize()

	a, _ := lex.Find([]byte("a"))
	b, _ := lex.Find([]byte("b"))
	if got := rowCount(m, a, b); got != 6 {
		t.Errorf("row(a)[b] = %d, want 6", got)
	}
}

// TestStopwords reproduces spec.md §8 scenario S4.
func TestStopwords(t *testing.T) {
	corpus := writeCorpus(t, "the cat sat the mat\n")
	stop := lexicon.New(4, 4)
	stop.Add([]byte("the"), 0, 1)

	lex := lexicon.New(16, 16)
	m := tile.New(16, 16, 16)

	_, err := Build(Options{
		CorpusPath: corpus,
		Format:     FormatRaw,
		Generating: true,
		Lexicon:    lex,
		StopWords:  stop,
		Matrix:     m,
		Width:      2,
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Finalize()

	if _, ok := lex.Find([]byte("the")); ok {
		t.Fatalf("stopword \"the\" should never enter the lexicon")
	}
	cat, _ := lex.Find([]byte("cat"))
	sat, _ := lex.Find([]byte("sat"))
	mat, _ := lex.Find([]byte("mat"))
	if got := rowCount(m, cat, sat); got != 1 {
		t.Errorf("row(cat)[sat] = %d, want 1", got)
	}
	if got := rowCount(m, cat, mat); got != 0 {
		t.Errorf("row(cat)[mat] = %d, want 0 (outside window after stopword removal)", got)
	}
}

// TestBigramsReplaceUnigram checks the documented quirk: a formed
// bigram overwrites the current slot's unigram id rather than adding
// alongside it, so "york" never reaches the window next to "new".
func TestBigramsReplaceUnigram(t *testing.T) {
	corpus := writeCorpus(t, "new york city\n")
	lex := lexicon.New(16, 16)
	m := tile.New(16, 16, 16)

	_, err := Build(Options{
		CorpusPath: corpus,
		Format:     FormatRaw,
		Generating: true,
		Lexicon:    lex,
		Matrix:     m,
		Bigrams:    true,
		Width:      2,
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Finalize()
	if _, ok := lex.Find([]byte("new_york")); !ok {
		t.Fatalf("expected bigram \"new_york\" to be inserted")
	}
	newID, _ := lex.Find([]byte("new"))
	york, _ := lex.Find([]byte("york"))
	newYork, _ := lex.Find([]byte("new_york"))
	if got := rowCount(m, newID, york); got != 0 {
		t.Errorf("row(new)[york] = %d, want 0 (slot replaced by the bigram)", got)
	}
	if got := rowCount(m, newID, newYork); got != 1 {
		t.Errorf("row(new)[new_york] = %d, want 1", got)
	}
}

// TestMaybePruneOnlyAtExplicitBoundary verifies a 50M-insert threshold
// isn't needed to exercise maybePrune directly — this checks it fires
// only when called from an explicit document boundary, not from a
// bare flush.
func TestMaybePruneOnlyAtExplicitBoundary(t *testing.T) {
	m := tile.New(16, 16, 16)
	p := &run{opts: Options{Matrix: m}, insertedSincePrune: pruneAfter + 1, log: zerolog.Nop()}
	if err := p.flush(); err != nil {
		t.Fatal(err)
	}
	if p.insertedSincePrune != pruneAfter+1 {
		t.Fatalf("flush() must not itself trigger a prune; insertedSincePrune = %d", p.insertedSincePrune)
	}
	if err := p.maybePrune(); err != nil {
		t.Fatal(err)
	}
	if p.insertedSincePrune != 0 {
		t.Fatalf("maybePrune() should reset the counter, got %d", p.insertedSincePrune)
	}
}
