// Package integration exercises the pipeline, tile, lexicon, and query
// packages together against the end-to-end scenarios worked out by
// hand-enumerating the windowed co-occurrence accumulator's actual
// behavior (see DESIGN.md's window-bound note: the window is half-open
// on the right, so these counts differ slightly from a naive symmetric
// reading of "width W around position i").
package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpuslex/w2n/src/go/lexicon"
	"github.com/corpuslex/w2n/src/go/pipeline"
	"github.com/corpuslex/w2n/src/go/query"
	"github.com/corpuslex/w2n/src/go/tile"
)

func writeCorpus(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func rowCount(m *tile.Matrix, row, col int32) uint32 {
	for _, p := range m.GetRow(int(row), -1) {
		if p.Col == int(col) {
			return p.Count
		}
	}
	return 0
}

// buildS1 builds the lexicon+matrix pair for the "a b a c a b" corpus,
// width 2, no bigrams — the basis for several scenarios below.
func buildS1(t *testing.T) (*lexicon.Lexicon, *tile.Matrix) {
	t.Helper()
	corpus := writeCorpus(t, "a b a c a b\n")
	lex := lexicon.New(16, 16)
	m := tile.New(16, 16, 16)
	_, err := pipeline.Build(pipeline.Options{
		CorpusPath: corpus,
		Format:     pipeline.FormatRaw,
		Generating: true,
		Lexicon:    lex,
		Matrix:     m,
		Width:      2,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	m.Finalize()
	return lex, m
}

// S1: tiny raw corpus, no bigrams.
func TestTinyRawCorpusEndToEnd(t *testing.T) {
	lex, m := buildS1(t)
	a, _ := lex.Find([]byte("a"))
	b, _ := lex.Find([]byte("b"))
	c, _ := lex.Find([]byte("c"))

	cases := []struct {
		row, col int32
		want     uint32
	}{
		{a, b, 3}, {a, c, 2},
		{b, a, 3}, {b, c, 1},
		{c, a, 2}, {c, b, 1},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, rowCount(m, tc.row, tc.col), "row(%d)[%d]", tc.row, tc.col)
	}
}

// S2: same corpus with distance weighting.
func TestDistanceWeightingEndToEnd(t *testing.T) {
	corpus := writeCorpus(t, "a b a c a b\n")
	lex := lexicon.New(16, 16)
	m := tile.New(16, 16, 16)
	_, err := pipeline.Build(pipeline.Options{
		CorpusPath:       corpus,
		Format:           pipeline.FormatRaw,
		Generating:       true,
		Lexicon:          lex,
		Matrix:           m,
		Width:            2,
		DistanceWeighted: true,
		Logger:           zerolog.Nop(),
	})
	require.NoError(t, err)
	m.Finalize()

	a, _ := lex.Find([]byte("a"))
	b, _ := lex.Find([]byte("b"))
	assert.Equal(t, uint32(6), rowCount(m, a, b), "row(a)[b]")
}

// S3: bigrams. "new york city new york", bigrams on.
func TestBigramsEndToEnd(t *testing.T) {
	corpus := writeCorpus(t, "new york city new york\n")
	lex := lexicon.New(16, 16)
	m := tile.New(16, 16, 16)
	_, err := pipeline.Build(pipeline.Options{
		CorpusPath: corpus,
		Format:     pipeline.FormatRaw,
		Generating: true,
		Lexicon:    lex,
		Matrix:     m,
		Bigrams:    true,
		Width:      2,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	m.Finalize()

	for _, w := range []string{"new", "york", "city", "new_york", "york_city"} {
		_, ok := lex.Find([]byte(w))
		assert.Truef(t, ok, "lexicon missing %q", w)
	}

	newID, _ := lex.Find([]byte("new"))
	newYorkID, _ := lex.Find([]byte("new_york"))
	rowNew := m.GetRow(int(newID), -1)
	rowNewYork := m.GetRow(int(newYorkID), -1)
	assert.Falsef(t, equalRows(rowNew, rowNewYork), "row(new_york) should differ from row(new), both = %+v", rowNew)
}

func equalRows(a, b []tile.RowPair) bool {
	if len(a) != len(b) {
		return false
	}
	am := map[int]uint32{}
	for _, p := range a {
		am[p.Col] = p.Count
	}
	for _, p := range b {
		if am[p.Col] != p.Count {
			return false
		}
	}
	return true
}

// S4: stopwords. Stop file {the}; "the cat sat the mat", width 2.
func TestStopwordsEndToEnd(t *testing.T) {
	corpus := writeCorpus(t, "the cat sat the mat\n")
	stop := lexicon.New(4, 4)
	stop.Add([]byte("the"), 0, 1)

	lex := lexicon.New(16, 16)
	m := tile.New(16, 16, 16)
	_, err := pipeline.Build(pipeline.Options{
		CorpusPath: corpus,
		Format:     pipeline.FormatRaw,
		Generating: true,
		Lexicon:    lex,
		StopWords:  stop,
		Matrix:     m,
		Width:      2,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	m.Finalize()

	_, ok := lex.Find([]byte("the"))
	require.Falsef(t, ok, "\"the\" must never enter the lexicon")
	cat, _ := lex.Find([]byte("cat"))
	sat, _ := lex.Find([]byte("sat"))
	mat, _ := lex.Find([]byte("mat"))
	assert.Equal(t, uint32(1), rowCount(m, cat, sat), "row(cat)[sat]")
	assert.Equalf(t, uint32(0), rowCount(m, cat, mat), "row(cat)[mat] (stopword breaks the window)")
}

// S5: prune. Insert (0,1,1),(0,1,1),(0,2,1) directly, prune at threshold 1.
func TestPruneEndToEnd(t *testing.T) {
	m := tile.New(100, 100, 16)
	m.Add(1, 0, 1)
	m.Add(1, 0, 1)
	m.Add(2, 0, 1)
	_, err := m.Prune(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), m.Get(1, 0), "get(0,1)")
	assert.Equal(t, uint32(0), m.Get(2, 0), "get(0,2)")
}

// S6: binary round-trip from S1.
func TestBinaryRoundTripEndToEnd(t *testing.T) {
	lex, m := buildS1(t)
	a, _ := lex.Find([]byte("a"))
	b, _ := lex.Find([]byte("b"))
	c, _ := lex.Find([]byte("c"))
	want := map[int32]uint32{b: rowCount(m, a, b), c: rowCount(m, a, c)}

	path := filepath.Join(t.TempDir(), "matrix.bin")
	require.NoError(t, m.WriteBinary(path))
	loaded, err := tile.ReadBinary(path)
	require.NoError(t, err)
	for col, cnt := range want {
		assert.Equalf(t, cnt, rowCount(loaded, a, col), "reloaded row(a)[%d]", col)
	}
}

// S7: query engine over S1 — nearest neighbors and a "show" intersection.
func TestQueryEndToEnd(t *testing.T) {
	lex, m := buildS1(t)
	eng := query.New(lex, m, 64)

	near, err := eng.Nearest("a")
	require.NoError(t, err)
	require.NotEmpty(t, near, "Nearest(a) returned no results")
	// a and c share neighbor b with product 3*1=3, outscoring a and b's
	// shared neighbor c at product 2*1=2 — see DESIGN.md's window-bound
	// note for why this differs from a naive reading of the corpus.
	assert.Equal(t, "c", near[0], "Nearest(a)[0]")

	out, notFound, err := eng.Show([]string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, notFound)
	// row(b)[c] = 1 fails the original's count>1 threshold, so the
	// intersection comes up empty even though both rows touch c.
	assert.Emptyf(t, out, "Show(a,b) want empty (row(b)[c]=1 fails the >1 filter)")
}

// Boundary: a single-token corpus produces no cells at all.
func TestSingleTokenCorpusNoCells(t *testing.T) {
	corpus := writeCorpus(t, "solo\n")
	lex := lexicon.New(16, 16)
	m := tile.New(16, 16, 16)
	_, err := pipeline.Build(pipeline.Options{
		CorpusPath: corpus,
		Format:     pipeline.FormatRaw,
		Generating: true,
		Lexicon:    lex,
		Matrix:     m,
		Width:      2,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	m.Finalize()
	assert.Equal(t, 0, m.Used(), "single-token corpus should produce zero cells")
}

// Boundary: an empty corpus builds a valid, empty, finalizable matrix.
func TestEmptyCorpus(t *testing.T) {
	corpus := writeCorpus(t, "")
	lex := lexicon.New(16, 16)
	m := tile.New(16, 16, 16)
	_, err := pipeline.Build(pipeline.Options{
		CorpusPath: corpus,
		Format:     pipeline.FormatRaw,
		Generating: true,
		Lexicon:    lex,
		Matrix:     m,
		Width:      2,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	m.Finalize()
	assert.Equal(t, 0, lex.Len(), "empty corpus should leave an empty lexicon")
}

// Boundary: in a single-document corpus every lemma's doc_count equals
// max_doc_count (both 1), so every entry gets the same idf term
// ln(1/2) and tfidf differs only by tf — uniformly negative rather
// than zero (see DESIGN.md's tfidf note for why this, not zero, is the
// formula's actual fixed point at doc_count==max_doc_count).
func TestSingleDocumentUniformIDF(t *testing.T) {
	corpus := writeCorpus(t, "alpha beta alpha gamma\n")
	lex := lexicon.New(16, 16)
	_, err := pipeline.Build(pipeline.Options{
		CorpusPath: corpus,
		Format:     pipeline.FormatRaw,
		Generating: true,
		Lexicon:    lex,
		Width:      2,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	lex.SetTFIDF()
	alpha, _ := lex.Find([]byte("alpha"))
	beta, _ := lex.Find([]byte("beta"))
	gamma, _ := lex.Find([]byte("gamma"))
	assert.Negative(t, lex.Entry(alpha).TFIDF, "alpha tfidf")
	assert.Negative(t, lex.Entry(beta).TFIDF, "beta tfidf")
	assert.Negative(t, lex.Entry(gamma).TFIDF, "gamma tfidf")
	// alpha appears twice (tf=1) vs beta/gamma once each (tf=0.5), same
	// negative idf term, so alpha's tfidf is the most negative.
	assert.Lessf(t, lex.Entry(alpha).TFIDF, lex.Entry(beta).TFIDF,
		"alpha tfidf should be more negative than beta's")
}

// Boundary: a bigram of a word with itself must not produce a
// self-loop cell in the matrix.
func TestBigramSelfPairNoSelfLoop(t *testing.T) {
	corpus := writeCorpus(t, "echo echo echo\n")
	lex := lexicon.New(16, 16)
	m := tile.New(16, 16, 16)
	_, err := pipeline.Build(pipeline.Options{
		CorpusPath: corpus,
		Format:     pipeline.FormatRaw,
		Generating: true,
		Lexicon:    lex,
		Matrix:     m,
		Bigrams:    true,
		Width:      2,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	m.Finalize()

	echoID, _ := lex.Find([]byte("echo"))
	assert.Equalf(t, uint32(0), rowCount(m, echoID, echoID), "row(echo)[echo] want 0 (no self-loop)")
	if echoEcho, ok := lex.Find([]byte("echo_echo")); ok {
		assert.Equalf(t, uint32(0), rowCount(m, echoEcho, echoEcho), "row(echo_echo)[echo_echo] want 0 (no self-loop)")
	}
}
