// Package pipeline drives the tokenizer over a corpus, resolves
// tokens against a lexicon, and feeds a windowed co-occurrence
// accumulator into a tile matrix, per spec.md §4.5.
package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/corpuslex/w2n/src/go/buildid"
	"github.com/corpuslex/w2n/src/go/lexicon"
	"github.com/corpuslex/w2n/src/go/tile"
	"github.com/corpuslex/w2n/src/go/tokenizer"
)

// Format selects how the corpus is tokenized.
type Format int

const (
	FormatRaw Format = iota
	FormatConlluLemma
	FormatConlluForm
	FormatFormLemma
	FormatSem
)

// these mirror the original's packed (format<<8 | fileformat) value:
// fileformat selects raw vs. columnar; format (when columnar) selects
// the column/selector mode.
func (f Format) isColumnar() bool { return f != FormatRaw }

func (f Format) which() int {
	switch f {
	case FormatConlluLemma:
		return 2
	case FormatConlluForm:
		return 1
	case FormatFormLemma:
		return tokenizer.WhichFormLemma
	case FormatSem:
		return tokenizer.WhichSem
	default:
		return 2
	}
}

const (
	bufferSize  = 16 * 1024
	autoCut     = 4 * 1024
	pruneAfter  = 50 * 1000 * 1000
	readAheadSz = 16 * 1024 * 1024
)

// Options configures a single Build run.
type Options struct {
	CorpusPath       string
	Format           Format
	Generating       bool // insert unknown tokens into Lexicon; false = lookup-only
	Lexicon          *lexicon.Lexicon
	StopWords        *lexicon.Lexicon // optional
	Matrix           *tile.Matrix     // nil to build a lexicon without co-occurrence
	CharFilter       tokenizer.CharFilter
	ConllUFilter     tokenizer.ConllUFilter
	Bigrams          bool
	Width            int // window radius, spec.md default 16
	DistanceWeighted bool
	MaxDocs          int // -1 = unlimited
	MaxWordLen       int
	Logger           zerolog.Logger
}

// Result reports summary counters from a completed Build.
type Result struct {
	Docs     int
	SubDocs  int
	Lemmas   int
	Inserted int
	RunID    string
}

// Open opens path for corpus reading, transparently decompressing a
// trailing ".gz" — the original assumed an already-decompressed file,
// but corpora in the wild (Wikipedia dumps, UD treebanks) commonly
// ship gzipped.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open %s: %w", path, err)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pipeline: gzip %s: %w", path, err)
	}
	return struct {
		io.Reader
		io.Closer
	}{gz, closerFunc(func() error { gz.Close(); return f.Close() })}, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Build runs the pipeline end to end: reads opts.CorpusPath, resolves
// each token against opts.Lexicon, optionally forms bigrams, and
// feeds windowed co-occurrence counts into opts.Matrix.
func Build(opts Options) (Result, error) {
	runID := buildid.New()
	log := opts.Logger.With().Str("run_id", runID).Logger()

	rc, err := Open(opts.CorpusPath)
	if err != nil {
		return Result{}, err
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, readAheadSz)
	isUTF8, err := tokenizer.DetectUTF8(br)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: utf8 sniff: %w", err)
	}
	log.Info().Bool("utf8", isUTF8).Str("corpus", opts.CorpusPath).Msg("opened corpus")

	width := opts.Width
	if width <= 0 {
		width = 16
	}
	maxDocs := opts.MaxDocs
	if maxDocs == 0 {
		maxDocs = -1
	}

	p := &run{
		opts:  opts,
		width: width,
		items: make([]int32, 0, bufferSize),
		docID: 0,
		log:   log,
	}

	var rawReader *tokenizer.RawReader
	var colReader *tokenizer.ColumnReader
	if opts.Format.isColumnar() {
		colReader = tokenizer.NewColumnReader(br)
	} else {
		rawReader = tokenizer.NewRawReader(br, isUTF8)
	}

	for {
		if maxDocs != -1 && p.explicitDocs >= maxDocs {
			break
		}

		var word string
		var isMeta, eof bool
		if rawReader != nil {
			w, e := rawReader.ReadWord(opts.MaxWordLen)
			word, eof = string(w), e
		} else {
			word, isMeta, eof = colReader.ReadRecord(opts.Format.which(), opts.ConllUFilter)
		}
		if eof {
			break
		}

		if isMeta {
			if isDocBoundary(word) {
				if err := p.flush(); err != nil {
					return p.result(runID), err
				}
				if strings.HasPrefix(word, "# newdoc") || strings.HasPrefix(word, "<doc") {
					p.explicitDocs++
					p.docID++
					if p.explicitDocs%1024 == 0 {
						log.Debug().Int("docs", p.explicitDocs).Msg("doc boundary")
					}
					if err := p.maybePrune(); err != nil {
						return p.result(runID), err
					}
				}
			}
			continue
		}

		p.addToken(word)
		if len(p.items) >= autoCut {
			if err := p.flush(); err != nil {
				return p.result(runID), err
			}
			p.subDocs++
			p.docID++
		}
	}
	if err := p.flush(); err != nil {
		return p.result(runID), err
	}

	return p.result(runID), nil
}

func isDocBoundary(metaLine string) bool {
	return strings.HasPrefix(metaLine, "# newdoc") ||
		strings.HasPrefix(metaLine, "# newpar") ||
		strings.HasPrefix(metaLine, "<doc")
}

type run struct {
	opts               Options
	width              int
	items              []int32
	docID              int32
	explicitDocs       int
	subDocs            int
	prevWord           string // unigram text of the previous token
	insertedSincePrune int
	log                zerolog.Logger
}

// addToken resolves word against the lexicon/stopwords/filters and
// appends its id (or the sentinel -1) to the rolling buffer, handling
// the bigram-replaces-unigram quirk documented in spec.md §9.
func (p *run) addToken(word string) {
	prevWord := p.prevWord
	p.prevWord = word
	if word == "" {
		p.items = append(p.items, lexicon.NoToken)
		return
	}
	if p.opts.StopWords != nil {
		if _, ok := p.opts.StopWords.Find([]byte(word)); ok {
			p.items = append(p.items, lexicon.NoToken)
			return
		}
	}
	if p.opts.CharFilter != 0 && tokenizer.Reject(word, p.opts.CharFilter) {
		p.items = append(p.items, lexicon.NoToken)
		return
	}

	id := p.resolve(word)
	p.items = append(p.items, id)
	if id == lexicon.NoToken {
		return
	}

	if p.opts.Bigrams && len(p.items) >= 2 && p.items[len(p.items)-2] != lexicon.NoToken {
		bigram := prevWord + "_" + word
		if bigramID := p.resolveBigram(bigram); bigramID != lexicon.NoToken {
			p.items[len(p.items)-1] = bigramID
		}
	}
}

func (p *run) resolve(word string) int32 {
	if p.opts.Generating {
		id, err := p.opts.Lexicon.Add([]byte(word), p.docID, 1)
		if err != nil {
			p.log.Warn().Err(err).Str("word", word).Msg("lexicon add failed")
			return lexicon.NoToken
		}
		return id
	}
	id, ok := p.opts.Lexicon.Find([]byte(word))
	if !ok {
		return lexicon.NoToken
	}
	return id
}

func (p *run) resolveBigram(bigram string) int32 {
	if p.opts.Generating {
		id, err := p.opts.Lexicon.Add([]byte(bigram), p.docID, 1)
		if err != nil {
			return lexicon.NoToken
		}
		return id
	}
	id, ok := p.opts.Lexicon.Find([]byte(bigram))
	if !ok {
		return lexicon.NoToken
	}
	return id
}

// flush applies the windowed co-occurrence update to the matrix for
// every buffered token, then resets the buffer, adding the number of
// newly created cells to the counter maybePrune checks. It never
// prunes by itself.
func (p *run) flush() error {
	if p.opts.Matrix == nil {
		p.items = p.items[:0]
		return nil
	}
	n := len(p.items)
	usedBefore := p.opts.Matrix.Used()
	for i := 0; i < n; i++ {
		anchor := p.items[i]
		if anchor == lexicon.NoToken {
			continue
		}
		lo := i - p.width
		if lo < 0 {
			lo = 0
		}
		hi := i + p.width
		if hi > n {
			hi = n
		}
		for j := lo; j < hi; j++ {
			if j == i {
				continue
			}
			neighbor := p.items[j]
			if neighbor == lexicon.NoToken || neighbor == anchor {
				continue
			}
			addVal := uint32(1)
			if p.opts.DistanceWeighted {
				d := j - i
				if d < 0 {
					d = -d
				}
				addVal = uint32(p.width - d + 1)
			}
			if err := p.opts.Matrix.Add(int(neighbor), int(anchor), addVal); err != nil {
				return fmt.Errorf("pipeline: matrix add: %w", err)
			}
		}
	}
	p.insertedSincePrune += p.opts.Matrix.Used() - usedBefore
	p.items = p.items[:0]
	return nil
}

// maybePrune triggers a threshold-1 prune once cumulative new inserts
// since the last prune exceed 50M. Checked only at explicit document
// boundaries ("# newdoc"/"<doc"), matching the original's placement —
// not at every auto-flush.
func (p *run) maybePrune() error {
	if p.opts.Matrix == nil || p.insertedSincePrune <= pruneAfter {
		return nil
	}
	n, err := p.opts.Matrix.Prune(1)
	if err != nil {
		return fmt.Errorf("pipeline: prune: %w", err)
	}
	p.log.Info().Int("pruned", n).Int("used", p.opts.Matrix.Used()).Msg("pruned singletons")
	p.insertedSincePrune = 0
	return nil
}

func (p *run) result(runID string) Result {
	r := Result{
		Docs:     p.explicitDocs,
		SubDocs:  p.subDocs,
		Inserted: p.insertedSincePrune,
		RunID:    runID,
	}
	if p.opts.Lexicon != nil {
		r.Lemmas = int(p.opts.Lexicon.TotalLemmas())
	}
	return r
}
