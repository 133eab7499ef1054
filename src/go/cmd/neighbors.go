package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corpuslex/w2n/src/go/config"
	"github.com/corpuslex/w2n/src/go/lexicon"
	"github.com/corpuslex/w2n/src/go/pipeline"
	"github.com/corpuslex/w2n/src/go/tile"
	"github.com/corpuslex/w2n/src/go/tokenizer"
)

var neighborsFlags struct {
	corpus       string
	corpusFormat string
	dict         string
	stopwords    string
	neighbors    string
	maxDocs      int
	width        int
	area         int
	bigrams      bool
}

var neighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "Build a neighborhood matrix over a lexicon",
	RunE:  runNeighbors,
}

func init() {
	f := neighborsCmd.Flags()
	f.StringVar(&neighborsFlags.corpus, "corpus", "", "corpus file to read (required)")
	f.StringVar(&neighborsFlags.corpusFormat, "corpusformat", "", "raw, conllu-lemma, conllu-form, form+lemma, sem")
	f.StringVar(&neighborsFlags.dict, "dict", "", "lexicon path (default: <corpus>.lex; built if absent)")
	f.StringVar(&neighborsFlags.stopwords, "stopwords", "", "stopword list path")
	f.StringVar(&neighborsFlags.neighbors, "neighbors", "", "output matrix path (default: <corpus>.neighbors; .txt for text dump)")
	f.IntVar(&neighborsFlags.maxDocs, "maxdocs", 0, "stop after this many documents (0 = unlimited)")
	f.IntVar(&neighborsFlags.width, "width", 0, "window radius (default: config, 16)")
	f.IntVar(&neighborsFlags.area, "area", 0, "neighbors per row cap on text export (default: config, 64)")
	f.BoolVar(&neighborsFlags.bigrams, "bigrams", false, "form bigrams alongside unigrams")
	_ = neighborsCmd.MarkFlagRequired("corpus")
	rootCmd.AddCommand(neighborsCmd)
}

func runNeighbors(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if neighborsFlags.corpusFormat != "" {
		cfg.CorpusFormat = neighborsFlags.corpusFormat
	}
	if neighborsFlags.maxDocs != 0 {
		cfg.MaxDocs = neighborsFlags.maxDocs
	}
	if neighborsFlags.width != 0 {
		cfg.Width = neighborsFlags.width
	}
	if neighborsFlags.area != 0 {
		cfg.Area = neighborsFlags.area
	}
	if neighborsFlags.bigrams {
		cfg.Bigrams = true
	}

	dictPath := setExtension(neighborsFlags.dict, neighborsFlags.corpus, ".lex")
	neighborsPath := setExtension(neighborsFlags.neighbors, neighborsFlags.corpus, ".neighbors")

	lex, generating, err := loadOrPrepareLexicon(dictPath)
	if err != nil {
		return err
	}

	var stop *lexicon.Lexicon
	if neighborsFlags.stopwords != "" {
		stop, err = lexicon.Import(neighborsFlags.stopwords)
		if err != nil {
			return fmt.Errorf("neighbors: stopwords: %w", err)
		}
	}

	if generating {
		// First pass populates the lexicon from the same corpus, since no
		// prebuilt dict was found at dictPath.
		firstPass := pipeline.Options{
			CorpusPath:   neighborsFlags.corpus,
			Format:       formatFromConfig(cfg),
			Generating:   true,
			Lexicon:      lex,
			StopWords:    stop,
			Bigrams:      cfg.Bigrams,
			Width:        cfg.Width,
			MaxDocs:      cfg.MaxDocs,
			MaxWordLen:   cfg.MaxWordLen,
			Logger:       logger,
		}
		if _, err := pipeline.Build(firstPass); err != nil {
			return fmt.Errorf("neighbors: lexicon pass: %w", err)
		}
		lex.SetTFIDF()
		lex.Sort(lexicon.SortByText)
		if _, err := lex.Export(dictPath, lexicon.EmitCount|lexicon.EmitDocCount|lexicon.EmitTFIDF, 0, 1); err != nil {
			return fmt.Errorf("neighbors: export dict: %w", err)
		}
	}

	size := lex.Len()
	m := tile.New(size, size, cfg.TileSide)
	opts := pipeline.Options{
		CorpusPath:       neighborsFlags.corpus,
		Format:           formatFromConfig(cfg),
		Generating:       false,
		Lexicon:          lex,
		StopWords:        stop,
		Matrix:           m,
		CharFilter:       tokenizer.CharFilter(cfg.Filter),
		ConllUFilter:     tokenizer.ConllUFilter(cfg.ConllUFilter),
		Bigrams:          cfg.Bigrams,
		Width:            cfg.Width,
		DistanceWeighted: false,
		MaxDocs:          cfg.MaxDocs,
		MaxWordLen:       cfg.MaxWordLen,
		Logger:           logger,
	}
	result, err := pipeline.Build(opts)
	if err != nil {
		return fmt.Errorf("neighbors: matrix pass: %w", err)
	}
	m.Finalize()

	if strings.HasSuffix(strings.ToLower(neighborsPath), ".txt") {
		err = m.WriteText(neighborsPath, lex, cfg.Area)
	} else {
		err = m.WriteBinary(neighborsPath)
	}
	if err != nil {
		return fmt.Errorf("neighbors: write: %w", err)
	}

	logger.Info().
		Str("run_id", result.RunID).
		Int("docs", result.Docs).
		Int("used_cells", m.Used()).
		Str("neighbors", neighborsPath).
		Msg("neighborhood matrix written")
	return nil
}

// loadOrPrepareLexicon imports dictPath if present; otherwise returns
// a fresh, empty, growable Lexicon and generating=true so the caller
// knows to run a lexicon-building pass first.
func loadOrPrepareLexicon(dictPath string) (lex *lexicon.Lexicon, generating bool, err error) {
	if _, statErr := os.Stat(dictPath); statErr == nil {
		lex, err = lexicon.Import(dictPath)
		return lex, false, err
	}
	return lexicon.New(256*1024, 64*1024), true, nil
}
