package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corpuslex/w2n/src/go/config"
	"github.com/corpuslex/w2n/src/go/lexicon"
	"github.com/corpuslex/w2n/src/go/pipeline"
	"github.com/corpuslex/w2n/src/go/tokenizer"
)

var dictFlags struct {
	corpus       string
	corpusFormat string
	dict         string
	stopwords    string
	maxDocs      int
	filter       int
	conllUFilter int
	sort         int
	emit         int
	bigrams      bool
}

var dictCmd = &cobra.Command{
	Use:   "dict",
	Short: "Build a lexicon from a corpus",
	RunE:  runDict,
}

func init() {
	f := dictCmd.Flags()
	f.StringVar(&dictFlags.corpus, "corpus", "", "corpus file to read (required; .gz decompressed transparently)")
	f.StringVar(&dictFlags.corpusFormat, "corpusformat", "", "raw, conllu-lemma, conllu-form, form+lemma, sem")
	f.StringVar(&dictFlags.dict, "dict", "", "output lexicon path (default: <corpus>.lex)")
	f.StringVar(&dictFlags.stopwords, "stopwords", "", "stopword list path")
	f.IntVar(&dictFlags.maxDocs, "maxdocs", 0, "stop after this many documents (0 = unlimited)")
	f.IntVar(&dictFlags.filter, "filter", 0, "character-class filter bitmask")
	f.IntVar(&dictFlags.conllUFilter, "conllufilter", 0, "CoNLL-U POS filter bitmask")
	f.IntVar(&dictFlags.sort, "sort", -1, "0=alpha, 1=tfidf-desc (default: config)")
	f.IntVar(&dictFlags.emit, "emit", -1, "export column bitmask (default: config)")
	f.BoolVar(&dictFlags.bigrams, "bigrams", false, "form bigrams alongside unigrams")
	_ = dictCmd.MarkFlagRequired("corpus")
	rootCmd.AddCommand(dictCmd)
}

func runDict(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	overlayCorpusFlags(cfg)

	dictPath := setExtension(dictFlags.dict, dictFlags.corpus, ".lex")

	var stop *lexicon.Lexicon
	if dictFlags.stopwords != "" {
		stop, err = lexicon.Import(dictFlags.stopwords)
		if err != nil {
			return fmt.Errorf("dict: stopwords: %w", err)
		}
	}

	lex := lexicon.New(256*1024, 64*1024)
	opts := pipeline.Options{
		CorpusPath:   dictFlags.corpus,
		Format:       formatFromConfig(cfg),
		Generating:   true,
		Lexicon:      lex,
		StopWords:    stop,
		CharFilter:   tokenizer.CharFilter(cfg.Filter),
		ConllUFilter: tokenizer.ConllUFilter(cfg.ConllUFilter),
		Bigrams:      cfg.Bigrams,
		Width:        cfg.Width,
		MaxDocs:      cfg.MaxDocs,
		MaxWordLen:   cfg.MaxWordLen,
		Logger:       logger,
	}
	result, err := pipeline.Build(opts)
	if err != nil {
		return fmt.Errorf("dict: build: %w", err)
	}

	lex.SetTFIDF()
	lex.Sort(sortOrder(cfg.Sort))

	n, err := lex.Export(dictPath, lexicon.EmitMask(cfg.Emit), 0, 1)
	if err != nil {
		return fmt.Errorf("dict: export: %w", err)
	}

	logger.Info().
		Str("run_id", result.RunID).
		Int("docs", result.Docs).
		Int("entries", n).
		Str("dict", dictPath).
		Msg("lexicon written")
	return nil
}

func sortOrder(v int) lexicon.SortOrder {
	if v == 1 {
		return lexicon.SortByTFIDFDesc
	}
	return lexicon.SortByText
}

func formatFromConfig(cfg *config.Config) pipeline.Format {
	switch cfg.CorpusFormat {
	case "conllu-lemma":
		return pipeline.FormatConlluLemma
	case "conllu-form":
		return pipeline.FormatConlluForm
	case "form+lemma":
		return pipeline.FormatFormLemma
	case "sem":
		return pipeline.FormatSem
	default:
		return pipeline.FormatRaw
	}
}

// overlayCorpusFlags applies this command's explicitly-set flags on
// top of cfg, so an unset flag falls back to the config/default value
// instead of a flag-package zero value.
func overlayCorpusFlags(cfg *config.Config) {
	if dictFlags.corpusFormat != "" {
		cfg.CorpusFormat = dictFlags.corpusFormat
	}
	if dictFlags.maxDocs != 0 {
		cfg.MaxDocs = dictFlags.maxDocs
	}
	if dictFlags.filter != 0 {
		cfg.Filter = dictFlags.filter
	}
	if dictFlags.conllUFilter != 0 {
		cfg.ConllUFilter = dictFlags.conllUFilter
	}
	if dictFlags.sort >= 0 {
		cfg.Sort = dictFlags.sort
	}
	if dictFlags.emit >= 0 {
		cfg.Emit = dictFlags.emit
	}
	if dictFlags.bigrams {
		cfg.Bigrams = true
	}
}
