package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/corpuslex/w2n/src/go/config"
	"github.com/corpuslex/w2n/src/go/lexicon"
	"github.com/corpuslex/w2n/src/go/query"
	"github.com/corpuslex/w2n/src/go/tile"
	"github.com/corpuslex/w2n/src/go/watcher"
)

var queryFlags struct {
	dict      string
	neighbors string
	area      int
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Interactive REPL: nearest neighbors and multi-word context",
	Long: `Enter a single word for its top-16 nearest neighbors by
dot-product share, or "show W1 W2 ..." (up to 8 words) for the
intersection of their contexts. Ctrl-D exits.`,
	RunE: runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.StringVar(&queryFlags.dict, "dict", "", "lexicon path (required)")
	f.StringVar(&queryFlags.neighbors, "neighbors", "", "neighborhood matrix path (required)")
	f.IntVar(&queryFlags.area, "area", 0, "neighbors per row cap (default: config, 64)")
	_ = queryCmd.MarkFlagRequired("dict")
	_ = queryCmd.MarkFlagRequired("neighbors")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	area := cfg.Area
	if queryFlags.area != 0 {
		area = queryFlags.area
	}

	lex, m, err := loadArtifacts(queryFlags.dict, queryFlags.neighbors)
	if err != nil {
		return err
	}
	eng := query.New(lex, m, area)

	w, err := watcher.New([]string{queryFlags.dict, queryFlags.neighbors}, 250*time.Millisecond)
	if err != nil {
		logger.Warn().Err(err).Msg("artifact watcher unavailable, continuing without reload notices")
	} else {
		w.Start()
		defer w.Close()
		go watchArtifacts(w)
	}

	fmt.Println("w2n query — enter a word, or \"show w1 w2 ...\"; Ctrl-D to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		runQueryLine(eng, line)
	}
	return scanner.Err()
}

func watchArtifacts(w *watcher.ArtifactWatcher) {
	for ev := range w.Events() {
		logger.Info().Str("path", ev.Path).Msg("artifact rebuilt on disk; restart query to pick up changes")
	}
}

func runQueryLine(eng *query.Engine, line string) {
	fields := strings.Fields(line)
	if len(fields) >= 2 && strings.EqualFold(fields[0], "show") {
		words, notFound, err := eng.Show(fields[1:])
		if err != nil {
			fmt.Println(err)
			return
		}
		for _, w := range notFound {
			fmt.Printf("%q not in dictionary, sorry\n", w)
		}
		fmt.Println(query.JoinWords(words))
		return
	}

	near, err := eng.Nearest(fields[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(query.JoinWords(near))
}

func loadArtifacts(dictPath, neighborsPath string) (*lexicon.Lexicon, *tile.Matrix, error) {
	lex, err := lexicon.Import(dictPath)
	if err != nil {
		return nil, nil, fmt.Errorf("query: dict: %w", err)
	}
	m, err := tile.ReadBinary(neighborsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("query: neighbors: %w", err)
	}
	return lex, m, nil
}
