package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string
	logger     zerolog.Logger

	rootCmd = &cobra.Command{
		Use:   "w2n",
		Short: "Word co-occurrence lexicon and neighborhood builder",
		Long: `w2n builds a word co-occurrence model from a corpus: a string
lexicon with per-document statistics, and a sparse tile-hashed matrix
of windowed co-occurrence counts, then serves nearest-neighbor and
multi-word context queries over the result.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			bindEnv(cmd)
			initLogger()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: $HOME/.config/w2n/config.yaml)")
	rootCmd.PersistentFlags().String("loglevel", "info", "log level: debug, info, warn, error")
}

func initLogger() {
	level, err := zerolog.ParseLevel(viperGetString("loglevel", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func viperGetString(key, fallback string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return fallback
}

// bindEnv wires viper's W2N_-prefixed environment overlay and the
// current command's flags into viper. Only the persistent --loglevel
// setting is read back through viper (flag, then W2N_LOGLEVEL, then
// its default); the subcommands' build settings come from their own
// flags over config.Load's result and are not read from the
// environment.
func bindEnv(cmd *cobra.Command) {
	viper.SetEnvPrefix("w2n")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Fprintf(os.Stderr, "w2n: bind flags: %v\n", err)
	}
	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "w2n: bind persistent flags: %v\n", err)
	}
}
