package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"feedsearch/config"
	"feedsearch/internal/logging"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "feedsearch",
	Short: "Semantic search over feed reader articles",
	Long: `feedsearch embeds feed articles through a remote embedding API, stores the
vectors locally and ranks articles by similarity to a query or to another article.

Example usage:
  feedsearch index ./export           # Embed exported items
  feedsearch search -q "rust async"   # Semantic search
  feedsearch hybrid -q "rust async"   # Keyword + semantic search
  feedsearch similar 42               # Articles like item 42
  feedsearch serve                    # HTTP API and NATS item events`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger = logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
		slog.SetDefault(logger)

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./feedsearch.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "directory holding feed exports and .feedsearch (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
