package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vector store status",
	RunE:  runStatus,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored vectors",
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(statusCmd, clearCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	a, err := openApp(cfg, GetRootDir(), "", nil)
	if err != nil {
		return err
	}
	defer a.close()

	count, err := a.store.Count()
	if err != nil {
		return err
	}
	info, err := a.store.GetSchemaInfo()
	if err != nil {
		return err
	}
	migration, err := a.store.CheckSchema(a.embedder.ModelName(), a.embedder.Dimension())
	if err != nil {
		return err
	}

	fmt.Printf("Store:       %s\n", cfg.StorePath(GetRootDir()))
	fmt.Printf("Vectors:     %d\n", count)
	if info.Version > 0 {
		fmt.Printf("Indexed as:  %s (%d dimensions, schema v%d)\n", info.Model, info.Dimensions, info.Version)
	}
	fmt.Printf("Configured:  %s (%d dimensions)\n", cfg.Embedding.Model, cfg.Embedding.Dimensions)
	fmt.Printf("API key:     %s\n", keyState(a.queue.Credential()))
	if migration.Reason != "" {
		fmt.Printf("\nNote: %s; run 'feedsearch index' to update\n", migration.Reason)
	}
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir(), "", nil)
	if err != nil {
		return err
	}
	defer a.close()

	count, err := a.store.Count()
	if err != nil {
		return err
	}
	if err := a.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear vectors: %w", err)
	}

	fmt.Printf("Deleted %d vectors\n", count)
	return nil
}

func keyState(key string) string {
	if key == "" {
		return "not set"
	}
	return "set"
}
