package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"feedsearch/internal/adapter/retriever"
	"feedsearch/internal/domain"
)

var (
	searchText   string
	searchTopK   int
	searchJSON   bool
	searchWeight float64
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Semantic search over embedded items",
	Long: `Embed the query and rank exported items by cosine similarity.

Examples:
  feedsearch search -q "container security"
  feedsearch search -q "local-first software" --top-k 5 --json`,
	RunE: runSearch,
}

var hybridCmd = &cobra.Command{
	Use:   "hybrid",
	Short: "Blend keyword and semantic ranking",
	Long: `Rank items by a weighted sum of semantic similarity and BM25 keyword rank.
A weight of 1 is pure semantic search, 0 is pure keyword ranking.

Examples:
  feedsearch hybrid -q "postgres vacuum"
  feedsearch hybrid -q "postgres vacuum" --weight 0.3`,
	RunE: runHybrid,
}

var similarCmd = &cobra.Command{
	Use:   "similar <item-id>",
	Short: "Find items similar to an embedded item",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimilar,
}

var topicsCmd = &cobra.Command{
	Use:   "topics <topic>...",
	Short: "List items most related to a set of topics",
	Long: `Select the items most related to the given topics, as used when assembling
a digest. Topics are embedded together as one comma-separated query.

Example:
  feedsearch topics "machine learning" robotics`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTopics,
}

func init() {
	rootCmd.AddCommand(searchCmd, hybridCmd, similarCmd, topicsCmd)

	for _, c := range []*cobra.Command{searchCmd, hybridCmd} {
		c.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
		c.MarkFlagRequired("query")
	}
	for _, c := range []*cobra.Command{searchCmd, hybridCmd, similarCmd} {
		c.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	}
	for _, c := range []*cobra.Command{searchCmd, hybridCmd, similarCmd, topicsCmd} {
		c.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	}
	hybridCmd.Flags().Float64Var(&searchWeight, "weight", -1, "semantic weight in [0,1] (default from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	a, err := openApp(cfg, GetRootDir(), GetRootDir(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	topK := cfg.Search.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	results, err := a.ranker.SemanticSearch(cmd.Context(), searchText, a.queue.Credential(), a.catalog.Snapshot(), topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return printResults(results, searchText)
}

func runHybrid(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	a, err := openApp(cfg, GetRootDir(), GetRootDir(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	topK := cfg.Search.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}
	weight := cfg.Search.SemanticWeight
	if cmd.Flags().Changed("weight") {
		if searchWeight < 0 || searchWeight > 1 {
			return fmt.Errorf("--weight must be within [0,1]")
		}
		weight = searchWeight
	}

	keywordRanked, err := a.keywords.Rank(searchText, topK*2)
	if err != nil {
		return fmt.Errorf("keyword search failed: %w", err)
	}

	results, err := a.ranker.HybridSearch(cmd.Context(), searchText, a.queue.Credential(), a.catalog.Snapshot(), keywordRanked, weight, topK)
	if err != nil {
		return fmt.Errorf("hybrid search failed: %w", err)
	}
	return printResults(results, searchText)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid item id %q", args[0])
	}

	cfg := GetConfig()
	a, err := openApp(cfg, GetRootDir(), GetRootDir(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	topK := cfg.Search.SimilarTopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	results, err := a.ranker.FindSimilar(id, a.catalog.Snapshot(), topK)
	if errors.Is(err, retriever.ErrNoSourceEmbedding) {
		return fmt.Errorf("item %d has no embedding yet, run 'feedsearch index' first", id)
	}
	if err != nil {
		return fmt.Errorf("similar search failed: %w", err)
	}

	label := fmt.Sprintf("item %d", id)
	if item, ok := a.catalog.Get(id); ok {
		label = fmt.Sprintf("%q", item.Title)
	}
	return printResults(results, label)
}

func runTopics(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir(), GetRootDir(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	items, err := a.ranker.FilterByTopics(cmd.Context(), args, a.queue.Credential(), a.catalog.List())
	if err != nil {
		return fmt.Errorf("topic filter failed: %w", err)
	}

	if searchJSON {
		output, _ := json.MarshalIndent(items, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	for i, item := range items {
		fmt.Printf("%2d. [%d] %s\n", i+1, item.ID, item.Title)
	}
	return nil
}

type resultOutput struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Similarity *float64 `json:"similarity"`
}

func printResults(results []domain.ScoredItem, query string) error {
	if searchJSON {
		out := make([]resultOutput, len(results))
		for i, r := range results {
			out[i] = resultOutput{ID: r.Item.ID, Title: r.Item.Title}
			if !math.IsNaN(r.Similarity) {
				sim := r.Similarity
				out[i].Similarity = &sim
			}
		}
		output, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found. Items without embeddings are not searchable; run 'feedsearch index'.")
		return nil
	}

	fmt.Printf("Found %d results for: %s\n\n", len(results), query)
	for i, r := range results {
		score := "  n/a"
		if !math.IsNaN(r.Similarity) {
			score = fmt.Sprintf("%.3f", r.Similarity)
		}
		title := strings.TrimSpace(r.Item.Title)
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%2d. [%s] %s (id %d)\n", i+1, score, title, r.Item.ID)
	}
	return nil
}
