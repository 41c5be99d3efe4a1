package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"feedsearch/config"
	"feedsearch/internal/adapter/embedding"
	"feedsearch/internal/adapter/feed"
	"feedsearch/internal/adapter/retriever"
	"feedsearch/internal/adapter/store"
	"feedsearch/internal/logging"
)

func main() {
	dir := flag.String("dir", ".", "directory holding feed exports and .feedsearch")
	query := flag.String("q", "", "query to test")
	topK := flag.Int("k", 10, "number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./export -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Vector store contents (count, model, dimensions)")
		fmt.Println("  2. Query embedding and scan latency")
		fmt.Println("  3. Similarity of the top matches")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New("warn", "text", os.Stderr)

	st, err := store.Open(cfg.StorePath(*dir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening vector store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	count, _ := st.Count()
	if count == 0 {
		fmt.Fprintln(os.Stderr, "No embeddings - run 'feedsearch index' first")
		os.Exit(1)
	}

	loaded, err := feed.NewLoader(cfg.Feed.Includes, cfg.Feed.Excludes).Load(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading items: %v\n", err)
		os.Exit(1)
	}
	catalog := feed.NewCatalog()
	catalog.Put(loaded.Items...)

	embedder := embedding.NewClient(embedding.Options{
		BaseURL:       cfg.Embedding.BaseURL,
		Model:         cfg.Embedding.Model,
		Dimensions:    cfg.Embedding.Dimensions,
		MaxInputChars: cfg.Embedding.MaxInputChars,
		Timeout:       cfg.Embedding.Timeout,
		Logger:        logger,
	})

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Embeddings stored: %d\n", count)
	fmt.Printf("Items loaded:      %d\n", catalog.Len())
	fmt.Printf("Model:             %s\n", embedder.ModelName())
	fmt.Printf("Dimension:         %d\n", embedder.Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ranker := retriever.NewRanker(embedder, st, nil, logger)
	start := time.Now()
	results, err := ranker.SemanticSearch(context.Background(), *query, cfg.Credential(), catalog.Snapshot(), *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	if len(results) == 0 {
		fmt.Println("No stored vectors match loaded items.")
		return
	}

	fmt.Printf("Top %d semantic matches (%s):\n\n", len(results), elapsed.Round(time.Millisecond))

	totalScore := 0.0
	scored := 0
	for i, r := range results {
		preview := strings.Join(strings.Fields(r.Item.Title), " ")
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}

		similarity := r.Similarity
		if math.IsNaN(similarity) {
			fmt.Printf("%d. [n/a]  %s (id %d)\n", i+1, preview, r.Item.ID)
			continue
		}
		totalScore += similarity
		scored++

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s (id %d)\n", i+1, rating, similarity, preview, r.Item.ID)
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	if scored == 0 {
		fmt.Println("  Status: POOR - every match has a zero vector, re-run index")
		return
	}

	avgScore := totalScore / float64(scored)
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Similarity)
	fmt.Printf("  Search latency:     %s\n", elapsed.Round(time.Millisecond))

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need a different model or re-indexing")
	}
}
