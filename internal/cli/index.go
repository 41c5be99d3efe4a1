package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"feedsearch/internal/adapter/store"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Embed exported feed items",
	Long: `Load exported feed items from the given directory and embed every item that
has content and no vector for the configured model. Vectors are stored in
.feedsearch/vectors.db within the working directory.

Re-running index only embeds new or stale items. If a batch fails the command
reports the items left pending; run it again once the provider recovers.

Examples:
  feedsearch index .                # Items exported into the current directory
  feedsearch index ~/feeds/export   # Items exported elsewhere`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()
	progress := &embedProgress{}

	a, err := openApp(cfg, GetRootDir(), "", progress.step)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.requireCredential(); err != nil {
		return err
	}

	model, dims := a.embedder.ModelName(), a.embedder.Dimension()
	migration, err := a.store.CheckSchema(model, dims)
	if err != nil {
		return err
	}
	switch {
	case migration.NeedsRebuild:
		fmt.Printf("Vector rebuild required: %s\n", migration.Reason)
		fmt.Println("Clearing existing vectors...")
		if err := a.store.Clear(); err != nil {
			return fmt.Errorf("failed to clear vectors: %w", err)
		}
	case migration.ModelChanged:
		fmt.Printf("%s; stale vectors will be re-embedded\n", migration.Reason)
	}

	fmt.Printf("Scanning %s...\n", path)
	loaded, err := a.loadItems(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()
	queued, err := a.queue.Enqueue(ctx, loaded.Items)
	if err != nil {
		return fmt.Errorf("failed to queue items: %w", err)
	}
	progress.start(queued)

	done := make(chan struct{})
	go func() {
		a.queue.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		fmt.Println("\nInterrupted, stopping after the current request...")
		a.queue.Close()
	}
	progress.finish()

	if err := a.store.SetSchemaInfo(store.SchemaInfo{
		Version:    store.CurrentSchemaVersion,
		Model:      model,
		Dimensions: dims,
	}); err != nil {
		return fmt.Errorf("failed to update schema info: %w", err)
	}

	count, err := a.store.Count()
	if err != nil {
		return err
	}
	status := a.queue.Status()

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Files read:     %d\n", loaded.Files)
	fmt.Printf("  Items found:    %d\n", len(loaded.Items))
	fmt.Printf("  Items queued:   %d\n", queued)
	fmt.Printf("  Vectors stored: %d\n", count)
	fmt.Printf("  Took:           %s\n", formatDuration(time.Since(start)))

	if len(loaded.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range loaded.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if status.QueueLength > 0 {
		return fmt.Errorf("%d items still pending after a failed batch; run index again", status.QueueLength)
	}

	fmt.Printf("\nVectors stored at: %s\n", cfg.StorePath(GetRootDir()))
	return nil
}

// embedProgress drives a progress bar from the queue's per-item callback.
// Steps reported before the total is known are replayed once it is.
type embedProgress struct {
	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	done  int
	began time.Time
	total int
}

func (p *embedProgress) start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if total == 0 {
		return
	}
	p.total = total
	p.began = time.Now()
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
	if p.done > 0 {
		p.bar.Add(p.done)
	}
}

func (p *embedProgress) step(_, _ int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if p.bar == nil {
		return
	}
	p.bar.Add(1)

	elapsed := time.Since(p.began)
	rate := float64(p.done) / elapsed.Seconds()
	if rate > 0 {
		eta := time.Duration(float64(p.total-p.done)/rate) * time.Second
		p.bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
	}
}

func (p *embedProgress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Exit()
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
