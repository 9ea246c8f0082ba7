package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/avolkov/patclaim/internal/llm"
	"github.com/avolkov/patclaim/internal/logging"
	"github.com/avolkov/patclaim/internal/pipeline"
)

var (
	batchOutDir    string
	batchMarkdown  bool
	batchParallel  int
	batchContinue  bool
	batchGlob      string
	batchRunLimit  time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <claims-dir>",
	Short: "Analyze every claims file in a directory",
	Long: `Batch runs the full extraction pipeline over every claims file found in a
directory. Each file becomes one patent; the file stem is used as the patent
number. Results are written next to each other under the output directory.

Example:
  patclaim batch ./claims --out ./rules --parallel 2
  patclaim batch ./claims --glob "CN*.txt" --md`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchOutDir, "out", "rules", "output directory")
	batchCmd.Flags().BoolVar(&batchMarkdown, "md", false, "also write a Markdown report per patent")
	batchCmd.Flags().IntVar(&batchParallel, "parallel", 2, "patents processed concurrently")
	batchCmd.Flags().BoolVar(&batchContinue, "continue-on-error", true, "keep going when one patent fails")
	batchCmd.Flags().StringVar(&batchGlob, "glob", "*.txt", "claims file pattern inside the directory")
	batchCmd.Flags().DurationVar(&batchRunLimit, "timeout", 2*time.Hour, "overall batch timeout")

	batchCmd.Flags().StringVar(&llmProvider, "provider", "openai", "reasoning provider (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&llmModel, "model", "", "provider model name")
	batchCmd.Flags().IntVar(&workers, "workers", 4, "concurrent batch analyses per patent")
	batchCmd.Flags().IntVar(&maxBatchSize, "max-batch-size", 5, "claims per analysis batch")
	batchCmd.Flags().Float64Var(&complexityBudget, "complexity-budget", 15.0, "cumulative complexity per batch")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the response cache")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
}

func runBatch(cmd *cobra.Command, args []string) error {
	claimsDir := args[0]

	info, err := os.Stat(claimsDir)
	if err != nil {
		return fmt.Errorf("stat claims directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", claimsDir)
	}

	files, err := filepath.Glob(filepath.Join(claimsDir, batchGlob))
	if err != nil {
		return fmt.Errorf("bad glob %q: %w", batchGlob, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no claims files matching %q in %s", batchGlob, claimsDir)
	}

	if err := os.MkdirAll(batchOutDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("init provider: %w", err)
	}

	// All patents share one pipeline so the response cache and rate limiter
	// apply across the whole run.
	p, err := pipeline.New(cfg, provider, nil, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchRunLimit)
	defer cancel()

	parallel := batchParallel
	if parallel < 1 {
		parallel = 1
	}

	type patentError struct {
		patent string
		err    error
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []patentError
		done     int
	)
	sem := make(chan struct{}, parallel)
	renderer := pipeline.NewRenderer(!noFooter)

	for _, file := range files {
		file := file
		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			patent := strings.ToUpper(strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))
			err := processOne(ctx, p, renderer, patent, file)

			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				failures = append(failures, patentError{patent: patent, err: err})
				fmt.Fprintf(os.Stderr, "[%d/%d] %s: FAILED: %v\n", done, len(files), patent, err)
				return
			}
			fmt.Printf("[%d/%d] %s: done\n", done, len(files), patent)
		}()
	}

	wg.Wait()

	fmt.Printf("\nBatch finished: %d patents, %d failed\n", len(files), len(failures))
	if len(failures) > 0 && !batchContinue {
		return fmt.Errorf("%d patent(s) failed", len(failures))
	}
	return nil
}

func processOne(ctx context.Context, p *pipeline.Pipeline, renderer *pipeline.Renderer, patent, file string) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read claims: %w", err)
	}

	result, err := p.AnalyzeText(ctx, patent, string(raw))
	if err != nil {
		return err
	}

	jsonPath := filepath.Join(batchOutDir, patent+".json")
	if err := renderer.RenderJSON(result.Document, jsonPath); err != nil {
		return err
	}
	if batchMarkdown {
		mdPath := filepath.Join(batchOutDir, patent+".md")
		if err := renderer.RenderMarkdown(result.RuleSet, mdPath); err != nil {
			return err
		}
	}
	return nil
}
