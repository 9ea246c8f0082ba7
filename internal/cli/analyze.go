package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/avolkov/patclaim/internal/llm"
	"github.com/avolkov/patclaim/internal/logging"
	"github.com/avolkov/patclaim/internal/model"
	"github.com/avolkov/patclaim/internal/pipeline"
)

var (
	patentNumber     string
	outJSON          string
	outMD            string
	rulesFile        string
	llmProvider      string
	llmModel         string
	llmTimeout       time.Duration
	runTimeout       time.Duration
	workers          int
	maxBatchSize     int
	complexityBudget float64
	noCache          bool
	noFooter         bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <claims-file>",
	Short: "Extract protection rules from one patent's claims",
	Long: `Analyze reads a claims text file (plain text or HTML export), segments it
into claims, batches them by complexity, analyzes every batch through the
configured reasoning provider, and merges the results into one rule set.

Example:
  patclaim analyze claims/CN202210107337.txt
  patclaim analyze claims.txt --patent CN1234567 --json rules.json --md report.md
  patclaim analyze claims.txt --provider ollama --model qwen2.5 --workers 2`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&patentNumber, "patent", "", "patent number (default: claims file stem)")
	analyzeCmd.Flags().StringVar(&outJSON, "json", "rules.json", "output JSON path")
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown report path (optional)")
	analyzeCmd.Flags().StringVar(&rulesFile, "rules", "", "existing rules JSON used as calibration sample (optional)")

	analyzeCmd.Flags().StringVar(&llmProvider, "provider", "openai", "reasoning provider (openai, anthropic, ollama)")
	analyzeCmd.Flags().StringVar(&llmModel, "model", "", "provider model name")
	analyzeCmd.Flags().DurationVar(&llmTimeout, "call-timeout", 60*time.Second, "timeout for one reasoning call")
	analyzeCmd.Flags().DurationVar(&runTimeout, "timeout", 15*time.Minute, "overall run timeout")

	analyzeCmd.Flags().IntVar(&workers, "workers", 4, "concurrent batch analyses")
	analyzeCmd.Flags().IntVar(&maxBatchSize, "max-batch-size", 5, "claims per analysis batch")
	analyzeCmd.Flags().Float64Var(&complexityBudget, "complexity-budget", 15.0, "cumulative complexity per batch")

	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the response cache")
	analyzeCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	claimsPath := args[0]

	raw, err := os.ReadFile(claimsPath)
	if err != nil {
		return fmt.Errorf("read claims file: %w", err)
	}

	patent := patentNumber
	if patent == "" {
		patent = strings.ToUpper(strings.TrimSuffix(filepath.Base(claimsPath), filepath.Ext(claimsPath)))
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

	calibration, err := loadCalibration(rulesFile)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, provider, calibration, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if verbose && !provider.IsAvailable(ctx) {
		fmt.Fprintf(os.Stderr, "Warning: provider %s is not reachable; batches will degrade to needs-review placeholders\n", provider.Name())
	}

	result, err := p.AnalyzeText(ctx, patent, string(raw))
	if err != nil {
		return err
	}

	renderer := pipeline.NewRenderer(!noFooter)
	if outJSON != "" {
		if err := renderer.RenderJSON(result.Document, outJSON); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Wrote JSON: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(result.RuleSet, outMD); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Wrote report: %s\n", outMD)
		}
	}

	renderer.RenderSummary(os.Stdout, result.RuleSet)
	return nil
}

// buildConfig assembles the pipeline configuration from defaults and flags.
func buildConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	cfg.Chunk.MaxBatchSize = maxBatchSize
	cfg.Chunk.ComplexityBudget = complexityBudget
	cfg.Concurrency.Workers = workers
	cfg.Cache.Enabled = !noCache
	cfg.Output.Verbose = verbose
	cfg.Output.IncludeFooter = !noFooter

	cfg.LLM.Provider = llmProvider
	cfg.LLM.Model = llmModel
	cfg.LLM.Timeout = llmTimeout

	switch strings.ToLower(llmProvider) {
	case "openai", "qwen", "dashscope":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("QWEN_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY (or QWEN_API_KEY) environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}

	return cfg, nil
}

// loadCalibration reads previously known rules used as the prompt's
// calibration sample.
func loadCalibration(path string) ([]model.RuleCandidate, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var rules []model.RuleCandidate
	if err := json.Unmarshal(data, &rules); err != nil {
		// Also accept the output document shape.
		var doc model.Document
		if derr := json.Unmarshal(data, &doc); derr != nil {
			return nil, fmt.Errorf("parse rules file: %w", err)
		}
		for _, r := range doc.Rules {
			rules = append(rules, model.RuleCandidate{
				WildType:      r.WildType,
				Kind:          model.RuleKind(r.Rule),
				Mutation:      r.Mutation,
				MutationLogic: r.MutationLogic,
				IdentityLogic: r.IdentityLogic,
				Statement:     r.Statement,
				Comment:       r.Comment,
			})
		}
	}

	return rules, nil
}
