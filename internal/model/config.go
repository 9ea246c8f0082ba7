package model

import (
	"fmt"
	"time"
)

// Config holds the full pipeline configuration.
// Hierarchy: CLI flags > PATCLAIM_* env vars > config file > defaults.
type Config struct {
	Segment     SegmentConfig     `yaml:"segment" json:"segment"`
	Chunk       ChunkConfig       `yaml:"chunk" json:"chunk"`
	Mode        ModeConfig        `yaml:"mode" json:"mode"`
	Merge       MergeConfig       `yaml:"merge" json:"merge"`
	LLM         LLMConfig         `yaml:"llm" json:"llm"`
	Cache       CacheConfig       `yaml:"cache" json:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" json:"concurrency"`
	Output      OutputConfig      `yaml:"output" json:"output"`
}

// SegmentConfig tunes the complexity-score weights. The weights are
// empirically chosen; the [1,10] cap and monotonicity hold for any
// non-negative values.
type SegmentConfig struct {
	LengthDivisor    float64 `yaml:"length_divisor" json:"length_divisor"`
	LengthCap        float64 `yaml:"length_cap" json:"length_cap"`
	SeqRefWeight     float64 `yaml:"seq_ref_weight" json:"seq_ref_weight"`
	MutationWeight   float64 `yaml:"mutation_weight" json:"mutation_weight"`
	ConnectiveWeight float64 `yaml:"connective_weight" json:"connective_weight"`
	PercentWeight    float64 `yaml:"percent_weight" json:"percent_weight"`
	ContextWindow    int     `yaml:"context_window" json:"context_window"` // Chars kept around a sequence mention
}

// ChunkConfig bounds the size and complexity of one analysis batch.
type ChunkConfig struct {
	MaxBatchSize     int     `yaml:"max_batch_size" json:"max_batch_size"`
	ComplexityBudget float64 `yaml:"complexity_budget" json:"complexity_budget"`
}

// ModeConfig holds the chunked-mode decision thresholds.
type ModeConfig struct {
	LengthThreshold     int `yaml:"length_threshold" json:"length_threshold"`
	ClaimThreshold      int `yaml:"claim_threshold" json:"claim_threshold"`
	SoftLengthThreshold int `yaml:"soft_length_threshold" json:"soft_length_threshold"`
	SoftClaimThreshold  int `yaml:"soft_claim_threshold" json:"soft_claim_threshold"`
	DependencyThreshold int `yaml:"dependency_threshold" json:"dependency_threshold"`
}

// MergeConfig tunes the similarity merge.
type MergeConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
}

// LLMConfig configures the external reasoning provider.
type LLMConfig struct {
	Provider          string        `yaml:"provider" json:"provider"` // openai, anthropic, ollama
	Model             string        `yaml:"model" json:"model"`
	APIKey            string        `yaml:"-" json:"-"` // Env only, never persisted
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	MaxTokens         int           `yaml:"max_tokens" json:"max_tokens"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoff      time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
}

// CacheConfig configures the analysis response cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
}

// ConcurrencyConfig bounds the batch worker pool.
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// OutputConfig controls rendering.
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" json:"verbose"`
	IncludeFooter bool `yaml:"include_footer" json:"include_footer"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() *Config {
	return &Config{
		Segment: SegmentConfig{
			LengthDivisor:    500,
			LengthCap:        3.0,
			SeqRefWeight:     0.1,
			MutationWeight:   0.2,
			ConnectiveWeight: 0.1,
			PercentWeight:    0.1,
			ContextWindow:    60,
		},
		Chunk: ChunkConfig{
			MaxBatchSize:     5,
			ComplexityBudget: 15.0,
		},
		Mode: ModeConfig{
			LengthThreshold:     10000,
			ClaimThreshold:      10,
			SoftLengthThreshold: 5000,
			SoftClaimThreshold:  5,
			DependencyThreshold: 20,
		},
		Merge: MergeConfig{
			SimilarityThreshold: 0.6,
		},
		LLM: LLMConfig{
			Provider:          "openai",
			Model:             "",
			Timeout:           60 * time.Second,
			MaxTokens:         4000,
			MaxRetries:        3,
			RetryBackoff:      2 * time.Second,
			RequestsPerSecond: 2,
			Burst:             2,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     1 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Output: OutputConfig{
			Verbose:       false,
			IncludeFooter: true,
		},
	}
}

// Validate rejects invalid static configuration before any processing
// starts. This is the only fatal condition inside the pipeline.
func (c *Config) Validate() error {
	if c.Chunk.MaxBatchSize <= 0 {
		return fmt.Errorf("chunk.max_batch_size must be positive, got %d", c.Chunk.MaxBatchSize)
	}
	if c.Chunk.ComplexityBudget <= 0 {
		return fmt.Errorf("chunk.complexity_budget must be positive, got %g", c.Chunk.ComplexityBudget)
	}
	if c.Merge.SimilarityThreshold < 0 || c.Merge.SimilarityThreshold > 1 {
		return fmt.Errorf("merge.similarity_threshold must be in [0,1], got %g", c.Merge.SimilarityThreshold)
	}
	if c.LLM.MaxRetries <= 0 {
		return fmt.Errorf("llm.max_retries must be positive, got %d", c.LLM.MaxRetries)
	}
	if c.Concurrency.Workers <= 0 {
		return fmt.Errorf("concurrency.workers must be positive, got %d", c.Concurrency.Workers)
	}
	return nil
}
