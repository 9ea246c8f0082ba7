package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avolkov/patclaim/internal/analyze"
	"github.com/avolkov/patclaim/internal/cache"
	"github.com/avolkov/patclaim/internal/chunk"
	"github.com/avolkov/patclaim/internal/llm"
	"github.com/avolkov/patclaim/internal/merge"
	"github.com/avolkov/patclaim/internal/model"
	"github.com/avolkov/patclaim/internal/segment"
	"github.com/avolkov/patclaim/internal/worker"
)

// Pipeline sequences segmentation, batching, per-batch analysis, and the
// final merge for one patent document.
type Pipeline struct {
	cfg          *model.Config
	segmenter    *segment.Segmenter
	builder      *chunk.Builder
	orchestrator *analyze.Orchestrator
	merger       *merge.Merger
	log          *zap.Logger
}

// Result is the complete output of one pipeline run.
type Result struct {
	Document *model.Document
	RuleSet  *model.MergedRuleSet
	Decision chunk.Decision
}

// New validates the configuration and wires the pipeline. Invalid static
// configuration is the only error this system ever returns; everything past
// this point degrades instead of failing.
func New(cfg *model.Config, provider llm.Provider, calibration []model.RuleCandidate, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	builder, err := chunk.NewBuilder(cfg.Chunk, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var responses cache.Cache
	if cfg.Cache.Enabled {
		responses = cache.NewMemoryCache(cfg.Cache.TTL, 10*time.Minute)
	}

	return &Pipeline{
		cfg:          cfg,
		segmenter:    segment.NewSegmenter(cfg.Segment, logger),
		builder:      builder,
		orchestrator: analyze.NewOrchestrator(provider, cfg.LLM, responses, cfg.Cache.TTL, calibration, logger),
		merger:       merge.NewMerger(cfg.Merge, logger),
		log:          logger,
	}, nil
}

// AnalyzeText runs the full pipeline starting from raw claim text.
func (p *Pipeline) AnalyzeText(ctx context.Context, patentNumber, raw string) (*Result, error) {
	segments, warnings := p.segmenter.Segment(raw)
	return p.analyze(ctx, patentNumber, segments, warnings)
}

// AnalyzeSegments runs the pipeline over pre-segmented claims.
func (p *Pipeline) AnalyzeSegments(ctx context.Context, patentNumber string, segments []model.ClaimSegment) (*Result, error) {
	return p.analyze(ctx, patentNumber, segments, nil)
}

func (p *Pipeline) analyze(ctx context.Context, patentNumber string, segments []model.ClaimSegment, warnings []string) (*Result, error) {
	start := time.Now()

	var log []model.ProcessLogEntry
	for _, w := range warnings {
		log = append(log, model.ProcessLogEntry{Stage: "segment", Message: w, At: time.Now().UTC()})
	}

	decision := chunk.DecideMode(segments, p.cfg.Mode)
	p.log.Info("processing mode decided",
		zap.String("patent", patentNumber),
		zap.Bool("chunked", decision.Chunked),
		zap.String("reason", decision.Reason))

	var batches []model.AnalysisBatch
	if decision.Chunked {
		batches = p.builder.Build(segments)
	} else if len(segments) > 0 {
		batches = []model.AnalysisBatch{{ID: 0, Segments: segments}}
	}

	outcomes := p.runBatches(ctx, batches)
	for _, out := range outcomes {
		if out.Failed() {
			log = append(log, model.ProcessLogEntry{
				Stage:   "analyze",
				Message: fmt.Sprintf("batch %d degraded: %s", out.BatchID, out.ErrorMessage),
				At:      time.Now().UTC(),
			})
		}
	}

	// The merge requires the complete candidate set; it runs strictly after
	// every outcome is in.
	set := p.merger.Merge(patentNumber, outcomes)
	set.RunID = uuid.NewString()
	set.Log = log

	p.log.Info("pipeline finished",
		zap.String("patent", patentNumber),
		zap.Int("claims", set.ClaimsAnalyzed),
		zap.Int("rules", len(set.Rules)),
		zap.Float64("completeness", set.Quality.Completeness),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{
		Document: model.DocumentFromRuleSet(set),
		RuleSet:  set,
		Decision: decision,
	}, nil
}

// runBatches analyzes all batches on a bounded worker pool.
func (p *Pipeline) runBatches(ctx context.Context, batches []model.AnalysisBatch) []*model.BatchOutcome {
	if len(batches) == 0 {
		return nil
	}

	workers := p.cfg.Concurrency.Workers
	if workers > len(batches) {
		workers = len(batches)
	}

	pool := worker.NewPool(workers)
	pool.Start()

	for _, b := range batches {
		pool.Submit(&batchJob{batch: b, orchestrator: p.orchestrator, ctx: ctx})
	}

	return pool.Wait()
}

// batchJob adapts one analysis batch to the worker pool.
type batchJob struct {
	batch        model.AnalysisBatch
	orchestrator *analyze.Orchestrator
	ctx          context.Context
}

func (j *batchJob) Execute(poolCtx context.Context) *model.BatchOutcome {
	ctx := j.ctx
	if ctx == nil {
		ctx = poolCtx
	}
	return j.orchestrator.AnalyzeBatch(ctx, j.batch)
}
