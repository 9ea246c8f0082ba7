package chunk

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/avolkov/patclaim/internal/model"
)

// complexity tier boundaries
const (
	tierLowMax      = 3.0 // exclusive
	tierModerateMax = 6.0 // inclusive
)

// Builder groups claim segments into complexity-bounded analysis batches.
type Builder struct {
	cfg model.ChunkConfig
	log *zap.Logger
}

// NewBuilder validates the static configuration and creates a builder.
// Invalid thresholds are the one fatal condition of the pipeline and are
// rejected here, before any processing starts.
func NewBuilder(cfg model.ChunkConfig, logger *zap.Logger) (*Builder, error) {
	if cfg.MaxBatchSize <= 0 {
		return nil, fmt.Errorf("max batch size must be positive, got %d", cfg.MaxBatchSize)
	}
	if cfg.ComplexityBudget <= 0 {
		return nil, fmt.Errorf("complexity budget must be positive, got %g", cfg.ComplexityBudget)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{cfg: cfg, log: logger}, nil
}

// Build partitions the segments into batches. Segments are stratified into
// low/moderate/high complexity tiers, processed in that order so simple
// claims are grouped first, then appended greedily: a batch closes whenever
// the next segment would exceed the size limit or the complexity budget.
// The partition is deterministic for a given segment list and thresholds.
func (b *Builder) Build(segments []model.ClaimSegment) []model.AnalysisBatch {
	if len(segments) == 0 {
		return nil
	}

	var batches []model.AnalysisBatch
	var current []model.ClaimSegment
	var currentComplexity float64

	flush := func() {
		if len(current) == 0 {
			return
		}
		batches = append(batches, model.AnalysisBatch{
			ID:       len(batches),
			Segments: current,
		})
		current = nil
		currentComplexity = 0
	}

	for _, tier := range stratify(segments) {
		for _, seg := range tier {
			if len(current) >= b.cfg.MaxBatchSize ||
				currentComplexity+seg.ComplexityScore > b.cfg.ComplexityBudget {
				flush()
			}
			// A single segment over the budget still gets its own batch:
			// it cannot be split, so the budget yields to it.
			current = append(current, seg)
			currentComplexity += seg.ComplexityScore
		}
	}
	flush()

	b.log.Info("built analysis batches",
		zap.Int("segments", len(segments)),
		zap.Int("batches", len(batches)))

	return batches
}

// stratify splits segments into the three complexity tiers, preserving the
// original order within each tier.
func stratify(segments []model.ClaimSegment) [3][]model.ClaimSegment {
	var tiers [3][]model.ClaimSegment
	for _, seg := range segments {
		switch {
		case seg.ComplexityScore < tierLowMax:
			tiers[0] = append(tiers[0], seg)
		case seg.ComplexityScore <= tierModerateMax:
			tiers[1] = append(tiers[1], seg)
		default:
			tiers[2] = append(tiers[2], seg)
		}
	}
	return tiers
}

// Decision captures why chunked mode was (or was not) selected.
type Decision struct {
	Chunked        bool
	TotalLength    int
	ClaimCount     int
	DependencyRefs int
	Reason         string
}

// DecideMode determines whether the document needs chunked processing.
// Any one trigger is sufficient: total claim text length, claim count,
// the combined soft thresholds, or cross-claim dependency fan-out.
func DecideMode(segments []model.ClaimSegment, cfg model.ModeConfig) Decision {
	d := Decision{ClaimCount: len(segments)}
	for _, seg := range segments {
		d.TotalLength += len(seg.RawText)
		d.DependencyRefs += len(seg.DependencyRefs)
	}

	switch {
	case d.TotalLength > cfg.LengthThreshold:
		d.Chunked = true
		d.Reason = fmt.Sprintf("claim text length %d exceeds %d", d.TotalLength, cfg.LengthThreshold)
	case d.ClaimCount > cfg.ClaimThreshold:
		d.Chunked = true
		d.Reason = fmt.Sprintf("claim count %d exceeds %d", d.ClaimCount, cfg.ClaimThreshold)
	case d.TotalLength > cfg.SoftLengthThreshold && d.ClaimCount > cfg.SoftClaimThreshold:
		d.Chunked = true
		d.Reason = fmt.Sprintf("length %d and count %d exceed soft thresholds", d.TotalLength, d.ClaimCount)
	case d.DependencyRefs > cfg.DependencyThreshold:
		d.Chunked = true
		d.Reason = fmt.Sprintf("dependency reference count %d exceeds %d", d.DependencyRefs, cfg.DependencyThreshold)
	default:
		d.Reason = "document small enough for a single pass"
	}

	return d
}
