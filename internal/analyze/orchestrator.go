package analyze

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avolkov/patclaim/internal/cache"
	"github.com/avolkov/patclaim/internal/llm"
	"github.com/avolkov/patclaim/internal/model"
	"github.com/avolkov/patclaim/internal/worker"
)

// fallback rules carry this fixed low confidence
const fallbackConfidence = 0.1

// sleepFunc is the sleep used between retry attempts (injectable for tests)
var sleepFunc = sleepCtx

// Orchestrator drives one reasoning invocation per analysis batch. It never
// fails: every degradation ends in a synthesized needs-review outcome.
type Orchestrator struct {
	provider    llm.Provider
	cfg         model.LLMConfig
	limiter     *worker.Limiter
	responses   cache.Cache
	cacheTTL    time.Duration
	calibration []model.RuleCandidate
	log         *zap.Logger
}

// NewOrchestrator creates an orchestrator. The response cache may be nil to
// disable caching; calibration is the sample of previously known rules
// embedded in each prompt.
func NewOrchestrator(provider llm.Provider, cfg model.LLMConfig, responses cache.Cache, cacheTTL time.Duration, calibration []model.RuleCandidate, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		provider:    provider,
		cfg:         cfg,
		limiter:     worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		responses:   responses,
		cacheTTL:    cacheTTL,
		calibration: calibration,
		log:         logger,
	}
}

// AnalyzeBatch runs one batch end to end: prompt, bounded-retry call, parse
// ladder, and fallback synthesis. The returned outcome is always non-nil.
func (o *Orchestrator) AnalyzeBatch(ctx context.Context, batch model.AnalysisBatch) *model.BatchOutcome {
	start := time.Now()
	claims := batch.ClaimNumbers()

	prompt := BuildPrompt(batch, o.calibration)

	raw, err := o.invoke(ctx, prompt)
	if err != nil {
		o.log.Warn("reasoning call exhausted retries, synthesizing fallback",
			zap.Int("batch", batch.ID), zap.Error(err))
		return o.fallbackOutcome(batch, claims, start, fmt.Sprintf("call failed: %v", err))
	}

	rules, perr := ParseRules(raw)
	if perr != nil || len(rules) == 0 {
		msg := "response contained no rules"
		if perr != nil {
			msg = perr.Error()
		}
		o.log.Warn("response unusable, synthesizing fallback",
			zap.Int("batch", batch.ID), zap.String("reason", msg))
		return o.fallbackOutcome(batch, claims, start, "parse failed: "+msg)
	}

	for i := range rules {
		rules[i].Provenance = model.Provenance{BatchID: batch.ID, ClaimNumbers: claims}
	}

	o.log.Debug("batch analyzed",
		zap.Int("batch", batch.ID),
		zap.Int("rules", len(rules)),
		zap.Duration("elapsed", time.Since(start)))

	return &model.BatchOutcome{
		BatchID:      batch.ID,
		ClaimNumbers: claims,
		Rules:        rules,
		Confidence:   scoreConfidence(rules, len(batch.Segments)),
		Elapsed:      time.Since(start),
	}
}

// invoke performs the rate-limited, cached, bounded-retry provider call.
func (o *Orchestrator) invoke(ctx context.Context, prompt string) (string, error) {
	key := cache.Key(o.provider.Name(), prompt)
	if o.responses != nil {
		if raw, ok := o.responses.Get(key); ok {
			o.log.Debug("response cache hit")
			return string(raw), nil
		}
	}

	retries := o.cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if err := o.limiter.Wait(ctx, o.provider.Name()); err != nil {
			return "", &llm.CallError{Provider: o.provider.Name(), Err: err}
		}

		raw, err := o.provider.Analyze(ctx, prompt)
		if err == nil {
			if o.responses != nil {
				_ = o.responses.Set(key, []byte(raw), o.cacheTTL)
			}
			return raw, nil
		}

		lastErr = err
		o.log.Warn("reasoning call failed",
			zap.Int("attempt", attempt), zap.Int("max", retries), zap.Error(err))

		if attempt < retries {
			backoff := o.cfg.RetryBackoff * time.Duration(attempt)
			if err := sleepFunc(ctx, backoff); err != nil {
				return "", &llm.CallError{Provider: o.provider.Name(), Err: err}
			}
		}
	}

	return "", lastErr
}

// fallbackOutcome synthesizes one low-confidence needs-review rule per
// segment so no claim ever leaves the pipeline without a rule or an explicit
// failure marker.
func (o *Orchestrator) fallbackOutcome(batch model.AnalysisBatch, claims []int, start time.Time, errMsg string) *model.BatchOutcome {
	rules := make([]model.RuleCandidate, 0, len(batch.Segments))
	for _, seg := range batch.Segments {
		wildType := "SEQ_ID_NO_1"
		if len(seg.SequenceRefs) > 0 {
			wildType = seg.SequenceRefs[0].ID
		}

		mutations := seg.MutationTokens
		if len(mutations) > 5 {
			mutations = mutations[:5]
		}

		rules = append(rules, model.RuleCandidate{
			WildType:      wildType,
			Kind:          model.RuleUnknown,
			Mutation:      strings.Join(mutations, "/"),
			IdentityLogic: "seq_identity >= 60%",
			Statement:     fmt.Sprintf("Claim %d needs review: automated analysis did not complete", seg.ClaimNumber),
			Comment:       fmt.Sprintf("fallback rule; claim kind: %s", seg.Kind),
			NeedsReview:   true,
			Provenance:    model.Provenance{BatchID: batch.ID, ClaimNumbers: []int{seg.ClaimNumber}},
		})
	}

	return &model.BatchOutcome{
		BatchID:      batch.ID,
		ClaimNumbers: claims,
		Rules:        rules,
		Confidence:   fallbackConfidence,
		Elapsed:      time.Since(start),
		ErrorMessage: errMsg,
	}
}

// scoreConfidence starts at 0.5, adds up to 0.3 for the rules-per-claim
// ratio and up to 0.2 for per-rule quality checks, clamped to [0,1].
func scoreConfidence(rules []model.RuleCandidate, claimCount int) float64 {
	if len(rules) == 0 || claimCount == 0 {
		return 0
	}

	confidence := 0.5

	rulesPerClaim := float64(len(rules)) / float64(claimCount)
	confidence += math.Min(rulesPerClaim*0.2, 0.3)

	var quality float64
	for _, r := range rules {
		if strings.Contains(r.WildType, "SEQ_ID_NO") {
			quality += 0.1
		}
		if strings.ContainsAny(r.MutationLogic, "&|(") {
			quality += 0.1
		}
		if len(r.Statement) > 20 {
			quality += 0.1
		}
	}
	confidence += math.Min(quality/float64(len(rules)), 0.2)

	return math.Min(math.Max(confidence, 0), 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
