package merge

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avolkov/patclaim/internal/model"
)

// Merger reconciles all batch outcomes of one document into a single
// deduplicated, scored rule set. All indices it builds are scoped to one
// Merge call; nothing persists across runs.
type Merger struct {
	threshold float64
	log       *zap.Logger
}

// NewMerger creates a merger with the given similarity threshold.
func NewMerger(cfg model.MergeConfig, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{threshold: cfg.SimilarityThreshold, log: logger}
}

// Merge runs dedup, similarity merge, and scoring over every candidate from
// every outcome. It must only be called once all outcomes are available.
func (m *Merger) Merge(patentNumber string, outcomes []*model.BatchOutcome) *model.MergedRuleSet {
	// Batch order, not completion order, drives first-occurrence-wins.
	ordered := make([]*model.BatchOutcome, len(outcomes))
	copy(ordered, outcomes)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].BatchID < ordered[j].BatchID })

	var candidates []model.RuleCandidate
	for _, out := range ordered {
		candidates = append(candidates, out.Rules...)
	}

	deduped := m.deduplicate(candidates)
	merged := m.mergeSimilar(deduped)

	rules := make([]model.MergedRule, len(merged))
	for i, r := range merged {
		rules[i] = model.MergedRule{
			RuleCandidate: r.RuleCandidate,
			PriorityScore: priorityScore(r.RuleCandidate),
			QualityScore:  qualityScore(r.RuleCandidate),
			MergedFrom:    r.MergedFrom,
		}
	}
	// Stable sort keeps original batch order as the tie-break.
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].PriorityScore > rules[j].PriorityScore
	})

	set := &model.MergedRuleSet{
		PatentNumber: patentNumber,
		Rules:        rules,
	}
	m.summarize(set, ordered)

	m.log.Info("merged batch outcomes",
		zap.Int("candidates", len(candidates)),
		zap.Int("deduplicated", len(deduped)),
		zap.Int("final", len(rules)))

	return set
}

// deduplicate drops exact repeats by signature, keeping the first
// occurrence. Near-duplicate collisions beyond the similarity threshold
// resolve the same deterministic way.
func (m *Merger) deduplicate(candidates []model.RuleCandidate) []model.RuleCandidate {
	seen := make(map[string]bool, len(candidates))
	var kept []model.RuleCandidate

	for _, r := range candidates {
		sig := r.Signature()
		if seen[sig] {
			m.log.Debug("dropping duplicate rule", zap.String("signature", sig))
			continue
		}
		seen[sig] = true
		kept = append(kept, r)
	}

	return kept
}

type mergedCandidate struct {
	model.RuleCandidate
	MergedFrom int
}

// mergeSimilar groups candidates by wild type and folds same-kind clusters
// whose mutation sets overlap beyond the Jaccard threshold into one rule.
func (m *Merger) mergeSimilar(candidates []model.RuleCandidate) []mergedCandidate {
	// Group by wild type, preserving first-seen order of both groups and
	// members so the output is deterministic.
	groupOrder := make([]string, 0)
	groups := make(map[string][]model.RuleCandidate)
	for _, r := range candidates {
		key := r.WildType
		if _, ok := groups[key]; !ok {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], r)
	}

	var out []mergedCandidate
	for _, key := range groupOrder {
		out = append(out, m.mergeGroup(groups[key])...)
	}
	return out
}

func (m *Merger) mergeGroup(rules []model.RuleCandidate) []mergedCandidate {
	if len(rules) == 1 {
		return []mergedCandidate{{RuleCandidate: rules[0], MergedFrom: 1}}
	}

	var out []mergedCandidate
	processed := make([]bool, len(rules))

	for i, seed := range rules {
		if processed[i] {
			continue
		}
		processed[i] = true
		cluster := []model.RuleCandidate{seed}

		for j := i + 1; j < len(rules); j++ {
			if processed[j] {
				continue
			}
			if m.similar(seed, rules[j]) {
				cluster = append(cluster, rules[j])
				processed[j] = true
			}
		}

		out = append(out, m.mergeCluster(cluster))
	}

	return out
}

// similar requires the same rule kind and a mutation-set Jaccard overlap
// strictly above the threshold.
func (m *Merger) similar(a, b model.RuleCandidate) bool {
	if a.Kind != b.Kind {
		return false
	}

	setA := a.MutationSet()
	setB := b.MutationSet()
	if len(setA) == 0 || len(setB) == 0 {
		return false
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection)/float64(union) > m.threshold
}

// mergeCluster folds a cluster into its first member: the mutation
// descriptor becomes the sorted union of member codes and the logic the
// OR-combination of each distinct member expression.
func (m *Merger) mergeCluster(cluster []model.RuleCandidate) mergedCandidate {
	base := cluster[0]
	if len(cluster) == 1 {
		return mergedCandidate{RuleCandidate: base, MergedFrom: 1}
	}

	mutationSet := make(map[string]struct{})
	var logicParts []string
	logicSeen := make(map[string]bool)
	claimSet := make(map[int]struct{})
	allNeedReview := true

	for _, r := range cluster {
		for tok := range r.MutationSet() {
			mutationSet[tok] = struct{}{}
		}
		if logic := strings.TrimSpace(r.MutationLogic); logic != "" && !logicSeen[logic] {
			logicSeen[logic] = true
			logicParts = append(logicParts, logic)
		}
		for _, n := range r.Provenance.ClaimNumbers {
			claimSet[n] = struct{}{}
		}
		if !r.NeedsReview {
			allNeedReview = false
		}
	}

	mutations := make([]string, 0, len(mutationSet))
	for tok := range mutationSet {
		mutations = append(mutations, tok)
	}
	sort.Strings(mutations)
	base.Mutation = strings.Join(mutations, "/")

	if len(logicParts) > 1 {
		wrapped := make([]string, len(logicParts))
		for i, p := range logicParts {
			wrapped[i] = "(" + p + ")"
		}
		base.MutationLogic = strings.Join(wrapped, " | ")
	}

	claims := make([]int, 0, len(claimSet))
	for n := range claimSet {
		claims = append(claims, n)
	}
	sort.Ints(claims)
	base.Provenance.ClaimNumbers = claims
	base.NeedsReview = allNeedReview
	base.Comment = fmt.Sprintf("merged %d similar rules", len(cluster))

	return mergedCandidate{RuleCandidate: base, MergedFrom: len(cluster)}
}

// priorityScore ranks a rule by protection strength and specificity.
func priorityScore(r model.RuleCandidate) float64 {
	var score float64
	switch r.Kind {
	case model.RuleIdentical:
		score = 10
	case model.RuleIdentityThreshold:
		score = 8
	case model.RuleConditional:
		score = 6
	default:
		score = 3
	}

	score += minF(float64(len(r.MutationSet()))*0.5, 3)

	ops := strings.Count(r.MutationLogic, "&") +
		strings.Count(r.MutationLogic, "|") +
		strings.Count(r.MutationLogic, "(")
	score += minF(float64(ops)*0.2, 2)

	if len(r.Statement) > 30 {
		score++
	}

	return score
}

// qualityScore checks field completeness and well-formedness, in [0,1].
func qualityScore(r model.RuleCandidate) float64 {
	var score float64

	if strings.TrimSpace(r.WildType) != "" {
		score += 0.2
	}
	if strings.TrimSpace(string(r.Kind)) != "" {
		score += 0.2
	}
	if strings.TrimSpace(r.Statement) != "" {
		score += 0.2
	}

	if strings.ContainsAny(r.MutationLogic, "&|(") {
		score += 0.2
	}

	if mutation := strings.TrimSpace(r.Mutation); mutation != "" && !r.NeedsReview {
		score += 0.2
	}

	if score > 1 {
		score = 1
	}
	return score
}

// summarize fills in the summary, quality and stats blocks.
func (m *Merger) summarize(set *model.MergedRuleSet, outcomes []*model.BatchOutcome) {
	summary := model.AnalysisSummary{
		TotalBatches: len(outcomes),
		RuleKinds:    make(map[model.RuleKind]int),
	}

	analyzed := make(map[int]struct{})
	covered := make(map[int]struct{})
	var confidenceSum float64
	var rawRules int

	for _, out := range outcomes {
		for _, n := range out.ClaimNumbers {
			analyzed[n] = struct{}{}
		}
		rawRules += len(out.Rules)
		if out.Failed() {
			summary.FailedBatches++
		} else {
			summary.SuccessfulBatches++
			confidenceSum += out.Confidence
		}
	}
	if summary.TotalBatches > 0 {
		summary.SuccessRate = float64(summary.SuccessfulBatches) / float64(summary.TotalBatches)
	}
	if summary.SuccessfulBatches > 0 {
		summary.AvgConfidence = confidenceSum / float64(summary.SuccessfulBatches)
	}

	wildTypes := make(map[string]struct{})
	var qualitySum float64
	quality := model.QualityMetrics{}

	for _, r := range set.Rules {
		summary.RuleKinds[r.Kind]++
		if r.WildType != "" {
			wildTypes[r.WildType] = struct{}{}
		}
		qualitySum += r.QualityScore
		if r.QualityScore > 0.8 {
			quality.HighQualityRules++
		}
		if r.QualityScore < 0.5 {
			quality.LowQualityRules++
		}
		// Placeholder rules mark a claim for review; they do not cover it.
		if !r.NeedsReview {
			for _, n := range r.Provenance.ClaimNumbers {
				covered[n] = struct{}{}
			}
		}
	}

	for wt := range wildTypes {
		summary.WildTypesCovered = append(summary.WildTypesCovered, wt)
	}
	sort.Strings(summary.WildTypesCovered)

	coveredCount := 0
	for n := range covered {
		if _, ok := analyzed[n]; ok {
			coveredCount++
		}
	}
	if len(analyzed) > 0 {
		quality.Completeness = float64(coveredCount) / float64(len(analyzed))
		quality.RulesPerClaim = float64(len(set.Rules)) / float64(len(analyzed))
	}
	if len(set.Rules) > 0 {
		quality.AvgQualityScore = qualitySum / float64(len(set.Rules))
	}

	set.ClaimsAnalyzed = len(analyzed)
	set.Summary = summary
	set.Quality = quality
	set.Stats = processingStats(outcomes, rawRules)
}

func processingStats(outcomes []*model.BatchOutcome, rawRules int) model.ProcessingStats {
	stats := model.ProcessingStats{}

	var claims int
	for _, out := range outcomes {
		claims += len(out.ClaimNumbers)
		if out.Failed() {
			stats.ErrorCount++
			stats.Errors = append(stats.Errors, out.ErrorMessage)
		}
		if out.Elapsed <= 0 {
			continue
		}
		stats.TotalTime += out.Elapsed
		if stats.MinBatchTime == 0 || out.Elapsed < stats.MinBatchTime {
			stats.MinBatchTime = out.Elapsed
		}
		if out.Elapsed > stats.MaxBatchTime {
			stats.MaxBatchTime = out.Elapsed
		}
	}

	if len(outcomes) > 0 {
		stats.AvgBatchTime = stats.TotalTime / time.Duration(len(outcomes))
	}
	if secs := stats.TotalTime.Seconds(); secs > 0 {
		stats.ClaimsPerSecond = float64(claims) / secs
		stats.RulesPerSecond = float64(rawRules) / secs
	}

	return stats
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
