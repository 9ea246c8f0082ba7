package merge

import (
	"strings"
	"testing"
	"time"

	"github.com/avolkov/patclaim/internal/model"
)

func newTestMerger() *Merger {
	return NewMerger(model.DefaultConfig().Merge, nil)
}

func candidate(wildType string, kind model.RuleKind, mutation string, claims ...int) model.RuleCandidate {
	return model.RuleCandidate{
		WildType:   wildType,
		Kind:       kind,
		Mutation:   mutation,
		Statement:  "protection statement for " + wildType,
		Provenance: model.Provenance{ClaimNumbers: claims},
	}
}

func outcome(id int, claims []int, rules ...model.RuleCandidate) *model.BatchOutcome {
	return &model.BatchOutcome{
		BatchID:      id,
		ClaimNumbers: claims,
		Rules:        rules,
		Confidence:   0.8,
		Elapsed:      10 * time.Millisecond,
	}
}

func TestMergeDeduplicatesExactRepeats(t *testing.T) {
	m := newTestMerger()

	r := candidate("SEQ_ID_NO_1", model.RuleIdentical, "Y178A", 1)
	set := m.Merge("CN123", []*model.BatchOutcome{
		outcome(0, []int{1}, r),
		outcome(1, []int{2}, r),
	})

	if len(set.Rules) != 1 {
		t.Fatalf("expected 1 rule after dedup, got %d", len(set.Rules))
	}
}

func TestMergeDedupIsIdempotent(t *testing.T) {
	m := newTestMerger()

	rules := []model.RuleCandidate{
		candidate("SEQ_ID_NO_1", model.RuleIdentical, "Y178A", 1),
		candidate("SEQ_ID_NO_2", model.RuleConditional, "K216Q", 2),
	}

	once := m.deduplicate(rules)
	twice := m.deduplicate(once)
	if len(once) != len(twice) {
		t.Errorf("dedup not idempotent: %d then %d", len(once), len(twice))
	}
}

func TestMergeSimilarAboveThreshold(t *testing.T) {
	m := newTestMerger()

	// Jaccard 3/4 = 0.75 > 0.6: the rules fold into one.
	a := candidate("SEQ_ID_NO_1", model.RuleIdentical, "A1B/C2D/E3F/G4H", 1)
	b := candidate("SEQ_ID_NO_1", model.RuleIdentical, "A1B/C2D/E3F", 2)

	set := m.Merge("CN123", []*model.BatchOutcome{outcome(0, []int{1, 2}, a, b)})
	if len(set.Rules) != 1 {
		t.Fatalf("expected 1 merged rule, got %d", len(set.Rules))
	}

	merged := set.Rules[0]
	if merged.Mutation != "A1B/C2D/E3F/G4H" {
		t.Errorf("merged mutation = %q, want sorted union", merged.Mutation)
	}
	if merged.MergedFrom != 2 {
		t.Errorf("MergedFrom = %d, want 2", merged.MergedFrom)
	}
	if merged.Provenance.ClaimNumbers[0] != 1 || merged.Provenance.ClaimNumbers[1] != 2 {
		t.Errorf("merged claims = %v, want [1 2]", merged.Provenance.ClaimNumbers)
	}
}

func TestMergeSimilarAtThresholdNotMerged(t *testing.T) {
	m := newTestMerger()

	// Jaccard exactly 1/2 = 0.5: below the strict 0.6 threshold, kept apart.
	a := candidate("SEQ_ID_NO_1", model.RuleIdentical, "A1B/C2D", 1)
	b := candidate("SEQ_ID_NO_1", model.RuleIdentical, "A1B", 2)

	set := m.Merge("CN123", []*model.BatchOutcome{outcome(0, []int{1, 2}, a, b)})
	if len(set.Rules) != 2 {
		t.Fatalf("expected 2 rules at Jaccard 0.5, got %d", len(set.Rules))
	}
}

func TestMergeDifferentKindsNeverMerge(t *testing.T) {
	m := newTestMerger()

	a := candidate("SEQ_ID_NO_1", model.RuleIdentical, "A1B/C2D", 1)
	b := candidate("SEQ_ID_NO_1", model.RuleConditional, "A1B/C2D", 2)

	set := m.Merge("CN123", []*model.BatchOutcome{outcome(0, []int{1, 2}, a, b)})
	if len(set.Rules) != 2 {
		t.Fatalf("identical mutation sets of different kinds merged: %d rules", len(set.Rules))
	}
}

func TestMergeCombinesLogicWithOr(t *testing.T) {
	m := newTestMerger()

	a := candidate("SEQ_ID_NO_1", model.RuleIdentical, "A1B/C2D/E3F", 1)
	a.MutationLogic = "A1B & C2D"
	b := candidate("SEQ_ID_NO_1", model.RuleIdentical, "A1B/C2D/E3F/G4H", 2)
	b.MutationLogic = "E3F"

	set := m.Merge("CN123", []*model.BatchOutcome{outcome(0, []int{1, 2}, a, b)})
	if len(set.Rules) != 1 {
		t.Fatalf("expected 1 merged rule, got %d", len(set.Rules))
	}
	if got := set.Rules[0].MutationLogic; got != "(A1B & C2D) | (E3F)" {
		t.Errorf("merged logic = %q", got)
	}
}

func TestMergePriorityOrdering(t *testing.T) {
	m := newTestMerger()

	rules := []model.RuleCandidate{
		candidate("SEQ_ID_NO_4", model.RuleUnknown, "", 4),
		candidate("SEQ_ID_NO_3", model.RuleConditional, "", 3),
		candidate("SEQ_ID_NO_1", model.RuleIdentical, "", 1),
		candidate("SEQ_ID_NO_2", model.RuleIdentityThreshold, "", 2),
	}

	set := m.Merge("CN123", []*model.BatchOutcome{outcome(0, []int{1, 2, 3, 4}, rules...)})
	if len(set.Rules) != 4 {
		t.Fatalf("expected 4 rules, got %d", len(set.Rules))
	}

	wantKinds := []model.RuleKind{
		model.RuleIdentical, model.RuleIdentityThreshold, model.RuleConditional, model.RuleUnknown,
	}
	for i, want := range wantKinds {
		if set.Rules[i].Kind != want {
			t.Errorf("position %d: kind %s, want %s", i, set.Rules[i].Kind, want)
		}
	}
	for i := 1; i < len(set.Rules); i++ {
		if set.Rules[i].PriorityScore > set.Rules[i-1].PriorityScore {
			t.Errorf("priority not descending at %d: %g > %g",
				i, set.Rules[i].PriorityScore, set.Rules[i-1].PriorityScore)
		}
	}
}

func TestQualityScoreInRange(t *testing.T) {
	candidates := []model.RuleCandidate{
		{},
		candidate("SEQ_ID_NO_1", model.RuleIdentical, "Y178A", 1),
		{
			WildType:      "SEQ_ID_NO_1",
			Kind:          model.RuleIdentical,
			Mutation:      "Y178A/K216Q",
			MutationLogic: "Y178A & K216Q",
			Statement:     "full statement",
		},
	}

	for _, r := range candidates {
		q := qualityScore(r)
		if q < 0 || q > 1 {
			t.Errorf("qualityScore(%+v) = %g out of [0,1]", r, q)
		}
	}

	if qualityScore(candidates[0]) >= qualityScore(candidates[2]) {
		t.Error("empty rule should score below a complete rule")
	}
}

func TestMergeDeterministicAcrossOutcomeOrder(t *testing.T) {
	m := newTestMerger()

	a := candidate("SEQ_ID_NO_1", model.RuleIdentical, "Y178A", 1)
	b := candidate("SEQ_ID_NO_2", model.RuleConditional, "K216Q", 2)

	forward := m.Merge("CN123", []*model.BatchOutcome{
		outcome(0, []int{1}, a), outcome(1, []int{2}, b),
	})
	reversed := m.Merge("CN123", []*model.BatchOutcome{
		outcome(1, []int{2}, b), outcome(0, []int{1}, a),
	})

	if len(forward.Rules) != len(reversed.Rules) {
		t.Fatalf("rule counts differ: %d vs %d", len(forward.Rules), len(reversed.Rules))
	}
	for i := range forward.Rules {
		if forward.Rules[i].Signature() != reversed.Rules[i].Signature() {
			t.Errorf("rule %d differs across completion orders", i)
		}
	}
}

func TestMergeCompletenessExcludesFallbackRules(t *testing.T) {
	m := newTestMerger()

	good := candidate("SEQ_ID_NO_1", model.RuleIdentical, "Y178A", 1)

	placeholder := model.RuleCandidate{
		WildType:    "SEQ_ID_NO_1",
		Kind:        model.RuleUnknown,
		Statement:   "Claim 2 needs review: automated analysis did not complete",
		NeedsReview: true,
		Provenance:  model.Provenance{BatchID: 1, ClaimNumbers: []int{2}},
	}

	set := m.Merge("CN123", []*model.BatchOutcome{
		outcome(0, []int{1}, good),
		{
			BatchID:      1,
			ClaimNumbers: []int{2},
			Rules:        []model.RuleCandidate{placeholder},
			Confidence:   0.1,
			Elapsed:      5 * time.Millisecond,
			ErrorMessage: "call failed: service unavailable",
		},
	})

	if set.ClaimsAnalyzed != 2 {
		t.Errorf("claims analyzed = %d, want 2", set.ClaimsAnalyzed)
	}
	if set.Quality.Completeness >= 1.0 {
		t.Errorf("completeness = %g, must stay below 1.0 with a degraded batch", set.Quality.Completeness)
	}
	if set.Quality.Completeness != 0.5 {
		t.Errorf("completeness = %g, want 0.5", set.Quality.Completeness)
	}
	if set.Summary.FailedBatches != 1 || set.Summary.SuccessfulBatches != 1 {
		t.Errorf("batch counts = %d ok / %d failed",
			set.Summary.SuccessfulBatches, set.Summary.FailedBatches)
	}
	if len(set.Stats.Errors) != 1 || !strings.Contains(set.Stats.Errors[0], "call failed") {
		t.Errorf("stats errors = %v", set.Stats.Errors)
	}
}

func TestMergeSummaryFields(t *testing.T) {
	m := newTestMerger()

	set := m.Merge("CN999", []*model.BatchOutcome{
		outcome(0, []int{1, 2},
			candidate("SEQ_ID_NO_1", model.RuleIdentical, "Y178A", 1),
			candidate("SEQ_ID_NO_2", model.RuleConditional, "K216Q", 2)),
	})

	if set.PatentNumber != "CN999" {
		t.Errorf("patent number = %q", set.PatentNumber)
	}
	if set.Summary.TotalBatches != 1 || set.Summary.SuccessRate != 1.0 {
		t.Errorf("summary = %+v", set.Summary)
	}
	if len(set.Summary.WildTypesCovered) != 2 {
		t.Errorf("wild types covered = %v", set.Summary.WildTypesCovered)
	}
	if set.Summary.RuleKinds[model.RuleIdentical] != 1 {
		t.Errorf("rule kinds = %v", set.Summary.RuleKinds)
	}
	if set.Stats.TotalTime <= 0 {
		t.Errorf("total time = %v", set.Stats.TotalTime)
	}
	if set.Quality.Completeness != 1.0 {
		t.Errorf("completeness = %g, want 1.0", set.Quality.Completeness)
	}
}

func TestMergeEmptyOutcomes(t *testing.T) {
	m := newTestMerger()

	set := m.Merge("CN123", nil)
	if set == nil {
		t.Fatal("Merge(nil) returned nil")
	}
	if len(set.Rules) != 0 || set.ClaimsAnalyzed != 0 {
		t.Errorf("empty merge produced rules=%d claims=%d", len(set.Rules), set.ClaimsAnalyzed)
	}
}
