package model

import (
	"reflect"
	"testing"
)

func TestRuleCandidateSignature(t *testing.T) {
	a := RuleCandidate{WildType: "SEQ_ID_NO_1", Kind: RuleIdentical, Mutation: "Y178A", MutationLogic: "Y178A"}
	b := RuleCandidate{WildType: "SEQ_ID_NO_1", Kind: RuleIdentical, Mutation: "Y178A", MutationLogic: "Y178A",
		Statement: "different statement", Comment: "different comment"}

	// Statement and comment do not participate in identity.
	if a.Signature() != b.Signature() {
		t.Errorf("signatures differ: %q vs %q", a.Signature(), b.Signature())
	}

	c := a
	c.Mutation = "K216Q"
	if a.Signature() == c.Signature() {
		t.Error("different mutations share a signature")
	}

	d := a
	d.Kind = RuleConditional
	if a.Signature() == d.Signature() {
		t.Error("different kinds share a signature")
	}
}

func TestRuleCandidateMutationSet(t *testing.T) {
	r := RuleCandidate{Mutation: "Y178A/K216Q/ Y178A "}
	set := r.MutationSet()

	if len(set) != 2 {
		t.Errorf("mutation set = %v, want 2 entries", set)
	}
	if _, ok := set["Y178A"]; !ok {
		t.Error("Y178A missing from the set")
	}

	if got := (RuleCandidate{}).MutationSet(); len(got) != 0 {
		t.Errorf("empty descriptor produced %v", got)
	}
}

func TestBatchOutcomeFailed(t *testing.T) {
	if (BatchOutcome{}).Failed() {
		t.Error("clean outcome reported as failed")
	}
	if !(BatchOutcome{ErrorMessage: "call failed"}).Failed() {
		t.Error("degraded outcome not reported as failed")
	}
}

func TestAnalysisBatchAccessors(t *testing.T) {
	batch := AnalysisBatch{
		ID: 3,
		Segments: []ClaimSegment{
			{ClaimNumber: 2, Kind: ClaimIndependent, ComplexityScore: 1.5},
			{ClaimNumber: 5, Kind: ClaimDependent, ComplexityScore: 4.0},
			{ClaimNumber: 7, Kind: ClaimDependent, ComplexityScore: 2.5},
		},
	}

	if got := batch.ClaimNumbers(); !reflect.DeepEqual(got, []int{2, 5, 7}) {
		t.Errorf("ClaimNumbers = %v", got)
	}
	if got := batch.TotalComplexity(); got != 8.0 {
		t.Errorf("TotalComplexity = %g", got)
	}
	if lo, hi := batch.ComplexityRange(); lo != 1.5 || hi != 4.0 {
		t.Errorf("ComplexityRange = %g, %g", lo, hi)
	}
	if indep, dep := batch.KindCounts(); indep != 1 || dep != 2 {
		t.Errorf("KindCounts = %d, %d", indep, dep)
	}
}

func TestDocumentFromRuleSet(t *testing.T) {
	set := &MergedRuleSet{
		PatentNumber:   "CN123",
		ClaimsAnalyzed: 3,
		Rules: []MergedRule{
			{
				RuleCandidate: RuleCandidate{
					WildType:  "SEQ_ID_NO_1",
					Kind:      RuleIdentical,
					Mutation:  "Y178A",
					Statement: "exact protection",
				},
				PriorityScore: 11,
				QualityScore:  0.8,
			},
		},
		Summary: AnalysisSummary{AvgConfidence: 0.75},
	}

	doc := DocumentFromRuleSet(set)
	if doc.PatentNumber != "CN123" || doc.Group != 1 {
		t.Errorf("document header = %q group %d", doc.PatentNumber, doc.Group)
	}
	if len(doc.Rules) != 1 || doc.Rules[0].Rule != "identical" {
		t.Errorf("document rules = %+v", doc.Rules)
	}
	if doc.Metadata.TotalRules != 1 || doc.Metadata.ClaimsAnalyzed != 3 {
		t.Errorf("metadata = %+v", doc.Metadata)
	}
	if doc.Metadata.AnalysisConfidence != 0.75 {
		t.Errorf("confidence = %g", doc.Metadata.AnalysisConfidence)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := []func(*Config){
		func(c *Config) { c.Chunk.MaxBatchSize = 0 },
		func(c *Config) { c.Chunk.ComplexityBudget = -1 },
		func(c *Config) { c.Merge.SimilarityThreshold = 1.5 },
		func(c *Config) { c.LLM.MaxRetries = 0 },
		func(c *Config) { c.Concurrency.Workers = 0 },
	}

	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: invalid config accepted", i)
		}
	}
}
