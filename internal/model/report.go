package model

import "time"

// MergedRuleSet is the final reconciled result for one patent.
type MergedRuleSet struct {
	PatentNumber   string          `json:"patent_number"`
	RunID          string          `json:"run_id"`
	ClaimsAnalyzed int             `json:"claims_analyzed"`
	Rules          []MergedRule    `json:"rules"`
	Summary        AnalysisSummary `json:"summary"`
	Quality        QualityMetrics  `json:"quality"`
	Stats          ProcessingStats `json:"stats"`
	Log            []ProcessLogEntry `json:"log,omitempty"`
}

// AnalysisSummary aggregates batch-level outcomes.
type AnalysisSummary struct {
	TotalBatches     int                `json:"total_batches"`
	SuccessfulBatches int               `json:"successful_batches"`
	FailedBatches    int                `json:"failed_batches"`
	SuccessRate      float64            `json:"success_rate"`
	RuleKinds        map[RuleKind]int   `json:"rule_kinds"`
	WildTypesCovered []string           `json:"wild_types_covered"`
	AvgConfidence    float64            `json:"avg_confidence"`
}

// QualityMetrics carries document-level completeness and rule quality.
type QualityMetrics struct {
	Completeness     float64 `json:"completeness"` // Claims covered / claims analyzed
	RulesPerClaim    float64 `json:"rules_per_claim"`
	AvgQualityScore  float64 `json:"avg_quality_score"`
	HighQualityRules int     `json:"high_quality_rules"` // quality > 0.8
	LowQualityRules  int     `json:"low_quality_rules"`  // quality < 0.5
}

// ProcessingStats reports timing and throughput across batches.
type ProcessingStats struct {
	TotalTime       time.Duration `json:"total_time_ns"`
	AvgBatchTime    time.Duration `json:"avg_batch_time_ns"`
	MinBatchTime    time.Duration `json:"min_batch_time_ns"`
	MaxBatchTime    time.Duration `json:"max_batch_time_ns"`
	ClaimsPerSecond float64       `json:"claims_per_second"`
	RulesPerSecond  float64       `json:"rules_per_second"`
	ErrorCount      int           `json:"error_count"`
	Errors          []string      `json:"errors,omitempty"`
}

// ProcessLogEntry is one recovered degradation surfaced to the caller.
type ProcessLogEntry struct {
	Stage   string    `json:"stage"` // segment, analyze, merge
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Document is the per-patent output consumed by downstream exporters.
type Document struct {
	PatentNumber string         `json:"patent_number"`
	Group        int            `json:"group"`
	Rules        []DocumentRule `json:"rules"`
	Metadata     DocumentMeta   `json:"metadata"`
}

// DocumentRule is the flat rule row of the output document.
type DocumentRule struct {
	WildType      string `json:"wild_type"`
	Rule          string `json:"rule"`
	Mutation      string `json:"mutation"`
	MutationLogic string `json:"mutation_logic"`
	IdentityLogic string `json:"identity_logic"`
	Statement     string `json:"statement"`
	Comment       string `json:"comment"`
}

// DocumentMeta is the output document metadata block.
type DocumentMeta struct {
	TotalRules          int       `json:"total_rules"`
	ClaimsAnalyzed      int       `json:"claims_analyzed"`
	ProcessingTimestamp time.Time `json:"processing_timestamp"`
	AnalysisConfidence  float64   `json:"analysis_confidence"`
}

// DocumentFromRuleSet flattens a merged rule set into the output document.
func DocumentFromRuleSet(set *MergedRuleSet) *Document {
	rules := make([]DocumentRule, len(set.Rules))
	for i, r := range set.Rules {
		rules[i] = DocumentRule{
			WildType:      r.WildType,
			Rule:          string(r.Kind),
			Mutation:      r.Mutation,
			MutationLogic: r.MutationLogic,
			IdentityLogic: r.IdentityLogic,
			Statement:     r.Statement,
			Comment:       r.Comment,
		}
	}
	return &Document{
		PatentNumber: set.PatentNumber,
		Group:        1,
		Rules:        rules,
		Metadata: DocumentMeta{
			TotalRules:          len(set.Rules),
			ClaimsAnalyzed:      set.ClaimsAnalyzed,
			ProcessingTimestamp: time.Now().UTC(),
			AnalysisConfidence:  set.Summary.AvgConfidence,
		},
	}
}
