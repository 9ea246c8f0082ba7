package model

import (
	"strings"
	"time"
)

// RuleKind categorizes the protection scope of an extracted rule
type RuleKind string

const (
	RuleIdentical         RuleKind = "identical"          // Protects the exact sequence
	RuleIdentityThreshold RuleKind = "identity_threshold" // Protects above a % identity
	RuleConditional       RuleKind = "conditional"        // Protection tied to conditions
	RuleUnknown           RuleKind = "unknown"            // Could not be classified
)

// Provenance records where a rule candidate came from.
type Provenance struct {
	BatchID      int   `json:"batch_id"`
	ClaimNumbers []int `json:"claim_numbers,omitempty"`
}

// RuleCandidate is one rule fragment extracted from a batch analysis.
// Fragments are partial and unreliable until the merger reconciles them.
type RuleCandidate struct {
	WildType      string     `json:"wild_type"`                // Baseline reference sequence
	Kind          RuleKind   `json:"rule"`                     // Protection scope
	Mutation      string     `json:"mutation,omitempty"`       // Slash-joined mutation codes
	MutationLogic string     `json:"mutation_logic,omitempty"` // Boolean expression over codes
	IdentityLogic string     `json:"identity_logic,omitempty"` // e.g. "seq_identity >= 80%"
	Statement     string     `json:"statement,omitempty"`      // Free-text protection statement
	Comment       string     `json:"comment,omitempty"`
	NeedsReview   bool       `json:"needs_review,omitempty"` // Fallback placeholder marker
	Provenance    Provenance `json:"provenance"`
}

// Signature returns the deduplication key. Two candidates with the same
// signature describe the same rule and only the first occurrence is kept.
func (r RuleCandidate) Signature() string {
	fields := []string{
		strings.TrimSpace(r.WildType),
		strings.TrimSpace(string(r.Kind)),
		strings.TrimSpace(r.Mutation),
		strings.TrimSpace(r.MutationLogic),
	}
	return strings.Join(fields, "|")
}

// MutationSet returns the individual mutation codes of the descriptor.
func (r RuleCandidate) MutationSet() map[string]struct{} {
	set := make(map[string]struct{})
	for _, m := range strings.Split(r.Mutation, "/") {
		m = strings.TrimSpace(m)
		if m != "" {
			set[m] = struct{}{}
		}
	}
	return set
}

// BatchOutcome is the per-batch analysis result. The orchestrator produces
// one for every batch, including batches whose call or parse failed.
type BatchOutcome struct {
	BatchID      int             `json:"batch_id"`
	ClaimNumbers []int           `json:"claim_numbers"`
	Rules        []RuleCandidate `json:"rules"`
	Confidence   float64         `json:"confidence"` // [0,1]
	Elapsed      time.Duration   `json:"elapsed_ns"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Failed reports whether the batch degraded to fallback output.
func (o BatchOutcome) Failed() bool {
	return o.ErrorMessage != ""
}

// MergedRule is a deduplicated, scored rule in the final set.
type MergedRule struct {
	RuleCandidate
	PriorityScore float64 `json:"priority_score"`
	QualityScore  float64 `json:"quality_score"` // [0,1]
	MergedFrom    int     `json:"merged_from"`   // Number of candidates folded in
}
