package model

// ClaimKind distinguishes independent claims from dependent ones
type ClaimKind string

const (
	ClaimIndependent ClaimKind = "independent" // Stands on its own
	ClaimDependent   ClaimKind = "dependent"   // Back-references another claim
)

// SequenceRef is one sequence-identifier reference found in a claim,
// together with a bounded window of surrounding text kept for provenance.
type SequenceRef struct {
	ID      string `json:"id"`                // Normalized identifier (e.g. "SEQ_ID_NO_2")
	Context string `json:"context,omitempty"` // Text window around the mention
}

// ClaimSegment is one legal claim unit with derived structural metadata.
// Segments are created by the segmenter and never mutated afterwards.
type ClaimSegment struct {
	ClaimNumber     int           `json:"claim_number"`
	RawText         string        `json:"raw_text"`
	Kind            ClaimKind     `json:"claim_kind"`
	DependencyRefs  []int         `json:"dependency_refs,omitempty"`  // Sorted, unique
	SequenceRefs    []SequenceRef `json:"sequence_refs,omitempty"`    // Sorted by ID, unique
	MutationTokens  []string      `json:"mutation_tokens,omitempty"`  // Sorted, unique, letter+digits+letter
	ComplexityScore float64       `json:"complexity_score"`           // [1.0, 10.0]
}

// AnalysisBatch is an ordered group of claim segments analyzed in a single
// reasoning invocation. Either the batch respects both the size and
// complexity limits, or it holds exactly one segment whose own score exceeds
// the budget.
type AnalysisBatch struct {
	ID       int            `json:"batch_id"`
	Segments []ClaimSegment `json:"segments"`
}

// ClaimNumbers returns the claim numbers of the batch in order.
func (b AnalysisBatch) ClaimNumbers() []int {
	nums := make([]int, len(b.Segments))
	for i, s := range b.Segments {
		nums[i] = s.ClaimNumber
	}
	return nums
}

// TotalComplexity returns the cumulative complexity score of the batch.
func (b AnalysisBatch) TotalComplexity() float64 {
	var total float64
	for _, s := range b.Segments {
		total += s.ComplexityScore
	}
	return total
}

// ComplexityRange returns the lowest and highest segment scores in the batch.
func (b AnalysisBatch) ComplexityRange() (min, max float64) {
	for i, s := range b.Segments {
		if i == 0 || s.ComplexityScore < min {
			min = s.ComplexityScore
		}
		if s.ComplexityScore > max {
			max = s.ComplexityScore
		}
	}
	return min, max
}

// KindCounts returns the number of independent and dependent claims.
func (b AnalysisBatch) KindCounts() (independent, dependent int) {
	for _, s := range b.Segments {
		if s.Kind == ClaimIndependent {
			independent++
		} else {
			dependent++
		}
	}
	return independent, dependent
}
