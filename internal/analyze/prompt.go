package analyze

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avolkov/patclaim/internal/model"
)

// maximum calibration rules embedded in a prompt
const maxCalibrationRules = 3

// promptSegment is the serialized view of a claim segment sent to the
// provider. Provenance bookkeeping (sequence context windows) is stripped to
// keep the payload bounded.
type promptSegment struct {
	ClaimNumber     int      `json:"claim_number"`
	Text            string   `json:"text"`
	ClaimKind       string   `json:"claim_kind"`
	DependencyRefs  []int    `json:"dependency_refs,omitempty"`
	SequenceIDs     []string `json:"sequence_ids,omitempty"`
	MutationTokens  []string `json:"mutation_tokens,omitempty"`
	ComplexityScore float64  `json:"complexity_score"`
}

type promptPayload struct {
	Claims  []promptSegment `json:"claims"`
	Summary promptSummary   `json:"batch_summary"`
}

type promptSummary struct {
	TotalClaims     int        `json:"total_claims"`
	ComplexityRange [2]float64 `json:"complexity_range"`
	SequenceIDCount int        `json:"sequence_id_count"`
	Independent     int        `json:"independent_claims"`
	Dependent       int        `json:"dependent_claims"`
}

// BuildPrompt constructs the per-batch analysis prompt: batch metadata, a
// small calibration sample of known rules, and the serialized segments.
func BuildPrompt(batch model.AnalysisBatch, calibration []model.RuleCandidate) string {
	lo, hi := batch.ComplexityRange()
	indep, dep := batch.KindCounts()

	segments := make([]promptSegment, len(batch.Segments))
	seqIDs := make(map[string]struct{})
	for i, seg := range batch.Segments {
		ids := make([]string, len(seg.SequenceRefs))
		for j, ref := range seg.SequenceRefs {
			ids[j] = ref.ID
			seqIDs[ref.ID] = struct{}{}
		}
		segments[i] = promptSegment{
			ClaimNumber:     seg.ClaimNumber,
			Text:            seg.RawText,
			ClaimKind:       string(seg.Kind),
			DependencyRefs:  seg.DependencyRefs,
			SequenceIDs:     ids,
			MutationTokens:  seg.MutationTokens,
			ComplexityScore: seg.ComplexityScore,
		}
	}

	payload := promptPayload{
		Claims: segments,
		Summary: promptSummary{
			TotalClaims:     len(batch.Segments),
			ComplexityRange: [2]float64{lo, hi},
			SequenceIDCount: len(seqIDs),
			Independent:     indep,
			Dependent:       dep,
		},
	}
	payloadJSON, _ := json.MarshalIndent(payload, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze a batch of %d patent claims and extract the protection rules they establish.\n\n", len(batch.Segments))

	b.WriteString("## Batch characteristics\n")
	fmt.Fprintf(&b, "- Claim numbers: %v\n", batch.ClaimNumbers())
	fmt.Fprintf(&b, "- Complexity range: %.2f - %.2f\n", lo, hi)
	fmt.Fprintf(&b, "- Independent claims: %d\n", indep)
	fmt.Fprintf(&b, "- Dependent claims: %d\n\n", dep)

	b.WriteString(`## Requirements
For every claim, identify:
1. Protection scope: the wild-type sequence (wild_type), the protection kind
   (identical / identity_threshold / conditional), and the mutation pattern.
2. Logical expressions: mutation logic using &, |, ! and parentheses over
   standard mutation codes (e.g. Y178A), and identity logic as
   "seq_identity >= X%".
3. One to three concrete rules per claim, in this JSON shape:

` + "```json" + `
{
  "rules": [
    {
      "wild_type": "SEQ_ID_NO_1",
      "rule": "identity_threshold",
      "mutation": "Y178A/F186R",
      "mutation_logic": "(Y178A & F186R)",
      "identity_logic": "seq_identity >= 90%",
      "statement": "protection statement",
      "comment": "strategy note"
    }
  ]
}
` + "```" + `

`)

	b.WriteString("## Calibration sample\n")
	if len(calibration) == 0 {
		b.WriteString("(no previously known rules)\n\n")
	} else {
		sample := calibration
		if len(sample) > maxCalibrationRules {
			sample = sample[:maxCalibrationRules]
		}
		sampleJSON, _ := json.MarshalIndent(sample, "", "  ")
		b.Write(sampleJSON)
		b.WriteString("\n\n")
	}

	b.WriteString(`## Reminders
- Every claim must yield at least one concrete, actionable rule.
- Complex claims should yield several rules covering their protection layers.
- Do not emit empty "analysis completed" style rules.
- Focus on sequence protection scope only.

## Analysis data
`)
	b.Write(payloadJSON)
	b.WriteString("\n")

	return b.String()
}
