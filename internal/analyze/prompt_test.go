package analyze

import (
	"strings"
	"testing"

	"github.com/avolkov/patclaim/internal/model"
)

func TestBuildPromptIncludesClaimData(t *testing.T) {
	prompt := BuildPrompt(testBatch(), nil)

	for _, want := range []string{
		"2 patent claims",
		"SEQ_ID_NO_1",
		"Y178A",
		"Independent claims: 1",
		"Dependent claims: 1",
		"no previously known rules",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	batch := testBatch()
	first := BuildPrompt(batch, nil)
	for i := 0; i < 3; i++ {
		if BuildPrompt(batch, nil) != first {
			t.Fatal("prompt differs across runs for the same batch")
		}
	}
}

func TestBuildPromptBoundsCalibrationSample(t *testing.T) {
	calibration := make([]model.RuleCandidate, 10)
	for i := range calibration {
		calibration[i] = model.RuleCandidate{
			WildType:  "SEQ_ID_NO_9",
			Kind:      model.RuleIdentical,
			Statement: "known rule",
		}
	}

	prompt := BuildPrompt(testBatch(), calibration)
	if got := strings.Count(prompt, "SEQ_ID_NO_9"); got != maxCalibrationRules {
		t.Errorf("calibration sample has %d entries, want %d", got, maxCalibrationRules)
	}
}

func TestBuildPromptStripsSequenceContext(t *testing.T) {
	batch := model.AnalysisBatch{
		ID: 0,
		Segments: []model.ClaimSegment{{
			ClaimNumber: 1,
			RawText:     "A polypeptide of SEQ ID NO: 1.",
			Kind:        model.ClaimIndependent,
			SequenceRefs: []model.SequenceRef{
				{ID: "SEQ_ID_NO_1", Context: "UNIQUE_CONTEXT_MARKER"},
			},
			ComplexityScore: 1.2,
		}},
	}

	if strings.Contains(BuildPrompt(batch, nil), "UNIQUE_CONTEXT_MARKER") {
		t.Error("sequence context window leaked into the prompt")
	}
}
