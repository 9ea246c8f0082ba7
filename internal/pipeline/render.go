package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/avolkov/patclaim/internal/model"
)

// Renderer writes the output document and the human-facing report.
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the output document to a file.
func (r *Renderer) RenderJSON(doc *model.Document, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// RenderMarkdown writes the detailed analysis report to a file.
func (r *Renderer) RenderMarkdown(set *model.MergedRuleSet, path string) error {
	if err := os.WriteFile(path, []byte(r.markdown(set)), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func (r *Renderer) markdown(set *model.MergedRuleSet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Protection Rule Analysis: %s\n\n", set.PatentNumber)

	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "- Patent: %s\n", set.PatentNumber)
	fmt.Fprintf(&b, "- Run: %s\n", set.RunID)
	fmt.Fprintf(&b, "- Claims analyzed: %d\n", set.ClaimsAnalyzed)
	fmt.Fprintf(&b, "- Rules extracted: %d\n", len(set.Rules))
	fmt.Fprintf(&b, "- Completeness: %.0f%%\n", set.Quality.Completeness*100)
	fmt.Fprintf(&b, "- Average confidence: %.2f\n\n", set.Summary.AvgConfidence)

	b.WriteString("## Processing\n\n")
	fmt.Fprintf(&b, "- Batches: %d (%d ok, %d degraded)\n",
		set.Summary.TotalBatches, set.Summary.SuccessfulBatches, set.Summary.FailedBatches)
	fmt.Fprintf(&b, "- Total analysis time: %s\n", set.Stats.TotalTime.Round(time.Millisecond))
	fmt.Fprintf(&b, "- Throughput: %.2f claims/s, %.2f rules/s\n\n",
		set.Stats.ClaimsPerSecond, set.Stats.RulesPerSecond)

	if len(set.Stats.Errors) > 0 {
		b.WriteString("### Degradations\n\n")
		for _, e := range set.Stats.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Rules\n\n")
	b.WriteString("| # | Wild type | Kind | Mutation | Logic | Priority | Quality |\n")
	b.WriteString("|---|-----------|------|----------|-------|----------|--------|\n")
	for i, rule := range set.Rules {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %.1f | %.2f |\n",
			i+1, orDash(rule.WildType), rule.Kind, orDash(rule.Mutation),
			orDash(rule.MutationLogic), rule.PriorityScore, rule.QualityScore)
	}
	b.WriteString("\n")

	needsReview := 0
	for _, rule := range set.Rules {
		if rule.NeedsReview {
			needsReview++
		}
	}
	if needsReview > 0 {
		fmt.Fprintf(&b, "**%d rule(s) need manual review.**\n\n", needsReview)
	}

	if len(set.Log) > 0 {
		b.WriteString("## Processing log\n\n")
		for _, entry := range set.Log {
			fmt.Fprintf(&b, "- [%s] %s\n", entry.Stage, entry.Message)
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		fmt.Fprintf(&b, "---\n*Generated by patclaim at %s*\n",
			time.Now().UTC().Format(time.RFC3339))
	}

	return b.String()
}

// RenderSummary prints a terse result summary.
func (r *Renderer) RenderSummary(w io.Writer, set *model.MergedRuleSet) {
	fmt.Fprintf(w, "\n%s: %d claims -> %d rules", set.PatentNumber, set.ClaimsAnalyzed, len(set.Rules))
	fmt.Fprintf(w, " (completeness %.0f%%, confidence %.2f)\n",
		set.Quality.Completeness*100, set.Summary.AvgConfidence)
	if set.Summary.FailedBatches > 0 {
		fmt.Fprintf(w, "  %d of %d batches degraded to needs-review placeholders\n",
			set.Summary.FailedBatches, set.Summary.TotalBatches)
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
