package analyze

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/avolkov/patclaim/internal/model"
)

// ParseError means no parsing strategy could make sense of a response.
type ParseError struct {
	Strategies int
	Preview    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no parse strategy succeeded (%d tried); response starts %q", e.Strategies, e.Preview)
}

// ruleJSON is the wire shape of one rule in a provider response.
type ruleJSON struct {
	WildType      string `json:"wild_type"`
	Rule          string `json:"rule"`
	Mutation      string `json:"mutation"`
	MutationLogic string `json:"mutation_logic"`
	IdentityLogic string `json:"identity_logic"`
	Statement     string `json:"statement"`
	Comment       string `json:"comment"`
}

type rulesEnvelope struct {
	Rules []ruleJSON `json:"rules"`
}

var (
	fencedBlockRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	inlineCodeRE  = regexp.MustCompile("`([^`]*)`")
	mutationTokenRE = regexp.MustCompile(`^[A-Za-z]\d+[A-Za-z]$`)
)

// ParseRules turns raw response text into rule candidates, trying three
// strategies in order: direct JSON parse, fenced-code-block stripping, and a
// balanced-brace/bracket scan. Responses that defeat all three produce a
// ParseError; they never panic or abort.
func ParseRules(raw string) ([]model.RuleCandidate, error) {
	// Strategy 1: the response is already a JSON document.
	if rules, ok := decodeRules(raw); ok {
		return rules, nil
	}

	// Strategy 2: strip markdown fences and retry.
	if m := fencedBlockRE.FindStringSubmatch(raw); m != nil {
		if rules, ok := decodeRules(m[1]); ok {
			return rules, nil
		}
	}
	if m := inlineCodeRE.FindStringSubmatch(raw); m != nil {
		if rules, ok := decodeRules(m[1]); ok {
			return rules, nil
		}
	}

	// Strategy 3: scan for the first balanced JSON object or array.
	for _, candidate := range balancedRegions(raw) {
		if rules, ok := decodeRules(candidate); ok {
			return rules, nil
		}
	}

	return nil, &ParseError{Strategies: 3, Preview: preview(raw)}
}

// decodeRules accepts the envelope form {"rules": [...]}, a bare array, or a
// single rule object.
func decodeRules(text string) ([]model.RuleCandidate, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	var envelope rulesEnvelope
	if err := json.Unmarshal([]byte(text), &envelope); err == nil && len(envelope.Rules) > 0 {
		return convertRules(envelope.Rules), true
	}

	var list []ruleJSON
	if err := json.Unmarshal([]byte(text), &list); err == nil && len(list) > 0 {
		return convertRules(list), true
	}

	var single ruleJSON
	if err := json.Unmarshal([]byte(text), &single); err == nil && single != (ruleJSON{}) {
		return convertRules([]ruleJSON{single}), true
	}

	return nil, false
}

func convertRules(in []ruleJSON) []model.RuleCandidate {
	out := make([]model.RuleCandidate, 0, len(in))
	for _, r := range in {
		out = append(out, model.RuleCandidate{
			WildType:      strings.TrimSpace(r.WildType),
			Kind:          classifyRuleKind(r.Rule),
			Mutation:      sanitizeMutation(r.Mutation),
			MutationLogic: strings.TrimSpace(r.MutationLogic),
			IdentityLogic: strings.TrimSpace(r.IdentityLogic),
			Statement:     strings.TrimSpace(r.Statement),
			Comment:       strings.TrimSpace(r.Comment),
		})
	}
	return out
}

// classifyRuleKind maps free-form rule type strings onto the four kinds.
func classifyRuleKind(s string) model.RuleKind {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(lower, "identical"):
		return model.RuleIdentical
	case strings.Contains(lower, "identity"):
		return model.RuleIdentityThreshold
	case strings.Contains(lower, "conditional"):
		return model.RuleConditional
	default:
		return model.RuleUnknown
	}
}

// sanitizeMutation keeps only tokens in the letter+digits+letter shape,
// uppercased, preserving order.
func sanitizeMutation(descriptor string) string {
	var kept []string
	for _, tok := range strings.Split(descriptor, "/") {
		tok = strings.TrimSpace(tok)
		if mutationTokenRE.MatchString(tok) {
			kept = append(kept, strings.ToUpper(tok))
		}
	}
	return strings.Join(kept, "/")
}

// balancedRegions returns every balanced {...} or [...] substring, outermost
// first, quote-aware so braces inside JSON strings do not end a region.
func balancedRegions(text string) []string {
	var regions []string
	regions = append(regions, scanBalanced(text, '{', '}')...)
	regions = append(regions, scanBalanced(text, '[', ']')...)
	return regions
}

func scanBalanced(text string, open, close byte) []string {
	var regions []string
	for i := 0; i < len(text); i++ {
		if text[i] != open {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for j := i; j < len(text); j++ {
			c := text[j]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case open:
				depth++
			case close:
				depth--
				if depth == 0 {
					regions = append(regions, text[i:j+1])
					i = j // Resume after this region
					j = len(text)
				}
			}
		}
	}
	return regions
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
