package segment

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/avolkov/patclaim/internal/model"
	"github.com/avolkov/patclaim/internal/util"
)

// claim boundaries are a leading "number + delimiter" pattern
var boundaryRE = regexp.MustCompile(`(\d+)\s*[.、．]\s+`)

// back-reference phrases that make a claim dependent
var dependentPrefixes = []string{
	"根据权利要求",
	"according to claim",
	"of claim",
}

// Segmenter splits raw claim text into typed claim segments with extracted
// structural metadata.
type Segmenter struct {
	cfg model.SegmentConfig
	log *zap.Logger
}

// NewSegmenter creates a segmenter. A nil logger disables logging.
func NewSegmenter(cfg model.SegmentConfig, logger *zap.Logger) *Segmenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Segmenter{cfg: cfg, log: logger}
}

// Segment splits the claims block into claim segments. Slices without an
// extractable claim number, and duplicated claim numbers, are dropped with a
// warning; segmentation itself never fails.
func (s *Segmenter) Segment(raw string) ([]model.ClaimSegment, []string) {
	text := util.NormalizeClaims(raw)

	var segments []model.ClaimSegment
	var warnings []string
	seen := make(map[int]bool)

	matches := boundaryRE.FindAllStringSubmatchIndex(text, -1)
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		numText := text[m[2]:m[3]]
		body := strings.TrimSpace(text[m[1]:end])
		if body == "" {
			continue
		}

		num, err := strconv.Atoi(numText)
		if err != nil || num <= 0 {
			warnings = append(warnings, fmt.Sprintf("claim slice %q: no extractable claim number, dropped", truncate(body, 40)))
			s.log.Warn("dropping claim slice without claim number", zap.String("number", numText))
			continue
		}
		if seen[num] {
			warnings = append(warnings, fmt.Sprintf("claim %d: duplicate claim number, dropped", num))
			s.log.Warn("dropping duplicate claim number", zap.Int("claim", num))
			continue
		}
		seen[num] = true

		segments = append(segments, s.parseClaim(num, body))
	}

	s.log.Info("segmented claims",
		zap.Int("segments", len(segments)),
		zap.Int("dropped", len(warnings)))

	return segments, warnings
}

// parseClaim derives the structural metadata of one claim from a single
// tokenizer pass.
func (s *Segmenter) parseClaim(num int, body string) model.ClaimSegment {
	tokens := Tokenize(body)

	var (
		deps        []int
		seqRefs     []model.SequenceRef
		mutations   []string
		connectives int
		percentages int
		dependent   bool
	)

	for _, tok := range tokens {
		switch tok.Type {
		case TokenDependency:
			deps = append(deps, expandNumbers(tok.Text)...)
			if isBackReference(tok.Text) {
				dependent = true
			}
		case TokenSeqRef:
			for _, n := range expandNumbers(tok.Text) {
				seqRefs = append(seqRefs, model.SequenceRef{
					ID:      fmt.Sprintf("SEQ_ID_NO_%d", n),
					Context: contextWindow(body, tok.Pos, tok.End, s.cfg.ContextWindow),
				})
			}
		case TokenMutationCombo:
			mutations = append(mutations, strings.Split(tok.Text, "/")...)
		case TokenMutation:
			mutations = append(mutations, tok.Text)
		case TokenMutationWildcard:
			// Position wildcards normalize to an X substitution so the
			// descriptor keeps the letter+digits+letter shape.
			mutations = append(mutations, tok.Text[:len(tok.Text)-1]+"X")
		case TokenPercentage:
			percentages++
		case TokenConnective:
			connectives++
		}
	}

	kind := model.ClaimIndependent
	if dependent {
		kind = model.ClaimDependent
	}

	deps = uniqueSortedInts(deps)
	mutations = uniqueSortedStrings(mutations)
	seqRefs = dedupeSeqRefs(seqRefs)

	return model.ClaimSegment{
		ClaimNumber:    num,
		RawText:        body,
		Kind:           kind,
		DependencyRefs: deps,
		SequenceRefs:   seqRefs,
		MutationTokens: mutations,
		ComplexityScore: s.complexity(
			len(body), len(seqRefs), len(mutations), connectives, percentages),
	}
}

// complexity is 1.0 plus weighted structural factors, capped at 10.0.
// Monotone in every input for non-negative weights.
func (s *Segmenter) complexity(length, refs, mutations, connectives, percentages int) float64 {
	score := 1.0
	score += math.Min(float64(length)/s.cfg.LengthDivisor, s.cfg.LengthCap)
	score += float64(refs) * s.cfg.SeqRefWeight
	score += float64(mutations) * s.cfg.MutationWeight
	score += float64(connectives) * s.cfg.ConnectiveWeight
	score += float64(percentages) * s.cfg.PercentWeight
	return math.Min(score, 10.0)
}

func isBackReference(text string) bool {
	lower := strings.ToLower(text)
	for _, prefix := range dependentPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func contextWindow(body string, pos, end, window int) string {
	if window <= 0 {
		return ""
	}
	lo := pos - window
	if lo < 0 {
		lo = 0
	}
	hi := end + window
	if hi > len(body) {
		hi = len(body)
	}
	return strings.TrimSpace(body[lo:hi])
}

func uniqueSortedStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func dedupeSeqRefs(refs []model.SequenceRef) []model.SequenceRef {
	if len(refs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(refs))
	var out []model.SequenceRef
	for _, r := range refs {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
