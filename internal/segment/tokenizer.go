package segment

import (
	"regexp"
	"sort"
)

// TokenType identifies which grammar produced a token.
type TokenType int

const (
	TokenSeqRef TokenType = iota
	TokenDependency
	TokenMutationCombo
	TokenMutation
	TokenMutationWildcard
	TokenPercentage
	TokenConnective
)

// Token is one typed match in the claim text.
type Token struct {
	Type TokenType
	Text string
	Pos  int
	End  int
}

// The token grammars, in priority order. The tokenizer makes a single pass
// over the text: matches are consumed leftmost-first, and when two grammars
// match at the same position the one listed earlier wins. Order matters:
// sequence references and claim back-references must be claimed before the
// bare mutation grammar can bite into their digits.
var grammars = []struct {
	typ TokenType
	re  *regexp.Regexp
}{
	{TokenSeqRef, regexp.MustCompile(`(?i)SEQ\s+ID\s+NO[:：.\s]*\d+(?:\s*[‑–-]\s*\d+)?(?:\s*[、，,]\s*\d+)*`)},
	{TokenDependency, regexp.MustCompile(`(?:根据权利要求|权利要求|(?i:according\s+to\s+claims?|of\s+claims?|claims?))\s*\d+(?:\s*[‑–-]\s*\d+)?(?:\s*(?:[、，,]|(?i:or)|(?i:and))\s*\d+)*`)},
	{TokenMutationCombo, regexp.MustCompile(`[A-Z]\d+[A-Z](?:/[A-Z]\d+[A-Z])+`)},
	{TokenMutation, regexp.MustCompile(`[A-Z]\d+[A-Z]`)},
	{TokenMutationWildcard, regexp.MustCompile(`[A-Z]\d+[*?]`)},
	{TokenPercentage, regexp.MustCompile(`\d+(?:\.\d+)?\s*[%％]`)},
	{TokenConnective, regexp.MustCompile(`和/或|以及|任何组合|和|或|\b(?i:and/or|any\s+combination|and|or)\b`)},
}

// Tokenize scans the claim text once and returns all typed tokens in text
// order. Overlapping matches are resolved by position first, grammar
// priority second, so the result is deterministic for a given input.
func Tokenize(text string) []Token {
	type match struct {
		start, end int
		priority   int
	}

	var all []match
	for gi, g := range grammars {
		for _, loc := range g.re.FindAllStringIndex(text, -1) {
			all = append(all, match{start: loc[0], end: loc[1], priority: gi})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].start != all[j].start {
			return all[i].start < all[j].start
		}
		if all[i].end != all[j].end {
			return all[i].end > all[j].end // Longer match first at equal start
		}
		return all[i].priority < all[j].priority
	})

	var tokens []Token
	consumed := 0
	for _, m := range all {
		if m.start < consumed {
			continue
		}
		tokens = append(tokens, Token{
			Type: grammars[m.priority].typ,
			Text: text[m.start:m.end],
			Pos:  m.start,
			End:  m.end,
		})
		consumed = m.end
	}

	return tokens
}

var (
	digitRunRE = regexp.MustCompile(`\d+`)
	rangeRE    = regexp.MustCompile(`(\d+)\s*[‑–-]\s*(\d+)`)
)

// expandNumbers pulls claim or sequence numbers out of a token's text,
// expanding numeric ranges like "1-5" and keeping list members as-is.
func expandNumbers(text string) []int {
	var nums []int

	rest := text
	for {
		loc := rangeRE.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		lo := atoiSafe(rest[loc[2]:loc[3]])
		hi := atoiSafe(rest[loc[4]:loc[5]])
		if lo > 0 && hi >= lo && hi-lo < 1000 {
			for n := lo; n <= hi; n++ {
				nums = append(nums, n)
			}
		}
		rest = rest[:loc[0]] + rest[loc[1]:]
	}

	for _, d := range digitRunRE.FindAllString(rest, -1) {
		if n := atoiSafe(d); n > 0 {
			nums = append(nums, n)
		}
	}

	return uniqueSortedInts(nums)
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
		if n > 1<<30 {
			return 0
		}
	}
	return n
}

func uniqueSortedInts(nums []int) []int {
	if len(nums) == 0 {
		return nil
	}
	sort.Ints(nums)
	out := nums[:1]
	for _, n := range nums[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return out
}
