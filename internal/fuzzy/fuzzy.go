// Package fuzzy scores the similarity of two strings on a 0-100 scale using a
// closed set of methods modeled on the classic fuzzywuzzy family. The base
// metric is normalized Levenshtein similarity; SequenceMatcher is a
// longest-common-subsequence ratio, the most precise and the most expensive.
package fuzzy

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
)

// Method selects a similarity algorithm. The set is closed: dispatch happens
// through Score, not through runtime name lookup. String names exist only at
// configuration boundaries via ParseMethod.
type Method int

const (
	// Ratio is normalized edit-distance similarity over the full strings.
	Ratio Method = iota
	// PartialRatio scores the best alignment of the shorter string against a
	// window of the longer one, tolerating prefix/suffix differences such as
	// version markers.
	PartialRatio
	// TokenSortRatio tokenizes on non-alphanumeric boundaries, sorts the
	// tokens, rejoins and applies Ratio, tolerating word reordering.
	TokenSortRatio
	// TokenSetRatio compares intersection-adjusted token sets, tolerating
	// repeated and extra tokens.
	TokenSetRatio
	// SequenceMatcher is the longest-common-subsequence ratio.
	SequenceMatcher
)

var methodNames = map[Method]string{
	Ratio:           "ratio",
	PartialRatio:    "partial_ratio",
	TokenSortRatio:  "token_sort_ratio",
	TokenSetRatio:   "token_set_ratio",
	SequenceMatcher: "sequence_matcher",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod maps a configuration name to its Method.
func ParseMethod(name string) (Method, error) {
	for m, s := range methodNames {
		if s == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown similarity method %q (want one of ratio, partial_ratio, token_sort_ratio, token_set_ratio, sequence_matcher)", name)
}

// Score returns the similarity of a and b in [0, 100] under method m.
func Score(m Method, a, b string) float64 {
	switch m {
	case PartialRatio:
		return partialRatio(a, b)
	case TokenSortRatio:
		return ratio(sortedTokens(a), sortedTokens(b))
	case TokenSetRatio:
		return tokenSetRatio(a, b)
	case SequenceMatcher:
		return lcsRatio(a, b)
	default:
		return ratio(a, b)
	}
}

func ratio(a, b string) float64 {
	if a == b {
		return 100
	}
	return levenshtein.Similarity(a, b, nil) * 100
}

// partialRatio slides the shorter string across the longer one and keeps the
// best window score. Equal-length inputs degrade to plain ratio.
func partialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		if len(rb) == 0 {
			return 100
		}
		return 0
	}
	if len(ra) == len(rb) {
		return ratio(string(ra), string(rb))
	}

	short := string(ra)
	best := 0.0
	for i := 0; i+len(ra) <= len(rb); i++ {
		window := string(rb[i : i+len(ra)])
		if s := ratio(short, window); s > best {
			best = s
			if best == 100 {
				break
			}
		}
	}
	return best
}

// tokens splits s on runs of non-alphanumeric runes.
func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func sortedTokens(s string) string {
	ts := tokens(s)
	sort.Strings(ts)
	return strings.Join(ts, " ")
}

// tokenSetRatio follows the fuzzywuzzy construction: let t0 be the sorted
// token intersection and t1, t2 be t0 plus each side's remainder; the score is
// the best ratio among the three pairings.
func tokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	var inter, diffA, diffB []string
	for tok := range setA {
		if setB[tok] {
			inter = append(inter, tok)
		} else {
			diffA = append(diffA, tok)
		}
	}
	for tok := range setB {
		if !setA[tok] {
			diffB = append(diffB, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(diffA)
	sort.Strings(diffB)

	t0 := strings.Join(inter, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(diffA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(diffB, " "))

	best := ratio(t0, t1)
	if s := ratio(t0, t2); s > best {
		best = s
	}
	if s := ratio(t1, t2); s > best {
		best = s
	}
	return best
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokens(s) {
		set[tok] = true
	}
	return set
}

// lcsRatio is 2*LCS(a,b) / (len(a)+len(b)) scaled to 100, computed over runes
// with a rolling one-row dynamic program.
func lcsRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 100
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(rb)]
	return float64(2*lcs) / float64(len(ra)+len(rb)) * 100
}
