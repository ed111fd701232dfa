package similarity

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// DefaultThreshold is the score at or above which two titles are treated as the same.
const DefaultThreshold = 0.75

// Similarity calculates the similarity between two titles using Levenshtein
// distance over their normalized forms. Returns a value between 0.0
// (completely different) and 1.0 (identical).
//
// A title that is a word-aligned suffix of the other and covers at least 60%
// of it scores high, so "The Dark Knight" still matches "Dark Knight".
func Similarity(s1, s2 string) float64 {
	s1 = Normalize(s1)
	s2 = Normalize(s2)

	if s1 == s2 {
		return 1.0
	}

	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	if score := suffixContainmentScore(s1, s2); score > 0 {
		return score
	}

	r1, r2 := []rune(s1), []rune(s2)
	maxLen := max(len(r1), len(r2))
	return 1.0 - float64(levenshteinDistance(r1, r2))/float64(maxLen)
}

// Matches reports whether a watched title should be shown for a filter query:
// every query word prefixes some title word, or the whole title is similar
// enough to the query.
func Matches(query, title string, threshold float64) bool {
	q := Normalize(query)
	if q == "" {
		return true
	}
	t := Normalize(title)
	if t == "" {
		return false
	}

	if strings.Contains(t, q) || wordPrefixes(strings.Fields(q), strings.Fields(t)) {
		return true
	}
	return Similarity(q, t) >= threshold
}

func wordPrefixes(queryWords, titleWords []string) bool {
	for _, qw := range queryWords {
		found := false
		for _, tw := range titleWords {
			if strings.HasPrefix(tw, qw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func suffixContainmentScore(s1, s2 string) float64 {
	longer, shorter := s1, s2
	if len(s1) < len(s2) {
		longer, shorter = s2, s1
	}

	if !strings.HasSuffix(longer, shorter) {
		return 0
	}
	prefixLen := len(longer) - len(shorter)
	if prefixLen != 0 && longer[prefixLen-1] != ' ' {
		return 0
	}

	ratio := float64(len(shorter)) / float64(len(longer))
	if ratio < 0.6 {
		return 0
	}
	// 60% containment -> 0.96, 100% -> 1.0
	return 0.90 + ratio*0.10
}

// Normalize transliterates to ASCII, lowercases, and strips punctuation so
// "Amélie" and "amelie" compare equal. "&" becomes "and".
func Normalize(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.ReplaceAll(s, "&", " and ")

	var result strings.Builder
	result.Grow(len(s))

	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-' || r == '_' || r == ':':
			result.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(result.String()), " ")
}

func levenshteinDistance(r1, r2 []rune) int {
	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}
