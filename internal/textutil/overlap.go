package textutil

import (
	"math"
	"regexp"
	"strings"
)

var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Tokens splits text into lowercase alphanumeric tokens of three or more
// characters.
func Tokens(text string) []string {
	raw := tokenSplitPattern.Split(strings.ToLower(text), -1)
	out := make([]string, 0, len(raw))
	for _, token := range raw {
		if len(token) < 3 {
			continue
		}
		out = append(out, token)
	}
	return out
}

// Overlap returns the cosine similarity of the term-frequency vectors of a
// and b, in [0, 1]. Empty inputs score 0.
func Overlap(a, b string) float64 {
	ta, tb := termCounts(a), termCounts(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	var dot, na, nb float64
	for token, count := range ta {
		na += count * count
		if other, ok := tb[token]; ok {
			dot += count * other
		}
	}
	for _, count := range tb {
		nb += count * count
	}
	if dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func termCounts(text string) map[string]float64 {
	tokens := Tokens(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	return counts
}
