package vocab

import (
	"regexp"
	"sort"
	"strings"
)

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// tokenSortKey lowercases a string, splits it into alphanumeric tokens,
// sorts them, and rejoins with single spaces. Comparing keys instead of the
// raw strings makes the similarity ratio insensitive to token order, so
// "number social security" still lines up with "social_security_number".
func tokenSortKey(s string) string {
	tokens := tokenSplit.Split(strings.ToLower(s), -1)
	kept := tokens[:0]
	for _, tok := range tokens {
		if tok != "" {
			kept = append(kept, tok)
		}
	}
	sort.Strings(kept)
	return strings.Join(kept, " ")
}

// Similarity scores two strings 0-100 using a token-order-insensitive
// Levenshtein ratio. 100 means the token-sorted forms are identical.
func Similarity(a, b string) int {
	ka, kb := tokenSortKey(a), tokenSortKey(b)
	if ka == kb {
		return 100
	}
	longest := len(ka)
	if len(kb) > longest {
		longest = len(kb)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein(ka, kb)
	score := 100 * (longest - dist) / longest
	if score < 0 {
		score = 0
	}
	return score
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
