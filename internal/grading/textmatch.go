package grading

import "unicode"

// textCredit is 1 for a normalized exact match against any accepted answer,
// 0.5 for a match within maxEdit edits, else 0.
func textCredit(accepted []string, given string, maxEdit int) float64 {
	g := normalize(given)
	if g == "" {
		return 0
	}
	near := false
	for _, k := range accepted {
		nk := normalize(k)
		if nk == g {
			return 1
		}
		if maxEdit > 0 && levenshtein(nk, g) <= maxEdit {
			near = true
		}
	}
	if near {
		return 0.5
	}
	return 0
}

// normalize does simple casefolding and trims punctuation/extra spaces.
func normalize(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

// levenshtein computes edit distance (insertion, deletion, substitution cost 1).
func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	n, m := len(ar), len(br)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	dp := make([]int, m+1)
	for j := range dp {
		dp[j] = j
	}
	for i := 1; i <= n; i++ {
		prev := dp[0]
		dp[0] = i
		for j := 1; j <= m; j++ {
			tmp := dp[j]
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			dp[j] = min(dp[j]+1, dp[j-1]+1, prev+cost)
			prev = tmp
		}
	}
	return dp[m]
}
