// Package fuzzy scores how well a query matches a target string, used
// by schema_info to rank models/fields by api_key, name, or id.
package fuzzy

import "strings"

// Score returns a match score for query against target. Higher is
// better; zero means "discard". The scale is:
//
//   - exact case-insensitive match: 1000
//   - substring match: 500 + a position bonus (earlier is better)
//   - Levenshtein distance normalized below 0.5: 450 - 150*d/max
//   - in-order subsequence match: 10*matches + 5*consecutive
//   - otherwise: 0
func Score(query, target string) int {
	if query == "" || target == "" {
		return 0
	}

	q := strings.ToLower(query)
	tg := strings.ToLower(target)

	if q == tg {
		return 1000
	}

	// Bidirectional: either the query can appear inside the target
	// (the common case) or a short target can appear inside a longer
	// query, e.g. query "the item model" against target "item".
	idx := strings.Index(tg, q)
	if idx < 0 {
		idx = strings.Index(q, tg)
	}
	if idx >= 0 {
		// Earlier position scores higher; bonus shrinks toward 0 as
		// idx grows, never making the substring case cheaper than 500.
		bonus := 500 - idx
		if bonus < 0 {
			bonus = 0
		}
		return 500 + bonus
	}

	maxLen := len(q)
	if len(tg) > maxLen {
		maxLen = len(tg)
	}
	if maxLen > 0 {
		d := levenshtein(q, tg)
		ratio := float64(d) / float64(maxLen)
		if ratio < 0.5 {
			score := 450.0 - 150.0*ratio
			if s := int(score); s > 0 {
				return s
			}
		}
	}

	if matches, consecutive, ok := subsequence(q, tg); ok {
		s := 10*matches + 5*consecutive
		if s > 0 {
			return s
		}
	}

	return 0
}

// levenshtein computes the classic edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	m, n := len(ra), len(rb)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[n]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// subsequence checks whether query's characters appear in target in
// order (not necessarily contiguous), returning the number of matched
// characters and the length of the longest consecutive run found
// while doing so.
func subsequence(query, target string) (matches, consecutive int, ok bool) {
	rt := []rune(target)
	searchFrom := 0
	prevIdx := -2
	run := 0
	bestRun := 0
	matched := 0

	for _, qc := range query {
		idx := -1
		for i := searchFrom; i < len(rt); i++ {
			if rt[i] == qc {
				idx = i
				break
			}
		}
		if idx < 0 {
			return 0, 0, false
		}
		matched++
		if idx == prevIdx+1 {
			run++
		} else {
			run = 1
		}
		if run > bestRun {
			bestRun = run
		}
		prevIdx = idx
		searchFrom = idx + 1
	}
	return matched, bestRun, true
}
