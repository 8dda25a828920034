package registry

import (
	"slices"
	"strings"

	"github.com/samhoang/silk/internal/plugin"
)

// Match is a ranked search hit
type Match struct {
	Skill plugin.Skill
	Score int
}

// Search ranks skills by how well query fuzzily matches their name or
// qualified name. Better matches come first; ties keep registry order.
func (r *Registry) Search(query string) []Match {
	return r.snap.Load().Search(query)
}

// Search is Search over this snapshot
func (s *Snapshot) Search(query string) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		matches := make([]Match, len(s.Skills))
		for i, sk := range s.Skills {
			matches[i] = Match{Skill: sk}
		}
		return matches
	}

	var matches []Match
	for _, sk := range s.Skills {
		best, ok := fuzzyScore(q, sk.Name)
		// the local name is what users type; a qualified hit ranks lower
		if qs, qok := fuzzyScore(q, sk.QualifiedName); qok && (!ok || qs-4 > best) {
			best, ok = qs-4, true
		}
		if ok {
			matches = append(matches, Match{Skill: sk, Score: best})
		}
	}

	slices.SortStableFunc(matches, func(a, b Match) int { return b.Score - a.Score })
	return matches
}

// fuzzyScore scores pattern as a subsequence of str. pattern must already
// be lowercase. Returns false when pattern is not a subsequence.
func fuzzyScore(pattern, str string) (int, bool) {
	lower := strings.ToLower(str)
	if len(pattern) > len(lower) {
		return 0, false
	}

	score := 0
	pi := 0
	prev := -1
	for si := 0; si < len(lower) && pi < len(pattern); si++ {
		if lower[si] != pattern[pi] {
			continue
		}
		score++
		if prev == si-1 {
			score += 4 // consecutive
		}
		if si == 0 {
			score += 8
		} else if isBoundary(lower[si-1]) {
			score += 4
		}
		prev = si
		pi++
	}
	if pi < len(pattern) {
		return 0, false
	}

	// prefer shorter targets
	score -= len(lower) - len(pattern)
	if lower == pattern {
		score += 20
	}
	return score, true
}

func isBoundary(c byte) bool {
	return c == '-' || c == '_' || c == ':' || c == '/' || c == '.' || c == ' '
}
