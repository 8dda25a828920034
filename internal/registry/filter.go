package registry

import (
	"iter"
	"strings"

	"github.com/samhoang/silk/internal/plugin"
)

// FilterPlugins yields plugins whose host/owner/repo contains query,
// ignoring case. The sequence reads the snapshot current at call time and
// can be ranged over any number of times.
func (r *Registry) FilterPlugins(query string) iter.Seq[plugin.Plugin] {
	return r.snap.Load().FilterPlugins(query)
}

// FilterSkills yields skills whose qualified name or plugin identity
// contains query, ignoring case
func (r *Registry) FilterSkills(query string) iter.Seq[plugin.Skill] {
	return r.snap.Load().FilterSkills(query)
}

// FilterPlugins is FilterPlugins over this snapshot
func (s *Snapshot) FilterPlugins(query string) iter.Seq[plugin.Plugin] {
	return filter(s.Plugins, query, func(p plugin.Plugin, q string) bool {
		return containsFold(p.ID(), q)
	})
}

// FilterSkills is FilterSkills over this snapshot
func (s *Snapshot) FilterSkills(query string) iter.Seq[plugin.Skill] {
	return filter(s.Skills, query, func(sk plugin.Skill, q string) bool {
		return containsFold(sk.QualifiedName, q) || containsFold(sk.Plugin.String(), q)
	})
}

// filter lazily yields the items of a fixed slice that match query
func filter[T any](items []T, query string, match func(T, string) bool) iter.Seq[T] {
	q := strings.ToLower(strings.TrimSpace(query))
	return func(yield func(T) bool) {
		for _, item := range items {
			if q != "" && !match(item, q) {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}

// containsFold reports whether s contains the lowercased q, ignoring case
func containsFold(s, q string) bool {
	return strings.Contains(strings.ToLower(s), q)
}
