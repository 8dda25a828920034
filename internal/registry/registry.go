// Package registry keeps the in-memory index of installed plugins and skills.
//
// The index is a projection of the filesystem: every refresh rebuilds it from
// the cache and the activation directory and swaps it in whole.
package registry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samhoang/silk/internal/plugin"
	"github.com/samhoang/silk/internal/source"
)

// Scanner lists installed plugins
type Scanner interface {
	ScanAll() ([]plugin.Plugin, error)
	Path(ref source.RepoRef) string
	Exists(ref source.RepoRef) bool
}

// Finder discovers the skills of one plugin
type Finder interface {
	Discover(p plugin.Plugin) ([]plugin.Skill, error)
}

// LinkChecker answers whether a skill is active
type LinkChecker interface {
	IsLinked(s plugin.Skill) bool
}

// Snapshot is an immutable view of the registry. Callers must not modify
// the slices it exposes.
type Snapshot struct {
	Plugins    []plugin.Plugin
	Skills     []plugin.Skill
	Conflicts  []string // qualified names dropped because another plugin claimed them
	Generation uint64
	BuiltAt    time.Time

	plugins map[source.RepoRef]int
	skills  map[string]int
}

// Registry serves snapshots and rebuilds them on refresh
type Registry struct {
	scanner Scanner
	finder  Finder
	links   LinkChecker
	logger  *slog.Logger

	mu   sync.Mutex // serializes refreshes
	gen  uint64
	snap atomic.Pointer[Snapshot]
}

// New creates a registry holding an empty snapshot; call Refresh to populate it
func New(scanner Scanner, finder Finder, links LinkChecker, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		scanner: scanner,
		finder:  finder,
		links:   links,
		logger:  logger.With("component", "registry"),
	}
	r.snap.Store(&Snapshot{plugins: map[source.RepoRef]int{}, skills: map[string]int{}})
	return r
}

// Snapshot returns the current snapshot
func (r *Registry) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Refresh rescans the cache, rediscovers every plugin and recomputes link
// state. On error the previous snapshot stays in place.
func (r *Registry) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	plugins, err := r.scanner.ScanAll()
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	kept := plugins[:0]
	for _, p := range plugins {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		skills, err := r.finder.Discover(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				r.logger.Debug("plugin vanished during refresh", "plugin", p.ID())
				continue
			}
			return fmt.Errorf("refresh: %w", err)
		}
		p.Skills = skills
		kept = append(kept, p)
	}
	plugins = kept

	r.publish(plugins)
	return nil
}

// RefreshPlugin rediscovers a single plugin and recomputes link state for
// all skills. A plugin whose cache directory is gone is dropped.
func (r *Registry) RefreshPlugin(ctx context.Context, ref source.RepoRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	cur := r.snap.Load()
	plugins := slices.Clone(cur.Plugins)
	idx, known := cur.plugins[ref]

	if !r.scanner.Exists(ref) {
		if known {
			plugins = slices.Delete(plugins, idx, idx+1)
		}
		r.publish(plugins)
		return nil
	}

	p := plugin.Plugin{Ref: ref, CachePath: r.scanner.Path(ref)}
	skills, err := r.finder.Discover(p)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", ref, err)
	}
	p.Skills = skills

	if known {
		plugins[idx] = p
	} else {
		plugins = append(plugins, p)
	}
	r.publish(plugins)
	return nil
}

// publish builds a snapshot from plugins and swaps it in. Caller holds mu.
func (r *Registry) publish(plugins []plugin.Plugin) {
	slices.SortFunc(plugins, func(a, b plugin.Plugin) int { return compareRefs(a.Ref, b.Ref) })

	r.gen++
	snap := &Snapshot{
		Plugins:    make([]plugin.Plugin, 0, len(plugins)),
		Generation: r.gen,
		BuiltAt:    time.Now(),
		plugins:    make(map[source.RepoRef]int, len(plugins)),
		skills:     make(map[string]int),
	}

	for _, p := range plugins {
		// never write into slices an older snapshot may still expose
		skills := make([]plugin.Skill, 0, len(p.Skills))
		for _, s := range p.Skills {
			if _, dup := snap.skills[s.QualifiedName]; dup {
				r.logger.Warn("duplicate qualified name, skill hidden", "skill", s.QualifiedName, "plugin", p.ID())
				snap.Conflicts = append(snap.Conflicts, s.QualifiedName)
				continue
			}
			s.IsLinked = r.links.IsLinked(s)
			snap.skills[s.QualifiedName] = len(snap.Skills)
			snap.Skills = append(snap.Skills, s)
			skills = append(skills, s)
		}
		p.Skills = skills
		snap.plugins[p.Ref] = len(snap.Plugins)
		snap.Plugins = append(snap.Plugins, p)
	}

	r.snap.Store(snap)
	r.logger.Debug("snapshot published", "generation", snap.Generation, "plugins", len(snap.Plugins), "skills", len(snap.Skills))
}

// Plugins returns every installed plugin in identity order
func (r *Registry) Plugins() []plugin.Plugin {
	return r.snap.Load().Plugins
}

// Plugin looks up a plugin by reference
func (r *Registry) Plugin(ref source.RepoRef) (plugin.Plugin, bool) {
	return r.snap.Load().Plugin(ref)
}

// Skills returns every skill, grouped by plugin in identity order
func (r *Registry) Skills() []plugin.Skill {
	return r.snap.Load().Skills
}

// Skill looks up a skill by qualified name
func (r *Registry) Skill(qualifiedName string) (plugin.Skill, bool) {
	return r.snap.Load().Skill(qualifiedName)
}

// SkillsOf returns the skills of one plugin
func (r *Registry) SkillsOf(ref source.RepoRef) []plugin.Skill {
	p, ok := r.snap.Load().Plugin(ref)
	if !ok {
		return nil
	}
	return p.Skills
}

// Plugin looks up a plugin by reference
func (s *Snapshot) Plugin(ref source.RepoRef) (plugin.Plugin, bool) {
	i, ok := s.plugins[ref]
	if !ok {
		return plugin.Plugin{}, false
	}
	return s.Plugins[i], true
}

// Skill looks up a skill by qualified name
func (s *Snapshot) Skill(qualifiedName string) (plugin.Skill, bool) {
	i, ok := s.skills[qualifiedName]
	if !ok {
		return plugin.Skill{}, false
	}
	return s.Skills[i], true
}

// FindPlugin resolves owner/repo or host/owner/repo against installed plugins
func (s *Snapshot) FindPlugin(id string) (plugin.Plugin, bool) {
	for _, p := range s.Plugins {
		if p.ID() == id || p.Ref.ID() == id {
			return p, true
		}
	}
	return plugin.Plugin{}, false
}

func compareRefs(a, b source.RepoRef) int {
	return cmp.Or(
		strings.Compare(a.Host, b.Host),
		strings.Compare(a.Owner, b.Owner),
		strings.Compare(a.Repo, b.Repo),
	)
}
