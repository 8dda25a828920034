// Package engine is the single entry point the CLI and TUI use to manage
// plugins and skills. Every mutation goes through the cache store or the
// link manager and ends with a registry refresh.
package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/samhoang/silk/internal/cache"
	"github.com/samhoang/silk/internal/config"
	"github.com/samhoang/silk/internal/link"
	"github.com/samhoang/silk/internal/plugin"
	"github.com/samhoang/silk/internal/registry"
	"github.com/samhoang/silk/internal/source"
)

// Options wires an Engine from its parts
type Options struct {
	Store      *cache.Store
	Discoverer *plugin.Discoverer
	Links      *link.Manager
	Registry   *registry.Registry
	Logger     *slog.Logger
}

// Engine coordinates the cache, discovery, links and registry
type Engine struct {
	store  *cache.Store
	finder *plugin.Discoverer
	links  *link.Manager
	reg    *registry.Registry
	logger *slog.Logger

	locks *keyedLock
	jobs  *jobs
}

// New creates an engine. Call Refresh before reading.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  opts.Store,
		finder: opts.Discoverer,
		links:  opts.Links,
		reg:    opts.Registry,
		logger: logger.With("component", "engine"),
		locks:  newKeyedLock(),
		jobs:   newJobs(),
	}
}

// Open builds an engine backed by the system git from resolved paths and config
func Open(paths *config.Paths, cfg *config.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	git := &source.ExecGit{
		Binary:  cfg.Git.Binary,
		Depth:   cfg.Git.CloneDepth,
		Timeout: cfg.GitTimeout(),
	}
	links := link.NewManager(paths.SkillsDir, logger)
	store := cache.New(paths.CacheDir, git, links, logger)
	finder := plugin.NewDiscoverer(plugin.WithLogger(logger), plugin.WithIgnore(cfg.Discovery.Ignore...))

	return New(Options{
		Store:      store,
		Discoverer: finder,
		Links:      links,
		Registry:   registry.New(store, finder, links, logger),
		Logger:     logger,
	})
}

// Store returns the cache store
func (e *Engine) Store() *cache.Store { return e.store }

// Links returns the link manager
func (e *Engine) Links() *link.Manager { return e.links }

// Snapshot returns the current registry snapshot
func (e *Engine) Snapshot() *registry.Snapshot { return e.reg.Snapshot() }

// Refresh rebuilds the registry from disk
func (e *Engine) Refresh(ctx context.Context) error {
	return e.reg.Refresh(ctx)
}

// ListPlugins returns installed plugins in identity order
func (e *Engine) ListPlugins() []plugin.Plugin {
	return e.reg.Plugins()
}

// ListSkills returns one plugin's skills
func (e *Engine) ListSkills(ref source.RepoRef) ([]plugin.Skill, error) {
	p, ok := e.reg.Plugin(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, ref)
	}
	return p.Skills, nil
}

// Filter yields skills matching query; see registry.FilterSkills
func (e *Engine) Filter(query string) iter.Seq[plugin.Skill] {
	return e.reg.FilterSkills(query)
}

// FilterPlugins yields plugins matching query
func (e *Engine) FilterPlugins(query string) iter.Seq[plugin.Plugin] {
	return e.reg.FilterPlugins(query)
}

// Search ranks skills by fuzzy match
func (e *Engine) Search(query string) []registry.Match {
	return e.reg.Search(query)
}

// Busy reports whether an install, update or delete holds ref
func (e *Engine) Busy(ref source.RepoRef) bool {
	return e.locks.Held(ref)
}

// FindPlugin resolves owner/repo, host/owner/repo or any accepted reference
// form to an installed plugin
func (e *Engine) FindPlugin(id string) (plugin.Plugin, error) {
	snap := e.reg.Snapshot()
	if p, ok := snap.FindPlugin(id); ok {
		return p, nil
	}
	ref, err := source.Resolve(id)
	if err != nil {
		return plugin.Plugin{}, err
	}
	if p, ok := snap.Plugin(ref); ok {
		return p, nil
	}
	return plugin.Plugin{}, fmt.Errorf("%w: %s", ErrUnknownPlugin, id)
}

// Install resolves input, clones it and registers its skills
func (e *Engine) Install(ctx context.Context, input string) (plugin.Plugin, error) {
	remote, err := source.Parse(input)
	if err != nil {
		return plugin.Plugin{}, err
	}
	ref := remote.Ref

	if !e.locks.TryLock(ref) {
		return plugin.Plugin{}, fmt.Errorf("install %s: %w", ref, ErrBusy)
	}
	defer e.locks.Unlock(ref)

	if _, err := e.store.Clone(ctx, ref, cache.WithRemoteURL(remote.URL)); err != nil {
		return plugin.Plugin{}, err
	}

	// the clone is complete; the registry must reflect it even if the caller left
	if err := e.reg.RefreshPlugin(context.WithoutCancel(ctx), ref); err != nil {
		return plugin.Plugin{}, err
	}

	p, _ := e.reg.Plugin(ref)
	e.logger.Info("installed", "plugin", ref.String(), "skills", len(p.Skills))
	return p, nil
}

// UpdateReport describes what an update changed
type UpdateReport struct {
	Plugin      plugin.Plugin
	OldRevision string
	NewRevision string
	Relinked    []string // active skills whose directory moved
	Unlinked    []string // active skills that disappeared upstream
	LinkErrors  []error  // links that could not be reconciled
}

// Changed reports whether the checkout moved
func (r UpdateReport) Changed() bool {
	return r.OldRevision != r.NewRevision
}

// Update fast-forwards a plugin, then keeps active links pointing at the
// right directories
func (e *Engine) Update(ctx context.Context, ref source.RepoRef) (UpdateReport, error) {
	if !e.locks.TryLock(ref) {
		return UpdateReport{}, fmt.Errorf("update %s: %w", ref, ErrBusy)
	}
	defer e.locks.Unlock(ref)

	p, ok := e.reg.Plugin(ref)
	if !ok {
		if !e.store.Exists(ref) {
			return UpdateReport{}, fmt.Errorf("%w: %s", ErrUnknownPlugin, ref)
		}
		p = plugin.Plugin{Ref: ref, CachePath: e.store.Path(ref)}
	}

	var active []plugin.Skill
	for _, s := range p.Skills {
		if e.links.IsLinked(s) {
			active = append(active, s)
		}
	}

	report := UpdateReport{OldRevision: e.store.Revision(ctx, ref)}
	if _, err := e.store.Update(ctx, p); err != nil {
		return report, err
	}

	// the pull has landed; finish reconciling regardless of cancellation
	ctx = context.WithoutCancel(ctx)
	report.NewRevision = e.store.Revision(ctx, ref)

	fresh, err := e.finder.Discover(plugin.Plugin{Ref: ref, CachePath: e.store.Path(ref)})
	if err != nil {
		return report, err
	}
	e.reconcile(active, fresh, &report)

	if err := e.reg.RefreshPlugin(ctx, ref); err != nil {
		return report, err
	}
	report.Plugin, _ = e.reg.Plugin(ref)

	e.logger.Info("updated", "plugin", ref.String(),
		"from", ShortRevision(report.OldRevision), "to", ShortRevision(report.NewRevision),
		"relinked", len(report.Relinked), "unlinked", len(report.Unlinked))
	return report, nil
}

// reconcile repoints links of skills that moved and drops links of skills
// that are gone. Skills are matched by qualified name, then by path.
func (e *Engine) reconcile(active, fresh []plugin.Skill, report *UpdateReport) {
	byName := make(map[string]plugin.Skill, len(fresh))
	byPath := make(map[string]plugin.Skill, len(fresh))
	for _, s := range fresh {
		byName[s.QualifiedName] = s
		byPath[s.RelPath] = s
	}

	for _, old := range active {
		if s, ok := byName[old.QualifiedName]; ok {
			if s.SourceDir == old.SourceDir {
				continue
			}
			if err := e.links.Relink(s, old.SourceDir); err != nil {
				report.LinkErrors = append(report.LinkErrors, err)
				continue
			}
			report.Relinked = append(report.Relinked, s.QualifiedName)
			continue
		}

		if err := e.links.Unlink(old); err != nil {
			report.LinkErrors = append(report.LinkErrors, err)
			continue
		}

		// same directory under a new name after disambiguation changed
		if s, ok := byPath[old.RelPath]; ok {
			if err := e.links.Link(s); err != nil {
				report.LinkErrors = append(report.LinkErrors, err)
				continue
			}
			report.Relinked = append(report.Relinked, s.QualifiedName)
			continue
		}
		report.Unlinked = append(report.Unlinked, old.QualifiedName)
	}

	for _, err := range report.LinkErrors {
		e.logger.Warn("link not reconciled after update", "error", err)
	}
}

// Delete unlinks a plugin's skills and removes it from the cache
func (e *Engine) Delete(ref source.RepoRef) error {
	if !e.locks.TryLock(ref) {
		return fmt.Errorf("delete %s: %w", ref, ErrBusy)
	}
	defer e.locks.Unlock(ref)

	p, ok := e.reg.Plugin(ref)
	if !ok {
		p = plugin.Plugin{Ref: ref, CachePath: e.store.Path(ref)}
	}

	if err := e.store.Remove(p); err != nil {
		return err
	}
	return e.reg.RefreshPlugin(context.Background(), ref)
}

// ToggleLink flips a skill between linked and unlinked
func (e *Engine) ToggleLink(qualifiedName string) (plugin.Skill, error) {
	s, err := e.skill(qualifiedName)
	if err != nil {
		return s, err
	}
	toggled, err := e.links.Toggle(s)
	if refreshErr := e.reg.RefreshPlugin(context.Background(), s.Plugin); refreshErr != nil {
		return toggled, errors.Join(err, refreshErr)
	}
	return toggled, err
}

// Link activates a skill
func (e *Engine) Link(qualifiedName string) error {
	s, err := e.skill(qualifiedName)
	if err != nil {
		return err
	}
	err = e.links.Link(s)
	return errors.Join(err, e.reg.RefreshPlugin(context.Background(), s.Plugin))
}

// Unlink deactivates a skill
func (e *Engine) Unlink(qualifiedName string) error {
	s, err := e.skill(qualifiedName)
	if err != nil {
		return err
	}
	err = e.links.Unlink(s)
	return errors.Join(err, e.reg.RefreshPlugin(context.Background(), s.Plugin))
}

// ToggleAll links every skill of a plugin, or unlinks them all when every
// one is already linked. It reports whether the skills are now linked.
func (e *Engine) ToggleAll(ref source.RepoRef) (bool, error) {
	p, ok := e.reg.Plugin(ref)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownPlugin, ref)
	}

	linking := p.LinkedCount() < len(p.Skills)
	var errs []error
	for _, s := range p.Skills {
		var err error
		if linking {
			err = e.links.Link(s)
		} else {
			err = e.links.Unlink(s)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, e.reg.RefreshPlugin(context.Background(), ref))
	return linking, errors.Join(errs...)
}

func (e *Engine) skill(qualifiedName string) (plugin.Skill, error) {
	s, ok := e.reg.Skill(qualifiedName)
	if !ok {
		return plugin.Skill{}, fmt.Errorf("%w: %s", ErrUnknownSkill, qualifiedName)
	}
	return s, nil
}

// ShortRevision abbreviates a commit hash
func ShortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
