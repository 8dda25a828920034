// Package cache owns the on-disk clone cache laid out as <root>/<host>/<owner>/<repo>.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samhoang/silk/internal/plugin"
	"github.com/samhoang/silk/internal/source"
)

// Unlinker is the part of the link manager the store needs before deleting a plugin
type Unlinker interface {
	IsLinked(s plugin.Skill) bool
	Unlink(s plugin.Skill) error
	UnlinkUnder(root string) ([]string, error)
}

// Store clones, updates and removes plugins under a cache root
type Store struct {
	root   string
	git    source.GitClient
	links  Unlinker
	logger *slog.Logger
}

// New creates a store rooted at root
func New(root string, git source.GitClient, links Unlinker, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		root:   root,
		git:    git,
		links:  links,
		logger: logger.With("component", "cache"),
	}
}

// Root returns the cache root
func (s *Store) Root() string {
	return s.root
}

// Path returns the canonical cache directory for ref
func (s *Store) Path(ref source.RepoRef) string {
	return filepath.Join(s.root, ref.Host, ref.Owner, ref.Repo)
}

// Exists reports whether ref has a cache directory
func (s *Store) Exists(ref source.RepoRef) bool {
	_, err := os.Lstat(s.Path(ref))
	return err == nil
}

type cloneOptions struct {
	remoteURL string
}

// CloneOption configures Clone
type CloneOption func(*cloneOptions)

// WithRemoteURL clones from url instead of the ref's HTTPS URL
func WithRemoteURL(url string) CloneOption {
	return func(o *cloneOptions) {
		o.remoteURL = url
	}
}

// Clone fetches ref into its cache directory. The returned plugin has no
// skills yet. A failed or canceled clone leaves nothing behind.
func (s *Store) Clone(ctx context.Context, ref source.RepoRef, opts ...CloneOption) (plugin.Plugin, error) {
	o := cloneOptions{remoteURL: ref.HTTPSURL()}
	for _, opt := range opts {
		opt(&o)
	}

	dest := s.Path(ref)
	if _, err := os.Lstat(dest); err == nil {
		return plugin.Plugin{}, &StoreError{Op: "clone", Ref: ref.String(), Err: ErrAlreadyExists}
	} else if !errors.Is(err, os.ErrNotExist) {
		return plugin.Plugin{}, &StoreError{Op: "clone", Ref: ref.String(), Err: err}
	}

	// Qualified names leave out the host, so owner/repo must be unique across hosts.
	if other := s.otherHost(ref); other != "" {
		err := fmt.Errorf("%w: %s is already installed from %s", ErrAlreadyExists, ref.ID(), other)
		return plugin.Plugin{}, &StoreError{Op: "clone", Ref: ref.String(), Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return plugin.Plugin{}, &StoreError{Op: "clone", Ref: ref.String(), Err: err}
	}

	s.logger.Info("cloning", "ref", ref.String(), "url", o.remoteURL)
	err := s.git.Clone(ctx, o.remoteURL, dest)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		s.discard(dest)
		return plugin.Plugin{}, &StoreError{Op: "clone", Ref: ref.String(), Err: fmt.Errorf("%w: %w", ErrFetchFailed, err)}
	}

	return plugin.Plugin{Ref: ref, CachePath: dest}, nil
}

// Update fast-forwards the plugin. On failure the cache is left as it was.
// Skills are not re-discovered here.
func (s *Store) Update(ctx context.Context, p plugin.Plugin) (plugin.Plugin, error) {
	path := s.Path(p.Ref)
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return p, &StoreError{Op: "update", Ref: p.Ref.String(), Err: ErrNotFound}
	}

	s.logger.Info("updating", "ref", p.Ref.String())
	if err := s.git.Pull(ctx, path); err != nil {
		return p, &StoreError{Op: "update", Ref: p.Ref.String(), Err: fmt.Errorf("%w: %w", ErrFetchFailed, err)}
	}

	p.CachePath = path
	return p, nil
}

// Remove unlinks the plugin's skills and deletes its cache directory.
// Nothing is deleted if an unlink fails.
func (s *Store) Remove(p plugin.Plugin) error {
	path := s.Path(p.Ref)
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &StoreError{Op: "remove", Ref: p.Ref.String(), Err: ErrNotFound}
		}
		return &StoreError{Op: "remove", Ref: p.Ref.String(), Err: err}
	}

	if s.links != nil {
		for _, skill := range p.Skills {
			if !s.links.IsLinked(skill) {
				continue
			}
			if err := s.links.Unlink(skill); err != nil {
				return &StoreError{Op: "remove", Ref: p.Ref.String(), Err: err}
			}
		}
		// links the snapshot did not know about, including dangling ones
		if _, err := s.links.UnlinkUnder(path); err != nil {
			return &StoreError{Op: "remove", Ref: p.Ref.String(), Err: err}
		}
	}

	if err := os.RemoveAll(path); err != nil {
		return &StoreError{Op: "remove", Ref: p.Ref.String(), Err: err}
	}
	s.pruneParents(path)

	s.logger.Info("removed", "ref", p.Ref.String())
	return nil
}

// ScanAll returns one plugin per <host>/<owner>/<repo> directory, sorted.
// Entries that do not fit that shape are skipped.
func (s *Store) ScanAll() ([]plugin.Plugin, error) {
	hosts, err := readDirs(s.root, true)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}

	var plugins []plugin.Plugin
	for _, host := range hosts {
		owners, err := readDirs(filepath.Join(s.root, host), true)
		if err != nil {
			s.logger.Warn("skipping unreadable host directory", "host", host, "error", err)
			continue
		}
		for _, owner := range owners {
			repos, err := readDirs(filepath.Join(s.root, host, owner), false)
			if err != nil {
				s.logger.Warn("skipping unreadable owner directory", "host", host, "owner", owner, "error", err)
				continue
			}
			for _, repo := range repos {
				ref, err := source.NewRepoRef(host, owner, repo)
				if err != nil || ref.Host != host {
					s.logger.Debug("skipping cache entry", "path", filepath.Join(host, owner, repo))
					continue
				}
				plugins = append(plugins, plugin.Plugin{Ref: ref, CachePath: s.Path(ref)})
			}
		}
	}
	return plugins, nil
}

// Revision returns the checked-out commit, or "" if the client cannot tell
func (s *Store) Revision(ctx context.Context, ref source.RepoRef) string {
	r, ok := s.git.(source.Reviser)
	if !ok {
		return ""
	}
	rev, err := r.Revision(ctx, s.Path(ref))
	if err != nil {
		s.logger.Debug("revision unavailable", "ref", ref.String(), "error", err)
		return ""
	}
	return rev
}

func (s *Store) otherHost(ref source.RepoRef) string {
	hosts, err := readDirs(s.root, true)
	if err != nil {
		return ""
	}
	for _, host := range hosts {
		if host == ref.Host {
			continue
		}
		if info, err := os.Stat(filepath.Join(s.root, host, ref.Owner, ref.Repo)); err == nil && info.IsDir() {
			return host
		}
	}
	return ""
}

// discard removes a partial clone and any parents it left empty
func (s *Store) discard(dest string) {
	if err := os.RemoveAll(dest); err != nil {
		s.logger.Error("failed to remove partial clone", "path", dest, "error", err)
		return
	}
	s.pruneParents(dest)
}

// pruneParents removes the owner and host directories above path if empty
func (s *Store) pruneParents(path string) {
	dir := filepath.Dir(path)
	for i := 0; i < 2; i++ {
		if dir == s.root || os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// readDirs lists the subdirectories of dir in name order.
// Repositories may legitimately be dot-named (owner/.github), hosts and owners not.
func readDirs(dir string, skipHidden bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || (skipHidden && e.Name()[0] == '.') {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
