package plugin

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// vcsDirs are never traversed
var vcsDirs = map[string]bool{
	".git": true,
	".svn": true,
	".hg":  true,
}

// Discoverer finds skill units inside a plugin's cache directory
type Discoverer struct {
	ignore []string
	logger *slog.Logger
}

// Option configures a Discoverer
type Option func(*Discoverer)

// WithIgnore skips directories whose slash-separated path relative to the
// plugin root matches any of the doublestar patterns
func WithIgnore(patterns ...string) Option {
	return func(d *Discoverer) {
		for _, p := range patterns {
			if doublestar.ValidatePattern(p) {
				d.ignore = append(d.ignore, p)
			} else {
				d.logger.Warn("ignoring invalid discovery pattern", "pattern", p)
			}
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(d *Discoverer) {
		d.logger = l.With("component", "discover")
	}
}

// NewDiscoverer creates a Discoverer
func NewDiscoverer(opts ...Option) *Discoverer {
	d := &Discoverer{logger: slog.Default().With("component", "discover")}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type unit struct {
	rel string
	dir string
}

// Discover returns the plugin's skills ordered by relative path.
// IsLinked is left false; the link manager owns that fact.
func (d *Discoverer) Discover(p Plugin) ([]Skill, error) {
	root := p.CachePath
	var units []unit

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			d.logger.Warn("skipping unreadable path", "path", path, "error", err)
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if rel != "." {
			if vcsDirs[entry.Name()] || d.ignored(rel) {
				return filepath.SkipDir
			}
		}

		if isManifest(filepath.Join(path, ManifestFile)) {
			units = append(units, unit{rel: rel, dir: path})
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", p.Ref, err)
	}

	slices.SortFunc(units, func(a, b unit) int { return strings.Compare(a.rel, b.rel) })

	names := assignNames(units, p.Ref.Repo)
	skills := make([]Skill, 0, len(units))
	for i, u := range units {
		skills = append(skills, Skill{
			Name:          names[i],
			QualifiedName: QualifiedName(p.Ref, names[i]),
			Plugin:        p.Ref,
			SourceDir:     u.dir,
			RelPath:       u.rel,
			Description:   d.description(filepath.Join(u.dir, ManifestFile)),
		})
	}
	return skills, nil
}

func (d *Discoverer) ignored(rel string) bool {
	for _, pattern := range d.ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (d *Discoverer) description(path string) string {
	m, err := ReadManifest(path)
	if err != nil {
		d.logger.Debug("unreadable frontmatter", "path", path, "error", err)
		return ""
	}
	return m.Description
}

func isManifest(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode().IsRegular()
}

// assignNames gives each unit its basename. Units sharing a basename are all
// named by their relative path joined with "-"; anything still taken gets a
// numeric suffix in path order.
func assignNames(units []unit, repo string) []string {
	base := make([]string, len(units))
	count := make(map[string]int)
	for i, u := range units {
		if u.rel == "." {
			base[i] = sanitize(repo)
		} else {
			base[i] = sanitize(path.Base(u.rel))
		}
		count[base[i]]++
	}

	names := make([]string, len(units))
	used := make(map[string]bool)
	for i, u := range units {
		name := base[i]
		if count[name] > 1 && u.rel != "." {
			name = sanitize(strings.ReplaceAll(u.rel, "/", "-"))
		}
		if used[name] {
			for n := 2; ; n++ {
				candidate := name + "-" + strconv.Itoa(n)
				if !used[candidate] {
					name = candidate
					break
				}
			}
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// sanitize keeps ':' out of local names so qualified names stay splittable
func sanitize(name string) string {
	return strings.ReplaceAll(name, ":", "-")
}
