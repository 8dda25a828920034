// Package link activates skills by symlinking them into a shared directory.
package link

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samhoang/silk/internal/plugin"
)

// Manager owns the links inside one activation directory
type Manager struct {
	dir    string
	logger *slog.Logger
}

// NewManager creates a manager for the activation directory dir
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, logger: logger.With("component", "link")}
}

// Dir returns the activation directory
func (m *Manager) Dir() string {
	return m.dir
}

// Entry describes one name in the activation directory
type Entry struct {
	Name      string
	Path      string
	Target    string // absolute, empty unless IsSymlink
	Exists    bool
	IsSymlink bool
	IsBroken  bool
}

// Path returns where the skill's link lives
func (m *Manager) Path(s plugin.Skill) string {
	return filepath.Join(m.dir, s.QualifiedName)
}

// Link points <dir>/<qualified name> at the skill's source directory.
// A link that already points there is left alone.
func (m *Manager) Link(s plugin.Skill) error {
	path, err := m.checkedPath(s)
	if err != nil {
		return &LinkError{Op: "link", Name: s.QualifiedName, Err: err}
	}

	entry, err := inspect(path)
	if err != nil {
		return &LinkError{Op: "link", Name: s.QualifiedName, Err: err}
	}
	if entry.Exists {
		if entry.IsSymlink && sameDir(entry.Target, s.SourceDir) {
			return nil
		}
		return &LinkError{Op: "link", Name: s.QualifiedName, Err: ErrNameCollision}
	}

	target, err := filepath.Abs(s.SourceDir)
	if err != nil {
		return &LinkError{Op: "link", Name: s.QualifiedName, Err: err}
	}
	if err := createSymlink(path, target); err != nil {
		if os.IsExist(err) {
			err = ErrNameCollision
		}
		return &LinkError{Op: "link", Name: s.QualifiedName, Err: err}
	}

	m.logger.Debug("linked", "skill", s.QualifiedName, "target", target)
	return nil
}

// Unlink removes the skill's link only if it points at the skill.
// A missing link is not an error.
func (m *Manager) Unlink(s plugin.Skill) error {
	path, err := m.checkedPath(s)
	if err != nil {
		return &LinkError{Op: "unlink", Name: s.QualifiedName, Err: err}
	}

	entry, err := inspect(path)
	if err != nil {
		return &LinkError{Op: "unlink", Name: s.QualifiedName, Err: err}
	}
	if !entry.Exists {
		return nil
	}
	if !entry.IsSymlink || !sameDir(entry.Target, s.SourceDir) {
		return &LinkError{Op: "unlink", Name: s.QualifiedName, Err: ErrForeign}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &LinkError{Op: "unlink", Name: s.QualifiedName, Err: err}
	}

	m.logger.Debug("unlinked", "skill", s.QualifiedName)
	return nil
}

// IsLinked reports whether a live link points at the skill
func (m *Manager) IsLinked(s plugin.Skill) bool {
	path, err := m.checkedPath(s)
	if err != nil {
		return false
	}
	entry, err := inspect(path)
	if err != nil {
		return false
	}
	return entry.IsSymlink && !entry.IsBroken && sameDir(entry.Target, s.SourceDir)
}

// Toggle links an unlinked skill and unlinks a linked one
func (m *Manager) Toggle(s plugin.Skill) (plugin.Skill, error) {
	if m.IsLinked(s) {
		if err := m.Unlink(s); err != nil {
			return s, err
		}
		s.IsLinked = false
		return s, nil
	}

	if err := m.Link(s); err != nil {
		return s, err
	}
	s.IsLinked = true
	return s, nil
}

// Relink moves an existing link from oldDir to the skill's current source
// directory. Creates the link if it is missing.
func (m *Manager) Relink(s plugin.Skill, oldDir string) error {
	path, err := m.checkedPath(s)
	if err != nil {
		return &LinkError{Op: "relink", Name: s.QualifiedName, Err: err}
	}

	entry, err := inspect(path)
	if err != nil {
		return &LinkError{Op: "relink", Name: s.QualifiedName, Err: err}
	}
	if !entry.Exists {
		return m.Link(s)
	}
	if !entry.IsSymlink {
		return &LinkError{Op: "relink", Name: s.QualifiedName, Err: ErrNameCollision}
	}
	if sameDir(entry.Target, s.SourceDir) {
		return nil
	}
	if !sameDir(entry.Target, oldDir) {
		return &LinkError{Op: "relink", Name: s.QualifiedName, Err: ErrForeign}
	}

	target, err := filepath.Abs(s.SourceDir)
	if err != nil {
		return &LinkError{Op: "relink", Name: s.QualifiedName, Err: err}
	}
	if err := swapSymlink(path, target); err != nil {
		return &LinkError{Op: "relink", Name: s.QualifiedName, Err: err}
	}

	m.logger.Debug("relinked", "skill", s.QualifiedName, "from", oldDir, "to", target)
	return nil
}

// Annotate sets IsLinked on each skill from the filesystem
func (m *Manager) Annotate(skills []plugin.Skill) {
	for i := range skills {
		skills[i].IsLinked = m.IsLinked(skills[i])
	}
}

// UnlinkUnder removes every symlink in the activation directory whose target
// lies inside root, and returns the removed names
func (m *Manager) UnlinkUnder(root string) ([]string, error) {
	entries, err := m.Entries()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, e := range entries {
		if !e.IsSymlink || !within(e.Target, root) {
			continue
		}
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return removed, &LinkError{Op: "unlink", Name: e.Name, Err: err}
		}
		removed = append(removed, e.Name)
	}
	if len(removed) > 0 {
		m.logger.Debug("unlinked plugin links", "root", root, "count", len(removed))
	}
	return removed, nil
}

// Entries lists the activation directory, sorted by name.
// A missing directory has no entries.
func (m *Manager) Entries() ([]Entry, error) {
	dirEntries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		e, err := inspect(filepath.Join(m.dir, de.Name()))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// PruneBroken removes dangling symlinks and returns their names
func (m *Manager) PruneBroken() ([]string, error) {
	entries, err := m.Entries()
	if err != nil {
		return nil, err
	}

	var pruned []string
	for _, e := range entries {
		if !e.IsBroken {
			continue
		}
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return pruned, err
		}
		pruned = append(pruned, e.Name)
	}
	return pruned, nil
}

func (m *Manager) checkedPath(s plugin.Skill) (string, error) {
	name := s.QualifiedName
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid link name %q", name)
	}
	return filepath.Join(m.dir, name), nil
}

// inspect describes path without following it
func inspect(path string) (Entry, error) {
	e := Entry{Name: filepath.Base(path), Path: path}

	linfo, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return e, nil
	}
	if err != nil {
		return e, err
	}

	e.Exists = true
	e.IsSymlink = linfo.Mode()&os.ModeSymlink != 0
	if !e.IsSymlink {
		return e, nil
	}

	target, err := os.Readlink(path)
	if err != nil {
		return e, err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	e.Target = filepath.Clean(target)

	if _, err := os.Stat(path); err != nil {
		e.IsBroken = true
	}
	return e, nil
}

// sameDir compares two paths after making them absolute, then after
// resolving symlinks in both
func sameDir(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return false
	}
	if absA == absB {
		return true
	}

	realA, errA := filepath.EvalSymlinks(absA)
	realB, errB := filepath.EvalSymlinks(absB)
	return errA == nil && errB == nil && realA == realB
}

func within(path, root string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
