package link

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/samhoang/silk/internal/plugin"
	"github.com/samhoang/silk/internal/source"
)

func newSkill(t *testing.T, root, name string) plugin.Skill {
	t.Helper()
	dir := filepath.Join(root, "acme", "kit", name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, plugin.ManifestFile), []byte("# "+name), 0644); err != nil {
		t.Fatal(err)
	}
	ref := source.RepoRef{Host: "github.com", Owner: "acme", Repo: "kit"}
	return plugin.Skill{
		Name:          name,
		QualifiedName: plugin.QualifiedName(ref, name),
		Plugin:        ref,
		SourceDir:     dir,
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestManagerLink(t *testing.T) {
	testDir := t.TempDir()
	activation := filepath.Join(testDir, "skills")
	mgr := NewManager(activation, nil)
	skill := newSkill(t, testDir, "review")

	if mgr.IsLinked(skill) {
		t.Error("IsLinked() = true before Link()")
	}

	if err := mgr.Link(skill); err != nil {
		t.Fatalf("Link() error: %v", err)
	}
	if !mgr.IsLinked(skill) {
		t.Error("IsLinked() = false, want true")
	}

	target, err := os.Readlink(filepath.Join(activation, "acme:kit:review"))
	if err != nil {
		t.Fatalf("Readlink() error: %v", err)
	}
	if target != skill.SourceDir {
		t.Errorf("link target = %q, want %q", target, skill.SourceDir)
	}
}

func TestManagerLinkIdempotent(t *testing.T) {
	testDir := t.TempDir()
	activation := filepath.Join(testDir, "skills")
	mgr := NewManager(activation, nil)
	skill := newSkill(t, testDir, "review")

	if err := mgr.Link(skill); err != nil {
		t.Fatalf("Link() error: %v", err)
	}
	once := listDir(t, activation)

	if err := mgr.Link(skill); err != nil {
		t.Fatalf("second Link() error: %v", err)
	}
	twice := listDir(t, activation)

	if len(once) != 1 || len(twice) != 1 || once[0] != twice[0] {
		t.Errorf("entries after one Link() = %v, after two = %v", once, twice)
	}
}

func TestManagerLinkCollision(t *testing.T) {
	testDir := t.TempDir()
	activation := filepath.Join(testDir, "skills")
	mgr := NewManager(activation, nil)
	skill := newSkill(t, testDir, "review")
	other := newSkill(t, testDir, "other")

	tests := []struct {
		name  string
		setup func(path string)
	}{
		{"regular file", func(path string) {
			os.WriteFile(path, []byte("mine"), 0644)
		}},
		{"directory", func(path string) {
			os.MkdirAll(path, 0755)
		}},
		{"symlink elsewhere", func(path string) {
			os.Symlink(other.SourceDir, path)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := mgr.Path(skill)
			os.RemoveAll(path)
			os.MkdirAll(activation, 0755)
			tt.setup(path)

			before, _ := os.Lstat(path)
			err := mgr.Link(skill)
			if !errors.Is(err, ErrNameCollision) {
				t.Fatalf("Link() error = %v, want ErrNameCollision", err)
			}
			after, _ := os.Lstat(path)
			if before.Mode() != after.Mode() {
				t.Error("Link() modified foreign content")
			}
		})
	}
}

func TestManagerUnlinkAbsentIsNoop(t *testing.T) {
	testDir := t.TempDir()
	mgr := NewManager(filepath.Join(testDir, "skills"), nil)
	skill := newSkill(t, testDir, "review")

	if err := mgr.Unlink(skill); err != nil {
		t.Errorf("Unlink() on never-linked skill error: %v", err)
	}
}

func TestManagerUnlinkForeign(t *testing.T) {
	testDir := t.TempDir()
	activation := filepath.Join(testDir, "skills")
	mgr := NewManager(activation, nil)
	skill := newSkill(t, testDir, "review")
	other := newSkill(t, testDir, "other")

	if err := os.MkdirAll(activation, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(other.SourceDir, mgr.Path(skill)); err != nil {
		t.Fatal(err)
	}

	err := mgr.Unlink(skill)
	if !errors.Is(err, ErrForeign) {
		t.Fatalf("Unlink() error = %v, want ErrForeign", err)
	}
	var lerr *LinkError
	if !errors.As(err, &lerr) || lerr.Op != "unlink" {
		t.Errorf("Unlink() error = %#v, want *LinkError with Op unlink", err)
	}
	if _, err := os.Lstat(mgr.Path(skill)); err != nil {
		t.Error("Unlink() removed a foreign link")
	}
}

func TestManagerToggleTwiceRestores(t *testing.T) {
	testDir := t.TempDir()
	activation := filepath.Join(testDir, "skills")
	mgr := NewManager(activation, nil)
	skill := newSkill(t, testDir, "review")

	before := listDir(t, activation)

	toggled, err := mgr.Toggle(skill)
	if err != nil {
		t.Fatalf("Toggle() error: %v", err)
	}
	if !toggled.IsLinked {
		t.Error("Toggle() IsLinked = false, want true")
	}

	restored, err := mgr.Toggle(toggled)
	if err != nil {
		t.Fatalf("second Toggle() error: %v", err)
	}
	if restored.IsLinked != skill.IsLinked {
		t.Errorf("IsLinked after two toggles = %v, want %v", restored.IsLinked, skill.IsLinked)
	}

	after := listDir(t, activation)
	if len(before) != len(after) {
		t.Errorf("entries before = %v, after = %v", before, after)
	}
}

func TestManagerBrokenLinkIsNotLinked(t *testing.T) {
	testDir := t.TempDir()
	mgr := NewManager(filepath.Join(testDir, "skills"), nil)
	skill := newSkill(t, testDir, "review")

	if err := mgr.Link(skill); err != nil {
		t.Fatalf("Link() error: %v", err)
	}
	if err := os.RemoveAll(skill.SourceDir); err != nil {
		t.Fatal(err)
	}

	if mgr.IsLinked(skill) {
		t.Error("IsLinked() = true for a dangling link")
	}

	pruned, err := mgr.PruneBroken()
	if err != nil {
		t.Fatalf("PruneBroken() error: %v", err)
	}
	if len(pruned) != 1 || pruned[0] != skill.QualifiedName {
		t.Errorf("PruneBroken() = %v, want [%s]", pruned, skill.QualifiedName)
	}
}

func TestManagerRelink(t *testing.T) {
	testDir := t.TempDir()
	mgr := NewManager(filepath.Join(testDir, "skills"), nil)
	skill := newSkill(t, testDir, "review")

	if err := mgr.Link(skill); err != nil {
		t.Fatalf("Link() error: %v", err)
	}

	oldDir := skill.SourceDir
	moved := newSkill(t, testDir, "moved")
	skill.SourceDir = moved.SourceDir

	if err := mgr.Relink(skill, oldDir); err != nil {
		t.Fatalf("Relink() error: %v", err)
	}
	if !mgr.IsLinked(skill) {
		t.Error("IsLinked() = false after Relink()")
	}

	if got := listDir(t, mgr.Dir()); !reflect.DeepEqual(got, []string{skill.QualifiedName}) {
		t.Errorf("activation dir after Relink() = %v, want only the link", got)
	}

	// a link the user repointed is not ours to move
	stranger := newSkill(t, testDir, "stranger")
	if err := os.Remove(mgr.Path(skill)); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(stranger.SourceDir, mgr.Path(skill)); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Relink(skill, oldDir); !errors.Is(err, ErrForeign) {
		t.Errorf("Relink() error = %v, want ErrForeign", err)
	}
}

func TestManagerRelinkKeepsNeighbours(t *testing.T) {
	testDir := t.TempDir()
	mgr := NewManager(filepath.Join(testDir, "skills"), nil)

	skill := newSkill(t, testDir, "x")
	sibling := newSkill(t, testDir, "x.tmp")
	for _, s := range []plugin.Skill{skill, sibling} {
		if err := mgr.Link(s); err != nil {
			t.Fatalf("Link(%s) error: %v", s.QualifiedName, err)
		}
	}
	userFile := filepath.Join(mgr.Dir(), "acme:kit:x.tmp.tmp")
	if err := os.WriteFile(userFile, []byte("notes"), 0644); err != nil {
		t.Fatal(err)
	}

	oldDir := skill.SourceDir
	skill.SourceDir = newSkill(t, testDir, "moved").SourceDir
	if err := mgr.Relink(skill, oldDir); err != nil {
		t.Fatalf("Relink() error: %v", err)
	}

	if !mgr.IsLinked(sibling) {
		t.Error("sibling link acme:kit:x.tmp was removed")
	}
	oldSibling := sibling.SourceDir
	sibling.SourceDir = newSkill(t, testDir, "moved-too").SourceDir
	if err := mgr.Relink(sibling, oldSibling); err != nil {
		t.Fatalf("Relink(sibling) error: %v", err)
	}
	if !mgr.IsLinked(sibling) {
		t.Error("IsLinked(sibling) = false after Relink()")
	}
	if data, err := os.ReadFile(userFile); err != nil || string(data) != "notes" {
		t.Errorf("user file after Relink() = %q, %v", data, err)
	}
	want := []string{"acme:kit:x", "acme:kit:x.tmp", "acme:kit:x.tmp.tmp"}
	if got := listDir(t, mgr.Dir()); !reflect.DeepEqual(got, want) {
		t.Errorf("activation dir = %v, want %v", got, want)
	}
}

func TestManagerUnlinkUnder(t *testing.T) {
	testDir := t.TempDir()
	activation := filepath.Join(testDir, "skills")
	mgr := NewManager(activation, nil)

	a := newSkill(t, testDir, "a")
	b := newSkill(t, testDir, "b")
	for _, s := range []plugin.Skill{a, b} {
		if err := mgr.Link(s); err != nil {
			t.Fatalf("Link() error: %v", err)
		}
	}

	outside := filepath.Join(testDir, "elsewhere")
	if err := os.MkdirAll(outside, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(activation, "mine")); err != nil {
		t.Fatal(err)
	}

	removed, err := mgr.UnlinkUnder(filepath.Join(testDir, "acme", "kit"))
	if err != nil {
		t.Fatalf("UnlinkUnder() error: %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("UnlinkUnder() removed %v, want 2 entries", removed)
	}

	got := listDir(t, activation)
	if len(got) != 1 || got[0] != "mine" {
		t.Errorf("remaining entries = %v, want [mine]", got)
	}
}

func TestManagerEntries(t *testing.T) {
	testDir := t.TempDir()
	activation := filepath.Join(testDir, "skills")
	mgr := NewManager(activation, nil)

	entries, err := mgr.Entries()
	if err != nil {
		t.Fatalf("Entries() on missing dir error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Entries() = %v, want none", entries)
	}

	skill := newSkill(t, testDir, "review")
	if err := mgr.Link(skill); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(activation, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err = mgr.Entries()
	if err != nil {
		t.Fatalf("Entries() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Entries() = %d entries, want 2", len(entries))
	}
	if !entries[0].IsSymlink || entries[0].Target != skill.SourceDir {
		t.Errorf("entries[0] = %+v, want link to %s", entries[0], skill.SourceDir)
	}
	if entries[1].IsSymlink {
		t.Errorf("entries[1] = %+v, want regular file", entries[1])
	}
}

func TestManagerRejectsBadNames(t *testing.T) {
	testDir := t.TempDir()
	mgr := NewManager(filepath.Join(testDir, "skills"), nil)
	skill := newSkill(t, testDir, "review")
	skill.QualifiedName = "../escape"

	if err := mgr.Link(skill); err == nil {
		t.Error("Link() with path separator in name succeeded")
	}
}
