package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samhoang/silk/internal/link"
	"github.com/samhoang/silk/internal/plugin"
	"github.com/samhoang/silk/internal/source"
	"github.com/samhoang/silk/internal/source/sourcetest"
)

var kitRef = source.RepoRef{Host: "github.com", Owner: "acme", Repo: "kit"}

type fixture struct {
	root   string
	git    *sourcetest.Git
	links  *link.Manager
	store  *Store
	skills string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		root:   filepath.Join(dir, "repos"),
		skills: filepath.Join(dir, "skills"),
		git:    sourcetest.New(),
	}
	f.links = link.NewManager(f.skills, nil)
	f.store = New(f.root, f.git, f.links, nil)
	f.git.SetRepo(kitRef.HTTPSURL(), map[string]string{
		"skills/review/SKILL.md": "# review",
		"skills/debug/SKILL.md":  "# debug",
	})
	return f
}

// snapshot maps every file under root to its contents
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		out[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestStorePath(t *testing.T) {
	s := New("/cache", nil, nil, nil)
	assert.Equal(t, filepath.Join("/cache", "github.com", "acme", "kit"), s.Path(kitRef))
}

func TestStoreClone(t *testing.T) {
	f := newFixture(t)

	p, err := f.store.Clone(context.Background(), kitRef)
	require.NoError(t, err)
	assert.Equal(t, kitRef, p.Ref)
	assert.Equal(t, f.store.Path(kitRef), p.CachePath)
	assert.Empty(t, p.Skills)
	assert.FileExists(t, filepath.Join(p.CachePath, "skills", "review", "SKILL.md"))

	calls := f.git.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, sourcetest.Call{Op: "clone", Arg: "https://github.com/acme/kit"}, calls[0])
}

func TestStoreCloneWithRemoteURL(t *testing.T) {
	f := newFixture(t)
	f.git.SetRepo("git@github.com:acme/kit.git", map[string]string{"SKILL.md": "x"})

	_, err := f.store.Clone(context.Background(), kitRef, WithRemoteURL("git@github.com:acme/kit.git"))
	require.NoError(t, err)
	assert.Equal(t, "git@github.com:acme/kit.git", f.git.Calls()[0].Arg)
}

func TestStoreCloneTwiceFailsWithAlreadyExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Clone(ctx, kitRef)
	require.NoError(t, err)

	_, err = f.store.Clone(ctx, kitRef)
	require.ErrorIs(t, err, ErrAlreadyExists)

	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "clone", serr.Op)

	plugins, err := f.store.ScanAll()
	require.NoError(t, err)
	assert.Len(t, plugins, 1)
	assert.Len(t, f.git.Calls(), 1, "second clone must not reach git")
}

func TestStoreCloneRefusesSameRepoFromAnotherHost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Clone(ctx, kitRef)
	require.NoError(t, err)

	mirror := source.RepoRef{Host: "gitlab.com", Owner: "acme", Repo: "kit"}
	_, err = f.store.Clone(ctx, mirror)
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.NoDirExists(t, filepath.Join(f.root, "gitlab.com"))
}

func TestStoreCloneFailureCleansUp(t *testing.T) {
	f := newFixture(t)
	f.git.CloneErr = errors.New("could not resolve host")

	_, err := f.store.Clone(context.Background(), kitRef)
	require.ErrorIs(t, err, ErrFetchFailed)

	var gerr *source.GitError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, err.Error(), "could not resolve host")

	assert.NoDirExists(t, f.store.Path(kitRef))
	assert.NoDirExists(t, filepath.Join(f.root, "github.com"), "empty parents should be pruned")
}

func TestStoreCloneUnknownRepo(t *testing.T) {
	f := newFixture(t)
	missing := source.RepoRef{Host: "github.com", Owner: "acme", Repo: "nope"}

	_, err := f.store.Clone(context.Background(), missing)
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.False(t, f.store.Exists(missing))
}

func TestStoreCloneCanceledCleansUp(t *testing.T) {
	f := newFixture(t)
	f.git.Gate = make(chan struct{})
	f.git.Started = make(chan string, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.store.Clone(ctx, kitRef)
		done <- err
	}()

	<-f.git.Started
	cancel()
	err := <-done

	require.ErrorIs(t, err, ErrFetchFailed)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, f.store.Path(kitRef))
}

// detachedGit completes transfers even after the caller gave up
type detachedGit struct {
	*sourcetest.Git
}

func (g detachedGit) Clone(_ context.Context, remoteURL, dest string) error {
	return g.Git.Clone(context.Background(), remoteURL, dest)
}

func TestStoreCloneCanceledAfterTransfer(t *testing.T) {
	f := newFixture(t)
	store := New(f.root, detachedGit{f.git}, f.links, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Clone(ctx, kitRef)
	require.ErrorIs(t, err, ErrFetchFailed)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, store.Path(kitRef))
}

func TestStoreUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.store.Clone(ctx, kitRef)
	require.NoError(t, err)
	before := f.store.Revision(ctx, kitRef)

	f.git.SetRepo(kitRef.HTTPSURL(), map[string]string{
		"skills/review/SKILL.md": "# review v2",
	})

	p, err = f.store.Update(ctx, p)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(p.CachePath, "skills", "debug"))
	assert.NotEqual(t, before, f.store.Revision(ctx, kitRef))
}

func TestStoreUpdateFailureLeavesCacheUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.store.Clone(ctx, kitRef)
	require.NoError(t, err)
	before := snapshot(t, p.CachePath)

	f.git.PullErr = errors.New("Not possible to fast-forward, aborting.")
	f.git.SetRepo(kitRef.HTTPSURL(), map[string]string{"other/SKILL.md": "x"})

	_, err = f.store.Update(ctx, p)
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, before, snapshot(t, p.CachePath))
}

func TestStoreUpdateMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Update(context.Background(), plugin.Plugin{Ref: kitRef})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.git.Calls())
}

func TestStoreRemoveUnlinksFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.store.Clone(ctx, kitRef)
	require.NoError(t, err)
	p.Skills, err = plugin.NewDiscoverer().Discover(p)
	require.NoError(t, err)
	require.Len(t, p.Skills, 2)

	for _, s := range p.Skills {
		require.NoError(t, f.links.Link(s))
	}
	// a link the snapshot does not know about
	stray := filepath.Join(f.skills, "acme:kit:old")
	require.NoError(t, os.Symlink(filepath.Join(p.CachePath, "old"), stray))

	// an unrelated link survives
	elsewhere := t.TempDir()
	require.NoError(t, os.Symlink(elsewhere, filepath.Join(f.skills, "mine")))

	require.NoError(t, f.store.Remove(p))

	assert.NoDirExists(t, p.CachePath)
	assert.NoDirExists(t, filepath.Join(f.root, "github.com"))

	entries, err := f.links.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "mine", entries[0].Name)
	assert.False(t, entries[0].IsBroken)
}

func TestStoreRemoveAbortsOnForeignLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.store.Clone(ctx, kitRef)
	require.NoError(t, err)
	p.Skills, err = plugin.NewDiscoverer().Discover(p)
	require.NoError(t, err)

	failing := &failingUnlinker{err: link.ErrForeign}
	store := New(f.root, f.git, failing, nil)
	err = store.Remove(p)
	require.ErrorIs(t, err, link.ErrForeign)
	assert.DirExists(t, p.CachePath)
}

func TestStoreRemoveNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.store.Remove(plugin.Plugin{Ref: kitRef})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreScanAll(t *testing.T) {
	f := newFixture(t)

	for _, dir := range []string{
		"github.com/acme/kit",
		"github.com/acme/.github",
		"github.com/zed/tools",
		"gitlab.com/team/proj",
		"GitHub.com/upper/case",
		".tmp/x/y",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(f.root, filepath.FromSlash(dir)), 0755))
	}
	// wrong shapes
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "github.com", "acme", "file"), nil, 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "bitbucket.org", "lonely"), 0755))

	plugins, err := f.store.ScanAll()
	require.NoError(t, err)

	var ids []string
	for _, p := range plugins {
		ids = append(ids, p.ID())
		assert.Equal(t, f.store.Path(p.Ref), p.CachePath)
	}
	assert.Equal(t, []string{
		"github.com/acme/.github",
		"github.com/acme/kit",
		"github.com/zed/tools",
		"gitlab.com/team/proj",
	}, ids)
}

func TestStoreScanAllMissingRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "none"), nil, nil, nil)
	plugins, err := s.ScanAll()
	require.NoError(t, err)
	assert.Empty(t, plugins)
}

type failingUnlinker struct {
	err error
}

func (u *failingUnlinker) IsLinked(plugin.Skill) bool { return true }

func (u *failingUnlinker) Unlink(s plugin.Skill) error {
	return &link.LinkError{Op: "unlink", Name: s.QualifiedName, Err: u.err}
}

func (u *failingUnlinker) UnlinkUnder(string) ([]string, error) { return nil, nil }
