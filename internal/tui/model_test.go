package tui

import (
	"context"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samhoang/silk/internal/cache"
	"github.com/samhoang/silk/internal/engine"
	"github.com/samhoang/silk/internal/link"
	"github.com/samhoang/silk/internal/plugin"
	"github.com/samhoang/silk/internal/registry"
	"github.com/samhoang/silk/internal/source"
	"github.com/samhoang/silk/internal/source/sourcetest"
)

var kitRef = source.RepoRef{Host: "github.com", Owner: "acme", Repo: "kit"}

func newTestModel(t *testing.T) (Model, *engine.Engine, *sourcetest.Git) {
	t.Helper()
	dir := t.TempDir()
	git := sourcetest.New()
	git.SetRepo(kitRef.HTTPSURL(), map[string]string{
		"review/SKILL.md": "---\ndescription: Reviews diffs\n---\n# Review\n\nLook closely.",
		"debug/SKILL.md":  "# Debug",
	})
	git.SetRepo("https://github.com/zed/tools", map[string]string{
		"fmt/SKILL.md": "# fmt",
	})

	links := link.NewManager(filepath.Join(dir, "skills"), nil)
	store := cache.New(filepath.Join(dir, "repos"), git, links, nil)
	finder := plugin.NewDiscoverer()
	eng := engine.New(engine.Options{
		Store:      store,
		Discoverer: finder,
		Links:      links,
		Registry:   registry.New(store, finder, links, nil),
	})
	require.NoError(t, eng.Refresh(context.Background()))

	return New(context.Background(), eng, Options{Preview: true}), eng, git
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press feeds keys in order and returns the last command
func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m, cmd
}

// settle runs cmd and feeds back the results of background operations
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for _, msg := range collect(cmd) {
		switch msg.(type) {
		case installDoneMsg, updateDoneMsg, refreshDoneMsg, previewMsg:
			next, _ := m.Update(msg)
			m = next.(Model)
		}
	}
	return m
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func install(t *testing.T, m Model, ref string) Model {
	t.Helper()
	m, cmd := press(m, "i", ref, "enter")
	return settle(t, m, cmd)
}

func TestInstallFromPopup(t *testing.T) {
	m, eng, _ := newTestModel(t)

	m, _ = press(m, "i")
	require.True(t, m.installing)
	assert.Contains(t, m.View(), "Install plugin")

	m, cmd := press(m, "acme/kit", "enter")
	assert.False(t, m.installing)
	assert.Equal(t, "Installing acme/kit...", m.status.String())
	assert.Len(t, eng.Jobs(), 1)

	m = settle(t, m, cmd)
	assert.Equal(t, "Installed acme/kit (2 skills)", m.status.String())
	assert.Empty(t, eng.Jobs())
	require.Len(t, m.visiblePlugins(), 1)
	assert.Contains(t, m.View(), "github.com/acme/kit")
}

func TestInstallRejectsBadInput(t *testing.T) {
	m, eng, git := newTestModel(t)

	m, cmd := press(m, "i", "enter")
	assert.Nil(t, cmd)
	assert.Equal(t, StatusError, m.status.Kind())

	m, cmd = press(m, "i", "ftp://x/y/z", "enter")
	assert.Nil(t, cmd)
	assert.Equal(t, StatusError, m.status.Kind())
	assert.Empty(t, eng.Jobs())
	assert.Empty(t, git.Calls())

	m = install(t, m, "acme/kit")
	_, cmd = press(m, "i", "https://github.com/acme/kit", "enter")
	assert.Nil(t, cmd, "installed plugins are not cloned again")
}

func TestInstallPopupEscape(t *testing.T) {
	m, eng, _ := newTestModel(t)
	m, cmd := press(m, "i", "acme/kit", "esc")
	assert.Nil(t, cmd)
	assert.False(t, m.installing)
	assert.Empty(t, eng.Jobs())
}

func TestCancelInstall(t *testing.T) {
	m, eng, git := newTestModel(t)
	git.Gate = make(chan struct{})

	m, cmd := press(m, "i", "acme/kit", "enter")
	require.Len(t, eng.Jobs(), 1)

	m, _ = press(m, "x")
	assert.Contains(t, m.status.String(), "Canceling 1 job(s)")

	m = settle(t, m, cmd)
	assert.Contains(t, m.status.String(), "Canceled install of acme/kit")
	assert.Empty(t, eng.ListPlugins())
	assert.Empty(t, eng.Jobs())
}

func TestToggleSkillLink(t *testing.T) {
	m, eng, _ := newTestModel(t)
	m = install(t, m, "acme/kit")

	m, _ = press(m, "enter")
	require.Equal(t, screenSkills, m.screen)
	assert.Equal(t, kitRef, m.current)

	// skills are sorted: debug, review
	m, _ = press(m, "j", " ")
	s, ok := eng.Snapshot().Skill("acme:kit:review")
	require.True(t, ok)
	assert.True(t, s.IsLinked)
	assert.Contains(t, m.status.String(), "Linked acme:kit:review")
	assert.Contains(t, m.View(), "[x]")

	m, _ = press(m, "enter")
	s, _ = eng.Snapshot().Skill("acme:kit:review")
	assert.False(t, s.IsLinked)

	m, _ = press(m, "esc")
	assert.Equal(t, screenPlugins, m.screen)
}

func TestToggleAllFromPluginList(t *testing.T) {
	m, eng, _ := newTestModel(t)
	m = install(t, m, "acme/kit")

	m, _ = press(m, " ")
	p, err := eng.FindPlugin("acme/kit")
	require.NoError(t, err)
	assert.Equal(t, 2, p.LinkedCount())
	assert.Contains(t, m.View(), "2/2 linked")

	press(m, " ")
	p, _ = eng.FindPlugin("acme/kit")
	assert.Zero(t, p.LinkedCount())
}

func TestSearchFiltersPlugins(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = install(t, m, "acme/kit")
	m = install(t, m, "zed/tools")
	require.Len(t, m.visiblePlugins(), 2)

	m, _ = press(m, "/", "tools")
	require.True(t, m.searching)
	require.Len(t, m.visiblePlugins(), 1)
	assert.Equal(t, "github.com/zed/tools", m.visiblePlugins()[0].ID())

	m, _ = press(m, "enter")
	assert.False(t, m.searching)
	assert.Len(t, m.visiblePlugins(), 1, "filter stays after enter")

	m, _ = press(m, "esc")
	assert.Len(t, m.visiblePlugins(), 2)
}

func TestSearchJumpsToBestSkill(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = install(t, m, "acme/kit")
	m = install(t, m, "zed/tools")

	m, _ = press(m, "/", "rvw", "enter")
	require.Equal(t, screenSkills, m.screen)
	assert.Equal(t, kitRef, m.current)
	s, ok := m.selectedSkill()
	require.True(t, ok)
	assert.Equal(t, "acme:kit:review", s.QualifiedName)
}

func TestUpdateSelected(t *testing.T) {
	m, eng, _ := newTestModel(t)
	m = install(t, m, "acme/kit")

	m, cmd := press(m, "u")
	assert.Equal(t, "Updating acme/kit...", m.status.Entries()[0].Message)
	assert.True(t, m.status.Busy())

	m = settle(t, m, cmd)
	assert.Contains(t, m.status.String(), "Updated acme/kit rev1..rev2")
	assert.Empty(t, eng.Jobs())
}

func TestDeleteSelected(t *testing.T) {
	m, eng, _ := newTestModel(t)
	m = install(t, m, "acme/kit")
	m, _ = press(m, " ")

	m, _ = press(m, "d")
	assert.Contains(t, m.status.String(), "Deleted acme/kit")
	assert.Empty(t, eng.ListPlugins())
	entries, err := eng.Links().Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Contains(t, m.View(), "no plugins installed")
}

func TestPreview(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = install(t, m, "acme/kit")

	m, cmd := press(m, "enter", "j", "v")
	m = settle(t, m, cmd)
	require.Equal(t, screenPreview, m.screen)
	assert.Equal(t, "acme:kit:review", m.previewing.QualifiedName)
	assert.Contains(t, m.View(), "Look closely")

	m, _ = press(m, "esc")
	assert.Equal(t, screenSkills, m.screen)
}

func TestPreviewDisabled(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.opts.Preview = false
	m = install(t, m, "acme/kit")

	m, cmd := press(m, "enter", "v")
	assert.Nil(t, cmd)
	assert.Equal(t, screenSkills, m.screen)
}

func TestWatcherRefreshIsQuiet(t *testing.T) {
	m, eng, git := newTestModel(t)
	ch := make(chan struct{}, 1)
	m.opts.Changes = ch

	// a plugin installed by another process
	_, err := eng.Store().Clone(context.Background(), kitRef)
	require.NoError(t, err)
	assert.Len(t, git.Calls(), 1)

	next, cmd := m.Update(changedMsg{})
	m = next.(Model)
	ch <- struct{}{}
	m = settle(t, m, cmd)

	assert.Len(t, m.visiblePlugins(), 1)
	assert.Equal(t, "Ready", m.status.String())
}

func TestQuitCancelsJobs(t *testing.T) {
	m, eng, git := newTestModel(t)
	git.Gate = make(chan struct{})

	m, _ = press(m, "i", "acme/kit", "enter")
	job := eng.Jobs()[0]

	_, cmd := press(m, "q")
	assert.Equal(t, tea.Quit(), cmd())
	assert.Error(t, job.Context().Err())
}

func TestWrap(t *testing.T) {
	assert.Equal(t, 0, wrap(0, 0))
	assert.Equal(t, 2, wrap(-1, 3))
	assert.Equal(t, 0, wrap(3, 3))
}

func TestWaitForChangeEndsWhenWatcherStops(t *testing.T) {
	ch := make(chan struct{})
	close(ch)
	assert.Nil(t, waitForChange(ch)())
	assert.Nil(t, waitForChange(nil))
}
