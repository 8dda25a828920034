// Package tui is the interactive plugin and skill manager.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/samhoang/silk/internal/engine"
	"github.com/samhoang/silk/internal/plugin"
	"github.com/samhoang/silk/internal/source"
)

type screen int

const (
	screenPlugins screen = iota
	screenSkills
	screenPreview
)

// Options configures the interactive manager
type Options struct {
	Changes <-chan struct{} // watcher notifications; nil disables live refresh
	Preview bool            // allow rendering SKILL.md with v
	Logger  *slog.Logger
}

// Model is the Bubble Tea model for the manager
type Model struct {
	ctx    context.Context
	eng    *engine.Engine
	opts   Options
	logger *slog.Logger

	screen       screen
	current      source.RepoRef // plugin whose skills are shown
	pluginCursor int
	skillCursor  int

	searching  bool
	search     textinput.Model
	installing bool
	install    textinput.Model

	preview    viewport.Model
	previewing plugin.Skill
	md         *markdownRenderer
	spinner    spinner.Model
	status     *Status

	width  int
	height int
}

// New creates the model. ctx bounds every job the model starts.
func New(ctx context.Context, eng *engine.Engine, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	search := textinput.New()
	search.Placeholder = "filter"
	search.CharLimit = 100
	search.Width = 40

	install := textinput.New()
	install.Placeholder = "owner/repo or git URL"
	install.CharLimit = 300
	install.Width = 50

	return Model{
		ctx:     ctx,
		eng:     eng,
		opts:    opts,
		logger:  logger.With("component", "tui"),
		search:  search,
		install: install,
		preview: viewport.New(80, 20),
		md:      newMarkdownRenderer(80),
		spinner: newSpinner(),
		status:  NewStatus(),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(expireTick(), waitForChange(m.opts.Changes))
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.md.updateWidth(msg.Width)
		m.preview.Width = msg.Width
		m.preview.Height = max(msg.Height-4, 1)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case installDoneMsg:
		m.finishInstall(msg)
		return m, nil

	case updateDoneMsg:
		m.finishUpdate(msg)
		return m, nil

	case refreshDoneMsg:
		switch {
		case msg.err != nil:
			m.status.Set("refresh", "Refresh failed: "+msg.err.Error(), StatusError)
		case !msg.quiet:
			m.status.Set("refresh", "Refreshed plugin list", StatusSuccess)
		}
		m.clamp()
		return m, nil

	case changedMsg:
		return m, tea.Batch(m.refreshCmd(true), waitForChange(m.opts.Changes))

	case previewMsg:
		if msg.err != nil {
			m.status.Set("preview", "Preview failed: "+msg.err.Error(), StatusError)
			return m, nil
		}
		m.previewing = msg.skill
		m.preview.SetContent(m.md.render(msg.content))
		m.preview.GotoTop()
		m.screen = screenPreview
		return m, nil

	case expireMsg:
		m.status.Expire()
		return m, expireTick()

	case spinner.TickMsg:
		if !m.status.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.ForceQuit) {
		return m.quit()
	}
	switch {
	case m.installing:
		return m.handleInstallKey(msg)
	case m.searching:
		return m.handleSearchKey(msg)
	}

	switch m.screen {
	case screenSkills:
		return m.handleSkillKey(msg)
	case screenPreview:
		return m.handlePreviewKey(msg)
	default:
		return m.handlePluginKey(msg)
	}
}

func (m Model) handlePluginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if cmd, ok := m.handleCommonKey(msg); ok {
		return m, cmd
	}

	plugins := m.visiblePlugins()
	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit()

	case key.Matches(msg, keys.Back):
		m.clearSearch()
		m.clamp()

	case key.Matches(msg, keys.Up):
		m.pluginCursor = wrap(m.pluginCursor-1, len(plugins))

	case key.Matches(msg, keys.Down):
		m.pluginCursor = wrap(m.pluginCursor+1, len(plugins))

	case key.Matches(msg, keys.Open):
		if p, ok := m.selectedPlugin(); ok {
			m.openPlugin(p.Ref)
		}

	case key.Matches(msg, keys.Toggle):
		if p, ok := m.selectedPlugin(); ok {
			linked, err := m.eng.ToggleAll(p.Ref)
			switch {
			case err != nil:
				m.status.Set("toggle:"+p.ID(), err.Error(), StatusError)
			case linked:
				m.status.Set("toggle:"+p.ID(), "Linked all skills of "+p.Ref.ID(), StatusSuccess)
			default:
				m.status.Set("toggle:"+p.ID(), "Unlinked all skills of "+p.Ref.ID(), StatusSuccess)
			}
		}

	case key.Matches(msg, keys.Install):
		m.installing = true
		m.install.SetValue("")
		m.install.Focus()
		return m, textinput.Blink

	case key.Matches(msg, keys.Delete):
		if p, ok := m.selectedPlugin(); ok {
			if err := m.eng.Delete(p.Ref); err != nil {
				m.status.Set("delete:"+p.ID(), "Delete failed: "+err.Error(), StatusError)
			} else {
				m.status.Set("delete:"+p.ID(), "Deleted "+p.Ref.ID(), StatusSuccess)
			}
			m.clamp()
		}

	case key.Matches(msg, keys.Update):
		if p, ok := m.selectedPlugin(); ok {
			return m.startUpdate(p.Ref)
		}
	}
	return m, nil
}

func (m Model) handleSkillKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if cmd, ok := m.handleCommonKey(msg); ok {
		return m, cmd
	}

	skills := m.visibleSkills()
	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit()

	case key.Matches(msg, keys.Back):
		m.screen = screenPlugins
		m.clearSearch()
		m.clamp()

	case key.Matches(msg, keys.Up):
		m.skillCursor = wrap(m.skillCursor-1, len(skills))

	case key.Matches(msg, keys.Down):
		m.skillCursor = wrap(m.skillCursor+1, len(skills))

	case key.Matches(msg, keys.Toggle), key.Matches(msg, keys.Open):
		if s, ok := m.selectedSkill(); ok {
			toggled, err := m.eng.ToggleLink(s.QualifiedName)
			switch {
			case err != nil:
				m.status.Set("link:"+s.QualifiedName, err.Error(), StatusError)
			case toggled.IsLinked:
				m.status.Set("link:"+s.QualifiedName, "Linked "+s.QualifiedName, StatusSuccess)
			default:
				m.status.Set("link:"+s.QualifiedName, "Unlinked "+s.QualifiedName, StatusSuccess)
			}
		}

	case key.Matches(msg, keys.Preview):
		if !m.opts.Preview {
			m.status.Set("preview", "Preview is disabled in silk.toml", StatusInfo)
			return m, nil
		}
		if s, ok := m.selectedSkill(); ok {
			return m, previewCmd(s)
		}

	case key.Matches(msg, keys.Update):
		return m.startUpdate(m.current)
	}
	return m, nil
}

// handleCommonKey covers keys that behave the same on both lists
func (m *Model) handleCommonKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, keys.Search):
		m.searching = true
		m.search.Focus()
		return textinput.Blink, true

	case key.Matches(msg, keys.Refresh):
		m.status.Set("refresh", "Refreshing...", StatusProgress)
		return tea.Batch(m.refreshCmd(false), m.spinner.Tick), true

	case key.Matches(msg, keys.Cancel):
		n := m.eng.CancelJobs()
		if n == 0 {
			m.status.Set("cancel", "Nothing to cancel", StatusInfo)
		} else {
			m.status.Set("cancel", fmt.Sprintf("Canceling %d job(s)", n), StatusInfo)
		}
		return nil, true
	}
	return nil, false
}

func (m Model) handlePreviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Back) || key.Matches(msg, keys.Preview) || key.Matches(msg, keys.Quit) {
		m.screen = screenSkills
		return m, nil
	}
	var cmd tea.Cmd
	m.preview, cmd = m.preview.Update(msg)
	return m, cmd
}

func (m Model) handleInstallKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.installing = false
		m.install.Blur()
		return m, nil
	case "enter":
		m.installing = false
		m.install.Blur()
		return m.startInstall(strings.TrimSpace(m.install.Value()))
	}
	var cmd tea.Cmd
	m.install, cmd = m.install.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.clearSearch()
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		m.jumpToBest()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.pluginCursor, m.skillCursor = 0, 0
	return m, cmd
}

// jumpToBest moves to the best fuzzy match when the substring filter
// finds nothing
func (m *Model) jumpToBest() {
	query := m.search.Value()
	if query == "" {
		return
	}
	if m.screen == screenPlugins && len(m.visiblePlugins()) > 0 {
		return
	}
	if m.screen == screenSkills && len(m.visibleSkills()) > 0 {
		return
	}

	for _, match := range m.eng.Search(query) {
		if m.screen == screenSkills && match.Skill.Plugin != m.current {
			continue
		}
		m.openPlugin(match.Skill.Plugin)
		m.skillCursor = max(slices.IndexFunc(m.visibleSkills(), func(s plugin.Skill) bool {
			return s.QualifiedName == match.Skill.QualifiedName
		}), 0)
		return
	}
}

func (m *Model) openPlugin(ref source.RepoRef) {
	m.current = ref
	m.screen = screenSkills
	m.skillCursor = 0
	m.clearSearch()
}

func (m *Model) clearSearch() {
	m.searching = false
	m.search.SetValue("")
	m.search.Blur()
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if n := m.eng.CancelJobs(); n > 0 {
		m.logger.Info("quitting with jobs in flight", "canceled", n)
	}
	return m, tea.Quit
}

func (m Model) startInstall(input string) (tea.Model, tea.Cmd) {
	if input == "" {
		m.status.Set("install", "Reference cannot be empty", StatusError)
		return m, nil
	}
	remote, err := source.Parse(input)
	if err != nil {
		m.status.Set("install", err.Error(), StatusError)
		return m, nil
	}
	ref := remote.Ref
	id := "install:" + ref.String()

	if m.eng.Busy(ref) {
		m.status.Set(id, ref.ID()+" is busy", StatusInfo)
		return m, nil
	}
	if _, ok := m.eng.Snapshot().Plugin(ref); ok {
		m.status.Set(id, "Already installed: "+ref.ID(), StatusInfo)
		return m, nil
	}

	job := m.eng.StartJob(m.ctx, engine.JobInstall, input)
	m.status.Set(id, "Installing "+ref.ID()+"...", StatusProgress)
	m.logger.Info("install started", "job", job.ID, "ref", ref.String())

	eng := m.eng
	run := func() tea.Msg {
		defer eng.FinishJob(job)
		p, err := eng.Install(job.Context(), job.Target)
		return installDoneMsg{job: job, ref: ref, plugin: p, err: err}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

func (m *Model) finishInstall(msg installDoneMsg) {
	id := "install:" + msg.ref.String()
	switch {
	case msg.err == nil:
		m.status.Set(id, fmt.Sprintf("Installed %s (%d skills)", msg.ref.ID(), len(msg.plugin.Skills)), StatusSuccess)
	case errors.Is(msg.err, context.Canceled):
		m.status.Set(id, "Canceled install of "+msg.ref.ID(), StatusInfo)
	default:
		m.logger.Error("install failed", "ref", msg.ref.String(), "error", msg.err)
		m.status.Set(id, "Install failed: "+msg.err.Error(), StatusError)
	}
	m.clamp()
}

func (m Model) startUpdate(ref source.RepoRef) (tea.Model, tea.Cmd) {
	id := "update:" + ref.String()
	if m.eng.Busy(ref) {
		m.status.Set(id, ref.ID()+" is busy", StatusInfo)
		return m, nil
	}

	job := m.eng.StartJob(m.ctx, engine.JobUpdate, ref.String())
	m.status.Set(id, "Updating "+ref.ID()+"...", StatusProgress)

	eng := m.eng
	run := func() tea.Msg {
		defer eng.FinishJob(job)
		report, err := eng.Update(job.Context(), ref)
		return updateDoneMsg{job: job, ref: ref, report: report, err: err}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

func (m *Model) finishUpdate(msg updateDoneMsg) {
	id := "update:" + msg.ref.String()
	r := msg.report
	switch {
	case msg.err != nil && errors.Is(msg.err, context.Canceled):
		m.status.Set(id, "Canceled update of "+msg.ref.ID(), StatusInfo)
	case msg.err != nil:
		m.logger.Error("update failed", "ref", msg.ref.String(), "error", msg.err)
		m.status.Set(id, "Update failed: "+msg.err.Error(), StatusError)
	case len(r.LinkErrors) > 0:
		m.status.Set(id, fmt.Sprintf("Updated %s, %d link(s) need attention", msg.ref.ID(), len(r.LinkErrors)), StatusError)
	case !r.Changed():
		m.status.Set(id, msg.ref.ID()+" is up to date", StatusSuccess)
	default:
		text := fmt.Sprintf("Updated %s %s..%s", msg.ref.ID(), engine.ShortRevision(r.OldRevision), engine.ShortRevision(r.NewRevision))
		if n := len(r.Relinked) + len(r.Unlinked); n > 0 {
			text += fmt.Sprintf(" (%d relinked, %d unlinked)", len(r.Relinked), len(r.Unlinked))
		}
		m.status.Set(id, text, StatusSuccess)
	}
	m.clamp()
}

func (m Model) refreshCmd(quiet bool) tea.Cmd {
	eng, ctx := m.eng, m.ctx
	return func() tea.Msg {
		return refreshDoneMsg{quiet: quiet, err: eng.Refresh(ctx)}
	}
}

func previewCmd(s plugin.Skill) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(filepath.Join(s.SourceDir, plugin.ManifestFile))
		return previewMsg{skill: s, content: string(plugin.Body(data)), err: err}
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func expireTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return expireMsg(t) })
}

func (m Model) visiblePlugins() []plugin.Plugin {
	query := ""
	if m.screen == screenPlugins {
		query = m.search.Value()
	}
	return slices.Collect(m.eng.FilterPlugins(query))
}

func (m Model) visibleSkills() []plugin.Skill {
	p, ok := m.eng.Snapshot().Plugin(m.current)
	if !ok {
		return nil
	}
	query := strings.ToLower(m.search.Value())
	if query == "" {
		return p.Skills
	}
	var out []plugin.Skill
	for _, s := range p.Skills {
		if strings.Contains(strings.ToLower(s.QualifiedName), query) ||
			strings.Contains(strings.ToLower(s.Description), query) {
			out = append(out, s)
		}
	}
	return out
}

func (m Model) selectedPlugin() (plugin.Plugin, bool) {
	plugins := m.visiblePlugins()
	if m.pluginCursor < 0 || m.pluginCursor >= len(plugins) {
		return plugin.Plugin{}, false
	}
	return plugins[m.pluginCursor], true
}

func (m Model) selectedSkill() (plugin.Skill, bool) {
	skills := m.visibleSkills()
	if m.skillCursor < 0 || m.skillCursor >= len(skills) {
		return plugin.Skill{}, false
	}
	return skills[m.skillCursor], true
}

// clamp keeps cursors valid after the registry changed underneath them
func (m *Model) clamp() {
	if m.screen != screenPlugins {
		if _, ok := m.eng.Snapshot().Plugin(m.current); !ok {
			m.screen = screenPlugins
			m.clearSearch()
		}
	}
	m.pluginCursor = min(m.pluginCursor, max(len(m.visiblePlugins())-1, 0))
	m.skillCursor = min(m.skillCursor, max(len(m.visibleSkills())-1, 0))
}

// wrap moves a cursor around a list of n items
func wrap(i, n int) int {
	if n == 0 {
		return 0
	}
	return (i%n + n) % n
}

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Open      key.Binding
	Back      key.Binding
	Toggle    key.Binding
	Install   key.Binding
	Update    key.Binding
	Delete    key.Binding
	Refresh   key.Binding
	Search    key.Binding
	Preview   key.Binding
	Cancel    key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

var keys = keyMap{
	Up:        key.NewBinding(key.WithKeys("up", "k")),
	Down:      key.NewBinding(key.WithKeys("down", "j")),
	Open:      key.NewBinding(key.WithKeys("enter", "l")),
	Back:      key.NewBinding(key.WithKeys("esc", "h")),
	Toggle:    key.NewBinding(key.WithKeys(" ", "space")),
	Install:   key.NewBinding(key.WithKeys("i")),
	Update:    key.NewBinding(key.WithKeys("u")),
	Delete:    key.NewBinding(key.WithKeys("d")),
	Refresh:   key.NewBinding(key.WithKeys("r")),
	Search:    key.NewBinding(key.WithKeys("/")),
	Preview:   key.NewBinding(key.WithKeys("v")),
	Cancel:    key.NewBinding(key.WithKeys("x")),
	Quit:      key.NewBinding(key.WithKeys("q")),
	ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
}
