package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxVisibleItems caps how many rows either picker draws at once
const maxVisibleItems = 15

// Item represents a selectable item
type Item struct {
	ID       string
	Label    string
	Detail   string // dimmed text after the label
	Selected bool
}

// Model is the Bubble Tea model for multi-select picker
type Model struct {
	title       string
	items       []Item
	initial     map[string]bool
	selected    map[string]bool
	cursor      int
	offset      int
	done        bool
	quitting    bool
	searchInput textinput.Model
	searching   bool
}

// New creates a new picker model
func New(title string, items []Item) Model {
	selected := make(map[string]bool)
	initial := make(map[string]bool)
	for _, item := range items {
		if item.Selected {
			selected[item.ID] = true
			initial[item.ID] = true
		}
	}

	return Model{
		title:       title,
		items:       items,
		initial:     initial,
		selected:    selected,
		searchInput: newSearchInput(),
	}
}

// Selected returns the IDs of selected items
func (m Model) Selected() []string {
	var result []string
	for _, item := range m.items {
		if m.selected[item.ID] {
			result = append(result, item.ID)
		}
	}
	return result
}

// Diff returns the items selected and deselected since the picker opened
func (m Model) Diff() (added, removed []string) {
	for _, item := range m.items {
		switch {
		case m.selected[item.ID] && !m.initial[item.ID]:
			added = append(added, item.ID)
		case !m.selected[item.ID] && m.initial[item.ID]:
			removed = append(removed, item.ID)
		}
	}
	return added, removed
}

// IsQuitting returns true if the user quit without confirming
func (m Model) IsQuitting() bool {
	return m.quitting
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) visible() []Item {
	return filterItems(m.items, m.searchInput.Value())
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.searching {
		var cmd tea.Cmd
		m.searchInput, m.searching, cmd = updateSearch(m.searchInput, keyMsg)
		m.cursor, m.offset = 0, 0
		return m, cmd
	}

	items := m.visible()
	switch {
	case key.Matches(keyMsg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(keyMsg, keys.Search):
		m.searching = true
		m.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(keyMsg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(keyMsg, keys.Down):
		if m.cursor < len(items)-1 {
			m.cursor++
		}

	case key.Matches(keyMsg, keys.Toggle):
		if m.cursor < len(items) {
			id := items[m.cursor].ID
			m.selected[id] = !m.selected[id]
		}

	case key.Matches(keyMsg, keys.All):
		// toggles what is visible, so a filter narrows the effect
		allSelected := true
		for _, item := range items {
			if !m.selected[item.ID] {
				allSelected = false
				break
			}
		}
		for _, item := range items {
			m.selected[item.ID] = !allSelected
		}

	case key.Matches(keyMsg, keys.Confirm):
		m.done = true
		return m, tea.Quit
	}

	m.offset = scrollOffset(m.cursor, m.offset, len(items))
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	if m.done || m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(searchBar(m.searchInput, m.searching))
	b.WriteString("\n")

	items := m.visible()
	if len(items) == 0 {
		b.WriteString(faintStyle.Render("  (no matching items)"))
		b.WriteString("\n")
	}

	end := min(m.offset+maxVisibleItems, len(items))
	if m.offset > 0 {
		b.WriteString(scrollStyle.Render(fmt.Sprintf("  ↑ %d more above", m.offset)))
		b.WriteString("\n")
	}
	for i := m.offset; i < end; i++ {
		item := items[i]
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}

		checked := "[ ]"
		if m.selected[item.ID] {
			checked = selectedStyle.Render("[x]")
		}

		b.WriteString(fmt.Sprintf("%s%s %s", cursor, checked, item.Label))
		if item.Detail != "" {
			b.WriteString(faintStyle.Render("  " + item.Detail))
		}
		b.WriteString("\n")
	}
	if remaining := len(items) - end; remaining > 0 {
		b.WriteString(scrollStyle.Render(fmt.Sprintf("  ↓ %d more below", remaining)))
		b.WriteString("\n")
	}

	added, removed := m.Diff()
	b.WriteString("\n")
	if len(added)+len(removed) > 0 {
		b.WriteString(faintStyle.Render(fmt.Sprintf("+%d -%d pending", len(added), len(removed))))
		b.WriteString("\n")
	}
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("space: toggle • a: all/none • /: search • enter: confirm • q: quit"))

	return b.String()
}

// KeyMap defines the key bindings
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	All     key.Binding
	Search  key.Binding
	Confirm key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" ", "space"),
	),
	All: key.NewBinding(
		key.WithKeys("a"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("enter"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
	),
}

// Run runs the picker and returns the IDs selected and deselected by the user.
// Both are nil if the user quit.
func Run(title string, items []Item) (added, removed []string, err error) {
	m := New(title, items)
	p := tea.NewProgram(m)

	finalModel, err := p.Run()
	if err != nil {
		return nil, nil, err
	}

	fm := finalModel.(Model)
	if fm.IsQuitting() {
		return nil, nil, nil
	}

	added, removed = fm.Diff()
	return added, removed, nil
}
