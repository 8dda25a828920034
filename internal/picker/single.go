package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SingleModel is the Bubble Tea model for single-select picker
type SingleModel struct {
	title       string
	items       []Item
	cursor      int
	offset      int // scroll offset
	done        bool
	quitting    bool
	searchInput textinput.Model
	searching   bool
}

// NewSingle creates a new single-select picker model
func NewSingle(title string, items []Item) SingleModel {
	// Find initially selected item
	cursor := 0
	for i, item := range items {
		if item.Selected {
			cursor = i
			break
		}
	}

	return SingleModel{
		title:       title,
		items:       items,
		cursor:      cursor,
		offset:      scrollOffset(cursor, 0, len(items)),
		searchInput: newSearchInput(),
	}
}

// Selected returns the ID of the selected item
func (m SingleModel) Selected() string {
	items := m.visible()
	if m.cursor < len(items) {
		return items[m.cursor].ID
	}
	return ""
}

// IsQuitting returns true if the user quit without confirming
func (m SingleModel) IsQuitting() bool {
	return m.quitting
}

// Init implements tea.Model
func (m SingleModel) Init() tea.Cmd {
	return nil
}

func (m SingleModel) visible() []Item {
	return filterItems(m.items, m.searchInput.Value())
}

// Update implements tea.Model
func (m SingleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
	case key.Matches(keyMsg, singleKeys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(keyMsg, singleKeys.Search):
		m.searching = true
		m.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(keyMsg, singleKeys.Up):
		if m.cursor > 0 {
			m.cursor--
		} else if len(items) > 0 {
			m.cursor = len(items) - 1
		}

	case key.Matches(keyMsg, singleKeys.Down):
		if m.cursor < len(items)-1 {
			m.cursor++
		} else {
			m.cursor = 0
		}

	case key.Matches(keyMsg, singleKeys.Confirm):
		if len(items) == 0 {
			return m, nil
		}
		m.done = true
		return m, tea.Quit
	}

	m.offset = scrollOffset(m.cursor, m.offset, len(items))
	return m, nil
}

// View implements tea.Model
func (m SingleModel) View() string {
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
		if m.searchInput.Value() != "" {
			b.WriteString(faintStyle.Render("  (no matching items)"))
		} else {
			b.WriteString(faintStyle.Render("  (no items)"))
		}
		b.WriteString("\n")
	}

	if m.offset > 0 {
		b.WriteString(scrollStyle.Render(fmt.Sprintf("  ↑ %d more above", m.offset)))
		b.WriteString("\n")
	}

	end := min(m.offset+maxVisibleItems, len(items))
	for i := m.offset; i < end; i++ {
		item := items[i]
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> "))
			b.WriteString(selectedStyle.Render(item.Label))
		} else {
			b.WriteString("  ")
			b.WriteString(item.Label)
		}
		if item.Detail != "" {
			b.WriteString(faintStyle.Render("  " + item.Detail))
		}
		b.WriteString("\n")
	}

	if remaining := len(items) - end; remaining > 0 {
		b.WriteString(scrollStyle.Render(fmt.Sprintf("  ↓ %d more below", remaining)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("↑/↓: navigate • /: search • enter: select • q: quit"))

	return b.String()
}

// singleKeyMap defines the key bindings for single select
type singleKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Search  key.Binding
	Confirm key.Binding
	Quit    key.Binding
}

var singleKeys = singleKeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
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

// RunSingle runs the single-select picker and returns selected item ID
func RunSingle(title string, items []Item) (string, error) {
	m := NewSingle(title, items)
	p := tea.NewProgram(m)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	fm := finalModel.(SingleModel)
	if fm.IsQuitting() {
		return "", nil
	}

	return fm.Selected(), nil
}
