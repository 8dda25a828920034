package picker

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
	scrollStyle   = lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("240"))
)

func newSearchInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "Type to search..."
	ti.CharLimit = 50
	ti.Width = 40
	return ti
}

// filterItems keeps items whose label, ID or detail contains query
func filterItems(items []Item, query string) []Item {
	if query == "" {
		return items
	}

	query = strings.ToLower(query)
	var filtered []Item
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Label), query) ||
			strings.Contains(strings.ToLower(item.ID), query) ||
			strings.Contains(strings.ToLower(item.Detail), query) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// updateSearch feeds a key to the search input. esc clears the query and
// enter keeps it; both leave search mode.
func updateSearch(ti textinput.Model, msg tea.KeyMsg) (textinput.Model, bool, tea.Cmd) {
	switch msg.String() {
	case "esc":
		ti.SetValue("")
		ti.Blur()
		return ti, false, nil
	case "enter":
		ti.Blur()
		return ti, false, nil
	}
	var cmd tea.Cmd
	ti, cmd = ti.Update(msg)
	return ti, true, cmd
}

func searchBar(ti textinput.Model, searching bool) string {
	switch {
	case searching:
		return "\n🔍 " + ti.View() + "\n"
	case ti.Value() != "":
		return "\n" + faintStyle.Render("Filter: "+ti.Value()+" (press / to edit)") + "\n"
	}
	return ""
}

// scrollOffset keeps cursor inside the visible window
func scrollOffset(cursor, offset, count int) int {
	if cursor < offset {
		offset = cursor
	}
	if cursor >= offset+maxVisibleItems {
		offset = cursor - maxVisibleItems + 1
	}
	return max(min(offset, count-maxVisibleItems), 0)
}
