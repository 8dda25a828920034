package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// lines taken by the title, header, status bar and help
const chromeHeight = 7

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("silk - Skill Manager"))
	b.WriteString("\n")

	switch m.screen {
	case screenPreview:
		b.WriteString(dimStyle.Render(m.previewing.QualifiedName))
		b.WriteString("\n")
		b.WriteString(m.preview.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓: scroll • esc: back"))
		return b.String()
	case screenSkills:
		m.viewSkills(&b)
	default:
		m.viewPlugins(&b)
	}

	if m.installing {
		b.WriteString("\n")
		b.WriteString(popupStyle.Render("Install plugin\n" + m.install.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.viewStatus())
	b.WriteString("\n")
	b.WriteString(m.viewFooter())
	return b.String()
}

func (m Model) viewPlugins(b *strings.Builder) {
	plugins := m.visiblePlugins()
	b.WriteString(dimStyle.Render(fmt.Sprintf("Plugins (%d)", len(plugins))))
	b.WriteString("\n\n")

	if len(plugins) == 0 {
		if m.search.Value() != "" {
			b.WriteString(dimStyle.Render("  (no matching plugins)"))
		} else {
			b.WriteString(dimStyle.Render("  (no plugins installed, press i to install one)"))
		}
		b.WriteString("\n")
		return
	}

	start, end := m.window(m.pluginCursor, len(plugins))
	for i := start; i < end; i++ {
		p := plugins[i]
		label := p.ID()
		if m.eng.Busy(p.Ref) {
			label += " " + m.spinner.View()
		}
		counts := dimStyle.Render(fmt.Sprintf("  %d/%d linked", p.LinkedCount(), len(p.Skills)))
		if i == m.pluginCursor {
			b.WriteString(cursorStyle.Render("> ") + lipgloss.NewStyle().Bold(true).Render(label) + counts)
		} else {
			b.WriteString("  " + label + counts)
		}
		b.WriteString("\n")
	}
}

func (m Model) viewSkills(b *strings.Builder) {
	skills := m.visibleSkills()
	header := m.current.String()
	if p, ok := m.eng.Snapshot().Plugin(m.current); ok {
		header = fmt.Sprintf("%s (%d/%d linked)", p.ID(), p.LinkedCount(), len(p.Skills))
	}
	b.WriteString(dimStyle.Render(header))
	b.WriteString("\n\n")

	if len(skills) == 0 {
		b.WriteString(dimStyle.Render("  (no skills)"))
		b.WriteString("\n")
		return
	}

	start, end := m.window(m.skillCursor, len(skills))
	for i := start; i < end; i++ {
		s := skills[i]
		check := "[ ]"
		if s.IsLinked {
			check = linkedStyle.Render("[x]")
		}
		cursor := "  "
		if i == m.skillCursor {
			cursor = cursorStyle.Render("> ")
		}
		line := fmt.Sprintf("%s%s %s", cursor, check, s.Name)
		if s.Description != "" {
			line += dimStyle.Render("  " + s.Description)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

// window returns the visible slice bounds that keep cursor on screen
func (m Model) window(cursor, n int) (int, int) {
	rows := m.height - chromeHeight
	if m.height == 0 || rows >= n {
		return 0, n
	}
	rows = max(rows, 1)
	start := max(cursor-rows+1, 0)
	return start, min(start+rows, n)
}

func (m Model) viewStatus() string {
	text := m.status.String()
	if m.status.Busy() {
		text = m.spinner.View() + " " + text
	}
	line := statusStyle(m.status.Kind()).Render(" " + text)
	if m.width > 0 {
		return statusBarStyle.Width(m.width).Render(line)
	}
	return statusBarStyle.Render(line)
}

func (m Model) viewFooter() string {
	switch {
	case m.installing:
		return helpStyle.Render("enter: install • esc: cancel")
	case m.searching:
		return inputStyle.Render("/") + m.search.View()
	case m.search.Value() != "":
		return helpStyle.Render("filter: " + m.search.Value() + " (/ to edit, esc to clear)")
	case m.screen == screenSkills:
		return helpStyle.Render("space: link • v: preview • u: update • /: search • r: refresh • x: cancel • h: back • q: quit")
	default:
		return helpStyle.Render("l: open • space: link all • i: install • u: update • d: delete • /: search • r: refresh • x: cancel • q: quit")
	}
}
