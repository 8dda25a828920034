package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent  = lipgloss.Color("69")
	colorCursor  = lipgloss.Color("212")
	colorSuccess = lipgloss.Color("42")
	colorError   = lipgloss.Color("196")
	colorDim     = lipgloss.Color("240")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	cursorStyle = lipgloss.NewStyle().Foreground(colorCursor)
	linkedStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	helpStyle   = lipgloss.NewStyle().Foreground(colorDim)
	inputStyle  = lipgloss.NewStyle().Foreground(colorAccent)

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(colorDim)
)

func statusStyle(kind StatusKind) lipgloss.Style {
	switch kind {
	case StatusError:
		return lipgloss.NewStyle().Foreground(colorError)
	case StatusSuccess:
		return lipgloss.NewStyle().Foreground(colorSuccess)
	case StatusProgress:
		return lipgloss.NewStyle().Foreground(colorAccent)
	default:
		return lipgloss.NewStyle().Foreground(colorDim)
	}
}

func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)
	return s
}

// markdownRenderer renders SKILL.md files for the preview pane
type markdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
}

func newMarkdownRenderer(width int) *markdownRenderer {
	if width < 40 {
		width = 80
	}
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	return &markdownRenderer{renderer: r, width: width}
}

// render falls back to the raw text when styling fails
func (r *markdownRenderer) render(md string) string {
	if r.renderer == nil {
		return md
	}
	out, err := r.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func (r *markdownRenderer) updateWidth(width int) {
	if width < 40 {
		width = 80
	}
	if width == r.width {
		return
	}
	r.width = width
	if next, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width-4)); err == nil {
		r.renderer = next
	}
}
