package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/samhoang/silk/internal/engine"
)

// Run shows the manager until the user quits. In-flight jobs are canceled
// on exit.
func Run(ctx context.Context, eng *engine.Engine, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(ctx, eng, opts), tea.WithAltScreen())
	_, err := p.Run()
	eng.CancelJobs()
	return err
}
