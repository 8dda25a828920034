package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/samhoang/silk/internal/config"
	"github.com/samhoang/silk/internal/engine"
	"github.com/samhoang/silk/internal/picker"
	"github.com/samhoang/silk/internal/plugin"
	"github.com/samhoang/silk/internal/tui"
	"github.com/samhoang/silk/internal/watch"
)

// loadSettings resolves paths and config with flag > env > file > default
func loadSettings() (*config.Paths, *config.Config, error) {
	paths, err := config.ResolvePaths()
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadConfig(paths.ConfigDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", paths.ConfigFile(), err)
	}
	cfg.ApplyTo(paths)

	if flagCacheDir != "" {
		paths.CacheDir = config.ExpandHome(flagCacheDir)
	}
	if flagSkillsDir != "" {
		paths.SkillsDir = config.ExpandHome(flagSkillsDir)
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}

	return paths, cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel()}))
}

// openEngine builds an engine logging to stderr and loads the first snapshot
func openEngine(ctx context.Context) (*engine.Engine, error) {
	paths, cfg, err := loadSettings()
	if err != nil {
		return nil, err
	}

	logger := newLogger(os.Stderr, cfg)
	slog.SetDefault(logger)

	eng := engine.Open(paths, cfg, logger)
	if err := eng.Refresh(ctx); err != nil {
		return nil, err
	}
	return eng, nil
}

// runTUI hands the terminal to the manager. Logs go to silk.log meanwhile.
func runTUI(ctx context.Context) error {
	paths, cfg, err := loadSettings()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(paths.ConfigDir, 0755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(paths.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()

	logger := newLogger(logFile, cfg)
	slog.SetDefault(logger)

	eng := engine.Open(paths, cfg, logger)
	if err := eng.Refresh(ctx); err != nil {
		return err
	}

	opts := tui.Options{Preview: cfg.UI.Preview, Logger: logger}
	if cfg.UI.Watch {
		w, err := startWatcher(ctx, paths, logger)
		if err != nil {
			logger.Warn("live refresh disabled", "error", err)
		} else {
			defer w.Close()
			opts.Changes = w.Changes()
		}
	}

	return tui.Run(ctx, eng, opts)
}

// startWatcher watches <host>/<owner> levels of the cache and the skills
// directory itself
func startWatcher(ctx context.Context, paths *config.Paths, logger *slog.Logger) (*watch.Watcher, error) {
	if err := os.MkdirAll(paths.CacheDir, 0755); err != nil {
		return nil, err
	}

	w, err := watch.New(logger)
	if err != nil {
		return nil, err
	}
	if err := w.Add(paths.CacheDir, 2); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(paths.SkillsDir, 0); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.Close()
			return nil, err
		}
		logger.Debug("skills directory missing, not watched", "dir", paths.SkillsDir)
	}

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("watcher stopped", "error", err)
		}
	}()
	return w, nil
}

func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// pickPlugin asks for a plugin when none was named. ok is false if the user
// quit the picker.
func pickPlugin(eng *engine.Engine, title string) (p plugin.Plugin, ok bool, err error) {
	plugins := eng.ListPlugins()
	if len(plugins) == 0 {
		return plugin.Plugin{}, false, errors.New("no plugins installed")
	}
	if !interactive() {
		return plugin.Plugin{}, false, errors.New("plugin reference required")
	}

	items := make([]picker.Item, 0, len(plugins))
	for _, p := range plugins {
		items = append(items, picker.Item{
			ID:     p.ID(),
			Label:  p.ID(),
			Detail: fmt.Sprintf("%d skills", len(p.Skills)),
		})
	}

	id, err := picker.RunSingle(title, items)
	if err != nil || id == "" {
		return plugin.Plugin{}, false, err
	}
	p, err = eng.FindPlugin(id)
	return p, err == nil, err
}
