package tui

import (
	"time"

	"github.com/samhoang/silk/internal/engine"
	"github.com/samhoang/silk/internal/plugin"
	"github.com/samhoang/silk/internal/source"
)

type installDoneMsg struct {
	job    *engine.Job
	ref    source.RepoRef
	plugin plugin.Plugin
	err    error
}

type updateDoneMsg struct {
	job    *engine.Job
	ref    source.RepoRef
	report engine.UpdateReport
	err    error
}

type refreshDoneMsg struct {
	quiet bool // triggered by the watcher, not the user
	err   error
}

// changedMsg means the watcher saw the cache or activation directory change
type changedMsg struct{}

type previewMsg struct {
	skill   plugin.Skill
	content string
	err     error
}

type expireMsg time.Time
