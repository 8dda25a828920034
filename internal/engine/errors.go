package engine

import "errors"

var (
	// ErrBusy means another install, update or delete holds the plugin
	ErrBusy          = errors.New("operation already in progress")
	ErrUnknownPlugin = errors.New("plugin not installed")
	ErrUnknownSkill  = errors.New("unknown skill")
)
