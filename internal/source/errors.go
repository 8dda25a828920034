package source

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidReference is returned for input that does not name a repository
var ErrInvalidReference = errors.New("invalid repository reference")

// ResolveError describes why a reference could not be resolved
type ResolveError struct {
	Input  string // raw user input
	Reason string // short explanation
}

func (e *ResolveError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v %q: %s", ErrInvalidReference, e.Input, e.Reason)
	}
	return fmt.Sprintf("%v %q", ErrInvalidReference, e.Input)
}

func (e *ResolveError) Unwrap() error {
	return ErrInvalidReference
}

// GitError represents a failed git invocation
type GitError struct {
	Op     string // operation, e.g. "clone"
	Source string // remote URL or repository path
	Stderr string // opaque diagnostic from git
	Err    error  // underlying error
}

func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s %s: %v", e.Op, e.Source, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// lastLine keeps the final line of git's stderr, which carries the fatal message
func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
