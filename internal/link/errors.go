package link

import (
	"errors"
	"fmt"
)

var (
	// ErrNameCollision means the activation entry exists but is not our link
	ErrNameCollision = errors.New("name collision in activation directory")

	// ErrForeign means the link exists but points somewhere else
	ErrForeign = errors.New("link points elsewhere")
)

// LinkError represents a failed activation change
type LinkError struct {
	Op   string // "link", "unlink", "relink"
	Name string // qualified skill name
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}
