package cache

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyExists = errors.New("plugin already installed")
	ErrNotFound      = errors.New("plugin not installed")
	ErrFetchFailed   = errors.New("fetch failed")
)

// StoreError represents a failed cache operation
type StoreError struct {
	Op  string // "clone", "update", "remove"
	Ref string // host/owner/repo
	Err error
}

func (e *StoreError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Ref, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
