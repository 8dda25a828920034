package tui

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// StatusTTL is how long finished statuses stay on screen
const StatusTTL = 3 * time.Second

// StatusKind orders statuses on the status bar
type StatusKind int

// Lower values are shown first
const (
	StatusProgress StatusKind = iota
	StatusError
	StatusSuccess
	StatusInfo
)

// StatusEntry is one notification, keyed so an operation can replace its own
type StatusEntry struct {
	ID      string
	Message string
	Kind    StatusKind
	Updated time.Time
}

// Status collects concurrent notifications for the status bar.
// Progress entries stay until replaced or removed; others expire.
type Status struct {
	entries []StatusEntry
	now     func() time.Time
}

// NewStatus returns an empty status bar
func NewStatus() *Status {
	return &Status{now: time.Now}
}

// Set adds or replaces the entry with id
func (s *Status) Set(id, message string, kind StatusKind) {
	e := StatusEntry{ID: id, Message: message, Kind: kind, Updated: s.now()}
	if i := slices.IndexFunc(s.entries, func(e StatusEntry) bool { return e.ID == id }); i >= 0 {
		s.entries[i] = e
		return
	}
	s.entries = append(s.entries, e)
}

// Remove drops the entry with id
func (s *Status) Remove(id string) {
	s.entries = slices.DeleteFunc(s.entries, func(e StatusEntry) bool { return e.ID == id })
}

// Expire drops finished entries older than StatusTTL
func (s *Status) Expire() {
	now := s.now()
	s.entries = slices.DeleteFunc(s.entries, func(e StatusEntry) bool {
		return e.Kind != StatusProgress && now.Sub(e.Updated) >= StatusTTL
	})
}

// Busy reports whether any operation is in progress
func (s *Status) Busy() bool {
	return slices.ContainsFunc(s.entries, func(e StatusEntry) bool { return e.Kind == StatusProgress })
}

// Entries returns the entries in display order
func (s *Status) Entries() []StatusEntry {
	sorted := slices.Clone(s.entries)
	slices.SortStableFunc(sorted, func(a, b StatusEntry) int { return cmp.Compare(a.Kind, b.Kind) })
	return sorted
}

// Kind is the kind of the most important entry, used for coloring
func (s *Status) Kind() StatusKind {
	if len(s.entries) == 0 {
		return StatusSuccess
	}
	return s.Entries()[0].Kind
}

// String joins all messages in display order, or "Ready" when idle
func (s *Status) String() string {
	if len(s.entries) == 0 {
		return "Ready"
	}
	entries := s.Entries()
	msgs := make([]string, len(entries))
	for i, e := range entries {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, " | ")
}
