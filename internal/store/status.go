package store

import "strings"

// Status is the human-assigned state of a session or pane.
type Status string

const (
	StatusNone    Status = ""
	StatusWorking Status = "working"
	StatusWaiting Status = "waiting"
	StatusIdle    Status = "idle"
	StatusDone    Status = "done"
)

// Statuses lists the assignable statuses in menu order.
func Statuses() []Status {
	return []Status{StatusWorking, StatusWaiting, StatusIdle, StatusDone}
}

// ParseStatus accepts the four status names case-insensitively. "none"
// parses to StatusNone, which callers use to clear a field.
func ParseStatus(s string) (Status, error) {
	switch v := Status(strings.ToLower(strings.TrimSpace(s))); v {
	case StatusWorking, StatusWaiting, StatusIdle, StatusDone:
		return v, nil
	case "none":
		return StatusNone, nil
	}
	return StatusNone, &InvalidStatusError{Value: s}
}

// Valid reports whether s is one of the four assignable statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusWorking, StatusWaiting, StatusIdle, StatusDone:
		return true
	}
	return false
}

// NeedsAttention is true for statuses that are rendered in the same
// "waiting on a human" color class.
func (s Status) NeedsAttention() bool {
	return s == StatusWaiting || s == StatusIdle
}
