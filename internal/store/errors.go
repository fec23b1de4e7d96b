package store

import "fmt"

// CorruptStoreError means the store file exists but is not a valid store.
// The file is left untouched.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("store file %s is corrupt (fix or move it aside): %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

// IOError wraps a filesystem failure while loading or saving.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NotFoundError is returned when a rename source does not resolve to any
// stored session.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no stored session matches %q", e.Name)
}

// InvalidStatusError is returned by ParseStatus.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q (want working, waiting, idle, done or none)", e.Value)
}
