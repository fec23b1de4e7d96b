package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jkl-dev/jkl/internal/logging"
	"github.com/jkl-dev/jkl/internal/store"
	"github.com/jkl-dev/jkl/internal/tmux"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "0.3.0"

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitUsage    = 2
	exitNotFound = 3
	exitCorrupt  = 4
	exitIO       = 5
	exitNoServer = 6
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	defer logging.Shutdown()

	root := a.rootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

// usageError marks bad flags, arguments or values.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	var (
		usage    *usageError
		invalid  *store.InvalidStatusError
		notFound *store.NotFoundError
		corrupt  *store.CorruptStoreError
		ioErr    *store.IOError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usage), errors.As(err, &invalid):
		return exitUsage
	case errors.As(err, &notFound):
		return exitNotFound
	case errors.As(err, &corrupt):
		return exitCorrupt
	case errors.As(err, &ioErr):
		return exitIO
	case errors.Is(err, tmux.ErrNoServer):
		return exitNoServer
	}
	return exitError
}
