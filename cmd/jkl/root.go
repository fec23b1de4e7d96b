package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jkl-dev/jkl/internal/config"
	"github.com/jkl-dev/jkl/internal/logging"
	"github.com/jkl-dev/jkl/internal/store"
	"github.com/jkl-dev/jkl/internal/tmux"
)

var cliLog = logging.ForComponent(logging.CompCLI)

// tmuxAPI is the part of *tmux.Client the commands use.
type tmuxAPI interface {
	ListSessions(ctx context.Context) ([]tmux.Session, error)
	FindSession(ctx context.Context, target string) (tmux.Session, bool, error)
	CurrentPane(ctx context.Context) (tmux.Location, error)
	SwitchClient(ctx context.Context, target string) error
	SelectPane(ctx context.Context, paneID string) error
	InstallHooks(ctx context.Context, binary string, extraArgs ...string) error
}

// app carries global flags and the resolved config through the command tree.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	storeFlag  string
	socketFlag string
	debug      bool

	cfg *config.Config

	// newTmux builds the tmux client. Replaced in tests.
	newTmux func(socket string) tmuxAPI
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:     in,
		out:    out,
		errOut: errOut,
		cfg:    config.Default(),
		newTmux: func(socket string) tmuxAPI {
			return tmux.NewClient(socket)
		},
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jkl",
		Short: "Track status and context for tmux sessions and panes",
		Long: `jkl keeps a human-assigned status and a free-text context for each tmux
session and pane, and shows them next to the live tmux state.

Run without a subcommand to open the interactive list.`,
		Version:           Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context(), tuiOptions{})
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.storeFlag, "store", "", "store file (default $"+config.EnvStore+" or "+config.DefaultStorePath()+")")
	pf.StringVar(&a.socketFlag, "socket", "", "tmux socket name (tmux -L)")
	pf.BoolVar(&a.debug, "debug", false, "write debug logs to "+config.StateDir())

	root.AddCommand(
		a.upsertCmd(),
		a.renameCmd(),
		a.tuiCmd(),
		a.listCmd(),
		a.pruneCmd(),
		a.hooksCmd(),
		a.editCmd(),
		a.pathCmd(),
		a.versionCmd(),
	)
	return root
}

// setup loads the config file and starts logging. A broken config file is
// reported and defaults are used.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		fmt.Fprintf(a.errOut, "Warning: %v (using defaults)\n", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	a.cfg = cfg

	logging.Init(cfg.Logging(config.DebugEnabled(a.debug)))
	cliLog.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("store", a.storePath().String()))
	return nil
}

func (a *app) storePath() store.Path {
	return store.Path(a.cfg.StorePath(a.storeFlag))
}

func (a *app) tmuxClient() tmuxAPI {
	return a.newTmux(a.cfg.Socket(a.socketFlag))
}

func (a *app) loadStore() (*store.Store, error) {
	st, err := store.Load(a.storePath())
	if err != nil {
		return nil, err
	}
	a.reportProblems(st)
	return st, nil
}

// reportProblems prints what Load dropped from a hand-edited file.
func (a *app) reportProblems(st *store.Store) {
	for _, p := range st.Problems() {
		fmt.Fprintf(a.errOut, "warning: %s: %s\n", st.Path(), p)
	}
}

// minArgs and noArgs are cobra arg validators that report usage errors.
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usageErrorf("%s: requires at least %d argument(s), got %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageErrorf("%s: unexpected argument %q", cmd.Name(), args[0])
	}
	return nil
}

// joinWords joins multi-word positional arguments with single spaces.
func joinWords(words []string) string {
	return strings.TrimSpace(strings.Join(words, " "))
}

// changed reports whether the named flag was given on the command line.
func changed(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}
