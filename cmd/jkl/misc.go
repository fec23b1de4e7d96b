package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jkl-dev/jkl/internal/config"
	"github.com/jkl-dev/jkl/internal/store"
	"github.com/jkl-dev/jkl/internal/tmux"
)

func (a *app) hooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Manage tmux hooks",
		Args:  noArgs,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Keep stored sessions in step with tmux session renames",
		Long: `Install a global tmux "session-renamed" hook that runs "jkl rename" so a
stored session follows its tmux session to the new name.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHooksInstall(cmd)
		},
	})
	return cmd
}

func (a *app) runHooksInstall(cmd *cobra.Command) error {
	bin, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate jkl binary: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(bin); err == nil {
		bin = resolved
	}

	// The hook runs in the tmux server's environment, so settings that came
	// from this shell are passed explicitly.
	var extra []string
	if p := a.storePath().String(); p != config.DefaultStorePath() {
		extra = append(extra, "--store", p)
	}
	if s := a.cfg.Socket(a.socketFlag); s != "" {
		extra = append(extra, "--socket", s)
	}

	if err := a.tmuxClient().InstallHooks(cmd.Context(), bin, extra...); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Installed %s hook:\n  %s\n", tmux.HookEvent, tmux.HookCommand(bin, extra...))
	return nil
}

// editorCommand returns the editor argv: $VISUAL, then $EDITOR, then vi.
func editorCommand() []string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(os.Getenv(env)); len(fields) > 0 {
			return fields
		}
	}
	return []string{"vi"}
}

func (a *app) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the store file in $VISUAL or $EDITOR",
		Long: `Open the store file in an editor. The file is created first if missing,
and checked once the editor exits.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEdit()
		},
	}
}

func (a *app) runEdit() error {
	path := a.storePath()
	if _, err := os.Stat(path.String()); errors.Is(err, os.ErrNotExist) {
		if err := store.New(path).Save(); err != nil {
			return err
		}
	}

	argv := append(editorCommand(), path.String())
	c := exec.Command(argv[0], argv[1:]...)
	c.Stdin, c.Stdout, c.Stderr = a.in, a.out, a.errOut
	if err := c.Run(); err != nil {
		return fmt.Errorf("editor %s: %w", argv[0], err)
	}

	st, err := store.Load(path)
	if err != nil {
		return err
	}
	a.reportProblems(st)
	return nil
}

func (a *app) pathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the store file location",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(a.out, a.storePath())
			return nil
		},
	}
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the jkl version",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.out, "jkl v%s\n", Version)
			return nil
		},
	}
}
