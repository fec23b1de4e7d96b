// Package tmux reads live sessions and panes from a tmux server and drives
// client switching.
package tmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"golang.org/x/sync/singleflight"

	"github.com/jkl-dev/jkl/internal/logging"
)

var tmuxLog = logging.ForComponent(logging.CompTmux)

// ErrNoServer is returned when there is no tmux server to talk to: none is
// running, it has no sessions, or tmux is not installed.
var ErrNoServer = errors.New("no tmux server running")

// noServerMarkers are stderr fragments tmux prints when there is nothing to
// list.
var noServerMarkers = []string{
	"no server running",
	"no sessions",
	"error connecting to",
}

// runFunc executes tmux with args and returns stdout.
type runFunc func(ctx context.Context, args ...string) (string, error)

// Client talks to one tmux server.
type Client struct {
	socket string
	run    runFunc
	sf     singleflight.Group
}

// NewClient returns a client for the default server, or for the server on
// socket name socket (tmux -L) when it is non-empty.
func NewClient(socket string) *Client {
	c := &Client{socket: socket}
	c.run = c.exec
	return c
}

// Socket returns the socket name this client uses, or "" for the default.
func (c *Client) Socket() string {
	return c.socket
}

func (c *Client) exec(ctx context.Context, args ...string) (string, error) {
	sub := args[0]
	if c.socket != "" {
		args = append([]string{"-L", c.socket}, args...)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "tmux", args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: tmux not found in PATH", ErrNoServer)
		}
		msg := strings.TrimSpace(stderr.String())
		if isNoServer(msg) {
			return "", fmt.Errorf("%w: %s", ErrNoServer, msg)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		tmuxLog.Debug("tmux_command_failed",
			slog.String("args", strings.Join(args, " ")),
			slog.String("stderr", msg))
		if msg == "" {
			return "", fmt.Errorf("tmux %s: %w", sub, err)
		}
		return "", fmt.Errorf("tmux %s: %s: %w", sub, msg, err)
	}
	return stdout.String(), nil
}

func isNoServer(stderr string) bool {
	for _, m := range noServerMarkers {
		if strings.Contains(stderr, m) {
			return true
		}
	}
	return false
}

// SwitchClient points the current tmux client at target (a session id,
// name, or pane id).
func (c *Client) SwitchClient(ctx context.Context, target string) error {
	_, err := c.run(ctx, "switch-client", "-t", target)
	return err
}

// SelectPane makes paneID the active pane of its window and the window the
// current one of its session.
func (c *Client) SelectPane(ctx context.Context, paneID string) error {
	if _, err := c.run(ctx, "select-window", "-t", paneID); err != nil {
		return err
	}
	_, err := c.run(ctx, "select-pane", "-t", paneID)
	return err
}

// Location identifies where a command is running inside tmux.
type Location struct {
	SessionName    string
	SessionID      string
	SessionCreated int64
	PaneID         string
}

// CurrentPane reports the pane of the calling process. $TMUX_PANE is used
// as the target when set so the answer does not depend on which client is
// focused.
func (c *Client) CurrentPane(ctx context.Context) (Location, error) {
	args := []string{"display-message", "-p"}
	if pane := os.Getenv("TMUX_PANE"); pane != "" {
		args = append(args, "-t", pane)
	}
	args = append(args, "#{session_id}\t#{session_created}\t#{pane_id}\t#{session_name}")

	out, err := c.run(ctx, args...)
	if err != nil {
		return Location{}, err
	}
	parts := strings.SplitN(strings.TrimRight(out, "\r\n"), "\t", 4)
	if len(parts) != 4 || parts[2] == "" {
		return Location{}, fmt.Errorf("unexpected display-message output %q", out)
	}
	created, _ := strconv.ParseInt(parts[1], 10, 64)
	return Location{SessionID: parts[0], SessionCreated: created, PaneID: parts[2], SessionName: parts[3]}, nil
}

// FindSession returns the live session whose id or name is target. Ids
// are tried first. The bool is false when nothing matches.
func (c *Client) FindSession(ctx context.Context, target string) (Session, bool, error) {
	sessions, err := c.ListSessions(ctx)
	if err != nil {
		return Session{}, false, err
	}
	for _, s := range sessions {
		if s.ID == target {
			return s, true, nil
		}
	}
	for _, s := range sessions {
		if s.Name == target {
			return s, true, nil
		}
	}
	return Session{}, false, nil
}

// HookEvent is the tmux hook the rename handler is attached to.
const HookEvent = "session-renamed"

// InstallHooks sets a global session-renamed hook that runs
// "<binary> [extraArgs] rename --allow-missing <session id> <new name>".
func (c *Client) InstallHooks(ctx context.Context, binary string, extraArgs ...string) error {
	_, err := c.run(ctx, "set-hook", "-g", HookEvent, HookCommand(binary, extraArgs...))
	if err != nil {
		return err
	}
	tmuxLog.Info("hooks_installed", slog.String("binary", binary))
	return nil
}

// HookCommand builds the tmux command string installed by InstallHooks.
func HookCommand(binary string, extraArgs ...string) string {
	words := []string{shellescape.Quote(binary)}
	for _, a := range extraArgs {
		words = append(words, shellescape.Quote(a))
	}
	words = append(words, "rename", "--allow-missing", "'#{hook_session}'", "'#{session_name}'")
	return "run-shell -b " + tmuxQuote(strings.Join(words, " "))
}

// tmuxQuote wraps s in double quotes for tmux's command parser.
func tmuxQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`)
	return `"` + r.Replace(s) + `"`
}
