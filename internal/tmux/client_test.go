package tmux

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient answers tmux invocations from a table keyed by subcommand.
func scriptedClient(t *testing.T, replies map[string]string, errs map[string]error) (*Client, *[][]string) {
	t.Helper()
	var mu sync.Mutex
	var calls [][]string
	c := NewClient("")
	c.run = func(_ context.Context, args ...string) (string, error) {
		mu.Lock()
		calls = append(calls, args)
		mu.Unlock()
		if err := errs[args[0]]; err != nil {
			return "", err
		}
		return replies[args[0]], nil
	}
	return c, &calls
}

func TestListSessionsGroupsPanesByID(t *testing.T) {
	c, _ := scriptedClient(t, map[string]string{
		"list-sessions": "$1\t1718000000\twork\n$0\t1718000500\tname\twith tab\n",
		"list-panes": strings.Join([]string{
			"$1\t%4\t1\t0\t0\t80\t24\tvim",
			"$1\t%2\t0\t1\t1\t40\t24\tzsh",
			"$1\t%1\t0\t0\t0\t40\t24\tgo test ./...",
			"$0\t%0\t0\t0\t1\t120\t40\tbash",
			"$9\t%9\t0\t0\t1\t1\t1\torphan",
		}, "\n") + "\n",
	}, nil)

	got, err := c.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "$1", got[0].ID)
	assert.Equal(t, "work", got[0].Name)
	assert.Equal(t, int64(1718000000), got[0].Created)
	var ids []string
	for _, p := range got[0].Panes {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"%1", "%2", "%4"}, ids)
	assert.Equal(t, "go test ./...", got[0].Panes[0].Command)
	assert.True(t, got[0].Panes[1].Active)
	assert.Equal(t, 40, got[0].Panes[1].Width)

	assert.Equal(t, "name\twith tab", got[1].Name)
	require.Len(t, got[1].Panes, 1)
	assert.Equal(t, 120, got[1].Panes[0].Width)
	assert.Equal(t, 40, got[1].Panes[0].Height)
}

func TestListSessionsPropagatesNoServer(t *testing.T) {
	c, _ := scriptedClient(t, nil, map[string]error{
		"list-sessions": fmt.Errorf("%w: no server running on /tmp/tmux-0/default", ErrNoServer),
	})
	_, err := c.ListSessions(context.Background())
	assert.ErrorIs(t, err, ErrNoServer)
}

func TestListSessionsCoalescesConcurrentCalls(t *testing.T) {
	var runs atomic.Int32
	release := make(chan struct{})
	c := NewClient("")
	c.run = func(_ context.Context, args ...string) (string, error) {
		if args[0] == "list-sessions" {
			runs.Add(1)
			<-release
			return "$0\t1\tone\n", nil
		}
		return "$0\t%0\t0\t0\t1\t80\t24\tsh\n", nil
	}

	var wg sync.WaitGroup
	results := make([][]Session, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.ListSessions(context.Background())
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.GreaterOrEqual(t, runs.Load(), int32(1))
	for _, r := range results {
		require.Len(t, r, 1)
		assert.Equal(t, "one", r[0].Name)
	}

	// Shared results must not alias each other.
	results[0][0].Panes[0].ID = "%changed"
	assert.Equal(t, "%0", results[1][0].Panes[0].ID)
}

func TestParsePanesSkipsMalformed(t *testing.T) {
	panes, skipped := parsePanes("$0\t%0\t0\t0\t1\t80\t24\tsh\ngarbage\n$0\t%1\tx\t0\t0\t1\t1\tsh\n")
	assert.Len(t, panes, 1)
	assert.Equal(t, 2, skipped)
}

func TestParsePaneWithoutCommand(t *testing.T) {
	p, err := parsePaneLine("$2\t%5\t3\t1\t0\t10\t5")
	require.NoError(t, err)
	assert.Equal(t, "$2", p.sessionID)
	assert.Equal(t, 3, p.pane.WindowIndex)
	assert.Equal(t, 1, p.pane.PaneIndex)
	assert.Empty(t, p.pane.Command)
}

func TestIsNoServer(t *testing.T) {
	assert.True(t, isNoServer("no server running on /tmp/tmux-1000/default"))
	assert.True(t, isNoServer("error connecting to /tmp/tmux-1000/x (No such file or directory)"))
	assert.True(t, isNoServer("no sessions"))
	assert.False(t, isNoServer("can't find session: foo"))
}

func TestSelectPaneSelectsWindowFirst(t *testing.T) {
	c, calls := scriptedClient(t, nil, nil)
	require.NoError(t, c.SelectPane(context.Background(), "%3"))
	assert.Equal(t, [][]string{
		{"select-window", "-t", "%3"},
		{"select-pane", "-t", "%3"},
	}, *calls)
}

func TestSelectPaneStopsOnWindowError(t *testing.T) {
	boom := errors.New("boom")
	c, calls := scriptedClient(t, nil, map[string]error{"select-window": boom})
	assert.ErrorIs(t, c.SelectPane(context.Background(), "%3"), boom)
	assert.Len(t, *calls, 1)
}

func TestCurrentPaneUsesTmuxPane(t *testing.T) {
	t.Setenv("TMUX_PANE", "%12")
	c, calls := scriptedClient(t, map[string]string{
		"display-message": "$3\t1718000000\t%12\tmy session\n",
	}, nil)

	loc, err := c.CurrentPane(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Location{SessionID: "$3", SessionCreated: 1718000000, PaneID: "%12", SessionName: "my session"}, loc)
	assert.Contains(t, (*calls)[0], "%12")
}

func TestFindSessionByIDOrName(t *testing.T) {
	c, _ := scriptedClient(t, map[string]string{
		"list-sessions": "$0\t100\ta\n$5\t200\tb\n$6\t300\t$0\n",
	}, nil)
	ctx := context.Background()

	s, ok, err := c.FindSession(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "$5", s.ID)
	assert.Equal(t, int64(200), s.Created)

	// ids win over a session named like an id
	s, ok, err = c.FindSession(ctx, "$0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", s.Name)

	_, ok, err = c.FindSession(ctx, "zzz")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseSessionsSkipsMalformedLines(t *testing.T) {
	got := parseSessions("$1\t5\tok\nnotabs\n$2\tx\t\n$3\tbad\tstamp kept\n")
	require.Len(t, got, 2)
	assert.Equal(t, "ok", got[0].Name)
	assert.Equal(t, "stamp kept", got[1].Name)
	assert.Zero(t, got[1].Created)
}

func TestHookCommand(t *testing.T) {
	got := HookCommand("/usr/local/bin/jkl")
	assert.Equal(t,
		`run-shell -b "/usr/local/bin/jkl rename --allow-missing '#{hook_session}' '#{session_name}'"`,
		got)

	got = HookCommand("/opt/my tools/jkl", "--store", "/tmp/s.json")
	assert.Contains(t, got, `'/opt/my tools/jkl' --store /tmp/s.json rename`)
}

func TestInstallHooks(t *testing.T) {
	c, calls := scriptedClient(t, nil, nil)
	require.NoError(t, c.InstallHooks(context.Background(), "jkl"))
	require.Len(t, *calls, 1)
	assert.Equal(t, []string{"set-hook", "-g", HookEvent, HookCommand("jkl")}, (*calls)[0])
}
