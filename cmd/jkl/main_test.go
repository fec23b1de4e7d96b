package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkl-dev/jkl/internal/identity"
	"github.com/jkl-dev/jkl/internal/store"
	"github.com/jkl-dev/jkl/internal/tmux"
	"github.com/jkl-dev/jkl/internal/ui"
)

type fakeTmux struct {
	sessions []tmux.Session
	listErr  error
	here     tmux.Location
	hereErr  error

	socket    string
	hookBin   string
	hookExtra []string
}

func (f *fakeTmux) ListSessions(context.Context) ([]tmux.Session, error) {
	return f.sessions, f.listErr
}

func (f *fakeTmux) FindSession(_ context.Context, target string) (tmux.Session, bool, error) {
	if f.listErr != nil {
		return tmux.Session{}, false, f.listErr
	}
	for _, s := range f.sessions {
		if s.ID == target || s.Name == target {
			return s, true, nil
		}
	}
	return tmux.Session{}, false, nil
}

func (f *fakeTmux) CurrentPane(context.Context) (tmux.Location, error) {
	return f.here, f.hereErr
}

func (f *fakeTmux) SwitchClient(context.Context, string) error { return nil }
func (f *fakeTmux) SelectPane(context.Context, string) error   { return nil }

func (f *fakeTmux) InstallHooks(_ context.Context, binary string, extraArgs ...string) error {
	f.hookBin, f.hookExtra = binary, extraArgs
	return nil
}

func noServer() *fakeTmux {
	return &fakeTmux{listErr: fmt.Errorf("%w: no server running on /tmp/tmux-0/default", tmux.ErrNoServer)}
}

type result struct {
	code   int
	stdout string
	stderr string
}

// runCLI executes the command tree against fake tmux and returns what a
// user would see.
func runCLI(t *testing.T, fake *fakeTmux, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(""), &out, &errOut)
	a.newTmux = func(socket string) tmuxAPI {
		fake.socket = socket
		return fake
	}
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err != nil {
		fmt.Fprintf(&errOut, "Error: %v\n", err)
	}
	return result{code: exitCode(err), stdout: out.String(), stderr: errOut.String()}
}

func storeFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "session_context.json")
}

func rawStore(t *testing.T, path string) map[string]map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw
}

func loadStore(t *testing.T, path string) *store.Store {
	t.Helper()
	st, err := store.Load(store.Path(path))
	require.NoError(t, err)
	return st
}

func TestUpsertFreshStore(t *testing.T) {
	path := storeFile(t)
	res := runCLI(t, noServer(), "--store", path, "upsert", "proj", "--status", "working")
	require.Equal(t, exitOK, res.code, res.stderr)

	key := identity.KeyFor("proj").String()
	assert.Equal(t, key+"\n", res.stdout)

	raw := rawStore(t, path)
	require.Len(t, raw, 1)
	entry := raw[key]
	require.NotNil(t, entry)
	assert.Equal(t, "proj", entry["session_name"])
	assert.Equal(t, "working", entry["status"])
	assert.NotContains(t, entry, "context")
	assert.Equal(t, map[string]any{}, entry["panes"])
}

func TestUpsertPaneWithWordsAndContext(t *testing.T) {
	path := storeFile(t)
	res := runCLI(t, noServer(), "--store", path,
		"upsert", "my", "project", "--pane-id", "%4", "--status", "Waiting",
		"--context", "needs", "--context", "review")
	require.Equal(t, exitOK, res.code, res.stderr)

	rec, ok := loadStore(t, path).Lookup("my project")
	require.True(t, ok)
	assert.Equal(t, store.StatusNone, rec.Status)
	require.Contains(t, rec.Panes, "%4")
	assert.Equal(t, store.StatusWaiting, rec.Panes["%4"].Status)
	assert.Equal(t, "needs review", rec.Panes["%4"].Context)
}

func TestUpsertLeavesUnsetFieldsAlone(t *testing.T) {
	path := storeFile(t)
	require.Equal(t, exitOK, runCLI(t, noServer(), "--store", path, "upsert", "a", "--context", "keep").code)
	require.Equal(t, exitOK, runCLI(t, noServer(), "--store", path, "upsert", "a", "--status", "done").code)
	require.Equal(t, exitOK, runCLI(t, noServer(), "--store", path, "upsert", "a", "--status", "idle").code)

	rec, _ := loadStore(t, path).Lookup("a")
	assert.Equal(t, store.StatusIdle, rec.Status)
	assert.Equal(t, "keep", rec.Context)
}

func TestUpsertClearsWithNoneAndEmpty(t *testing.T) {
	path := storeFile(t)
	runCLI(t, noServer(), "--store", path, "upsert", "a", "--status", "done", "--context", "x")
	res := runCLI(t, noServer(), "--store", path, "upsert", "a", "--status", "none", "--context", "")
	require.Equal(t, exitOK, res.code, res.stderr)

	entry := rawStore(t, path)[identity.KeyFor("a").String()]
	assert.NotContains(t, entry, "status")
	assert.NotContains(t, entry, "context")
}

func TestUpsertInvalidStatusIsUsageError(t *testing.T) {
	path := storeFile(t)
	res := runCLI(t, noServer(), "--store", path, "upsert", "a", "--status", "busy")
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, `invalid status "busy"`)
	assert.NoFileExists(t, path)
}

func TestUpsertRequiresName(t *testing.T) {
	res := runCLI(t, noServer(), "--store", storeFile(t), "upsert", "--status", "done")
	assert.Equal(t, exitUsage, res.code)
}

func TestUpsertRecordsSessionIDFromTmux(t *testing.T) {
	path := storeFile(t)
	fake := &fakeTmux{sessions: []tmux.Session{{ID: "$7", Name: "api", Created: 1718000000}}}
	require.Equal(t, exitOK, runCLI(t, fake, "--store", path, "upsert", "api", "--status", "working").code)

	rec, _ := loadStore(t, path).Lookup("api")
	assert.Equal(t, "$7", rec.SessionID)
	assert.Equal(t, int64(1718000000), rec.SessionCreated)
}

func TestUpsertHere(t *testing.T) {
	path := storeFile(t)
	fake := &fakeTmux{here: tmux.Location{SessionName: "web", SessionID: "$2", PaneID: "%9"}}
	res := runCLI(t, fake, "--store", path, "upsert", "--here", "--status", "done")
	require.Equal(t, exitOK, res.code, res.stderr)

	rec, ok := loadStore(t, path).Lookup("web")
	require.True(t, ok)
	assert.Equal(t, "$2", rec.SessionID)
	assert.Equal(t, store.StatusDone, rec.Panes["%9"].Status)
}

func TestUpsertHereOutsideTmux(t *testing.T) {
	fake := &fakeTmux{hereErr: fmt.Errorf("%w: no server running", tmux.ErrNoServer)}
	res := runCLI(t, fake, "--store", storeFile(t), "upsert", "--here")
	assert.Equal(t, exitNoServer, res.code)
}

func TestRenameMovesRecord(t *testing.T) {
	path := storeFile(t)
	runCLI(t, noServer(), "--store", path, "upsert", "a", "--pane-id", "%1", "--status", "done")

	res := runCLI(t, noServer(), "--store", path, "rename", "a", "b")
	require.Equal(t, exitOK, res.code, res.stderr)

	raw := rawStore(t, path)
	assert.NotContains(t, raw, identity.KeyFor("a").String())
	entry := raw[identity.KeyFor("b").String()]
	require.NotNil(t, entry)
	assert.Equal(t, "b", entry["session_name"])
	assert.Equal(t, map[string]any{"%1": map[string]any{"status": "done"}}, entry["panes"])
}

func TestRenameBySessionID(t *testing.T) {
	path := storeFile(t)
	runCLI(t, noServer(), "--store", path, "upsert", "old", "--session-id", "$3", "--status", "idle")

	res := runCLI(t, noServer(), "--store", path, "rename", "$3", "new", "name")
	require.Equal(t, exitOK, res.code, res.stderr)

	st := loadStore(t, path)
	_, ok := st.Lookup("old")
	assert.False(t, ok)
	rec, ok := st.Lookup("new name")
	require.True(t, ok)
	assert.Equal(t, store.StatusIdle, rec.Status)
}

func TestRenameHookSkipsReusedSessionID(t *testing.T) {
	path := storeFile(t)
	earlier := &fakeTmux{sessions: []tmux.Session{{ID: "$1", Name: "old", Created: 1000}}}
	require.Equal(t, exitOK, runCLI(t, earlier, "--store", path, "upsert", "old", "--context", "old notes").code)
	require.Equal(t, exitOK, runCLI(t, noServer(), "--store", path, "upsert", "y", "--context", "y notes").code)

	// After a server restart $1 is a new session, just renamed to "y".
	now := &fakeTmux{sessions: []tmux.Session{{ID: "$1", Name: "y", Created: 2000}}}
	res := runCLI(t, now, "--store", path, "rename", "--allow-missing", "$1", "y")
	require.Equal(t, exitOK, res.code, res.stderr)

	st := loadStore(t, path)
	old, ok := st.Lookup("old")
	require.True(t, ok)
	assert.Equal(t, "old notes", old.Context)
	y, ok := st.Lookup("y")
	require.True(t, ok)
	assert.Equal(t, "y notes", y.Context)
}

func TestRenameHookFollowsSameSession(t *testing.T) {
	path := storeFile(t)
	before := &fakeTmux{sessions: []tmux.Session{{ID: "$1", Name: "x", Created: 2000}}}
	require.Equal(t, exitOK, runCLI(t, before, "--store", path, "upsert", "x", "--status", "waiting").code)

	after := &fakeTmux{sessions: []tmux.Session{{ID: "$1", Name: "y", Created: 2000}}}
	res := runCLI(t, after, "--store", path, "rename", "--allow-missing", "$1", "y")
	require.Equal(t, exitOK, res.code, res.stderr)

	rec, ok := loadStore(t, path).Lookup("y")
	require.True(t, ok)
	assert.Equal(t, store.StatusWaiting, rec.Status)
}

func TestPaneTargetRecordsSessionID(t *testing.T) {
	fake := &fakeTmux{
		here:     tmux.Location{SessionName: "work", SessionID: "$3", SessionCreated: 50, PaneID: "%2"},
		sessions: []tmux.Session{{ID: "$4", Name: "other", Created: 60}},
	}
	a := newApp(strings.NewReader(""), io.Discard, io.Discard)
	a.newTmux = func(string) tmuxAPI { return fake }

	got, err := a.paneTarget(context.Background(), tuiOptions{})
	require.NoError(t, err)
	assert.Equal(t, ui.PaneTarget{SessionName: "work", SessionID: "$3", SessionCreated: 50, PaneID: "%2"}, got)

	// flags name another session: its id comes from the live listing
	got, err = a.paneTarget(context.Background(), tuiOptions{sessionName: "other", paneID: "%8"})
	require.NoError(t, err)
	assert.Equal(t, ui.PaneTarget{SessionName: "other", SessionID: "$4", SessionCreated: 60, PaneID: "%8"}, got)
}

func TestRenameUnknown(t *testing.T) {
	path := storeFile(t)
	res := runCLI(t, noServer(), "--store", path, "rename", "ghost", "b")
	assert.Equal(t, exitNotFound, res.code)
	assert.Contains(t, res.stderr, "ghost")

	res = runCLI(t, noServer(), "--store", path, "rename", "--allow-missing", "ghost", "b")
	assert.Equal(t, exitOK, res.code, res.stderr)
	assert.NoFileExists(t, path)
}

func TestRenameNeedsTwoArgs(t *testing.T) {
	res := runCLI(t, noServer(), "--store", storeFile(t), "rename", "a")
	assert.Equal(t, exitUsage, res.code)
}

func TestCorruptStoreIsNotTouched(t *testing.T) {
	path := storeFile(t)
	garbage := []byte("{not json")
	require.NoError(t, os.WriteFile(path, garbage, 0o600))

	res := runCLI(t, noServer(), "--store", path, "upsert", "a", "--status", "done")
	assert.Equal(t, exitCorrupt, res.code)
	assert.Contains(t, res.stderr, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, garbage, data)
}

func listFixture(t *testing.T) (string, *fakeTmux) {
	t.Helper()
	path := storeFile(t)
	st := store.New(store.Path(path))
	st.UpsertSession("work", store.UpsertOptions{Status: store.Ptr(store.StatusWorking), Context: store.Ptr("auth\nrewrite")})
	st.UpsertPane("work", "%2", store.PaneOptions{Status: store.Ptr(store.StatusDone)})
	st.UpsertPane("work", "%8", store.PaneOptions{Status: store.Ptr(store.StatusIdle)})
	st.UpsertSession("archived", store.UpsertOptions{Status: store.Ptr(store.StatusDone)})
	require.NoError(t, st.Save())

	fake := &fakeTmux{sessions: []tmux.Session{
		{ID: "$1", Name: "work", Panes: []tmux.Pane{
			{ID: "%1", WindowIndex: 0, PaneIndex: 0, Command: "nvim"},
			{ID: "%2", WindowIndex: 0, PaneIndex: 1, Command: "zsh"},
		}},
		{ID: "$2", Name: "scratch"},
	}}
	return path, fake
}

func TestListTable(t *testing.T) {
	path, fake := listFixture(t)
	res := runCLI(t, fake, "--store", path, "list")
	require.Equal(t, exitOK, res.code, res.stderr)

	assert.Contains(t, res.stdout, "SESSION")
	assert.Contains(t, res.stdout, "auth rewrite")
	assert.Contains(t, res.stdout, "scratch")
	assert.Contains(t, res.stdout, "%8 ~")
	assert.NotContains(t, res.stdout, "archived")

	res = runCLI(t, fake, "--store", path, "list", "--all")
	assert.Contains(t, res.stdout, "archived ~")
}

func TestListJSON(t *testing.T) {
	path, fake := listFixture(t)
	res := runCLI(t, fake, "--store", path, "list", "--json", "--all")
	require.Equal(t, exitOK, res.code, res.stderr)

	var rows []sessionJSON
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "work", rows[0].Name)
	assert.Equal(t, "$1", rows[0].SessionID)
	assert.True(t, rows[0].Live)
	require.Len(t, rows[0].Panes, 3)
	assert.Equal(t, "%1", rows[0].Panes[0].ID)
	assert.Equal(t, "nvim", rows[0].Panes[0].Command)
	assert.Equal(t, store.StatusDone, rows[0].Panes[1].Status)
	assert.False(t, rows[0].Panes[2].Live)
	assert.Equal(t, "scratch", rows[1].Name)
	assert.Equal(t, "archived", rows[2].Name)
	assert.False(t, rows[2].Live)
}

func TestListWithoutServerShowsStoredRows(t *testing.T) {
	path, _ := listFixture(t)
	res := runCLI(t, noServer(), "--store", path, "list")
	require.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stderr, "Warning")
	assert.Contains(t, res.stdout, "archived ~")
	assert.Contains(t, res.stdout, "work ~")
}

func TestPrune(t *testing.T) {
	path, fake := listFixture(t)

	res := runCLI(t, fake, "--store", path, "prune")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Pruned 1 pane(s) and 0 session(s)")
	rec, _ := loadStore(t, path).Lookup("work")
	assert.Equal(t, []string{"%2"}, rec.PaneIDs())

	res = runCLI(t, fake, "--store", path, "prune", "--sessions")
	require.Equal(t, exitOK, res.code, res.stderr)
	st := loadStore(t, path)
	_, ok := st.Lookup("archived")
	assert.False(t, ok)
	_, ok = st.Lookup("work")
	assert.True(t, ok)
}

func TestPruneNeedsServer(t *testing.T) {
	path, _ := listFixture(t)
	res := runCLI(t, noServer(), "--store", path, "prune", "--sessions")
	assert.Equal(t, exitNoServer, res.code)
	_, ok := loadStore(t, path).Lookup("archived")
	assert.True(t, ok)
}

func TestHooksInstall(t *testing.T) {
	path := storeFile(t)
	fake := &fakeTmux{}
	res := runCLI(t, fake, "--store", path, "--socket", "work", "hooks", "install")
	require.Equal(t, exitOK, res.code, res.stderr)

	assert.Equal(t, "work", fake.socket)
	assert.NotEmpty(t, fake.hookBin)
	assert.Equal(t, []string{"--store", path, "--socket", "work"}, fake.hookExtra)
	assert.Contains(t, res.stdout, "session-renamed")
}

func TestPathHonorsFlagAndEnv(t *testing.T) {
	path := storeFile(t)
	res := runCLI(t, noServer(), "--store", path, "path")
	assert.Equal(t, path+"\n", res.stdout)

	env := storeFile(t)
	t.Setenv("JKL_STORE", env)
	res = runCLI(t, noServer(), "path")
	assert.Equal(t, env+"\n", res.stdout)
}

func TestEditValidatesResult(t *testing.T) {
	path := storeFile(t)
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "true")
	res := runCLI(t, noServer(), "--store", path, "edit")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.FileExists(t, path)

	require.NoError(t, os.WriteFile(path, []byte("[1,2"), 0o600))
	res = runCLI(t, noServer(), "--store", path, "edit")
	assert.Equal(t, exitCorrupt, res.code)
}

func TestEditReportsUnknownStatus(t *testing.T) {
	path := storeFile(t)
	key := identity.KeyFor("a").String()
	require.NoError(t, os.WriteFile(path, []byte(`{"`+key+`": {"session_name": "a", "status": "wip", "panes": {}}}`), 0o600))
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "true")

	res := runCLI(t, noServer(), "--store", path, "edit")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, `unknown status "wip" cleared`)

	res = runCLI(t, noServer(), "--store", path, "list", "--json")
	require.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stderr, `"wip"`)
}

func TestVersion(t *testing.T) {
	res := runCLI(t, noServer(), "version")
	assert.Equal(t, "jkl v"+Version+"\n", res.stdout)
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	res := runCLI(t, noServer(), "list", "--bogus")
	assert.Equal(t, exitUsage, res.code)
}

func TestTUIRefusesWithoutTerminal(t *testing.T) {
	if isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		t.Skip("running on a terminal")
	}
	res := runCLI(t, noServer(), "--store", storeFile(t), "tui")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, errNoTerminal.Error())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"usage", usageErrorf("bad"), exitUsage},
		{"invalid status", &store.InvalidStatusError{Value: "x"}, exitUsage},
		{"not found", fmt.Errorf("rename: %w", &store.NotFoundError{Name: "a"}), exitNotFound},
		{"corrupt", &store.CorruptStoreError{Path: "p", Err: errors.New("x")}, exitCorrupt},
		{"io", &store.IOError{Op: "rename", Path: "p", Err: errors.New("x")}, exitIO},
		{"no server", fmt.Errorf("list: %w", tmux.ErrNoServer), exitNoServer},
		{"other", errors.New("boom"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
