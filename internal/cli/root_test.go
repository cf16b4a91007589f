package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/receiptsplit/internal/auth"
	"github.com/mmynk/receiptsplit/internal/client"
	"github.com/mmynk/receiptsplit/internal/metrics"
	"github.com/mmynk/receiptsplit/internal/middleware"
	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/internal/service"
	"github.com/mmynk/receiptsplit/internal/storage/sqlite"
	"github.com/mmynk/receiptsplit/pkg/api/apiconnect"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "splitctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"create", "show", "watch", "join", "select", "forget", "claim", "unclaim",
		"add-item", "remove-item", "add-participant", "rename", "step", "finalize", "reopen",
	}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"url", "state"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "", flag.DefValue)
	}

	level := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, level)
	assert.Equal(t, "warn", level.DefValue)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitLimitReached, GetExitCode(resultError("join", client.Result{Outcome: client.LimitReached})))
	assert.Equal(t, ExitCommandError, GetExitCode(resultError("add item", client.Result{Outcome: client.Invalid})))
	assert.Equal(t, ExitFailure, GetExitCode(resultError("finalize", client.Result{Outcome: client.Unauthorized})))
	assert.NoError(t, resultError("finalize", client.Result{Outcome: client.OK}))
}

// startServer runs a SessionService backed by a temporary SQLite database.
func startServer(t *testing.T, limits service.Limits) string {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	m := metrics.NewServer(prometheus.NewRegistry())
	path, handler := apiconnect.NewSessionServiceHandler(
		service.NewSessionService(store, jwtManager, limits, m),
		connect.WithInterceptors(middleware.OwnerAuth(jwtManager)),
	)

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server.URL
}

type device struct {
	url   string
	state string
}

func newDevice(t *testing.T, url string) device {
	return device{url: url, state: filepath.Join(t.TempDir(), "device.db")}
}

func (d device) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--url", d.url, "--state", d.state))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeReceipt(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "receipt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioReceipt), 0o644))
	return path
}

func sessionIDFrom(t *testing.T, out string) string {
	t.Helper()
	const prefix = "Created session "
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimPrefix(line, prefix)
		}
	}
	t.Fatalf("no session id in output:\n%s", out)
	return ""
}

func itemID(t *testing.T, url, sessionID, name string) string {
	t.Helper()
	sess, err := client.New(http.DefaultClient, url).GetSession(context.Background(), client.Auth{}, sessionID)
	require.NoError(t, err)
	for _, it := range sess.Items {
		if it.Name == name {
			return it.ID
		}
	}
	t.Fatalf("item %q not found", name)
	return ""
}

func TestSessionWorkflow(t *testing.T) {
	url := startServer(t, service.Limits{MaxParticipants: 3})
	host := newDevice(t, url)
	guest := newDevice(t, url)

	out, err := host.run(t, "create", writeReceipt(t))
	require.NoError(t, err)
	sid := sessionIDFrom(t, out)
	assert.Contains(t, out, "You are Alice (owner")

	out, err = host.run(t, "show", sid)
	require.NoError(t, err)
	assert.Contains(t, out, "* Alice (owner)")
	assert.Contains(t, out, "nothing owed")

	_, err = guest.run(t, "claim", sid, "anything")
	assert.Equal(t, ExitCommandError, GetExitCode(err), "claiming without an identity")

	out, err = guest.run(t, "join", sid, "Bob")
	require.NoError(t, err)
	assert.Contains(t, out, "You are Bob")

	beer := itemID(t, url, sid, "Beer")
	out, err = guest.run(t, "claim", sid, models.UnitKey(beer, 1))
	require.NoError(t, err)
	assert.Contains(t, out, "* Bob")
	assert.Contains(t, out, "Bob owes Alice")

	_, err = guest.run(t, "finalize", sid)
	assert.Equal(t, ExitFailure, GetExitCode(err), "guests cannot finalize")

	out, err = host.run(t, "finalize", sid)
	require.NoError(t, err)
	assert.Contains(t, out, "[finalized")

	_, err = guest.run(t, "unclaim", sid, models.UnitKey(beer, 1))
	assert.Equal(t, ExitCommandError, GetExitCode(err), "claims are frozen once finalized")

	out, err = host.run(t, "reopen", sid)
	require.NoError(t, err)
	assert.Contains(t, out, "[assigning")

	out, err = host.run(t, "add-participant", sid, "Carol")
	require.NoError(t, err)
	assert.Contains(t, out, "Carol")

	_, err = newDevice(t, url).run(t, "join", sid, "Dave")
	assert.Equal(t, ExitLimitReached, GetExitCode(err), "session is full")

	out, err = guest.run(t, "forget", sid)
	require.NoError(t, err)
	assert.Contains(t, out, "No participant selected")
}

func TestCreate_BadReceipt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items: []\n"), 0o644))

	_, err := newDevice(t, "http://127.0.0.1:0").run(t, "create", path)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
