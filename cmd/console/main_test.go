package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/assistant-console/internal/api/apitest"
	"gwi.com/assistant-console/internal/config"
)

type harness struct {
	t       *testing.T
	backend *apitest.Backend
	cfg     *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := apitest.NewBackend()
	srv, base := apitest.NewServer(b)
	t.Cleanup(srv.Close)
	b.AddUser("ana@example.com", "ana", "secret", "EU")

	dir := t.TempDir()
	return &harness{t: t, backend: b, cfg: &config.Config{
		APIURL:              base,
		DatabaseURL:         filepath.Join(dir, "console.db"),
		LogLevel:            "ERROR",
		LogFile:             filepath.Join(dir, "console.log"),
		RequestTimeout:      5 * time.Second,
		LegacyFallbackDelay: time.Millisecond,
	}}
}

// run executes one CLI invocation, as a separate process would.
func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	root, cleanup := newRootCmd(func() (*config.Config, error) { return h.cfg, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	require.NoError(h.t, cleanup())
	return ansi.Strip(out.String()), err
}

func (h *harness) login() {
	h.t.Helper()
	out, err := h.run("", "login", "--email", "ana@example.com", "--password", "secret")
	require.NoError(h.t, err)
	require.Contains(h.t, out, "Signed in as ana")
}

var createdRe = regexp.MustCompile(`Created session (\S+)`)

func TestSignInPersistsAcrossInvocations(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)

	h.login()
	out, err := h.run("", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ana <ana@example.com> (EU)")

	out, err = h.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	_, err = h.run("", "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestLoginPromptsForMissingValues(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("ana@example.com\nsecret\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Email: ")
	assert.Contains(t, out, "Password: ")
	assert.Contains(t, out, "Signed in as ana")

	_, err = h.run("ana@example.com\nwrong\n", "login")
	require.Error(t, err)
	assert.Equal(t, "Incorrect email or password", err.Error())
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "register", "--email", "bo@example.com", "--username", "bo", "--password", "pw", "--region", "US")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome, bo")

	out, err = h.run("", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "bo <bo@example.com> (US)")
}

func TestSessionCommands(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, err := h.run("", "sessions", "new")
	require.NoError(t, err)
	m := createdRe.FindStringSubmatch(out)
	require.Len(t, m, 2)
	id := m[1]

	out, err = h.run("", "send", id, "Hello", "there")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello there")
	assert.Contains(t, out, "Echo: Hello there")

	out, err = h.run("", "sessions", "rename", id, "Boiler", "specs")
	require.NoError(t, err)
	assert.Contains(t, out, `Renamed session `+id+` to "Boiler specs"`)

	out, err = h.run("", "sessions", "list", "--search", "boiler")
	require.NoError(t, err)
	assert.Contains(t, out, "Today")
	assert.Contains(t, out, "> Boiler specs")
	assert.Contains(t, out, "Echo: Hello there")

	out, err = h.run("", "sessions", "--search", "xyz")
	require.NoError(t, err)
	assert.Contains(t, out, "No matching conversations")

	_, err = h.run("", "sessions", "rename", id, "   ")
	assert.Error(t, err)

	_, err = h.run("", "sessions", "delete", id)
	require.NoError(t, err)
	assert.Equal(t, 0, h.backend.SessionCount())
}

func TestSendNewCreatesSession(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, err := h.run("", "send", "new", "Hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Echo: Hello")
	assert.Equal(t, 1, h.backend.SessionCount())
}

func TestChatLoop(t *testing.T) {
	h := newHarness(t)
	h.login()

	input := strings.Join([]string{
		"Hello",
		"   ",
		"/rename Boiler specs",
		"/search boiler",
		"/retry",
		"/bogus",
		"/quit",
		"never sent",
	}, "\n") + "\n"
	out, err := h.run(input, "chat")
	require.NoError(t, err)

	assert.Contains(t, out, "Ask anything")
	assert.Contains(t, out, "Echo: Hello")
	assert.Contains(t, out, `Renamed to "Boiler specs"`)
	assert.Contains(t, out, "> Boiler specs")
	assert.Contains(t, out, "Error: no failed messages")
	assert.Contains(t, out, "Error: unknown command /bogus, try /help")
	assert.NotContains(t, out, "never sent")
	assert.Equal(t, 1, h.backend.Calls("POST /api/messages"))
}

func TestChatRetryAfterFailure(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.backend.FailNext("POST /api/messages", 500)

	out, err := h.run("Hello\n/retry\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "use /retry or /discard")
	assert.Contains(t, out, "Error: Failed to add message")
	assert.Contains(t, out, "Echo: Hello")
	assert.Equal(t, 2, h.backend.Calls("POST /api/messages"))
}

func TestProfileCommands(t *testing.T) {
	h := newHarness(t)
	h.login()

	pic := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(pic, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0644))
	out, err := h.run("", "profile", "picture", pic)
	require.NoError(t, err)
	assert.Contains(t, out, "Profile picture updated")

	out, err = h.run("", "profile", "theme", "dark")
	require.NoError(t, err)
	assert.Contains(t, out, "Theme set to dark")

	out, err = h.run("", "profile", "update", "--region", "APAC")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile updated")

	out, err = h.run("", "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "image/png")
	assert.Contains(t, out, "dark")
	assert.Contains(t, out, "APAC")

	_, err = h.run("", "profile", "theme", "sepia")
	assert.Error(t, err)
}

func TestAsk(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, err := h.run("", "ask", "Boiler", "sizes")
	require.NoError(t, err)
	assert.Contains(t, out, "Echo: Boiler sizes")
	assert.Contains(t, out, "searched for: boiler sizes")
	assert.Contains(t, out, "90% confidence")
	assert.Contains(t, out, "Page 3 • Section Overview")
}
