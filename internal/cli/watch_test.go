package cli

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shiftrule/internal/ir"
)

// runWatchInput runs watch over the given notification lines.
func runWatchInput(t *testing.T, opts *RootOptions, input string, args ...string) (string, error) {
	t.Helper()
	cmd := NewWatchCommand(opts)
	cmd.SetIn(strings.NewReader(input))
	return execute(t, cmd, args...)
}

func parseEventLines(t *testing.T, out string) []ir.Event {
	t.Helper()
	var events []ir.Event
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var ev ir.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev), "line: %s", scanner.Text())
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

const watchInput = `{"type":"app_switched","bundle":"com.example.Game"}
{"type":"app_switched","bundle":"com.apple.Safari"}
{"type":"tab_changed","url":"https://www.example.com/page"}
not json

{"type":"bogus"}
{"type":"tab_changed","url":"https://other.org"}
{"type":"app_switched"}
`

func TestWatchCommand_ReactsToNotifications(t *testing.T) {
	opts := newTestOptions(t)
	change(t, opts, NewAppCommand, "disable", "--bundle", "com.example.Game")
	change(t, opts, NewDomainCommand, "disable", "--url", "https://example.com")

	out, err := runWatchInput(t, opts, watchInput)
	require.NoError(t, err)

	events := parseEventLines(t, out)
	require.Len(t, events, 5)

	type step struct {
		kind    ir.EventKind
		scope   ir.Scope
		subject string
	}
	var got []step
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, events[0].Session, ev.Session)
		got = append(got, step{ev.Kind, ev.Scope, ev.Subject})
	}
	assert.Equal(t, []step{
		{ir.EventDisableActivated, ir.ScopeSwitch, "com.example.Game"},
		{ir.EventDisableDeactivated, ir.ScopeBrowser, ""},
		{ir.EventDisableActivated, ir.ScopeBrowser, "www.example.com"},
		{ir.EventDisableDeactivated, ir.ScopeBrowser, "other.org"},
		{ir.EventDisableDeactivated, ir.ScopeSwitch, ""},
	}, got)
}

func TestWatchCommand_Resume(t *testing.T) {
	opts := newTestOptions(t)
	change(t, opts, NewAppCommand, "disable", "--bundle", "com.example.Game")

	out, err := runWatchInput(t, opts, `{"type":"app_switched","bundle":"com.example.Game"}`+"\n")
	require.NoError(t, err)
	first := parseEventLines(t, out)
	require.Len(t, first, 1)
	session := first[0].Session

	out, err = runWatchInput(t, opts, `{"type":"app_switched","executable_path":"/usr/local/bin/tool"}`+"\n", "--resume", session)
	require.NoError(t, err)
	resumed := parseEventLines(t, out)
	require.Len(t, resumed, 1)
	assert.Equal(t, session, resumed[0].Session)
	assert.Equal(t, int64(2), resumed[0].Seq)
	assert.Equal(t, "/usr/local/bin/tool", resumed[0].Subject)

	out, err = execute(t, NewEventsCommand(opts), "--session", session)
	require.NoError(t, err)
	var result EventsResult
	decodeData(t, out, &result)
	assert.Len(t, result.Events, 2)
}

func TestWatchCommand_ResumeUnknownSession(t *testing.T) {
	_, err := runWatchInput(t, newTestOptions(t), "", "--resume", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no events recorded")
}

func TestWatchCommand_TextAndInvalidURL(t *testing.T) {
	opts := newTestOptions(t)
	opts.Format = "text"

	input := `{"type":"app_switched","bundle":"com.apple.Safari"}
{"type":"tab_changed","url":"http://[::1"}
{"type":"tab_changed","url":"https://example.com"}
`
	out, err := runWatchInput(t, opts, input)
	require.NoError(t, err)
	assert.Equal(t,
		"[1] disable_deactivated browser\n"+
			"[2] disable_deactivated browser\n"+
			"[3] disable_deactivated browser example.com\n",
		out)
}

func TestWatchCommand_EmptyInput(t *testing.T) {
	out, err := runWatchInput(t, newTestOptions(t), "")
	require.NoError(t, err)
	assert.Empty(t, out)
}
