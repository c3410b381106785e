package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shiftrule/internal/ir"
)

func TestEventsCommand_EmptyDatabase(t *testing.T) {
	opts := newTestOptions(t)

	out, err := execute(t, NewEventsCommand(opts))
	require.NoError(t, err)

	var result EventsResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, result.Sessions)
	assert.Empty(t, result.Events)
}

func TestEventsCommand_SessionsAndTimeline(t *testing.T) {
	opts := newTestOptions(t)
	disabled := change(t, opts, NewAppCommand, "disable", "--bundle", "com.example.Game")
	enabled := change(t, opts, NewAppCommand, "enable", "--bundle", "com.example.Game")

	out, err := execute(t, NewEventsCommand(opts))
	require.NoError(t, err)
	var list EventsResult
	decodeData(t, out, &list)
	assert.ElementsMatch(t, []string{disabled.Session, enabled.Session}, list.Sessions)

	out, err = execute(t, NewEventsCommand(opts), "--session", disabled.Session)
	require.NoError(t, err)
	var timeline EventsResult
	resp := decodeData(t, out, &timeline)
	assert.Equal(t, disabled.Session, resp.Session)
	assert.Equal(t, disabled.Events, timeline.Events)
	assert.Equal(t, EventStats{Total: 1, Activated: 1}, timeline.Stats)
}

func TestEventsCommand_Subject(t *testing.T) {
	opts := newTestOptions(t)
	change(t, opts, NewAppCommand, "disable", "--bundle", "com.example.Game")
	change(t, opts, NewAppCommand, "disable", "--bundle", "com.example.Editor")
	change(t, opts, NewAppCommand, "enable", "--bundle", "com.example.Game")

	out, err := execute(t, NewEventsCommand(opts), "--subject", "com.example.Game")
	require.NoError(t, err)
	var result EventsResult
	decodeData(t, out, &result)
	require.Len(t, result.Events, 2)
	assert.Equal(t, ir.EventDisableActivated, result.Events[0].Kind)
	assert.Equal(t, ir.EventDisableDeactivated, result.Events[1].Kind)
	assert.Equal(t, EventStats{Total: 2, Activated: 1, Deactivated: 1}, result.Stats)

	out, err = execute(t, NewEventsCommand(opts), "--subject", "com.example.Game", "--kind", "disable_deactivated")
	require.NoError(t, err)
	result = EventsResult{}
	decodeData(t, out, &result)
	require.Len(t, result.Events, 1)
	assert.Equal(t, ir.EventDisableDeactivated, result.Events[0].Kind)
}

func TestEventsCommand_UnknownKind(t *testing.T) {
	_, err := execute(t, NewEventsCommand(newTestOptions(t)), "--kind", "exploded")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEventsCommand_SessionAndSubjectExclusive(t *testing.T) {
	_, err := execute(t, NewEventsCommand(newTestOptions(t)), "--session", "a", "--subject", "b")
	require.Error(t, err)
}

func TestEventsCommand_Text(t *testing.T) {
	opts := newTestOptions(t)
	result := change(t, opts, NewDomainCommand, "disable", "--url", "https://example.com")

	opts.Format = "text"
	out, err := execute(t, NewEventsCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "=== Sessions ===\n  "+result.Session+"\n")

	out, err = execute(t, NewEventsCommand(opts), "--session", result.Session)
	require.NoError(t, err)
	assert.Contains(t, out, "Events for session: "+result.Session)
	assert.Contains(t, out, "  [1] disable_activated domain example.com\n")
	assert.Contains(t, out, "  Total Events: 1\n")
	assert.NotContains(t, out, "Session:")

	out, err = execute(t, NewEventsCommand(opts), "--session", "missing")
	require.NoError(t, err)
	assert.Contains(t, out, "(no events)")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "0192f5e0-7c1...", truncateID("0192f5e0-7c1a-7b3e-9a51-3f2d1c0b4a99"))
}
