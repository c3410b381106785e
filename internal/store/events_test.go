package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shiftrule/internal/ir"
)

func TestWriteReadEvents_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Written out of order; read back by seq.
	require.NoError(t, s.WriteEvent(ctx, createTestEvent("s1", 2, ir.EventDisableDeactivated, "com.example.App")))
	require.NoError(t, s.WriteEvent(ctx, createTestEvent("s1", 1, ir.EventDisableActivated, "com.example.App")))
	require.NoError(t, s.WriteEvent(ctx, createTestEvent("s2", 1, ir.EventDisableActivated, "other")))

	events, err := s.ReadEvents(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, ir.EventDisableActivated, events[0].Kind)
	assert.Equal(t, ir.ScopeApp, events[0].Scope)
	assert.Equal(t, "com.example.App", events[0].Subject)
	assert.Equal(t, "s1", events[0].Session)
	assert.Equal(t, int64(2), events[1].Seq)
}

func TestWriteEvent_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ev := createTestEvent("s1", 1, ir.EventDisableActivated, "x")
	require.NoError(t, s.WriteEvent(ctx, ev))
	require.NoError(t, s.WriteEvent(ctx, ev))

	events, err := s.ReadEvents(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestWriteEvent_EmptySession(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteEvent(context.Background(), createTestEvent("", 1, ir.EventDisableActivated, "x"))
	assert.Error(t, err)
}

func TestReadEvents_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	events, err := s.ReadEvents(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestReadEventsForSubject(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteEvent(ctx, createTestEvent("b", 1, ir.EventDisableDeactivated, "a.com")))
	require.NoError(t, s.WriteEvent(ctx, createTestEvent("a", 3, ir.EventDisableActivated, "a.com")))
	require.NoError(t, s.WriteEvent(ctx, createTestEvent("a", 4, ir.EventDisableActivated, "b.com")))

	events, err := s.ReadEventsForSubject(ctx, "a.com")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Session)
	assert.Equal(t, "b", events[1].Session)
}

func TestListSessionsAndLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteEvent(ctx, createTestEvent("s2", 5, ir.EventDisableActivated, "x")))
	require.NoError(t, s.WriteEvent(ctx, createTestEvent("s1", 1, ir.EventDisableActivated, "x")))
	require.NoError(t, s.WriteEvent(ctx, createTestEvent("s2", 7, ir.EventDisableDeactivated, "x")))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, sessions)

	seq, err := s.LastSeq(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)

	seq, err = s.LastSeq(ctx, "none")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}
