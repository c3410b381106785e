package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/shiftrule/internal/ir"
	"github.com/roach88/shiftrule/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Session string
	Subject string
	Kind    string // optional - filter to one event kind
}

// EventsResult holds the events command output.
type EventsResult struct {
	Session  string     `json:"session,omitempty"`
	Subject  string     `json:"subject,omitempty"`
	Sessions []string   `json:"sessions,omitempty"`
	Events   []ir.Event `json:"events"`
	Stats    EventStats `json:"stats"`
}

// EventStats summarizes a list of events.
type EventStats struct {
	Total       int `json:"total"`
	Activated   int `json:"activated"`
	Deactivated int `json:"deactivated"`
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query the event log",
		Long: `Query the responder events recorded in the database.

Without flags, lists every recorded session. With --session, shows that
session's events in order. With --subject, shows every event raised for an
identifier or host across sessions.

Examples:
  shiftrule events
  shiftrule events --session 0192f5e0-7c1a-7b3e-9a51-3f2d1c0b4a99
  shiftrule events --subject example.com --kind disable_activated
  shiftrule events --session import-1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "show events for one session")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "show events for one identifier or host")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind")
	cmd.MarkFlagsMutuallyExclusive("session", "subject")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Kind != "" && !knownKind(ir.EventKind(opts.Kind)) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown event kind %q", opts.Kind))
	}

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	result := EventsResult{Session: opts.Session, Subject: opts.Subject, Events: []ir.Event{}}

	switch {
	case opts.Session != "":
		result.Events, err = st.ReadEvents(ctx, opts.Session)
	case opts.Subject != "":
		result.Events, err = st.ReadEventsForSubject(ctx, opts.Subject)
	default:
		result.Sessions, err = listSessions(ctx, st)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result.Events = filterKind(result.Events, ir.EventKind(opts.Kind))
	result.Stats = eventStats(result.Events)

	if opts.Format == "json" {
		return outputEventsJSON(cmd, result)
	}
	return outputEventsText(cmd.OutOrStdout(), result, opts.Verbose)
}

func listSessions(ctx context.Context, st *store.Store) ([]string, error) {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []string{}
	}
	return sessions, nil
}

func knownKind(k ir.EventKind) bool {
	switch k {
	case ir.EventDisableActivated, ir.EventDisableDeactivated,
		ir.EventEnableActivated, ir.EventEnableDeactivated:
		return true
	}
	return false
}

func filterKind(events []ir.Event, kind ir.EventKind) []ir.Event {
	if events == nil {
		return []ir.Event{}
	}
	if kind == "" {
		return events
	}
	out := []ir.Event{}
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func eventStats(events []ir.Event) EventStats {
	stats := EventStats{Total: len(events)}
	for _, ev := range events {
		switch ev.Kind {
		case ir.EventDisableActivated, ir.EventEnableActivated:
			stats.Activated++
		case ir.EventDisableDeactivated, ir.EventEnableDeactivated:
			stats.Deactivated++
		}
	}
	return stats
}

// outputEventsJSON outputs the events result as JSON.
func outputEventsJSON(cmd *cobra.Command, result EventsResult) error {
	response := CLIResponse{
		Status:  "ok",
		Session: result.Session,
		Data:    result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputEventsText outputs the events result as text.
func outputEventsText(w io.Writer, result EventsResult, verbose bool) error {
	if result.Session == "" && result.Subject == "" {
		fmt.Fprintln(w, "=== Sessions ===")
		if len(result.Sessions) == 0 {
			fmt.Fprintln(w, "  (no sessions)")
		}
		for _, s := range result.Sessions {
			fmt.Fprintf(w, "  %s\n", s)
		}
		return nil
	}

	if result.Session != "" {
		fmt.Fprintf(w, "Events for session: %s\n", result.Session)
	} else {
		fmt.Fprintf(w, "Events for subject: %s\n", result.Subject)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Events) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Events {
		formatEvent(w, ev, verbose || result.Subject != "")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.Total)
	fmt.Fprintf(w, "  Activated:    %d\n", result.Stats.Activated)
	fmt.Fprintf(w, "  Deactivated:  %d\n", result.Stats.Deactivated)
	return nil
}

// formatEvent formats a single event for text output.
func formatEvent(w io.Writer, ev ir.Event, withSession bool) {
	line := fmt.Sprintf("  [%d] %s %s", ev.Seq, ev.Kind, ev.Scope)
	if ev.Subject != "" {
		line += " " + ev.Subject
	}
	fmt.Fprintln(w, line)
	if withSession {
		fmt.Fprintf(w, "       Session: %s\n", truncateID(ev.Session))
	}
}

// truncateID shortens a session token for display.
func truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + "..."
}
