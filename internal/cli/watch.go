package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/shiftrule/internal/engine"
	"github.com/roach88/shiftrule/internal/identity"
	"github.com/roach88/shiftrule/internal/ir"
	"github.com/roach88/shiftrule/internal/logging"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Resume string

	// Input overrides the notification stream (for testing).
	// If nil, reads the command's stdin.
	Input io.Reader
}

// hostNotification is one line of watch input.
type hostNotification struct {
	Type           string `json:"type"`
	Bundle         string `json:"bundle,omitempty"`
	ExecutablePath string `json:"executable_path,omitempty"`
	URL            string `json:"url,omitempty"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the engine on a stream of host notifications",
		Long: `Run the engine's notification loop, reading host notifications as JSON
lines on stdin and writing every responder event to stdout.

Input lines:
  {"type": "app_switched", "bundle": "com.example.Game"}
  {"type": "app_switched", "executable_path": "/usr/local/bin/tool"}
  {"type": "app_switched"}
  {"type": "tab_changed", "url": "https://docs.example.com/guide"}

An app_switched line without an identifier means no app is in front.
Notifications are handled in order on a single goroutine. The loop stops at
end of input once queued notifications are handled, or on Ctrl-C.

With --resume, events continue an earlier session's seq numbering.

Examples:
  host-events | shiftrule watch
  shiftrule watch --resume 0192f5e0-7c1a-7b3e-9a51-3f2d1c0b4a99 < events.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Resume, "resume", "", "continue the given session")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	logger := opts.log()
	ctx, cancel := context.WithCancel(logging.NewContext(parentCtx, logger))
	defer cancel()

	var extra []engine.Option
	if opts.Resume != "" {
		resume, err := resumeOptions(ctx, opts.RootOptions, opts.Resume)
		if err != nil {
			return err
		}
		extra = resume
	}

	w := cmd.OutOrStdout()
	var mu sync.Mutex
	encoder := json.NewEncoder(w)
	onEvent := func(ev ir.Event) {
		mu.Lock()
		defer mu.Unlock()
		if opts.Format == "json" {
			if err := encoder.Encode(ev); err != nil {
				logger.Error("failed to write event", "error", err)
			}
			return
		}
		fmt.Fprintln(w, eventLine(ev))
	}

	s, err := openSession(ctx, opts.RootOptions, onEvent, extra...)
	if err != nil {
		return err
	}
	defer s.Close()

	logger.Info("watch started", "session", s.engine.Session())

	input := opts.Input
	if input == nil {
		input = cmd.InOrStdin()
	}

	go func() {
		defer s.loop.Stop()
		if err := readNotifications(ctx, input, s); err != nil {
			logger.Error("notification stream failed", "error", err)
		}
	}()

	if err := s.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "loop error", err)
	}

	logger.Info("watch stopped",
		"session", s.engine.Session(),
		"events", len(s.events),
	)
	return nil
}

// resumeOptions continue session's clock from its last recorded seq.
func resumeOptions(ctx context.Context, opts *RootOptions, session string) ([]engine.Option, error) {
	st, err := openStore(opts)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	last, err := st.LastSeq(ctx, session)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read session", err)
	}
	if last == 0 {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("no events recorded for session %s", session))
	}
	opts.log().Debug("resuming session", "session", session, "seq", last)

	return []engine.Option{
		engine.WithClock(engine.NewClockAt(last)),
		engine.WithSessionGenerator(engine.NewFixedGenerator(session)),
	}, nil
}

// readNotifications posts one notification per input line until EOF.
// Malformed lines are logged and skipped.
func readNotifications(ctx context.Context, r io.Reader, s *session) error {
	logger := logging.FromContext(ctx)
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		if ctx.Err() != nil {
			return nil
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var n hostNotification
		if err := json.Unmarshal(raw, &n); err != nil {
			logger.Warn("skipping malformed notification", "line", line, "error", err)
			continue
		}
		if !postNotification(s, n) {
			logger.Warn("skipping unknown notification", "line", line, "type", n.Type)
		}
	}
	return scanner.Err()
}

func postNotification(s *session, n hostNotification) bool {
	switch n.Type {
	case engine.NotifyAppSwitched.String():
		p := identity.Process{BundleID: n.Bundle, ExecutablePath: n.ExecutablePath}
		s.loop.AppSwitched(func() { s.apps.set(p) })
		return true
	case engine.NotifyTabChanged.String():
		url := n.URL
		s.loop.TabChanged(func() {
			if err := s.watcher.SetActiveURL(url); err != nil {
				s.logger.Warn("ignoring tab change", "url", url, "error", err)
			}
		})
		return true
	}
	return false
}

func eventLine(ev ir.Event) string {
	line := fmt.Sprintf("[%d] %s %s", ev.Seq, ev.Kind, ev.Scope)
	if ev.Subject != "" {
		line += " " + ev.Subject
	}
	return line
}
