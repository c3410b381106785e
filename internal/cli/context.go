package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/shiftrule/internal/browser"
	"github.com/roach88/shiftrule/internal/engine"
	"github.com/roach88/shiftrule/internal/identity"
	"github.com/roach88/shiftrule/internal/ir"
	"github.com/roach88/shiftrule/internal/store"
)

// ContextFlags describe the foreground context a one-shot command evaluates.
type ContextFlags struct {
	Bundle         string
	ExecutablePath string
	URL            string
}

func (f *ContextFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Bundle, "bundle", "", "bundle identifier of the foreground app")
	cmd.Flags().StringVar(&f.ExecutablePath, "path", "", "executable path of the foreground app")
	cmd.Flags().StringVar(&f.URL, "url", "", "active tab URL (implies the first configured browser when no app is given)")
}

func (f ContextFlags) process() identity.Process {
	return identity.Process{BundleID: f.Bundle, ExecutablePath: f.ExecutablePath}
}

// foreground is the application source for CLI sessions. It is set from
// flags or, in watch mode, from notifications on the loop goroutine.
type foreground struct {
	mu   sync.Mutex
	proc identity.Process
	ok   bool
}

func (f *foreground) set(p identity.Process) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proc = p
	f.ok = p.BundleID != "" || p.ExecutablePath != ""
}

func (f *foreground) ForegroundApp() (identity.Process, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proc, f.ok
}

// session is an initialized engine over the configured database.
type session struct {
	store   *store.Store
	engine  *engine.Engine
	loop    *engine.Loop
	apps    *foreground
	watcher *browser.Watcher
	logger  *slog.Logger
	events  []ir.Event
}

// openStore opens the configured database, creating its directory.
func openStore(opts *RootOptions) (*store.Store, error) {
	path := opts.databasePath()
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create database directory", err)
		}
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	opts.log().Debug("database ready", "path", path)
	return st, nil
}

// openSession opens the store and initializes an engine on a fresh loop.
// Emitted events are collected in s.events and passed to onEvent if set.
// extra options are applied after the defaults.
func openSession(ctx context.Context, opts *RootOptions, onEvent func(ir.Event), extra ...engine.Option) (*session, error) {
	st, err := openStore(opts)
	if err != nil {
		return nil, err
	}

	logger := opts.log()
	s := &session{
		store:  st,
		loop:   engine.NewLoop(logger),
		apps:   &foreground{},
		logger: logger,
	}
	s.watcher = browser.NewWatcher(s.apps, opts.config().Browsers, browser.WithLogger(logger))

	responder := engine.ResponderFunc(func(ev ir.Event) {
		s.events = append(s.events, ev)
		if onEvent != nil {
			onEvent(ev)
		}
	})
	engineOpts := append([]engine.Option{
		engine.WithLogger(logger),
		engine.WithRecorder(st),
	}, extra...)
	s.engine = engine.New(store.NewRuleStore(st, logger), s.apps, s.watcher, responder, engineOpts...)
	if err := s.engine.Initialize(ctx, s.loop); err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to initialize engine", err)
	}

	return s, nil
}

// pin sets the foreground context from flags. A URL without an app implies
// the first configured browser.
func (s *session) pin(opts *RootOptions, flags ContextFlags) error {
	p := flags.process()
	if flags.URL != "" && p.BundleID == "" && p.ExecutablePath == "" {
		browsers := opts.config().Browsers
		if len(browsers) == 0 {
			return NewExitError(ExitCommandError, "--url needs --bundle when no browsers are configured")
		}
		p.BundleID = browsers[0]
	}
	s.apps.set(p)

	if err := s.watcher.SetActiveURL(flags.URL); err != nil {
		return WrapExitError(ExitCommandError, "invalid --url", err)
	}
	if s.watcher.CurrentAppIsSupportedBrowser() {
		s.watcher.UpdateForSupportedBrowser()
	}
	return nil
}

func (s *session) Close() {
	s.engine.Close()
	s.store.Close()
}

// Status is the decision for the pinned foreground context.
type Status struct {
	App               string `json:"app,omitempty"`
	Browser           bool   `json:"browser"`
	Domain            string `json:"domain,omitempty"`
	Subdomain         string `json:"subdomain,omitempty"`
	DisabledForApp    bool   `json:"disabled_for_app"`
	DisabledForDomain bool   `json:"disabled_for_domain"`
	SubdomainRule     string `json:"subdomain_rule"`
	Active            bool   `json:"active"`
}

func (s *session) status() Status {
	st := Status{
		Browser:           s.watcher.CurrentAppIsSupportedBrowser(),
		DisabledForApp:    s.engine.DisabledForApp(),
		DisabledForDomain: s.engine.DisabledForDomain(),
		SubdomainRule:     string(s.engine.RuleForSubdomain()),
		Active:            s.engine.DisableRuleIsActive(),
	}
	if p, ok := s.apps.ForegroundApp(); ok {
		if id, err := identity.Resolve(p); err == nil {
			st.App = id.String()
		}
	}
	st.Domain, _ = s.watcher.CurrentDomain()
	st.Subdomain, _ = s.watcher.CurrentSubdomain()
	return st
}

func (st Status) text() string {
	app := st.App
	if app == "" {
		app = "(none)"
	}
	if st.Browser {
		app += " (browser)"
	}
	out := fmt.Sprintf("app:        %s\n", app)
	if st.DisabledForApp {
		out += "            disabled\n"
	}
	if st.Domain != "" {
		out += fmt.Sprintf("domain:     %s", st.Domain)
		if st.DisabledForDomain {
			out += " (disabled)"
		}
		out += "\n"
	}
	if st.Subdomain != "" {
		out += fmt.Sprintf("subdomain:  %s (%s)\n", st.Subdomain, st.SubdomainRule)
	}
	out += fmt.Sprintf("active:     %t", st.Active)
	return out
}
