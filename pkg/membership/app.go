package membership

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// App wires Transport, Broadcaster, StateMachine, Actor, and Reporter
// together into one running node, and exposes the Run/Shutdown
// surface spec §1 calls out as the only entrypoint contract in scope
// (command-line parsing, signal handling, and process scaffolding
// beyond this are explicitly out of scope).
type App struct {
	cfg      *Config
	identity NodeIdentity
	sm       *StateMachine
	signal   *heartbeatSignal
	actor    *Actor
	reporter *Reporter
	log      zerolog.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	fatalCh chan error
	closed  atomic.Bool
}

// NewApp validates cfg and constructs every component, but starts
// nothing: call Run to start the node.
func NewApp(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	identity, err := cfg.Identity()
	if err != nil {
		return nil, err
	}

	log := buildLogger(cfg)
	sm := NewStateMachine(identity, log)
	broadcaster := NewBroadcaster(log)
	signal := newHeartbeatSignal()
	actor := NewActor(identity, sm, broadcaster, signal, cfg.ActorConfig(), log)
	reporter := NewReporter(identity, sm, cfg.ReportIntervalDuration(), log)

	return &App{
		cfg:      cfg,
		identity: identity,
		sm:       sm,
		signal:   signal,
		actor:    actor,
		reporter: reporter,
		log:      log,
		fatalCh:  make(chan error, 1),
	}, nil
}

// buildLogger constructs the node's zerolog.Logger from Config's
// log_level/log_color options (spec §6), the structured-logging
// collaborator spec §1 treats as an external interface
// (trace/debug/info/warn/error).
func buildLogger(cfg *Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stdout
	if cfg.LogColor {
		w = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	return zerolog.New(w).Level(level).With().
		Timestamp().
		Str("node", cfg.Name).
		Logger()
}

// StateMachine exposes the underlying StateMachine for callers
// (tests, the Reporter in other wiring, diagnostics) that need direct
// access rather than going through App.
func (a *App) StateMachine() *StateMachine {
	return a.sm
}

// commandTable builds the Transport CommandTable dispatching
// "heartbeat" and "vote" requests to the StateMachine (spec §4.1,
// §6).
func (a *App) commandTable() CommandTable {
	return CommandTable{
		"heartbeat": {Arity: 2, Handler: a.handleHeartbeat},
		"vote":      {Arity: 2, Handler: a.handleVote},
	}
}

// handleHeartbeat parses "heartbeat <term> <leaderName>" and invokes
// StateMachine.OnHeartbeat. The heartbeat signal is raised
// unconditionally when this handler returns, whether or not the term
// parses and whether or not OnHeartbeat succeeds — spec §4.3's explicit note that raising the
// signal is Transport's responsibility, not the handler's, and spec
// §5's ordering guarantee (the FOLLOWER loop may observe the signal
// after the state already reflects the new leader, which is the
// desired order: raise it last).
func (a *App) handleHeartbeat(args []string) (string, error) {
	defer a.signal.Set()

	term, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse term: %w", ErrUnknownCommand)
	}

	return a.sm.OnHeartbeat(term, args[1])
}

// handleVote parses "vote <term> <candidateName>" and invokes
// StateMachine.OnVote.
func (a *App) handleVote(args []string) (string, error) {
	term, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse term: %w", ErrUnknownCommand)
	}

	return a.sm.OnVote(term, args[1])
}

// Run starts the transport acceptor, the role-loop Actor, and the
// Reporter as independent supervised goroutines, and blocks until ctx
// is cancelled or one of them reports a fatal error (spec §5, §6,
// §9's "per-task wrapper that converts any uncaught exception into
// process exit"). On return, every component has been asked to stop
// and Shutdown has completed.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(3)
	go a.runSupervised(runCtx, "transport", func(ctx context.Context) error {
		return Serve(ctx, a.cfg.BindAddr(), a.commandTable(), a.log)
	})
	go a.runSupervised(runCtx, "actor", a.actor.Run)
	go a.runSupervised(runCtx, "reporter", a.reporter.Run)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-a.fatalCh:
		runErr = err
		a.log.Error().Err(err).Msg("fatal error, shutting down node")
	}

	if err := a.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// runSupervised is the Go equivalent of spec §9's "per-task wrapper
// that converts any uncaught exception into process exit": it
// recovers a panic escaping fn, logs at Error level, and forwards the
// failure onto fatalCh rather than crashing the whole process
// silently. A component that returns because ctx was cancelled is not
// treated as a failure.
func (a *App) runSupervised(ctx context.Context, name string, fn func(context.Context) error) {
	defer a.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s: panic: %v", name, r)
			a.log.Error().Err(err).Msg("component panicked")
			a.reportFatal(err)
		}
	}()

	if err := fn(ctx); err != nil && ctx.Err() == nil {
		a.log.Error().Err(err).Str("component", name).Msg("component exited with error")
		a.reportFatal(fmt.Errorf("%s: %w", name, err))
	}
}

func (a *App) reportFatal(err error) {
	select {
	case a.fatalCh <- err:
	default:
	}
}

// Shutdown cancels every supervised component and waits for them to
// exit, releasing their sockets and timers. Safe to call more than
// once; only the first call does anything.
func (a *App) Shutdown() error {
	if a.closed.Swap(true) {
		return nil
	}

	if a.cancel == nil {
		return ErrNotReady
	}

	a.cancel()
	a.wg.Wait()
	return nil
}
