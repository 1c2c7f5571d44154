package membership

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ActorConfig holds the timing parameters that drive the role loops
// (spec §6's leader_timeout/election_timeout_jitter/vote_interval/
// heartbeat_interval configuration surface).
type ActorConfig struct {
	LeaderTimeout     time.Duration
	ElectionJitter    time.Duration
	VoteInterval      time.Duration
	HeartbeatInterval time.Duration
}

// Actor runs the FOLLOWER/CANDIDATE/LEADER role loops inside a
// supervising loop that repeats them forever until cancelled (spec
// §4.4). It reads and mutates state only through the StateMachine's
// guarded methods, and fans out RPCs only through the Broadcaster.
type Actor struct {
	identity    NodeIdentity
	sm          *StateMachine
	broadcaster *Broadcaster
	signal      *heartbeatSignal
	cfg         ActorConfig
	log         zerolog.Logger
	rnd         *rand.Rand
}

// NewActor constructs an Actor. signal is shared with the Transport
// layer's heartbeat handler (see app.go), which raises it on every
// accepted "heartbeat" request regardless of outcome.
func NewActor(identity NodeIdentity, sm *StateMachine, broadcaster *Broadcaster, signal *heartbeatSignal, cfg ActorConfig, log zerolog.Logger) *Actor {
	return &Actor{
		identity:    identity,
		sm:          sm,
		broadcaster: broadcaster,
		signal:      signal,
		cfg:         cfg,
		log:         log.With().Str("component", "actor").Logger(),
		// Seeded per-process from a high-entropy source (spec §9),
		// matching the teacher's rand.New(rand.NewSource(...)) idiom
		// in pkg/replication/raft.go rather than the shared global
		// rand.
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run is the supervising loop: it repeats "follower -> candidate ->
// leader" forever, dispatching to the role loop matching the current
// Snapshot. It returns nil on clean cancellation and propagates any
// other error (spec §4.4, §5).
func (a *Actor) Run(ctx context.Context) error {
	for {
		var err error
		switch a.sm.Snapshot().Role {
		case RoleFollower:
			err = a.runFollower(ctx)
		case RoleCandidate:
			err = a.runCandidate(ctx)
		case RoleLeader:
			err = a.runLeader(ctx)
		}

		if err != nil {
			if err == ErrCancelled {
				return nil
			}
			return err
		}
	}
}

// runFollower implements spec §4.4's FOLLOWER loop: wait for a
// heartbeat under leaderTimeout; on timeout, wait again under a
// randomized jitter window; if that also times out, promote to
// candidate and exit.
func (a *Actor) runFollower(ctx context.Context) error {
	for a.sm.Snapshot().Role == RoleFollower {
		timedOut, err := a.waitForHeartbeat(ctx, a.cfg.LeaderTimeout)
		if err != nil {
			return err
		}
		if !timedOut {
			continue // signalled before timeout: leader is alive
		}

		jitter := a.randomJitter()
		timedOut, err = a.waitForHeartbeat(ctx, jitter)
		if err != nil {
			return err
		}
		if !timedOut {
			continue // genuine leader reasserted during the jitter wait
		}

		if err := a.sm.PromoteToCandidate(); err != nil {
			// Another goroutine raced us out of FOLLOWER already;
			// the loop condition will re-check and exit on its own.
			a.log.Debug().Err(err).Msg("promote to candidate skipped")
			continue
		}
		return nil
	}
	return nil
}

// waitForHeartbeat waits up to d for the heartbeat signal to fire. It
// distinguishes three outcomes: the signal fired (timedOut=false,
// err=nil), the wait elapsed (timedOut=true, err=nil), or the
// supervising context was cancelled (err=ErrCancelled) — spec §4.4's
// requirement that timer-cancellation and supervisor-cancellation be
// distinguishable.
func (a *Actor) waitForHeartbeat(ctx context.Context, d time.Duration) (timedOut bool, err error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, ErrCancelled
	case <-a.signal.Chan():
		a.signal.Clear()
		return false, nil
	case <-timer.C:
		return true, nil
	}
}

func (a *Actor) randomJitter() time.Duration {
	if a.cfg.ElectionJitter <= 0 {
		return 0
	}
	return time.Duration(a.rnd.Int63n(int64(a.cfg.ElectionJitter)))
}

// runCandidate implements spec §4.4's CANDIDATE loop: broadcast a vote
// request every voteInterval until at least one positive reply is
// collected (spec §9 open question 1 — this is the relaxed "≥1 vote"
// rule, not a strict majority; see DESIGN.md).
func (a *Actor) runCandidate(ctx context.Context) error {
	for a.sm.Snapshot().Role == RoleCandidate {
		if ctx.Err() != nil {
			return ErrCancelled
		}

		snap := a.sm.Snapshot()
		line := fmt.Sprintf("vote %d %s", snap.Term, a.identity.Name)
		responses := a.broadcaster.Broadcast(ctx, a.identity.OtherPeers(), line)

		if countPositive(responses) > 0 {
			if err := a.sm.PromoteToLeader(); err != nil {
				a.log.Debug().Err(err).Msg("promote to leader skipped")
				continue
			}
			return nil
		}

		if cancelled := a.sleep(ctx, a.cfg.VoteInterval); cancelled {
			return ErrCancelled
		}
	}
	return nil
}

// runLeader implements spec §4.4's LEADER loop: broadcast a heartbeat
// every heartbeatInterval, discarding the result. The LEADER loop has
// no internal step-down mechanism (spec §9 open question 4): a higher
// term discovered in a peer's reply is not acted on here.
func (a *Actor) runLeader(ctx context.Context) error {
	for a.sm.Snapshot().Role == RoleLeader {
		if ctx.Err() != nil {
			return ErrCancelled
		}

		snap := a.sm.Snapshot()
		line := fmt.Sprintf("heartbeat %d %s", snap.Term, a.identity.Name)
		a.broadcaster.Broadcast(ctx, a.identity.OtherPeers(), line)

		if cancelled := a.sleep(ctx, a.cfg.HeartbeatInterval); cancelled {
			return ErrCancelled
		}
	}
	return nil
}

func (a *Actor) sleep(ctx context.Context, d time.Duration) (cancelled bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

// countPositive counts responses whose first character is '+' (spec
// §4.4's vote-acceptance rule).
func countPositive(responses []string) int {
	n := 0
	for _, r := range responses {
		if strings.HasPrefix(r, "+") {
			n++
		}
	}
	return n
}
