package membership

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reporter emits the node's current (name, term, role, leader) at a
// fixed cadence for observability (spec §4.5). It performs no state
// mutation and exits cleanly on cancellation. The cadence is fixed,
// not jittered — later revisions of the original source jittered
// report cadence (see SPEC_FULL.md "SUPPLEMENTED FEATURES" #4); this
// module follows the spec's explicit "fixed cadence" text instead.
type Reporter struct {
	identity NodeIdentity
	sm       *StateMachine
	interval time.Duration
	log      zerolog.Logger
}

// NewReporter constructs a Reporter for the given node and
// StateMachine, reporting every interval.
func NewReporter(identity NodeIdentity, sm *StateMachine, interval time.Duration, log zerolog.Logger) *Reporter {
	return &Reporter{
		identity: identity,
		sm:       sm,
		interval: interval,
		log:      log.With().Str("component", "reporter").Logger(),
	}
}

// Run emits one report line every r.interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	snap := r.sm.Snapshot()
	leader := snap.Leader
	if leader == "" {
		leader = "(none)"
	}

	r.log.Info().
		Str("name", r.identity.Name).
		Uint64("term", snap.Term).
		Str("role", snap.Role.String()).
		Str("leader", leader).
		Msg("status report")
}
