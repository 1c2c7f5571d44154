package membership

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Broadcaster fans a single command line out to every peer in a
// roster and collects the successful replies (spec §4.2).
type Broadcaster struct {
	log zerolog.Logger

	// Parallel selects bounded-parallel fan-out (grounded in the
	// teacher's goroutine-per-peer pattern in
	// pkg/replication/raft.go's sendHeartbeatsToAllPeers /
	// requestVoteFromPeer) instead of the spec's sequential default.
	// Either preserves "at least one +... reply suffices"; only
	// sequential preserves peer-order in the returned slice (spec
	// §4.2, §5).
	Parallel bool

	// PeerTimeout bounds each individual peer call when Parallel is
	// set. Spec §4.2 requires this to be bounded by the caller's
	// enclosing interval (the vote/heartbeat interval) when
	// parallelizing.
	PeerTimeout time.Duration
}

// NewBroadcaster returns a sequential Broadcaster, matching spec
// §4.2's default: ordering of collected responses matches peer order.
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		log:      log.With().Str("component", "broadcaster").Logger(),
		Parallel: false,
	}
}

// Broadcast calls Call against every peer in turn (or concurrently, if
// Parallel is set), collecting successful "+OK:..."/"-ERR:..." reply
// lines. A peer that refuses the connection is logged and skipped,
// never treated as fatal (spec §4.2, §7). Any other transport error
// is likewise skipped per-peer rather than aborting the whole
// broadcast, since a stuck peer must never block the others from
// being heard from during a single election/heartbeat round.
func (b *Broadcaster) Broadcast(ctx context.Context, peers []PeerAddr, line string) []string {
	if b.Parallel {
		return b.broadcastParallel(ctx, peers, line)
	}
	return b.broadcastSequential(ctx, peers, line)
}

func (b *Broadcaster) broadcastSequential(ctx context.Context, peers []PeerAddr, line string) []string {
	responses := make([]string, 0, len(peers))
	for _, peer := range peers {
		resp, err := Call(ctx, peer.Host, peer.Port, line)
		if err != nil {
			b.logSkip(peer, err)
			continue
		}
		responses = append(responses, resp)
	}
	return responses
}

func (b *Broadcaster) broadcastParallel(ctx context.Context, peers []PeerAddr, line string) []string {
	timeout := b.PeerTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var (
		mu        sync.Mutex
		responses = make([]string, 0, len(peers))
		wg        sync.WaitGroup
	)

	for _, peer := range peers {
		wg.Add(1)
		go func(p PeerAddr) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			resp, err := Call(callCtx, p.Host, p.Port, line)
			if err != nil {
				b.logSkip(p, err)
				return
			}

			mu.Lock()
			responses = append(responses, resp)
			mu.Unlock()
		}(peer)
	}

	wg.Wait()
	return responses
}

func (b *Broadcaster) logSkip(peer PeerAddr, err error) {
	if errors.Is(err, ErrConnRefused) {
		b.log.Debug().Str("peer", peer.Name).Err(err).Msg("peer unreachable, skipping")
		return
	}
	b.log.Warn().Str("peer", peer.Name).Err(err).Msg("peer call failed, skipping")
}
