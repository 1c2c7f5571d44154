package membership

// heartbeatSignal is the single-slot wake-up shared between the
// heartbeat RPC handler (producer) and the FOLLOWER loop (consumer),
// per spec §3/§5. It is safe against spurious wakeups: multiple Set
// calls between Clear/Wait observations collapse into one wakeup,
// exactly like the teacher's buffer-1 heartbeatCh in
// pkg/replication/raft.go.
type heartbeatSignal struct {
	ch chan struct{}
}

func newHeartbeatSignal() *heartbeatSignal {
	return &heartbeatSignal{ch: make(chan struct{}, 1)}
}

// Set raises the signal. Non-blocking; a pending, unobserved signal
// is left as-is (multiple sets collapse to one wakeup).
func (s *heartbeatSignal) Set() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Chan exposes the underlying channel for use in a select alongside
// timers and cancellation, per spec §4.4's FOLLOWER loop.
func (s *heartbeatSignal) Chan() <-chan struct{} {
	return s.ch
}

// Clear drains any pending signal without blocking. Safe to call when
// no signal is pending.
func (s *heartbeatSignal) Clear() {
	select {
	case <-s.ch:
	default:
	}
}
