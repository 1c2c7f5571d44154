package membership

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortActorConfig() ActorConfig {
	return ActorConfig{
		LeaderTimeout:     30 * time.Millisecond,
		ElectionJitter:    20 * time.Millisecond,
		VoteInterval:      20 * time.Millisecond,
		HeartbeatInterval: 10 * time.Millisecond,
	}
}

func TestWaitForHeartbeatTimesOutWithoutSignal(t *testing.T) {
	sm := newTestStateMachine()
	a := NewActor(testIdentity(), sm, NewBroadcaster(zerolog.Nop()), newHeartbeatSignal(), shortActorConfig(), zerolog.Nop())

	timedOut, err := a.waitForHeartbeat(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, timedOut)
}

func TestWaitForHeartbeatObservesSignal(t *testing.T) {
	sm := newTestStateMachine()
	signal := newHeartbeatSignal()
	a := NewActor(testIdentity(), sm, NewBroadcaster(zerolog.Nop()), signal, shortActorConfig(), zerolog.Nop())

	signal.Set()
	timedOut, err := a.waitForHeartbeat(context.Background(), time.Second)
	require.NoError(t, err)
	assert.False(t, timedOut)
}

func TestWaitForHeartbeatReturnsCancelledOnContextDone(t *testing.T) {
	sm := newTestStateMachine()
	a := NewActor(testIdentity(), sm, NewBroadcaster(zerolog.Nop()), newHeartbeatSignal(), shortActorConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.waitForHeartbeat(ctx, time.Second)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestRunFollowerPromotesToCandidateAfterDoubleTimeout(t *testing.T) {
	sm := newTestStateMachine()
	a := NewActor(testIdentity(), sm, NewBroadcaster(zerolog.Nop()), newHeartbeatSignal(), shortActorConfig(), zerolog.Nop())

	err := a.runFollower(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RoleCandidate, sm.Snapshot().Role)
}

func TestRunFollowerNeverPromotesWhileHeartbeatsKeepArriving(t *testing.T) {
	sm := newTestStateMachine()
	signal := newHeartbeatSignal()
	a := NewActor(testIdentity(), sm, NewBroadcaster(zerolog.Nop()), signal, shortActorConfig(), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				signal.Set()
			}
		}
	}()

	err := a.runFollower(ctx)
	close(stop)

	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, RoleFollower, sm.Snapshot().Role)
}

func TestCountPositive(t *testing.T) {
	assert.Equal(t, 2, countPositive([]string{"+OK:a", "-ERR:x", "+OK:b"}))
	assert.Equal(t, 0, countPositive(nil))
}

func TestRandomJitterNeverExceedsConfiguredWindow(t *testing.T) {
	sm := newTestStateMachine()
	a := NewActor(testIdentity(), sm, NewBroadcaster(zerolog.Nop()), newHeartbeatSignal(), shortActorConfig(), zerolog.Nop())

	for i := 0; i < 20; i++ {
		j := a.randomJitter()
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, a.cfg.ElectionJitter)
	}
}

func TestRunCandidateKeepsRetryingWithNoPeersReachable(t *testing.T) {
	// With zero reachable peers, countPositive is always 0, so the
	// candidate loop must keep retrying rather than ever winning.
	sm := newTestStateMachine()
	require.NoError(t, sm.PromoteToCandidate())

	identity := NodeIdentity{Name: "solo"} // no peers at all
	a := NewActor(identity, sm, NewBroadcaster(zerolog.Nop()), newHeartbeatSignal(), shortActorConfig(), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := a.runCandidate(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, RoleCandidate, sm.Snapshot().Role)
}
