package membership

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity() NodeIdentity {
	return NodeIdentity{
		Name: "a",
		Peers: []PeerAddr{
			{Name: "a", Host: "127.0.0.1", Port: 1001},
			{Name: "b", Host: "127.0.0.1", Port: 1002},
			{Name: "c", Host: "127.0.0.1", Port: 1003},
		},
	}
}

func newTestStateMachine() *StateMachine {
	return NewStateMachine(testIdentity(), zerolog.Nop())
}

func TestNewStateMachineStartsAsFollower(t *testing.T) {
	sm := newTestStateMachine()
	snap := sm.Snapshot()

	assert.Equal(t, RoleFollower, snap.Role)
	assert.Equal(t, uint64(0), snap.Term)
	assert.Empty(t, snap.Leader)
}

func TestPromoteToCandidateIncrementsTermAndClearsLeader(t *testing.T) {
	sm := newTestStateMachine()
	sm.SetLeader(5, "b")

	require.NoError(t, sm.PromoteToCandidate())

	snap := sm.Snapshot()
	assert.Equal(t, RoleCandidate, snap.Role)
	assert.Equal(t, uint64(6), snap.Term)
	assert.Empty(t, snap.Leader)
}

func TestPromoteToCandidateRejectsNonFollower(t *testing.T) {
	sm := newTestStateMachine()
	require.NoError(t, sm.PromoteToCandidate())

	err := sm.PromoteToCandidate()
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestPromoteToLeaderRequiresCandidate(t *testing.T) {
	sm := newTestStateMachine()
	err := sm.PromoteToLeader()
	assert.ErrorIs(t, err, ErrWrongState)

	require.NoError(t, sm.PromoteToCandidate())
	require.NoError(t, sm.PromoteToLeader())
	assert.Equal(t, RoleLeader, sm.Snapshot().Role)
}

func TestStepDownIsUnconditionalAndKeepsLeader(t *testing.T) {
	sm := newTestStateMachine()
	sm.SetLeader(3, "b")
	require.NoError(t, sm.PromoteToCandidate())
	require.NoError(t, sm.PromoteToLeader())
	// Both promotions clear the leader field; seed one so StepDown's
	// effect on it is observable.
	sm.leader = "b"

	sm.StepDown()

	snap := sm.Snapshot()
	assert.Equal(t, RoleFollower, snap.Role)
	assert.Equal(t, "b", snap.Leader, "StepDown must not clear the previously known leader")
}

func TestOnHeartbeatRejectsStaleTerm(t *testing.T) {
	sm := newTestStateMachine()
	sm.SetLeader(10, "b")

	_, err := sm.OnHeartbeat(9, "b")
	assert.ErrorIs(t, err, ErrTermLower)

	snap := sm.Snapshot()
	assert.Equal(t, uint64(10), snap.Term, "a rejected heartbeat must not mutate term")
}

func TestOnHeartbeatAdoptsNewLeaderAtEqualTerm(t *testing.T) {
	sm := newTestStateMachine()
	require.NoError(t, sm.PromoteToCandidate())
	require.NoError(t, sm.PromoteToLeader())

	name, err := sm.OnHeartbeat(1, "b")
	require.NoError(t, err)
	assert.Equal(t, "a", name)

	snap := sm.Snapshot()
	assert.Equal(t, RoleFollower, snap.Role)
	assert.Equal(t, "b", snap.Leader)
	assert.Equal(t, uint64(1), snap.Term)
}

func TestOnVoteRequiresFollower(t *testing.T) {
	sm := newTestStateMachine()
	require.NoError(t, sm.PromoteToCandidate())

	_, err := sm.OnVote(1, "b")
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestOnVoteRejectsStaleTerm(t *testing.T) {
	sm := newTestStateMachine()
	sm.SetLeader(10, "b")

	_, err := sm.OnVote(9, "c")
	assert.ErrorIs(t, err, ErrTermLower)
}

func TestOnVoteRecordsCandidateAsLeader(t *testing.T) {
	sm := newTestStateMachine()

	name, err := sm.OnVote(1, "b")
	require.NoError(t, err)
	assert.Equal(t, "a", name)

	snap := sm.Snapshot()
	assert.Equal(t, "b", snap.Leader)
	assert.Equal(t, uint64(1), snap.Term)
	assert.Equal(t, RoleFollower, snap.Role)
}
