package membership

import (
	"sync"

	"github.com/rs/zerolog"
)

// StateMachine owns the (role, term, leader) tuple for one node. All
// public mutators acquire mu for their entire body, matching the
// teacher's threadsafe-decorator pattern in
// pkg/replication/raft.go (RWMutex guarding role/term/leader) —
// collapsed here to a single sync.Mutex since spec §3/§5 call for one
// mutual-exclusion lock, not separate read/write paths.
//
// Guarded transitions enforce their preconditions with an explicit
// check at the top of the method (spec §9's "before_states" guidance),
// never a dispatch table or reflection-based decorator.
type StateMachine struct {
	identity NodeIdentity
	log      zerolog.Logger

	mu     sync.Mutex
	role   Role
	term   uint64
	leader string // "" means no leader known
}

// NewStateMachine constructs a StateMachine for the given node
// identity, starting at term 0 in RoleFollower with no known leader
// (spec §3).
func NewStateMachine(identity NodeIdentity, log zerolog.Logger) *StateMachine {
	return &StateMachine{
		identity: identity,
		log:      log.With().Str("component", "state_machine").Logger(),
		role:     RoleFollower,
		term:     0,
		leader:   "",
	}
}

// Identity returns this node's (immutable) name and peer roster.
func (sm *StateMachine) Identity() NodeIdentity {
	return sm.identity
}

// Snapshot returns the current (term, role, leader) tuple under lock.
// Safe for concurrent observational use (the Reporter, tests); callers
// must accept that the value may be stale by the time they act on it.
func (sm *StateMachine) Snapshot() Snapshot {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return Snapshot{Term: sm.term, Role: sm.role, Leader: sm.leader}
}

// PromoteToCandidate transitions FOLLOWER -> CANDIDATE: increments the
// term, clears the known leader, and sets role to CANDIDATE. Returns
// ErrWrongState, without mutating anything, if role is not FOLLOWER
// (spec §4.3, invariant 3).
func (sm *StateMachine) PromoteToCandidate() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.role != RoleFollower {
		return ErrWrongState
	}

	sm.term++
	sm.leader = ""
	sm.role = RoleCandidate

	sm.log.Debug().
		Uint64("term", sm.term).
		Msg("promoted to candidate")
	return nil
}

// PromoteToLeader transitions CANDIDATE -> LEADER: clears the known
// leader field (spec §9 open question 5 notes this is confusing — the
// leader "is" self once this returns, but the field is left null,
// which is harmless because the LEADER loop never reads it) and sets
// role to LEADER. Returns ErrWrongState, without mutating anything, if
// role is not CANDIDATE (spec §4.3, invariant 4).
func (sm *StateMachine) PromoteToLeader() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.role != RoleCandidate {
		return ErrWrongState
	}

	sm.leader = ""
	sm.role = RoleLeader

	sm.log.Info().
		Uint64("term", sm.term).
		Msg("promoted to leader")
	return nil
}

// StepDown transitions to FOLLOWER unconditionally, from any role.
// The known leader is left untouched: spec §4.3 only specifies
// "role := FOLLOWER" for this transition, and the original source's
// later revisions (see SPEC_FULL.md "SUPPLEMENTED FEATURES" #5) do not
// clear it either — a node stepping down does not forget who it last
// recognized as leader.
func (sm *StateMachine) StepDown() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.role != RoleFollower {
		sm.log.Debug().Str("from", sm.role.String()).Msg("stepping down to follower")
	}
	sm.role = RoleFollower
}

// SetLeader unconditionally overwrites term and leader and sets role
// to FOLLOWER (spec §4.3, invariant 7). term may move the node's term
// forward to match an accepted leader or candidate.
func (sm *StateMachine) SetLeader(term uint64, name string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.term = term
	sm.leader = name
	sm.role = RoleFollower
}

// OnHeartbeat is the RPC handler backing the wire "heartbeat <term>
// <leaderName>" request (spec §4.3, §6). Returns this node's own name
// on success, or ErrTermLower if the sender's term is stale. Raising
// the heartbeat signal is a side effect of Transport, not of this
// handler (spec §4.3's explicit note, §5's ordering guarantee).
func (sm *StateMachine) OnHeartbeat(incomingTerm uint64, leaderName string) (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.term > incomingTerm {
		return "", ErrTermLower
	}

	if sm.leader != leaderName {
		sm.term = incomingTerm
		sm.leader = leaderName
		sm.role = RoleFollower
	}

	return sm.identity.Name, nil
}

// OnVote is the RPC handler backing the wire "vote <term>
// <candidateName>" request (spec §4.3, §6). Requires role ==
// FOLLOWER, else ErrWrongState (spec §4.3, invariant/scenario S5).
// On success it records the candidate as leader-elect for that term
// with the same effect as SetLeader, applied inline because mu is
// already held — spec §9 open question 2 flags this as premature
// relative to real Raft's votedFor/leader distinction; this module
// preserves the source's conflated behavior rather than silently
// correcting it (see DESIGN.md).
func (sm *StateMachine) OnVote(incomingTerm uint64, candidateName string) (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.role != RoleFollower {
		return "", ErrWrongState
	}

	if sm.term > incomingTerm {
		return "", ErrTermLower
	}

	sm.term = incomingTerm
	sm.leader = candidateName
	sm.role = RoleFollower

	return sm.identity.Name, nil
}
