package membership

import "fmt"

// Role is the position of a node in the election state machine.
type Role int

const (
	// RoleFollower awaits heartbeats from a leader.
	RoleFollower Role = iota
	// RoleCandidate solicits votes for itself.
	RoleCandidate
	// RoleLeader emits heartbeats asserting liveness.
	RoleLeader
)

// String renders a Role for logging.
func (r Role) String() string {
	switch r {
	case RoleFollower:
		return "follower"
	case RoleCandidate:
		return "candidate"
	case RoleLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// PeerAddr is one entry of the cluster roster: a peer's name and where
// to reach it.
type PeerAddr struct {
	Name string
	Host string
	Port int
}

// Addr returns the "host:port" dial string for this peer.
func (p PeerAddr) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// NodeIdentity is this node's cluster-unique name and the full peer
// roster (including self). It is built once at startup and never
// mutated afterward.
type NodeIdentity struct {
	Name  string
	Peers []PeerAddr
}

// OtherPeers returns the roster with self removed, preserving order.
func (n NodeIdentity) OtherPeers() []PeerAddr {
	out := make([]PeerAddr, 0, len(n.Peers))
	for _, p := range n.Peers {
		if p.Name != n.Name {
			out = append(out, p)
		}
	}
	return out
}

// Self returns this node's own roster entry, if present.
func (n NodeIdentity) Self() (PeerAddr, bool) {
	for _, p := range n.Peers {
		if p.Name == n.Name {
			return p, true
		}
	}
	return PeerAddr{}, false
}

// Snapshot is a point-in-time, read-only view of the StateMachine's
// (term, role, leader) tuple, handed to observers (the Reporter, the
// Actor) that must not mutate state directly.
type Snapshot struct {
	Term   uint64
	Role   Role
	Leader string
}
