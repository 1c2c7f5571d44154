package membership

import "errors"

// Sentinel errors returned by StateMachine transitions and RPC
// handlers. Transport maps these onto wire-level -ERR responses (see
// transport.go); they are never process-fatal.
var (
	// ErrWrongState is returned when a guarded transition or RPC
	// handler is invoked from a role that does not satisfy its
	// precondition (spec §4.3, §7).
	ErrWrongState = errors.New("wrong-state")

	// ErrTermLower is returned when an incoming RPC carries a term
	// older than the node's current term (spec §4.3, §7).
	ErrTermLower = errors.New("term-lower")

	// ErrConnRefused is returned by Call when a peer connection
	// cannot be established. Non-fatal; Broadcast logs the peer and
	// continues with the rest (spec §7).
	ErrConnRefused = errors.New("connection-refused")

	// ErrIO is returned by Call on any other transport-level failure
	// (a dial error other than refusal, a failed write, or a read that
	// returns no data). The response line's content is not validated.
	ErrIO = errors.New("io-error")

	// ErrCancelled is returned by blocking operations that observed
	// cooperative shutdown rather than completing normally.
	ErrCancelled = errors.New("cancellation")

	// ErrClosed is declared for symmetry with the other sentinels; no
	// function in this package returns it (a repeated Shutdown returns
	// nil).
	ErrClosed = errors.New("closed")

	// ErrNotReady is returned by Shutdown when called before Run has
	// started any component.
	ErrNotReady = errors.New("not-ready")

	// ErrUnknownCommand is returned by the transport parser when a
	// request line names a command outside the handler table.
	ErrUnknownCommand = errors.New("unknown-command")

	// ErrArity is returned by the transport parser when a request
	// line does not carry the expected number of arguments.
	ErrArity = errors.New("bad-arity")
)

// wireReason maps an error to the -ERR:<reason> token spec §6 assigns
// it. Any error not named here becomes -ERR:UNKNOWN_ERROR, matching
// spec §7's "unknown" error kind (log at error severity, keep the
// connection open).
func wireReason(err error) string {
	switch {
	case errors.Is(err, ErrWrongState):
		return "WRONG_STATE"
	case errors.Is(err, ErrTermLower):
		return "TERM_IS_LOWER"
	default:
		return "UNKNOWN_ERROR"
	}
}
