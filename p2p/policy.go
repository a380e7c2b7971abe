package p2p

import "github.com/runziggurat/zcash/wire"

// PolicyHooks lets a test case compose a malformed handshake declaratively,
// rather than forking the FSM per scenario. DefaultPolicy returns the
// well-behaved configuration: send Version, respond with Verack, no
// injected frames, no overrides. The zero value is not that configuration:
// with both booleans false it sends neither Version nor Verack.
type PolicyHooks struct {
	// SendInitialVersion, when false, suppresses our own outbound Version
	// send, on the initiator and the responder side alike (used to test a
	// peer that never completes the handshake).
	SendInitialVersion bool

	// RespondWithVerack, when false, suppresses sending our own Verack in
	// response to a valid peer Version.
	RespondWithVerack bool

	// InjectBeforeVersion, if non-nil, is sent immediately after the TCP
	// connection is established, before the Version handshake begins.
	InjectBeforeVersion wire.Message

	// InjectBetweenVersionAndVerack, if non-nil, is sent after our Version
	// is sent/received but before our Verack.
	InjectBetweenVersionAndVerack wire.Message

	// OverrideNonce, if non-nil, replaces the locally generated handshake
	// nonce (used to script a self-connection test).
	OverrideNonce *uint64

	// OverrideVersion, if non-nil, replaces the protocol version advertised
	// in our own Version message (used to script a VersionMismatch test).
	OverrideVersion *int32

	// RejectPeerVersion, if non-nil, is consulted against the peer's decoded
	// Version message; a true return aborts the handshake with
	// ErrPolicyReject before Verack is exchanged. Used to script a peer that
	// refuses specific user agents or service bits.
	RejectPeerVersion func(*wire.MsgVersion) bool
}

// DefaultPolicy returns the well-behaved policy: a real peer sends its
// Version, replies with Verack, and injects nothing.
func DefaultPolicy() PolicyHooks {
	return PolicyHooks{SendInitialVersion: true, RespondWithVerack: true}
}
