package p2p

import (
	"context"
	"time"

	"github.com/runziggurat/zcash/log"
	"github.com/runziggurat/zcash/wire"
)

// DefaultHandshakeTimeout is the per-transition deadline.
const DefaultHandshakeTimeout = 10 * time.Second

// HandshakeConfig carries everything the FSM needs to build and validate a
// Version exchange, plus the PolicyHooks a test case uses to script
// malformed handshakes.
type HandshakeConfig struct {
	Magic       wire.Magic
	Nonce       uint64
	Version     int32
	Services    uint64
	UserAgent   string
	StartHeight int32
	Relay       bool
	AddrRecv    wire.NetworkAddress
	AddrFrom    wire.NetworkAddress

	// LocalNonces reports the set of nonces this process currently owns
	// across all of its connections, used for the self-connection check.
	LocalNonces func() []uint64

	Policy  PolicyHooks
	Timeout time.Duration // 0 uses DefaultHandshakeTimeout
	Logger  log.Logger
}

// HandshakeResult summarises what the FSM learned about the peer.
type HandshakeResult struct {
	PeerVersion   int32
	PeerServices  uint64
	PeerUserAgent string
	PeerNonce     uint64
}

func (cfg *HandshakeConfig) timeout() time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return DefaultHandshakeTimeout
}

func (cfg *HandshakeConfig) logger() log.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return log.Root()
}

func (cfg *HandshakeConfig) effectiveNonce() uint64 {
	if cfg.Policy.OverrideNonce != nil {
		return *cfg.Policy.OverrideNonce
	}
	return cfg.Nonce
}

func (cfg *HandshakeConfig) effectiveVersion() int32 {
	if cfg.Policy.OverrideVersion != nil {
		return *cfg.Policy.OverrideVersion
	}
	return cfg.Version
}

func (cfg *HandshakeConfig) buildVersion() *wire.MsgVersion {
	return &wire.MsgVersion{
		Version:     cfg.effectiveVersion(),
		Services:    cfg.Services,
		Timestamp:   time.Now().Unix(),
		AddrRecv:    cfg.AddrRecv,
		AddrFrom:    cfg.AddrFrom,
		Nonce:       cfg.effectiveNonce(),
		UserAgent:   cfg.UserAgent,
		StartHeight: cfg.StartHeight,
		Relay:       cfg.Relay,
	}
}

// validateVersion enforces the handshake's rejection rules, in order:
// self-connection (our own nonce came back), then MinVersion, then any
// caller-supplied policy rejection. A self-connecting peer must have its
// connection closed before a Verack is ever sent.
func validateVersion(peer *wire.MsgVersion, cfg *HandshakeConfig) error {
	if cfg.LocalNonces != nil {
		for _, n := range cfg.LocalNonces() {
			if n == peer.Nonce {
				return ErrSelfConnection
			}
		}
	}
	if peer.Version < wire.MinVersion {
		return ErrVersionMismatch
	}
	if cfg.Policy.RejectPeerVersion != nil && cfg.Policy.RejectPeerVersion(peer) {
		return ErrPolicyReject
	}
	return nil
}

// awaitMessage blocks until a message matching want arrives, a non-matching
// message is ignored (pre-handshake messages tolerate and skip anything
// unexpected rather than failing the connection), the connection closes, or
// timeout elapses.
func awaitMessage(ctx context.Context, conn *Connection, timeout time.Duration, want func(wire.Message) bool) (wire.Message, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case env, ok := <-conn.Inbox():
			if !ok {
				return nil, ErrPeerClosedEarly
			}
			if env.Err != nil {
				// Non-fatal framing error: frame already dropped by the
				// Connection's reader. Keep waiting.
				continue
			}
			if want(env.Message) {
				return env.Message, nil
			}
			// Tolerance rule: ignore and remain in state.
			continue
		case <-conn.Done():
			return nil, ErrPeerClosedEarly
		case <-deadline.C:
			conn.Close(ErrTimeout)
			return nil, ErrTimeout
		case <-ctx.Done():
			conn.Close(ctx.Err())
			return nil, ctx.Err()
		}
	}
}

func isVersion(m wire.Message) bool { return m.Command() == wire.CmdVersion }
func isVerack(m wire.Message) bool  { return m.Command() == wire.CmdVerack }

// AsInitiator drives the initiator side of the Version/Verack handshake.
// conn must already be started (Connection.Start).
func AsInitiator(ctx context.Context, conn *Connection, cfg HandshakeConfig) (*HandshakeResult, error) {
	logger := cfg.logger()
	conn.SetState(StateConnecting)

	if cfg.Policy.InjectBeforeVersion != nil {
		_ = conn.Enqueue(cfg.Policy.InjectBeforeVersion)
	}
	if cfg.Policy.SendInitialVersion {
		if err := conn.Enqueue(cfg.buildVersion()); err != nil {
			return nil, err
		}
	}
	conn.SetState(StateVersionSent)

	msg, err := awaitMessage(ctx, conn, cfg.timeout(), isVersion)
	if err != nil {
		return nil, err
	}
	peerVersion := msg.(*wire.MsgVersion)

	if err := validateVersion(peerVersion, &cfg); err != nil {
		logger.Debug("rejecting handshake", "err", err, "peer_nonce", peerVersion.Nonce, "peer_version", peerVersion.Version)
		conn.Close(err)
		return nil, err
	}
	conn.SetState(StateVersionReceived)

	if cfg.Policy.InjectBetweenVersionAndVerack != nil {
		_ = conn.Enqueue(cfg.Policy.InjectBetweenVersionAndVerack)
	}
	if cfg.Policy.RespondWithVerack {
		if err := conn.Enqueue(wire.NewMsgVerack()); err != nil {
			return nil, err
		}
	}
	conn.SetState(StateVerackSent)

	if _, err := awaitMessage(ctx, conn, cfg.timeout(), isVerack); err != nil {
		return nil, err
	}
	conn.SetState(StateEstablished)

	return &HandshakeResult{
		PeerVersion:   peerVersion.Version,
		PeerServices:  peerVersion.Services,
		PeerUserAgent: peerVersion.UserAgent,
		PeerNonce:     peerVersion.Nonce,
	}, nil
}

// AsResponder drives the responder side of the Version/Verack handshake.
// conn must already be started (Connection.Start).
func AsResponder(ctx context.Context, conn *Connection, cfg HandshakeConfig) (*HandshakeResult, error) {
	logger := cfg.logger()
	conn.SetState(StateConnecting)

	if cfg.Policy.InjectBeforeVersion != nil {
		_ = conn.Enqueue(cfg.Policy.InjectBeforeVersion)
	}

	msg, err := awaitMessage(ctx, conn, cfg.timeout(), isVersion)
	if err != nil {
		return nil, err
	}
	peerVersion := msg.(*wire.MsgVersion)

	if err := validateVersion(peerVersion, &cfg); err != nil {
		logger.Debug("rejecting handshake", "err", err, "peer_nonce", peerVersion.Nonce, "peer_version", peerVersion.Version)
		conn.Close(err)
		return nil, err
	}

	if cfg.Policy.SendInitialVersion {
		if err := conn.Enqueue(cfg.buildVersion()); err != nil {
			return nil, err
		}
	}
	conn.SetState(StateVersionReceived)

	if cfg.Policy.InjectBetweenVersionAndVerack != nil {
		_ = conn.Enqueue(cfg.Policy.InjectBetweenVersionAndVerack)
	}

	if _, err := awaitMessage(ctx, conn, cfg.timeout(), isVerack); err != nil {
		return nil, err
	}

	if cfg.Policy.RespondWithVerack {
		if err := conn.Enqueue(wire.NewMsgVerack()); err != nil {
			return nil, err
		}
	}
	conn.SetState(StateEstablished)

	return &HandshakeResult{
		PeerVersion:   peerVersion.Version,
		PeerServices:  peerVersion.Services,
		PeerUserAgent: peerVersion.UserAgent,
		PeerNonce:     peerVersion.Nonce,
	}, nil
}
