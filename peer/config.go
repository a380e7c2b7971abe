package peer

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/runziggurat/zcash/log"
	"github.com/runziggurat/zcash/p2p"
	"github.com/runziggurat/zcash/wire"
)

// Reply lets a MessageCallback inject an in-band response on the same
// connection the triggering message arrived on, used e.g. by the crawler to
// answer GetAddr.
type Reply interface {
	Send(m wire.Message) error
}

// MessageCallback is invoked once per decoded inbound message that is
// neither dropped by the DenyList nor claimed by a pending SendAndExpect,
// serialized per connection.
type MessageCallback func(source string, msg wire.Message, reply Reply)

// Config configures a Peer's identity and policy.
type Config struct {
	Magic       wire.Magic
	Version     int32
	Services    uint64
	UserAgent   string
	StartHeight int32
	Relay       bool

	// ListenAddr, if non-empty, is bound on Start to accept inbound
	// connections. Leave empty for an outbound-only synthetic peer.
	ListenAddr string

	Policy           p2p.PolicyHooks
	HandshakeTimeout time.Duration // 0 uses p2p.DefaultHandshakeTimeout

	MaxPayload         uint32 // 0 uses wire.MaxPayloadSize
	OutboundQueueDepth int    // 0 uses the Connection default
	MaxConnections     int    // 0 = unbounded

	// AcceptRateLimit and AcceptRateBurst bound the rate of inbound TCP
	// accepts, independent of MaxConnections, so a burst of dials from one
	// misbehaving peer can't monopolize handshake goroutines. Zero values
	// disable rate limiting.
	AcceptRateLimit rate.Limit
	AcceptRateBurst int

	// DenyList drops decoded messages of the named command before they
	// reach waiters or the callback.
	DenyList map[string]bool

	Callback MessageCallback
	Logger   log.Logger
}

func (c *Config) logger() log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Root()
}

func (c *Config) handshakeTimeout() time.Duration {
	if c.HandshakeTimeout > 0 {
		return c.HandshakeTimeout
	}
	return p2p.DefaultHandshakeTimeout
}

// Stats summarises a Peer's traffic and handshake history.
type Stats struct {
	SentByKind        map[string]uint64
	ReceivedByKind    map[string]uint64
	HandshakeOutcomes map[string]uint64
	BytesSent         uint64
	BytesReceived     uint64
}

func newStats() *Stats {
	return &Stats{
		SentByKind:        make(map[string]uint64),
		ReceivedByKind:    make(map[string]uint64),
		HandshakeOutcomes: make(map[string]uint64),
	}
}
