// Package crawler implements the control loop that drives the Known-Network
// by periodically probing candidate addresses through a synthetic peer.
package crawler

import (
	"time"

	"github.com/runziggurat/zcash/log"
	"github.com/runziggurat/zcash/p2p"
	"github.com/runziggurat/zcash/wire"
)

const (
	// DefaultCrawlInterval is the tick period.
	DefaultCrawlInterval = 5 * time.Second
	// DefaultMaxConcurrentProbes bounds in-flight probes per tick.
	DefaultMaxConcurrentProbes = 50
	// DefaultProbeCooldown is the minimum idle time before a vertex is
	// reconsidered as a candidate.
	DefaultProbeCooldown = time.Minute
	// DefaultAddrTimeout bounds how long a worker waits for an Addr reply
	// to its GetAddr.
	DefaultAddrTimeout = 5 * time.Second
)

// Config parameterises the crawl loop.
type Config struct {
	SeedAddrs           []string
	CrawlInterval       time.Duration
	MaxConcurrentProbes int
	ProbeCooldown       time.Duration
	AddrTimeout         time.Duration
	MaxKnownNodes       int

	Magic       wire.Magic
	Version     int32
	Services    uint64
	UserAgent   string
	StartHeight int32
	Policy      p2p.PolicyHooks

	// Observer, if set, is notified of each probe's outcome — the hook the
	// RPC server's websocket telemetry stream subscribes through.
	Observer ProbeObserver

	Logger log.Logger
}

// ProbeObserver receives one notification per completed crawler probe.
type ProbeObserver interface {
	ObserveProbe(addr string, outcome string)
}

func (c *Config) logger() log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Root()
}

func (c *Config) crawlInterval() time.Duration {
	if c.CrawlInterval > 0 {
		return c.CrawlInterval
	}
	return DefaultCrawlInterval
}

func (c *Config) maxConcurrentProbes() int {
	if c.MaxConcurrentProbes > 0 {
		return c.MaxConcurrentProbes
	}
	return DefaultMaxConcurrentProbes
}

func (c *Config) probeCooldown() time.Duration {
	if c.ProbeCooldown > 0 {
		return c.ProbeCooldown
	}
	return DefaultProbeCooldown
}

func (c *Config) addrTimeout() time.Duration {
	if c.AddrTimeout > 0 {
		return c.AddrTimeout
	}
	return DefaultAddrTimeout
}
