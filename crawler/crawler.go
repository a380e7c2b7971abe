package crawler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/runziggurat/zcash/log"
	"github.com/runziggurat/zcash/p2p"
	"github.com/runziggurat/zcash/peer"
	"github.com/runziggurat/zcash/topology"
	"github.com/runziggurat/zcash/wire"
)

// Crawler runs the periodic control loop that walks the live network
// through a synthetic peer and folds the results back into a Known-Network.
type Crawler struct {
	cfg Config
	net *topology.Network
	pr  *peer.Peer
	sem *semaphore.Weighted
	log log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Crawler, seeding its Known-Network from cfg.SeedAddrs and
// starting the outbound-only synthetic peer it probes through.
func New(cfg Config) (*Crawler, error) {
	net := topology.NewNetwork(cfg.MaxKnownNodes)
	for _, addr := range cfg.SeedAddrs {
		net.EnsureVertex(addr)
	}

	logger := cfg.logger().New("component", "crawler")

	pr, err := peer.Start(peer.Config{
		Magic:            cfg.Magic,
		Version:          cfg.Version,
		Services:         cfg.Services,
		UserAgent:        cfg.UserAgent,
		StartHeight:      cfg.StartHeight,
		Policy:           cfg.Policy,
		HandshakeTimeout: p2p.DefaultHandshakeTimeout,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	return &Crawler{
		cfg: cfg,
		net: net,
		pr:  pr,
		sem: semaphore.NewWeighted(int64(cfg.maxConcurrentProbes())),
		log: logger,
	}, nil
}

// Network exposes the Known-Network for metrics and RPC.
func (c *Crawler) Network() *topology.Network { return c.net }

// Run blocks, ticking at crawl_interval until ctx is done.
func (c *Crawler) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	ticker := time.NewTicker(c.cfg.crawlInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick dispatches one worker per eligible candidate, up to
// max_concurrent_probes.
func (c *Crawler) tick(ctx context.Context) {
	limit := c.cfg.maxConcurrentProbes()
	candidates := c.net.Candidates(c.cfg.probeCooldown(), time.Now(), limit)
	c.log.Debug("tick", "candidates", len(candidates))

	for _, addr := range candidates {
		if !c.net.TryAcquireProbe(addr) {
			continue // lost the race to another tick
		}
		if err := c.sem.Acquire(ctx, 1); err != nil {
			c.net.ReleaseProbe(addr)
			return
		}

		c.wg.Add(1)
		go func(addr string) {
			defer c.wg.Done()
			defer c.sem.Release(1)
			c.probe(ctx, addr)
		}(addr)
	}
}

// probe drives one worker's full attempt: connect, handshake, GetAddr,
// disconnect, fold results back.
func (c *Crawler) probe(ctx context.Context, addr string) {
	now := time.Now()
	c.net.RecordAttempt(addr, now)
	defer c.net.ReleaseProbe(addr)

	connectCtx, cancel := context.WithTimeout(ctx, p2p.DefaultHandshakeTimeout)
	defer cancel()

	id, err := c.pr.Connect(connectCtx, addr)
	if err != nil {
		outcome := outcomeFor(err)
		c.log.Info("probe failed", "addr", addr, "err", err)
		c.net.RecordFailure(addr, outcome, time.Now())
		c.notify(addr, outcome.String())
		return
	}
	defer c.pr.Disconnect(id)

	info, _ := c.pr.Info(id)
	c.net.RecordSuccess(addr, info.Version, info.UserAgent, info.Services, time.Now())
	c.log.Info("probe succeeded", "addr", addr, "version", info.Version, "user_agent", info.UserAgent)
	c.notify(addr, topology.Ok.String())

	reported := c.fetchAddr(ctx, id)
	c.net.ReplaceOutEdges(addr, reported)
}

func (c *Crawler) notify(addr, outcome string) {
	if c.cfg.Observer != nil {
		c.cfg.Observer.ObserveProbe(addr, outcome)
	}
}

// fetchAddr sends GetAddr and waits up to addr_timeout for an Addr reply,
// returning the reported addresses (empty if none arrived in time).
func (c *Crawler) fetchAddr(ctx context.Context, id string) []string {
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.addrTimeout())
	defer cancel()

	reply, err := c.pr.SendAndExpect(waitCtx, id, wire.NewMsgGetAddr(), func(m wire.Message) bool {
		return m.Command() == wire.CmdAddr
	}, c.cfg.addrTimeout())
	if err != nil {
		return nil
	}
	addrMsg, ok := reply.(*wire.MsgAddr)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(addrMsg.Addrs))
	for _, a := range addrMsg.Addrs {
		out = append(out, a.String())
	}
	return out
}

// outcomeFor classifies a connect/handshake error into the Known-Network's
// handshake_outcome taxonomy.
func outcomeFor(err error) topology.HandshakeOutcome {
	switch {
	case errors.Is(err, p2p.ErrVersionMismatch):
		return topology.VersionMismatch
	case errors.Is(err, p2p.ErrSelfConnection), errors.Is(err, p2p.ErrPolicyReject):
		return topology.Refused
	case errors.Is(err, p2p.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return topology.Timeout
	default:
		return topology.NetworkError
	}
}

// Shutdown stops the tick loop, waits for in-flight workers, then shuts
// down the underlying synthetic peer with the given grace period.
func (c *Crawler) Shutdown(grace time.Duration) {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.pr.Shutdown(grace)
}
