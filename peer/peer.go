// Package peer implements the synthetic-peer runtime: a programmable node
// identity that owns a listener and outbound connector, routes decoded
// messages to a user callback, and tracks per-connection stats. It is the
// runtime every test case and the crawler is built on.
package peer

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/runziggurat/zcash/log"
	"github.com/runziggurat/zcash/p2p"
	"github.com/runziggurat/zcash/wire"
)

// Peer owns a set of connections and the nonces it has generated for them,
// used to detect self-connection across the whole identity rather than one
// socket at a time.
type Peer struct {
	cfg Config
	log log.Logger

	listener net.Listener

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu          sync.RWMutex
	conns       map[string]*peerConn
	localNonces map[uint64]struct{}
	rng         *rand.Rand
	rngMu       sync.Mutex

	statsMu             sync.Mutex
	stats               *Stats
	closedBytesSent     uint64
	closedBytesReceived uint64

	acceptLimiter *rate.Limiter

	closeOnce sync.Once
}

type peerConn struct {
	id        string
	conn      *p2p.Connection
	direction p2p.Direction
	nonce     uint64

	mu      sync.Mutex
	info    PeerInfo
	waiters []*waiter
}

func (pc *peerConn) setInfo(info PeerInfo) {
	pc.mu.Lock()
	pc.info = info
	pc.mu.Unlock()
}

func (pc *peerConn) getInfo() PeerInfo {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.info
}

// PeerInfo is what a completed handshake learned about the remote side,
// recorded by the crawler onto the corresponding Known-Network vertex.
type PeerInfo struct {
	Version   int32
	Services  uint64
	UserAgent string
}

type waiter struct {
	predicate func(wire.Message) bool
	ch        chan wire.Message
}

// Start constructs a Peer from cfg, binds a listener if cfg.ListenAddr is
// set, and spawns its accept loop.
func Start(cfg Config) (*Peer, error) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Peer{
		cfg:         cfg,
		log:         cfg.logger().New("component", "peer"),
		rootCtx:     ctx,
		cancel:      cancel,
		conns:       make(map[string]*peerConn),
		localNonces: make(map[uint64]struct{}),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		stats:       newStats(),
	}
	if cfg.AcceptRateLimit > 0 {
		p.acceptLimiter = rate.NewLimiter(cfg.AcceptRateLimit, cfg.AcceptRateBurst)
	}

	if cfg.ListenAddr != "" {
		l, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			cancel()
			return nil, err
		}
		p.listener = l
		p.wg.Add(1)
		go p.acceptLoop(l)
	}

	return p, nil
}

// ListenAddr reports the bound listener address, or "" if none.
func (p *Peer) ListenAddr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

func (p *Peer) nextNonce() uint64 {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.rng.Uint64()
}

func (p *Peer) registerNonce(n uint64) {
	p.mu.Lock()
	p.localNonces[n] = struct{}{}
	p.mu.Unlock()
}

func (p *Peer) unregisterNonce(n uint64) {
	p.mu.Lock()
	delete(p.localNonces, n)
	p.mu.Unlock()
}

func (p *Peer) localNonceSnapshot() []uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]uint64, 0, len(p.localNonces))
	for n := range p.localNonces {
		out = append(out, n)
	}
	return out
}

func (p *Peer) acceptLoop(l net.Listener) {
	defer p.wg.Done()
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-p.rootCtx.Done():
				return
			default:
				p.log.Debug("accept error", "err", err)
				return
			}
		}
		if p.acceptLimiter != nil && !p.acceptLimiter.Allow() {
			p.log.Debug("accept rate limit exceeded, dropping connection", "remote", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}
		p.wg.Add(1)
		go p.handleInbound(conn)
	}
}

func (p *Peer) handleInbound(netConn net.Conn) {
	defer p.wg.Done()

	if max := p.cfg.MaxConnections; max > 0 && p.connectionCount() >= max {
		_ = netConn.Close()
		return
	}

	nonce := p.nextNonce()
	p.registerNonce(nonce)
	conn := p2p.NewConnection(netConn, p2p.Inbound, p2p.Config{
		Magic:              p.cfg.Magic,
		MaxPayload:         p.cfg.MaxPayload,
		OutboundQueueDepth: p.cfg.OutboundQueueDepth,
		Nonce:              nonce,
		Logger:             p.cfg.logger(),
	})
	conn.Start(p.rootCtx)

	id := netConn.RemoteAddr().String()
	pc := &peerConn{id: id, conn: conn, direction: p2p.Inbound, nonce: nonce}
	p.mu.Lock()
	p.conns[id] = pc
	p.mu.Unlock()

	hsCfg := p.handshakeConfig(nonce)
	result, err := p2p.AsResponder(p.rootCtx, conn, hsCfg)
	if err != nil {
		p.mu.Lock()
		delete(p.conns, id)
		p.mu.Unlock()
		p.unregisterNonce(nonce)
		p.recordHandshakeOutcome(outcomeFor(err))
		return
	}
	p.recordHandshakeOutcome("ok")
	pc.setInfo(PeerInfo{Version: result.PeerVersion, Services: result.PeerServices, UserAgent: result.PeerUserAgent})

	p.dispatchLoop(pc)
}

// Connect dials addr, drives the initiator handshake, and on success tracks
// the connection for send_direct/broadcast/send_and_expect.
func (p *Peer) Connect(ctx context.Context, addr string) (string, error) {
	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", err
	}

	nonce := p.nextNonce()
	p.registerNonce(nonce)
	conn := p2p.NewConnection(netConn, p2p.Outbound, p2p.Config{
		Magic:              p.cfg.Magic,
		MaxPayload:         p.cfg.MaxPayload,
		OutboundQueueDepth: p.cfg.OutboundQueueDepth,
		Nonce:              nonce,
		Logger:             p.cfg.logger(),
	})
	conn.Start(p.rootCtx)

	id := netConn.RemoteAddr().String()
	pc := &peerConn{id: id, conn: conn, direction: p2p.Outbound, nonce: nonce}
	p.mu.Lock()
	p.conns[id] = pc
	p.mu.Unlock()

	hsCfg := p.handshakeConfig(nonce)
	result, err := p2p.AsInitiator(ctx, conn, hsCfg)
	if err != nil {
		p.mu.Lock()
		delete(p.conns, id)
		p.mu.Unlock()
		p.unregisterNonce(nonce)
		p.recordHandshakeOutcome(outcomeFor(err))
		return "", err
	}
	p.recordHandshakeOutcome("ok")
	pc.setInfo(PeerInfo{Version: result.PeerVersion, Services: result.PeerServices, UserAgent: result.PeerUserAgent})

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.dispatchLoop(pc)
	}()

	return id, nil
}

func (p *Peer) handshakeConfig(nonce uint64) p2p.HandshakeConfig {
	return p2p.HandshakeConfig{
		Magic:       p.cfg.Magic,
		Nonce:       nonce,
		Version:     p.cfg.Version,
		Services:    p.cfg.Services,
		UserAgent:   p.cfg.UserAgent,
		StartHeight: p.cfg.StartHeight,
		Relay:       p.cfg.Relay,
		LocalNonces: p.localNonceSnapshot,
		Policy:      p.cfg.Policy,
		Timeout:     p.cfg.handshakeTimeout(),
		Logger:      p.cfg.logger(),
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, p2p.ErrSelfConnection):
		return "self_connection"
	case errors.Is(err, p2p.ErrVersionMismatch):
		return "version_mismatch"
	case errors.Is(err, p2p.ErrTimeout):
		return "timeout"
	case errors.Is(err, p2p.ErrPeerClosedEarly):
		return "peer_closed_early"
	default:
		return "network_error"
	}
}

// dispatchLoop drains one connection's inbox, routing each decoded message
// to a waiting send_and_expect caller if one matches, otherwise to the
// configured callback. This is a single goroutine per connection, so
// callback execution is serialized per connection by construction.
func (p *Peer) dispatchLoop(pc *peerConn) {
	for env := range pc.conn.Inbox() {
		if env.Err != nil {
			continue
		}
		msg := env.Message
		if p.cfg.DenyList[msg.Command()] {
			continue
		}

		pc.mu.Lock()
		var matched *waiter
		for i, w := range pc.waiters {
			if w.predicate(msg) {
				matched = w
				pc.waiters = append(pc.waiters[:i], pc.waiters[i+1:]...)
				break
			}
		}
		pc.mu.Unlock()

		p.recordReceived(msg.Command())

		if matched != nil {
			matched.ch <- msg
			continue
		}
		if p.cfg.Callback != nil {
			p.cfg.Callback(pc.id, msg, &replyImpl{p: p, pc: pc})
		}
	}

	p.mu.Lock()
	delete(p.conns, pc.id)
	p.mu.Unlock()
	p.unregisterNonce(pc.nonce)

	p.statsMu.Lock()
	p.closedBytesSent += pc.conn.BytesWritten()
	p.closedBytesReceived += pc.conn.BytesRead()
	p.statsMu.Unlock()
}

type replyImpl struct {
	p  *Peer
	pc *peerConn
}

func (r *replyImpl) Send(m wire.Message) error {
	if err := r.pc.conn.Enqueue(m); err != nil {
		return err
	}
	r.p.recordSent(m.Command())
	return nil
}

// Info returns what the handshake with addr learned about the remote side.
func (p *Peer) Info(addr string) (PeerInfo, bool) {
	pc := p.lookup(addr)
	if pc == nil {
		return PeerInfo{}, false
	}
	return pc.getInfo(), true
}

func (p *Peer) lookup(addr string) *peerConn {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conns[addr]
}

func (p *Peer) connectionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// SendDirect enqueues m on the connection to addr without waiting for a
// reply.
func (p *Peer) SendDirect(addr string, m wire.Message) error {
	pc := p.lookup(addr)
	if pc == nil {
		return &UnknownPeerError{Addr: addr}
	}
	if err := pc.conn.SendApplication(m); err != nil {
		if errors.Is(err, p2p.ErrNotEstablished) {
			return &NotEstablishedError{Addr: addr}
		}
		return err
	}
	p.recordSent(m.Command())
	return nil
}

// SendAndExpect enqueues m on the connection to addr, then blocks until an
// inbound message from addr satisfies predicate, ctx is done, or timeout
// elapses.
func (p *Peer) SendAndExpect(ctx context.Context, addr string, m wire.Message, predicate func(wire.Message) bool, timeout time.Duration) (wire.Message, error) {
	pc := p.lookup(addr)
	if pc == nil {
		return nil, &UnknownPeerError{Addr: addr}
	}

	w := &waiter{predicate: predicate, ch: make(chan wire.Message, 1)}
	pc.mu.Lock()
	pc.waiters = append(pc.waiters, w)
	pc.mu.Unlock()

	removeWaiter := func() {
		pc.mu.Lock()
		for i, x := range pc.waiters {
			if x == w {
				pc.waiters = append(pc.waiters[:i], pc.waiters[i+1:]...)
				break
			}
		}
		pc.mu.Unlock()
	}

	if err := pc.conn.SendApplication(m); err != nil {
		removeWaiter()
		if errors.Is(err, p2p.ErrNotEstablished) {
			return nil, &NotEstablishedError{Addr: addr}
		}
		return nil, err
	}
	p.recordSent(m.Command())

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-w.ch:
		return reply, nil
	case <-timer.C:
		removeWaiter()
		return nil, p2p.ErrTimeout
	case <-ctx.Done():
		removeWaiter()
		return nil, ctx.Err()
	}
}

// Broadcast sends m on every tracked connection.
func (p *Peer) Broadcast(m wire.Message) {
	p.mu.RLock()
	targets := make([]*peerConn, 0, len(p.conns))
	for _, pc := range p.conns {
		targets = append(targets, pc)
	}
	p.mu.RUnlock()

	for _, pc := range targets {
		if pc.conn.Enqueue(m) == nil {
			p.recordSent(m.Command())
		}
	}
}

// Disconnect closes the connection to addr, if any, regardless of whether
// its handshake has completed.
func (p *Peer) Disconnect(addr string) error {
	pc := p.lookup(addr)
	if pc == nil {
		return &UnknownPeerError{Addr: addr}
	}
	pc.conn.Close(nil)
	return nil
}

// Shutdown cancels the root context, closes the listener and every tracked
// connection's socket at once, and waits up to grace for those connections'
// reader and writer tasks to exit (logging a warning if they have not). It
// then waits, with no time bound, for the accept loop and every dispatch
// goroutine to return.
func (p *Peer) Shutdown(grace time.Duration) {
	p.closeOnce.Do(func() {
		p.cancel()
		if p.listener != nil {
			_ = p.listener.Close()
		}

		p.mu.RLock()
		targets := make([]*peerConn, 0, len(p.conns))
		for _, pc := range p.conns {
			targets = append(targets, pc)
		}
		p.mu.RUnlock()

		var wg sync.WaitGroup
		for _, pc := range targets {
			wg.Add(1)
			go func(pc *peerConn) {
				defer wg.Done()
				pc.conn.Close(errors.New("peer: shutting down"))
			}(pc)
		}

		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()

		select {
		case <-done:
		case <-time.After(grace):
			p.log.Warn("shutdown grace period elapsed, connections may still be closing")
		}

		p.wg.Wait()
	})
}

// Stats returns a snapshot of this peer's traffic and handshake counters:
// per-command send/receive tallies, handshake outcomes, and total bytes
// moved over every connection this peer currently tracks plus every closed
// connection that completed its handshake. Bytes moved by a connection whose
// handshake failed are not counted once it is dropped.
func (p *Peer) Stats() Stats {
	var liveSent, liveReceived uint64
	p.mu.RLock()
	for _, pc := range p.conns {
		liveSent += pc.conn.BytesWritten()
		liveReceived += pc.conn.BytesRead()
	}
	p.mu.RUnlock()

	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	out := Stats{
		SentByKind:        make(map[string]uint64, len(p.stats.SentByKind)),
		ReceivedByKind:    make(map[string]uint64, len(p.stats.ReceivedByKind)),
		HandshakeOutcomes: make(map[string]uint64, len(p.stats.HandshakeOutcomes)),
		BytesSent:         p.closedBytesSent + liveSent,
		BytesReceived:     p.closedBytesReceived + liveReceived,
	}
	for k, v := range p.stats.SentByKind {
		out.SentByKind[k] = v
	}
	for k, v := range p.stats.ReceivedByKind {
		out.ReceivedByKind[k] = v
	}
	for k, v := range p.stats.HandshakeOutcomes {
		out.HandshakeOutcomes[k] = v
	}
	return out
}

func (p *Peer) recordSent(command string) {
	p.statsMu.Lock()
	p.stats.SentByKind[command]++
	p.statsMu.Unlock()
}

func (p *Peer) recordReceived(command string) {
	p.statsMu.Lock()
	p.stats.ReceivedByKind[command]++
	p.statsMu.Unlock()
}

func (p *Peer) recordHandshakeOutcome(outcome string) {
	p.statsMu.Lock()
	p.stats.HandshakeOutcomes[outcome]++
	p.statsMu.Unlock()
}
