package topology

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// defaultMaxKnownNodes bounds V when a Network is constructed with
// maxKnownNodes <= 0.
const defaultMaxKnownNodes = 100000

// Network is the Known-Network: a directed graph of addresses the crawler
// has ever heard of, guarded by a single RWMutex held for short,
// O(edges-of-one-vertex) critical sections.
type Network struct {
	mu    sync.RWMutex
	verts map[string]*NodeState
	edges map[string]map[string]struct{}

	// neverSuccessful orders never-successful vertices by recency of their
	// last attempt, so admission control can evict the oldest one in O(1).
	neverSuccessful *lru.Cache
	maxKnownNodes   int

	startedAt time.Time
}

// NewNetwork constructs an empty Known-Network capped at maxKnownNodes
// vertices (0 uses defaultMaxKnownNodes).
func NewNetwork(maxKnownNodes int) *Network {
	if maxKnownNodes <= 0 {
		maxKnownNodes = defaultMaxKnownNodes
	}
	cache, _ := lru.New(maxKnownNodes)
	return &Network{
		verts:           make(map[string]*NodeState),
		edges:           make(map[string]map[string]struct{}),
		neverSuccessful: cache,
		maxKnownNodes:   maxKnownNodes,
		startedAt:       time.Now(),
	}
}

// StartedAt is the Network's construction time, used to derive
// crawler_runtime.
func (n *Network) StartedAt() time.Time { return n.startedAt }

// admitLocked evicts the oldest never-successful vertex if adding one more
// vertex would exceed maxKnownNodes. Called with n.mu held.
func (n *Network) admitLocked() {
	if len(n.verts) < n.maxKnownNodes {
		return
	}
	key, _, ok := n.neverSuccessful.RemoveOldest()
	if !ok {
		// Every known vertex has succeeded at least once; there is nothing
		// to evict, so we let V grow past the cap rather than discard a
		// good node.
		return
	}
	addr := key.(string)
	delete(n.verts, addr)
	delete(n.edges, addr)
	for from := range n.edges {
		delete(n.edges[from], addr)
	}
}

// ensureVertexLocked creates addr on first reference. Called with n.mu held.
func (n *Network) ensureVertexLocked(addr string) *NodeState {
	if v, ok := n.verts[addr]; ok {
		return v
	}
	n.admitLocked()
	v := &NodeState{}
	n.verts[addr] = v
	n.edges[addr] = make(map[string]struct{})
	n.neverSuccessful.Add(addr, time.Now())
	return v
}

// EnsureVertex creates addr if it is not already known, e.g. for a seed
// address or an inbound connection observation.
func (n *Network) EnsureVertex(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ensureVertexLocked(addr)
}

// Get returns a copy of addr's current state.
func (n *Network) Get(addr string) (NodeState, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.verts[addr]
	if !ok {
		return NodeState{}, false
	}
	return *v, true
}

// TryAcquireProbe sets addr's in_flight flag if it is not already set,
// creating the vertex if needed, and reports whether the caller won the
// race. in_flight is the sole concurrency primitive guaranteeing at most
// one in-flight probe per vertex.
func (n *Network) TryAcquireProbe(addr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := n.ensureVertexLocked(addr)
	if v.InFlight {
		return false
	}
	v.InFlight = true
	return true
}

// ReleaseProbe clears addr's in_flight flag.
func (n *Network) ReleaseProbe(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if v, ok := n.verts[addr]; ok {
		v.InFlight = false
	}
}

// RecordAttempt stamps addr's last_seen_attempt.
func (n *Network) RecordAttempt(addr string, at time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := n.ensureVertexLocked(addr)
	v.LastSeenAttempt = at
	if _, ok := n.neverSuccessful.Get(addr); ok {
		n.neverSuccessful.Add(addr, at)
	}
}

// RecordSuccess marks addr Ok and records the handshake's observed
// version/user agent/services.
func (n *Network) RecordSuccess(addr string, version int32, userAgent string, services uint64, at time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := n.ensureVertexLocked(addr)
	v.HandshakeOutcome = Ok
	v.LastSeenSuccess = at
	v.ProtocolVersion = version
	v.HasVersion = true
	v.UserAgent = userAgent
	v.Services = services
	n.neverSuccessful.Remove(addr)
}

// RecordFailure marks addr with a non-Ok outcome.
func (n *Network) RecordFailure(addr string, outcome HandshakeOutcome, at time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := n.ensureVertexLocked(addr)
	v.HandshakeOutcome = outcome
	v.LastSeenAttempt = at
	n.neverSuccessful.Add(addr, at)
}

// ReplaceOutEdges atomically replaces from's out-edge set with tos, creating
// any newly-referenced vertex. Edges are recomputed in full on each Addr
// response from a vertex rather than merged incrementally.
func (n *Network) ReplaceOutEdges(from string, tos []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ensureVertexLocked(from)
	set := make(map[string]struct{}, len(tos))
	for _, to := range tos {
		n.ensureVertexLocked(to)
		set[to] = struct{}{}
	}
	n.edges[from] = set
}

// OutDegree reports how many out-edges from currently has.
func (n *Network) OutDegree(from string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.edges[from])
}

// NumVertices is |V|.
func (n *Network) NumVertices() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.verts)
}

// NumEdges is |E|.
func (n *Network) NumEdges() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	total := 0
	for _, tos := range n.edges {
		total += len(tos)
	}
	return total
}

// candidate is the ranking unit for Candidates.
type candidate struct {
	addr    string
	good    bool
	attempt time.Time
}

// Candidates returns addresses eligible for a new probe: not in_flight and
// either never attempted or idle past cooldown, ranked successful-before-
// failed then stale-before-fresh, capped at limit (0 = unbounded).
func (n *Network) Candidates(cooldown time.Duration, now time.Time, limit int) []string {
	n.mu.RLock()
	list := make([]candidate, 0, len(n.verts))
	for addr, v := range n.verts {
		if v.InFlight {
			continue
		}
		if !v.LastSeenAttempt.IsZero() && now.Sub(v.LastSeenAttempt) < cooldown {
			continue
		}
		list = append(list, candidate{addr: addr, good: v.Good(), attempt: v.LastSeenAttempt})
	}
	n.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return candidateLess(list[i], list[j]) })

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.addr
	}
	return out
}

func candidateLess(a, b candidate) bool {
	if a.good != b.good {
		return a.good // successful before failed
	}
	return a.attempt.Before(b.attempt) // stale before fresh
}
