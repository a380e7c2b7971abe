package topology

import "time"

// Snapshot is a consistent point-in-time copy of the graph, taken under a
// single lock acquisition, that metrics and the RPC server read without
// further synchronization.
type Snapshot struct {
	Vertices  map[string]NodeState
	Edges     map[string][]string
	StartedAt time.Time
}

// Snapshot copies the current graph state.
func (n *Network) Snapshot() Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()

	vs := make(map[string]NodeState, len(n.verts))
	for addr, v := range n.verts {
		vs[addr] = *v
	}
	es := make(map[string][]string, len(n.edges))
	for from, set := range n.edges {
		tos := make([]string, 0, len(set))
		for to := range set {
			tos = append(tos, to)
		}
		es[from] = tos
	}
	return Snapshot{Vertices: vs, Edges: es, StartedAt: n.startedAt}
}

// uniqueNeighbors unions in-edges and out-edges per vertex: degree is
// counted per unique neighbour, not per directed edge.
func (s Snapshot) uniqueNeighbors() map[string]map[string]struct{} {
	neighbors := make(map[string]map[string]struct{}, len(s.Vertices))
	for addr := range s.Vertices {
		neighbors[addr] = make(map[string]struct{})
	}
	for from, tos := range s.Edges {
		for _, to := range tos {
			if from != to {
				neighbors[from][to] = struct{}{}
			}
			if _, ok := neighbors[to]; ok && to != from {
				neighbors[to][from] = struct{}{}
			}
		}
	}
	return neighbors
}

// DegreeCentrality returns avg_degree_centrality and degree_centrality_delta.
func (s Snapshot) DegreeCentrality() (avg float64, delta int) {
	neighbors := s.uniqueNeighbors()
	if len(neighbors) == 0 {
		return 0, 0
	}

	total := 0
	minDeg, maxDeg := -1, 0
	for _, set := range neighbors {
		d := len(set)
		total += d
		if d == 0 {
			continue
		}
		if minDeg == -1 || d < minDeg {
			minDeg = d
		}
		if d > maxDeg {
			maxDeg = d
		}
	}
	avg = float64(total) / float64(len(neighbors))
	if minDeg == -1 {
		minDeg = 0
	}
	return avg, maxDeg - minDeg
}

// Density is |E| / (|V|*(|V|-1)).
func (s Snapshot) Density() float64 {
	v := len(s.Vertices)
	if v <= 1 {
		return 0
	}
	e := 0
	for _, tos := range s.Edges {
		e += len(tos)
	}
	return float64(e) / float64(v*(v-1))
}

// NumGood counts vertices whose most recent handshake outcome is Ok.
func (s Snapshot) NumGood() int {
	n := 0
	for _, v := range s.Vertices {
		if v.Good() {
			n++
		}
	}
	return n
}
