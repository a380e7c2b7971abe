// Package metrics derives the JSON-RPC getmetrics response from a
// consistent Known-Network snapshot.
package metrics

import (
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/runziggurat/zcash/topology"
)

// Report is the JSON shape of getmetrics and of the final on-exit snapshot
// dumped to crawler-log.txt.
type Report struct {
	NumKnownNodes         int            `json:"num_known_nodes"`
	NumGoodNodes          int            `json:"num_good_nodes"`
	NumKnownConnections   int            `json:"num_known_connections"`
	NumVersions           int            `json:"num_versions"`
	ProtocolVersions      map[string]int `json:"protocol_versions"`
	UserAgents            map[string]int `json:"user_agents"`
	CrawlerRuntimeSeconds float64        `json:"crawler_runtime"`
	Density               float64        `json:"density"`
	AvgDegreeCentrality   float64        `json:"avg_degree_centrality"`
	DegreeCentralityDelta int            `json:"degree_centrality_delta"`
}

// Compute derives a Report from net's current state.
func Compute(net *topology.Network) Report {
	snap := net.Snapshot()
	return ComputeFromSnapshot(snap)
}

// ComputeFromSnapshot derives a Report from an already-taken snapshot,
// letting a caller reuse one snapshot across multiple derived views.
func ComputeFromSnapshot(snap topology.Snapshot) Report {
	protocolVersions := make(map[string]int)
	userAgents := make(map[string]int)
	numVersions := 0

	for _, v := range snap.Vertices {
		if v.HasVersion {
			numVersions++
			protocolVersions[strconv.Itoa(int(v.ProtocolVersion))]++
		}
		if v.UserAgent != "" {
			userAgents[v.UserAgent]++
		}
	}

	avgDegree, delta := snap.DegreeCentrality()

	return Report{
		NumKnownNodes:         len(snap.Vertices),
		NumGoodNodes:          snap.NumGood(),
		NumKnownConnections:   numEdges(snap),
		NumVersions:           numVersions,
		ProtocolVersions:      protocolVersions,
		UserAgents:            userAgents,
		CrawlerRuntimeSeconds: time.Since(snap.StartedAt).Seconds(),
		Density:               snap.Density(),
		AvgDegreeCentrality:   avgDegree,
		DegreeCentralityDelta: delta,
	}
}

// WriteReport writes report to w as indented JSON, the shape persisted to
// crawler-log.txt on exit.
func WriteReport(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func numEdges(snap topology.Snapshot) int {
	n := 0
	for _, tos := range snap.Edges {
		n += len(tos)
	}
	return n
}
