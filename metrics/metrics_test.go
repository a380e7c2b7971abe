package metrics

import (
	"testing"
	"time"

	"github.com/runziggurat/zcash/topology"
)

func TestComputeAggregatesVersionsAndUserAgents(t *testing.T) {
	net := topology.NewNetwork(0)
	now := time.Now()
	net.RecordSuccess("a", 170100, "/synth:0.1/", 1, now)
	net.RecordSuccess("b", 170100, "/synth:0.1/", 1, now)
	net.RecordSuccess("c", 170200, "/other:1.0/", 1, now)
	net.RecordFailure("d", topology.Timeout, now)
	net.ReplaceOutEdges("a", []string{"b", "c"})

	r := Compute(net)

	if r.NumKnownNodes != 4 {
		t.Errorf("num_known_nodes = %d, want 4", r.NumKnownNodes)
	}
	if r.NumGoodNodes != 3 {
		t.Errorf("num_good_nodes = %d, want 3", r.NumGoodNodes)
	}
	if r.NumKnownConnections != 2 {
		t.Errorf("num_known_connections = %d, want 2", r.NumKnownConnections)
	}
	if r.NumVersions != 3 {
		t.Errorf("num_versions = %d, want 3", r.NumVersions)
	}
	if r.ProtocolVersions["170100"] != 2 {
		t.Errorf("protocol_versions[170100] = %d, want 2", r.ProtocolVersions["170100"])
	}
	if r.UserAgents["/synth:0.1/"] != 2 {
		t.Errorf("user_agents[/synth:0.1/] = %d, want 2", r.UserAgents["/synth:0.1/"])
	}
	if r.Density <= 0 {
		t.Errorf("density = %v, want > 0", r.Density)
	}
}

func TestComputeOnEmptyNetwork(t *testing.T) {
	net := topology.NewNetwork(0)
	r := Compute(net)
	if r.NumKnownNodes != 0 || r.Density != 0 || r.AvgDegreeCentrality != 0 {
		t.Errorf("unexpected report on empty network: %+v", r)
	}
}
