package topology

import (
	"testing"
	"time"
)

func TestTryAcquireProbeIsMutuallyExclusive(t *testing.T) {
	n := NewNetwork(0)
	if !n.TryAcquireProbe("10.0.0.1:8233") {
		t.Fatal("first acquire should succeed")
	}
	if n.TryAcquireProbe("10.0.0.1:8233") {
		t.Fatal("second concurrent acquire should fail")
	}
	n.ReleaseProbe("10.0.0.1:8233")
	if !n.TryAcquireProbe("10.0.0.1:8233") {
		t.Fatal("acquire after release should succeed")
	}
}

func TestReplaceOutEdgesIsAtomicReplacement(t *testing.T) {
	n := NewNetwork(0)
	now := time.Now()
	n.RecordSuccess("a", 170100, "/a/", 1, now)
	n.ReplaceOutEdges("a", []string{"b", "c"})
	if got := n.OutDegree("a"); got != 2 {
		t.Fatalf("out-degree = %d, want 2", got)
	}
	n.ReplaceOutEdges("a", []string{"d"})
	if got := n.OutDegree("a"); got != 1 {
		t.Fatalf("out-degree after replace = %d, want 1", got)
	}
	if n.NumVertices() != 4 { // a, b, c, d all created on reference
		t.Fatalf("num vertices = %d, want 4", n.NumVertices())
	}
}

func TestCandidatesRankSuccessfulAndStaleFirst(t *testing.T) {
	n := NewNetwork(0)
	now := time.Now()

	n.RecordFailure("failed", NetworkError, now)
	n.RecordAttempt("fresh-good", now)
	n.RecordSuccess("fresh-good", 170100, "", 0, now)
	n.RecordAttempt("stale-good", now.Add(-time.Hour))
	n.RecordSuccess("stale-good", 170100, "", 0, now.Add(-time.Hour))

	candidates := n.Candidates(0, now, 0)
	if len(candidates) != 3 {
		t.Fatalf("candidates = %v, want 3 entries", candidates)
	}
	if candidates[0] != "stale-good" {
		t.Errorf("candidates[0] = %q, want stale-good (successful, staler)", candidates[0])
	}
	if candidates[1] != "fresh-good" {
		t.Errorf("candidates[1] = %q, want fresh-good (successful, fresher)", candidates[1])
	}
	if candidates[2] != "failed" {
		t.Errorf("candidates[2] = %q, want failed last", candidates[2])
	}
}

func TestCandidatesRespectCooldown(t *testing.T) {
	n := NewNetwork(0)
	now := time.Now()
	n.RecordAttempt("recent", now)

	candidates := n.Candidates(time.Minute, now, 0)
	for _, c := range candidates {
		if c == "recent" {
			t.Fatalf("recently-attempted vertex should be excluded by cooldown: %v", candidates)
		}
	}
}

func TestAdmissionControlPrunesNeverSuccessfulFirst(t *testing.T) {
	n := NewNetwork(2)
	now := time.Now()

	n.RecordFailure("old-failure", NetworkError, now.Add(-time.Hour))
	n.RecordSuccess("good", 170100, "", 0, now)
	n.EnsureVertex("new-arrival") // pushes V past the cap of 2

	if n.NumVertices() != 2 {
		t.Fatalf("num vertices = %d, want 2 after pruning", n.NumVertices())
	}
	if _, ok := n.Get("old-failure"); ok {
		t.Error("old-failure should have been pruned as the oldest never-successful vertex")
	}
	if _, ok := n.Get("good"); !ok {
		t.Error("good vertex should survive pruning")
	}
}

func TestSnapshotDegreeCentralityUsesUniqueNeighbors(t *testing.T) {
	n := NewNetwork(0)
	n.ReplaceOutEdges("a", []string{"b", "c"})
	n.ReplaceOutEdges("b", []string{"a"})

	snap := n.Snapshot()
	avg, _ := snap.DegreeCentrality()
	// a: {b,c} -> 2, b: {a} -> 1 (a->b and b->a collapse to one neighbour),
	// c: {a} -> 1 (only a->c, c has no out-edges). avg = 4/3.
	want := 4.0 / 3.0
	if avg != want {
		t.Errorf("avg degree centrality = %v, want %v", avg, want)
	}
}
