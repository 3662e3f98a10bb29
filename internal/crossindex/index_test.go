package crossindex

import (
	"testing"
	"time"
)

func waitForQueueDrain(idx *Index) {
	// SubmitAsync is fire-and-forget; give the worker goroutine a beat
	// to apply the entry before asserting on index state.
	time.Sleep(20 * time.Millisecond)
	_ = idx
}

func TestIndex_SharedAddressLinksTwoSubjects(t *testing.T) {
	idx := New(nil, 1, 10)
	defer idx.Shutdown()

	idx.SubmitAsync(IndexEntry{SubjectID: "subj-1", Type: ConnectionAddress, Value: "123 main st"})
	idx.SubmitAsync(IndexEntry{SubjectID: "subj-2", Type: ConnectionAddress, Value: "123 main st"})
	waitForQueueDrain(idx)

	graph := idx.Query("subj-1", 2)
	if len(graph.Edges) != 1 {
		t.Fatalf("expected 1 edge between subjects sharing an address, got %+v", graph.Edges)
	}
	if graph.Edges[0].Strength != StrengthModerate {
		t.Fatalf("expected MODERATE strength for shared address, got %s", graph.Edges[0].Strength)
	}
}

func TestIndex_QueryRespectsMaxDepth(t *testing.T) {
	idx := New(nil, 1, 10)
	defer idx.Shutdown()

	idx.SubmitAsync(IndexEntry{SubjectID: "a", Type: ConnectionPhone, Value: "555-0100"})
	idx.SubmitAsync(IndexEntry{SubjectID: "b", Type: ConnectionPhone, Value: "555-0100"})
	idx.SubmitAsync(IndexEntry{SubjectID: "b", Type: ConnectionEmail, Value: "x@example.com"})
	idx.SubmitAsync(IndexEntry{SubjectID: "c", Type: ConnectionEmail, Value: "x@example.com"})
	waitForQueueDrain(idx)

	oneHop := idx.Query("a", 1)
	if contains(oneHop.Nodes, "c") {
		t.Fatalf("expected subject c unreachable within depth 1, got %+v", oneHop.Nodes)
	}

	twoHop := idx.Query("a", 2)
	if !contains(twoHop.Nodes, "c") {
		t.Fatalf("expected subject c reachable within depth 2, got %+v", twoHop.Nodes)
	}
}

func TestIndex_ConnectionsFiltersByType(t *testing.T) {
	idx := New(nil, 1, 10)
	defer idx.Shutdown()

	idx.SubmitAsync(IndexEntry{SubjectID: "a", Type: ConnectionPhone, Value: "555-0100"})
	idx.SubmitAsync(IndexEntry{SubjectID: "b", Type: ConnectionPhone, Value: "555-0100"})
	idx.SubmitAsync(IndexEntry{SubjectID: "a", Type: ConnectionEmployer, Value: "acme corp"})
	idx.SubmitAsync(IndexEntry{SubjectID: "b", Type: ConnectionEmployer, Value: "acme corp"})
	waitForQueueDrain(idx)

	all := idx.Connections("a", 1, nil)
	if len(all) != 2 {
		t.Fatalf("expected both edge types with no filter, got %+v", all)
	}
	phones := idx.Connections("a", 1, []ConnectionType{ConnectionPhone})
	if len(phones) != 1 || phones[0].Type != ConnectionPhone {
		t.Fatalf("expected only the shared-phone edge, got %+v", phones)
	}
}

func TestIndex_NoConnectionReturnsOnlyRoot(t *testing.T) {
	idx := New(nil, 1, 10)
	defer idx.Shutdown()

	graph := idx.Query("lonely", 3)
	if len(graph.Nodes) != 1 || graph.Nodes[0] != "lonely" {
		t.Fatalf("expected only the root subject with no connections, got %+v", graph.Nodes)
	}
}

func contains(items []string, target string) bool {
	for _, i := range items {
		if i == target {
			return true
		}
	}
	return false
}
