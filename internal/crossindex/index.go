// Package crossindex implements the CrossScreeningIndex: a
// subject-subject graph surfacing when two screenings share a
// confirmed address, employer, phone, or other connecting fact, plus a
// bounded-depth traversal for querying a subject's known network.
// Indexing runs out of band, on a bounded worker pool that drops work
// rather than blocking, so a slow or failing index update never blocks
// or fails the screening that triggered it.
package crossindex

import (
	"context"
	"log/slog"
	"sync"
)

// ConnectionType names what kind of shared fact links two subjects.
type ConnectionType string

const (
	ConnectionAddress  ConnectionType = "SHARED_ADDRESS"
	ConnectionEmployer ConnectionType = "SHARED_EMPLOYER"
	ConnectionPhone    ConnectionType = "SHARED_PHONE"
	ConnectionEmail    ConnectionType = "SHARED_EMAIL"
	ConnectionAlias    ConnectionType = "SHARED_ALIAS"
)

// Strength grades how confidently a connection links two subjects. It is
// carried on each edge for callers; Query does not filter on it.
type Strength string

const (
	StrengthWeak   Strength = "WEAK"
	StrengthModerate Strength = "MODERATE"
	StrengthStrong Strength = "STRONG"
)

// Connection is one edge in the subject-subject graph.
type Connection struct {
	SubjectA string
	SubjectB string
	Type     ConnectionType
	Strength Strength
	Detail   string
}

// NetworkGraph is the result of a bounded traversal from one subject:
// every subject reachable within the requested depth, plus the edges
// connecting them.
type NetworkGraph struct {
	RootSubjectID string
	Nodes         []string
	Edges         []Connection
}

// IndexEntry is one fact offered up for indexing against every other
// subject previously screened.
type IndexEntry struct {
	SubjectID string
	Type      ConnectionType
	Value     string // canonicalized address/employer/phone/email/alias
}

// Index is the CrossScreeningIndex. Writes happen through a bounded
// queue drained by background workers; a full queue drops the update
// and logs it rather than propagating backpressure into the SAR loop
// that triggered it.
type Index struct {
	mu    sync.RWMutex
	byKey map[string]map[string]bool // value-key -> set of subject IDs sharing it
	edges map[string][]Connection    // subjectID -> edges touching it

	queue     chan IndexEntry
	log       *slog.Logger
	wg        sync.WaitGroup
	publisher *UpdatePublisher
}

func New(log *slog.Logger, workers, queueDepth int) *Index {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = 2
	}
	if queueDepth <= 0 {
		queueDepth = 500
	}
	idx := &Index{
		byKey: make(map[string]map[string]bool),
		edges: make(map[string][]Connection),
		queue: make(chan IndexEntry, queueDepth),
		log:   log,
	}
	for i := 0; i < workers; i++ {
		idx.wg.Add(1)
		go idx.worker()
	}
	return idx
}

// WithPublisher attaches a Pub/Sub fan-out publisher; every applied
// entry is also published so other process instances can converge on
// the same graph. Optional: an index with no publisher behaves exactly
// as before, staying process-local.
func (idx *Index) WithPublisher(p *UpdatePublisher) *Index {
	idx.publisher = p
	return idx
}

// SubmitAsync enqueues a fact for indexing without blocking the caller.
// A full queue drops the update; cross-screening linkage is a
// convenience surfaced to investigators, never a correctness
// requirement the SAR loop depends on.
func (idx *Index) SubmitAsync(entry IndexEntry) {
	select {
	case idx.queue <- entry:
	default:
		idx.log.Warn("crossindex: queue full, dropping entry", "subject_id", entry.SubjectID, "type", entry.Type)
	}
}

func (idx *Index) worker() {
	defer idx.wg.Done()
	for entry := range idx.queue {
		idx.apply(entry)
		if idx.publisher != nil {
			idx.publisher.Publish(context.Background(), entry)
		}
	}
}

func key(entryType ConnectionType, value string) string {
	return string(entryType) + "|" + value
}

func (idx *Index) apply(entry IndexEntry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	k := key(entry.Type, entry.Value)
	if idx.byKey[k] == nil {
		idx.byKey[k] = make(map[string]bool)
	}

	for existing := range idx.byKey[k] {
		if existing == entry.SubjectID {
			continue
		}
		conn := Connection{
			SubjectA: existing,
			SubjectB: entry.SubjectID,
			Type:     entry.Type,
			Strength: strengthFor(entry.Type),
			Detail:   entry.Value,
		}
		idx.edges[existing] = append(idx.edges[existing], conn)
		idx.edges[entry.SubjectID] = append(idx.edges[entry.SubjectID], conn)
	}

	idx.byKey[k][entry.SubjectID] = true
}

// strengthFor assigns a default strength per connection type; shared
// addresses and employers are common enough to default to moderate,
// while a shared phone or email is a much stronger signal of identity
// overlap.
func strengthFor(t ConnectionType) Strength {
	switch t {
	case ConnectionPhone, ConnectionEmail:
		return StrengthStrong
	case ConnectionAlias:
		return StrengthStrong
	case ConnectionAddress, ConnectionEmployer:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// Query performs a bounded-depth breadth-first traversal of the
// subject-subject graph starting from rootSubjectID, never visiting
// more than maxDepth hops out, so a densely connected subject (e.g. a
// shared corporate address touching hundreds of prior screenings)
// can't make a single lookup unbounded.
func (idx *Index) Query(rootSubjectID string, maxDepth int) NetworkGraph {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	visited := map[string]bool{rootSubjectID: true}
	queue := []struct {
		subjectID string
		depth     int
	}{{rootSubjectID, 0}}

	var edgesOut []Connection
	seenEdges := make(map[string]bool)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, edge := range idx.edges[cur.subjectID] {
			edgeKey := edgeSignature(edge)
			if !seenEdges[edgeKey] {
				seenEdges[edgeKey] = true
				edgesOut = append(edgesOut, edge)
			}
			next := edge.SubjectB
			if next == cur.subjectID {
				next = edge.SubjectA
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, struct {
					subjectID string
					depth     int
				}{next, cur.depth + 1})
			}
		}
	}

	nodes := make([]string, 0, len(visited))
	for s := range visited {
		nodes = append(nodes, s)
	}

	return NetworkGraph{RootSubjectID: rootSubjectID, Nodes: nodes, Edges: edgesOut}
}

// Connections is the flat companion to Query: every edge reachable
// within maxDegree hops of subjectID, optionally filtered to a set of
// connection types. A nil or empty filter admits every type.
func (idx *Index) Connections(subjectID string, maxDegree int, filterTypes []ConnectionType) []Connection {
	graph := idx.Query(subjectID, maxDegree)
	if len(filterTypes) == 0 {
		return graph.Edges
	}
	wanted := make(map[ConnectionType]bool, len(filterTypes))
	for _, t := range filterTypes {
		wanted[t] = true
	}
	var out []Connection
	for _, edge := range graph.Edges {
		if wanted[edge.Type] {
			out = append(out, edge)
		}
	}
	return out
}

func edgeSignature(c Connection) string {
	a, b := c.SubjectA, c.SubjectB
	if a > b {
		a, b = b, a
	}
	return a + "|" + b + "|" + string(c.Type) + "|" + c.Detail
}

// Shutdown closes the queue and waits for in-flight indexing to drain.
func (idx *Index) Shutdown() {
	close(idx.queue)
	idx.wg.Wait()
}
