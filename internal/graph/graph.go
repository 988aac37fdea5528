// Package graph implements the L2 Graph Context of spec.md §4.2: a
// construct dependency DAG with deduplicated edges, self-loop dropping,
// cycle rejection, and a stable topological sort that preserves the
// declared order of independently-runnable constructs.
package graph

import (
	"bytes"
	"container/heap"
	"sort"

	"github.com/txtx-labs/runbook-core/internal/diagnostic"
	"github.com/txtx-labs/runbook-core/internal/identifier"
)

// Graph is an indexed-arena DAG: every construct is assigned a small integer
// handle on first sight, and all edge bookkeeping operates on handles rather
// than repeatedly hashing 32-byte ids (Design Note §9).
type Graph struct {
	handles map[identifier.ID]int
	ids     []identifier.ID // handle -> id; insertion order doubles as the stable-sort priority key

	children map[int][]int // dependency handle -> dependent handles
	parents  map[int][]int // dependent handle -> dependency handles

	edgeSeen map[[2]int]bool // dedup (dependency, dependent) pairs
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		handles:  map[identifier.ID]int{},
		children: map[int][]int{},
		parents:  map[int][]int{},
		edgeSeen: map[[2]int]bool{},
	}
}

// IndexConstruct registers id as a node if not already present. Satisfies
// workspace.GraphIndexer.
func (g *Graph) IndexConstruct(id identifier.ID) {
	g.handle(id)
}

func (g *Graph) handle(id identifier.ID) int {
	if h, ok := g.handles[id]; ok {
		return h
	}
	h := len(g.ids)
	g.handles[id] = h
	g.ids = append(g.ids, id)
	return h
}

// AddEdge records that dependent depends on dependency (dependency must
// execute first). Self-loops are silently dropped; duplicate edges are
// deduplicated; both endpoints are indexed if not already known.
func (g *Graph) AddEdge(dependent, dependency identifier.ID) {
	depH := g.handle(dependency)
	depOnH := g.handle(dependent)
	if depH == depOnH {
		return
	}
	key := [2]int{depH, depOnH}
	if g.edgeSeen[key] {
		return
	}
	g.edgeSeen[key] = true
	g.children[depH] = append(g.children[depH], depOnH)
	g.parents[depOnH] = append(g.parents[depOnH], depH)
}

// priorityItem is a (insertion-order, handle) pair ordered by insertion
// order, used as the stable Kahn toposort's ready queue.
type priorityItem struct {
	order  int
	handle int
}

type priorityQueue []priorityItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].order < pq[j].order }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(priorityItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// StableTopologicalSort orders every indexed construct so dependencies
// always precede dependents, using Kahn's algorithm with a min-priority
// queue keyed by original insertion index: among constructs that become
// ready simultaneously, the one declared earliest in source order runs
// first (testable property #1/#2).
func (g *Graph) StableTopologicalSort() ([]identifier.ID, *diagnostic.Diagnostic) {
	n := len(g.ids)
	indegree := make([]int, n)
	for h := 0; h < n; h++ {
		indegree[h] = len(g.parents[h])
	}

	pq := &priorityQueue{}
	heap.Init(pq)
	for h := 0; h < n; h++ {
		if indegree[h] == 0 {
			heap.Push(pq, priorityItem{order: h, handle: h})
		}
	}

	sorted := make([]identifier.ID, 0, n)
	for pq.Len() > 0 {
		item := heap.Pop(pq).(priorityItem)
		sorted = append(sorted, g.ids[item.handle])
		for _, child := range g.children[item.handle] {
			indegree[child]--
			if indegree[child] == 0 {
				heap.Push(pq, priorityItem{order: child, handle: child})
			}
		}
	}

	if len(sorted) != n {
		return nil, g.cycleDiagnostic(indegree)
	}
	return sorted, nil
}

// cycleDiagnostic names every construct still unresolved after the toposort
// stalls: each remaining node has nonzero in-degree, so it either sits on a
// cycle or depends, directly or transitively, on a construct that does.
func (g *Graph) cycleDiagnostic(indegree []int) *diagnostic.Diagnostic {
	var stuck []string
	for h, deg := range indegree {
		if deg > 0 {
			stuck = append(stuck, g.ids[h].String())
		}
	}
	sort.Strings(stuck)
	return diagnostic.New("cycling dependency detected among constructs: %v", stuck)
}

// DownstreamDependencies returns every construct depending (directly, or
// transitively if recursive is true) on id.
func (g *Graph) DownstreamDependencies(id identifier.ID, recursive bool) []identifier.ID {
	h, ok := g.handles[id]
	if !ok {
		return nil
	}
	return g.walk(h, g.children, recursive)
}

// UpstreamDependencies returns every construct id (directly, or
// transitively if recursive is true) depends on.
func (g *Graph) UpstreamDependencies(id identifier.ID, recursive bool) []identifier.ID {
	h, ok := g.handles[id]
	if !ok {
		return nil
	}
	return g.walk(h, g.parents, recursive)
}

func (g *Graph) walk(start int, adjacency map[int][]int, recursive bool) []identifier.ID {
	seen := map[int]bool{}
	var out []identifier.ID
	queue := append([]int(nil), adjacency[start]...)
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, g.ids[h])
		if recursive {
			queue = append(queue, adjacency[h]...)
		}
	}
	return out
}

// SignerDependentsOrder implements the fan-out ordering of §4.2: the direct
// signed commands of a signer, ordered by ascending count of their
// non-signer upstream dependencies, ties broken by construct id.
func (g *Graph) SignerDependentsOrder(signerID identifier.ID, isSigner func(identifier.ID) bool) []identifier.ID {
	dependents := g.DownstreamDependencies(signerID, false)

	type scored struct {
		id    identifier.ID
		count int
	}
	scoredList := make([]scored, 0, len(dependents))
	for _, dep := range dependents {
		upstream := g.UpstreamDependencies(dep, true)
		count := 0
		for _, u := range upstream {
			if !isSigner(u) {
				count++
			}
		}
		scoredList = append(scoredList, scored{id: dep, count: count})
	}

	sort.SliceStable(scoredList, func(i, j int) bool {
		if scoredList[i].count != scoredList[j].count {
			return scoredList[i].count < scoredList[j].count
		}
		return bytes.Compare(scoredList[i].id[:], scoredList[j].id[:]) < 0
	})

	out := make([]identifier.ID, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.id
	}
	return out
}

// Ids returns every indexed construct id in insertion order.
func (g *Graph) Ids() []identifier.ID {
	return append([]identifier.ID(nil), g.ids...)
}
