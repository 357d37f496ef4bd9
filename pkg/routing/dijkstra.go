package routing

import (
	"context"
	"fmt"
	"math"

	"debris_router/pkg/graph"
)

const noNode = math.MaxUint32

// ctxCheckInterval is how many settled nodes pass between context checks.
const ctxCheckInterval = 100

// MinHeap is a concrete-typed min-heap for the Dijkstra priority queue.
// Avoids interface boxing overhead of container/heap.
type MinHeap struct {
	items []PQItem
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node uint32
	Dist float64
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node uint32, dist float64) {
	h.items = append(h.items, PQItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *MinHeap) PeekDist() float64 {
	if len(h.items) == 0 {
		return math.Inf(1)
	}
	return h.items[0].Dist
}

func (h *MinHeap) Reset() {
	h.items = h.items[:0]
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].Dist >= h.items[parent].Dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].Dist < h.items[smallest].Dist {
			smallest = left
		}
		if right < n && h.items[right].Dist < h.items[smallest].Dist {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// QueryState holds per-query Dijkstra state. It is sized for one graph and
// reused across queries through a pool.
type QueryState struct {
	Dist    []float64
	Pred    []uint32 // predecessor on the shortest path (noNode = none)
	Touched []uint32 // nodes touched during this query (for fast reset)
	PQ      MinHeap
	Settled int
}

// NewQueryState creates a new QueryState for a graph with n nodes.
func NewQueryState(n uint32) *QueryState {
	dist := make([]float64, n)
	pred := make([]uint32, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		pred[i] = noNode
	}
	return &QueryState{
		Dist:    dist,
		Pred:    pred,
		Touched: make([]uint32, 0, 1024),
		PQ:      MinHeap{items: make([]PQItem, 0, 256)},
	}
}

// Reset clears only the touched entries for fast reuse.
func (qs *QueryState) Reset() {
	for _, node := range qs.Touched {
		qs.Dist[node] = math.Inf(1)
		qs.Pred[node] = noNode
	}
	qs.Touched = qs.Touched[:0]
	qs.PQ.Reset()
	qs.Settled = 0
}

func (qs *QueryState) touch(node uint32, dist float64, pred uint32) {
	if math.IsInf(qs.Dist[node], 1) {
		qs.Touched = append(qs.Touched, node)
	}
	qs.Dist[node] = dist
	qs.Pred[node] = pred
}

// shortestPath runs Dijkstra from source and stops when target is settled.
// Relaxation is strict, so among equal-weight paths the first one discovered
// wins. maxSettled <= 0 means no budget. It returns the node sequence from
// source to target and its total weight.
func shortestPath(ctx context.Context, g *graph.Graph, qs *QueryState, source, target uint32, maxSettled int) ([]uint32, float64, error) {
	qs.touch(source, 0, noNode)
	qs.PQ.Push(source, 0)

	for qs.PQ.Len() > 0 {
		item := qs.PQ.Pop()
		u, d := item.Node, item.Dist
		if d > qs.Dist[u] {
			continue // stale entry
		}

		qs.Settled++
		if qs.Settled%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, fmt.Errorf("search after %d nodes: %w", qs.Settled, err)
			}
		}
		if maxSettled > 0 && qs.Settled > maxSettled {
			return nil, 0, fmt.Errorf("settled %d nodes: %w", qs.Settled, ErrSearchBudget)
		}

		if u == target {
			return reconstruct(qs.Pred, target), d, nil
		}

		start, end := g.EdgesFrom(u)
		for a := start; a < end; a++ {
			v := g.Head[a]
			nd := d + g.Weight[a]
			if nd < qs.Dist[v] {
				qs.touch(v, nd, u)
				qs.PQ.Push(v, nd)
			}
		}
	}

	return nil, 0, ErrNoPathFound
}

// reconstruct follows predecessors back from target and returns the path in
// source-to-target order.
func reconstruct(pred []uint32, target uint32) []uint32 {
	var path []uint32
	for n := target; n != noNode; n = pred[n] {
		path = append(path, n)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
