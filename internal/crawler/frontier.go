package crawler

import (
	"container/heap"
	"fmt"
	"net/url"

	"subcrawler/internal/config"
)

// Node is one frontier entry: a normalised URL at its discovery depth.
// Score only matters under the best_first strategy.
type Node struct {
	URL   *url.URL
	Depth int
	Score float64
	order uint64
}

// Frontier holds the URLs waiting to be fetched. The strategy fixed at
// construction decides pop order: bfs is FIFO, dfs is LIFO, best_first pops
// the highest score with earlier discovery breaking ties.
type Frontier struct {
	strategy  string
	queue     []Node
	head      int
	scored    nodeHeap
	nextOrder uint64
}

// NewFrontier creates an empty frontier for the given strategy name.
func NewFrontier(strategy string) (*Frontier, error) {
	switch strategy {
	case config.StrategyBFS, config.StrategyDFS, config.StrategyBestFirst:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	return &Frontier{strategy: strategy}, nil
}

// Push appends a node in discovery order.
func (f *Frontier) Push(n Node) {
	n.order = f.nextOrder
	f.nextOrder++
	if f.strategy == config.StrategyBestFirst {
		heap.Push(&f.scored, n)
		return
	}
	f.queue = append(f.queue, n)
}

// Pop removes the next node per strategy; ok is false once drained.
func (f *Frontier) Pop() (Node, bool) {
	switch f.strategy {
	case config.StrategyBFS:
		if f.head >= len(f.queue) {
			return Node{}, false
		}
		n := f.queue[f.head]
		f.queue[f.head] = Node{}
		f.head++
		if f.head == len(f.queue) {
			f.queue = f.queue[:0]
			f.head = 0
		}
		return n, true
	case config.StrategyDFS:
		if len(f.queue) == 0 {
			return Node{}, false
		}
		n := f.queue[len(f.queue)-1]
		f.queue = f.queue[:len(f.queue)-1]
		return n, true
	default:
		if f.scored.Len() == 0 {
			return Node{}, false
		}
		return heap.Pop(&f.scored).(Node), true
	}
}

// Len reports how many nodes are waiting.
func (f *Frontier) Len() int {
	if f.strategy == config.StrategyBestFirst {
		return f.scored.Len()
	}
	return len(f.queue) - f.head
}

type nodeHeap []Node

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	return h[i].order < h[j].order
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) {
	*h = append(*h, x.(Node))
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = Node{}
	*h = old[:n-1]
	return item
}
