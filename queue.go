package hnsw

import (
	"container/heap"
	"sort"
)

// candidate is a node id paired with its distance to the current query.
type candidate struct {
	id   int32
	dist float32
}

// Compile time check to ensure candidateQueue satisfies the heap interface.
var _ heap.Interface = (*candidateQueue)(nil)

// candidateQueue is a binary heap of candidates. With desc unset the closest
// candidate is on top (search frontier); with desc set the farthest one is
// (bounded result set, whose worst entry must be evictable in O(1)).
type candidateQueue struct {
	desc  bool
	items []candidate
}

func newFrontier(capacity int) *candidateQueue {
	return &candidateQueue{items: make([]candidate, 0, capacity)}
}

func newResultSet(capacity int) *candidateQueue {
	return &candidateQueue{desc: true, items: make([]candidate, 0, capacity+1)}
}

func (q *candidateQueue) Len() int { return len(q.items) }

func (q *candidateQueue) Less(i, j int) bool {
	if q.desc {
		return q.items[i].dist > q.items[j].dist
	}
	return q.items[i].dist < q.items[j].dist
}

func (q *candidateQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *candidateQueue) Push(x any) { q.items = append(q.items, x.(candidate)) }

func (q *candidateQueue) Pop() any {
	n := len(q.items)
	c := q.items[n-1]
	q.items = q.items[:n-1]
	return c
}

func (q *candidateQueue) push(c candidate) { heap.Push(q, c) }

func (q *candidateQueue) pop() candidate { return heap.Pop(q).(candidate) }

// top returns the head of the queue without removing it. The queue must not be empty.
func (q *candidateQueue) top() candidate { return q.items[0] }

// pushBounded adds c and, if the queue then holds more than limit items,
// drops the head. Only meaningful for descending queues, where the head is
// the worst candidate.
func (q *candidateQueue) pushBounded(c candidate, limit int) {
	heap.Push(q, c)
	if len(q.items) > limit {
		heap.Pop(q)
	}
}

// sorted drains the queue into a slice ordered by ascending distance.
func (q *candidateQueue) sorted() []candidate {
	out := make([]candidate, len(q.items))
	copy(out, q.items)
	q.items = q.items[:0]
	sortCandidates(out)
	return out
}

func sortCandidates(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].dist < cs[j].dist })
}
