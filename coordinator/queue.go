package coordinator

import "container/heap"

// queuedRequest is one heap element: a pending Request plus its
// insertion sequence number, used to break priority ties FIFO.
type queuedRequest struct {
	req   Request
	seq   int64
	index int
}

// priorityQueue orders queuedRequest by Request.Priority (Critical
// first), then by arrival order. It implements container/heap.Interface,
// mirroring the teacher's preference for stdlib containers
// (container/list for the LRU cache) over a hand-rolled structure.
type priorityQueue struct {
	items []*queuedRequest
	seq   int64
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{}
}

func (pq *priorityQueue) Len() int { return len(pq.items) }

func (pq *priorityQueue) Less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.req.Priority != b.req.Priority {
		return a.req.Priority < b.req.Priority
	}
	return a.seq < b.seq
}

func (pq *priorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.items[i].index = i
	pq.items[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*queuedRequest)
	item.seq = pq.seq
	pq.seq++
	item.index = len(pq.items)
	pq.items = append(pq.items, item)
}

func (pq *priorityQueue) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	pq.items = old[:n-1]
	return item
}

// filter removes every item for which keep returns false, notifying the
// caller via keep's side effect (used to deliver abort results) before
// re-establishing the heap invariant.
func (pq *priorityQueue) filter(keep func(Request) bool) {
	remaining := pq.items[:0]
	for _, it := range pq.items {
		if keep(it.req) {
			remaining = append(remaining, it)
		}
	}
	pq.items = remaining
	heap.Init(pq)
}
