// Package queue provides value-based binary heaps for nearest-neighbor
// candidate tracking.
package queue

// Item represents an entry in the priority queue.
// Value-based (no pointers) for cache locality and zero allocations.
type Item struct {
	Node     uint32  // Node is the word identifier.
	Distance float32 // Distance is the priority of the item in the queue.
}

// PriorityQueue is a binary heap of Items, ordered by Distance.
type PriorityQueue struct {
	isMaxHeap bool
	items     []Item
}

// NewMin initializes a new priority queue with minimum priority on top.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: false,
		items:     make([]Item, 0, capacity),
	}
}

// NewMax initializes a new priority queue with maximum priority on top.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: true,
		items:     make([]Item, 0, capacity),
	}
}

// Len returns the number of items in the queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Top returns the top element of the heap without removing it.
func (pq *PriorityQueue) Top() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) Push(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// Pop removes and returns the top element while maintaining the heap invariant.
func (pq *PriorityQueue) Pop() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items[n-1] = Item{}
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

func (pq *PriorityQueue) less(i, j int) bool {
	if pq.isMaxHeap {
		return pq.items[i].Distance > pq.items[j].Distance
	}
	return pq.items[i].Distance < pq.items[j].Distance
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(i, p) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && pq.less(r, l) {
			best = r
		}
		if !pq.less(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
