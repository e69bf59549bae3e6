package engine

import (
	"container/heap"
	"sync"
	"time"
)

type dueItem struct {
	postID string
	due    time.Time
	index  int
}

// dueHeap orders items by due time, earliest first
type dueHeap []*dueItem

func (h dueHeap) Len() int { return len(h) }

func (h dueHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].postID < h[j].postID
	}
	return h[i].due.Before(h[j].due)
}

func (h dueHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *dueHeap) Push(x any) {
	item := x.(*dueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *dueHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// dueQueue holds at most one entry per post
type dueQueue struct {
	mu    sync.Mutex
	h     dueHeap
	items map[string]*dueItem
}

func newDueQueue() *dueQueue {
	return &dueQueue{items: make(map[string]*dueItem)}
}

// Push adds the post or moves its existing entry to the new due time
func (q *dueQueue) Push(postID string, due time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if item, ok := q.items[postID]; ok {
		item.due = due
		heap.Fix(&q.h, item.index)
		return
	}
	item := &dueItem{postID: postID, due: due}
	heap.Push(&q.h, item)
	q.items[postID] = item
}

func (q *dueQueue) Remove(postID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[postID]
	if !ok {
		return false
	}
	heap.Remove(&q.h, item.index)
	delete(q.items, postID)
	return true
}

// PopDue removes and returns every post due at or before now, earliest first
func (q *dueQueue) PopDue(now time.Time) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []string
	for q.h.Len() > 0 && !q.h[0].due.After(now) {
		item := heap.Pop(&q.h).(*dueItem)
		delete(q.items, item.postID)
		due = append(due, item.postID)
	}
	return due
}

func (q *dueQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// Due returns the queued due time for a post
func (q *dueQueue) Due(postID string) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[postID]
	if !ok {
		return time.Time{}, false
	}
	return item.due, true
}
