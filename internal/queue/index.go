package queue

import "sync"

// taskIndex remembers the latest task id enqueued for each post
type taskIndex struct {
	mu  sync.Mutex
	ids map[string]string
}

func newTaskIndex() *taskIndex {
	return &taskIndex{ids: make(map[string]string)}
}

func (t *taskIndex) set(postID, taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids[postID] = taskID
}

func (t *taskIndex) take(postID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.ids[postID]
	delete(t.ids, postID)
	return id, ok
}
