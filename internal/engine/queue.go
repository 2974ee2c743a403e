package engine

import (
	"container/list"
	"sync"
)

// queue holds the paths still waiting for a digest in the current round.
// pop is the only way an item leaves, so no path is hashed twice.
type queue struct {
	mtx   sync.Mutex
	items *list.List
}

func newQueue() *queue {
	return &queue{items: list.New()}
}

func (q *queue) load(paths []string) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	for _, p := range paths {
		q.items.PushBack(p)
	}
}

func (q *queue) pop() (string, bool) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	elem := q.items.Front()
	if elem == nil {
		return "", false
	}
	q.items.Remove(elem)
	return elem.Value.(string), true
}

// clear drops whatever a failed or cancelled round left behind.
func (q *queue) clear() {
	q.mtx.Lock()
	q.items.Init()
	q.mtx.Unlock()
}

func (q *queue) len() int {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.items.Len()
}
