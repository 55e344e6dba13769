package transfer

import (
	"container/heap"
	"sync"
)

// Task is one file upload unit of work.
type Task struct {
	Path       string // forward-slash relative path
	LocalPath  string
	RemotePath string
	Size       int64
	index      int
}

// taskHeap orders tasks smallest-first so quick wins surface early and the
// pool drains evenly.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Size != h[j].Size {
		return h[i].Size < h[j].Size
	}
	return h[i].Path < h[j].Path
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	task := x.(*Task)
	task.index = len(*h)
	*h = append(*h, task)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil // avoid memory leak
	task.index = -1
	*h = old[:n-1]
	return task
}

// TaskQueue is a thread-safe size-ordered queue the worker pool consumes from.
type TaskQueue struct {
	heap taskHeap
	mu   sync.Mutex
}

func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{heap: make(taskHeap, 0)}
	heap.Init(&q.heap)
	return q
}

func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

func (q *TaskQueue) Enqueue(task *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, task)
}

func (q *TaskQueue) Dequeue() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.heap).(*Task), true
}
