package decode

import "sync"

// selectTask picks the index of the task a worker should take next, given
// the task that same worker handled last.
//
// The front task is taken unless it is the depth partner of last for the same
// frame. In that case the worker takes the second entry instead, and if the
// partner is the only entry it takes nothing and waits for another worker.
func selectTask(queue []Task, last Task, hasLast bool) (int, bool) {
	if len(queue) == 0 {
		return 0, false
	}
	front := queue[0]
	if hasLast && front.Frame == last.Frame && front.Stream == last.Stream+1 {
		if len(queue) == 1 {
			return 0, false
		}
		return 1, true
	}
	return 0, true
}

// workQueue is the unordered ready list shared by all workers.
type workQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []Task
	closed bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends tasks without blocking. Tasks pushed after close are dropped.
func (q *workQueue) push(tasks ...Task) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.tasks = append(q.tasks, tasks...)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// next blocks until selectTask yields a task for this worker or the queue is
// closed. The second return value is false once closed.
func (q *workQueue) next(last Task, hasLast bool) (Task, bool) {
	q.mu.Lock()
	var (
		idx int
		ok  bool
	)
	for !q.closed {
		if idx, ok = selectTask(q.tasks, last, hasLast); ok {
			break
		}
		q.cond.Wait()
	}
	if q.closed {
		q.mu.Unlock()
		return Task{}, false
	}
	task := q.tasks[idx]
	q.tasks = append(q.tasks[:idx], q.tasks[idx+1:]...)
	q.mu.Unlock()
	q.cond.Broadcast()
	return task, true
}

func (q *workQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *workQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
