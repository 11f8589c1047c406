package decode

import (
	"testing"
	"time"
)

func TestSelectTask(t *testing.T) {
	tests := []struct {
		name    string
		queue   []Task
		last    Task
		hasLast bool
		wantIdx int
		wantOK  bool
	}{
		{"empty queue", nil, Task{}, false, 0, false},
		{"first task of worker", []Task{{Stream: 1, Frame: 0}}, Task{}, false, 0, true},
		{"front unrelated", []Task{{Stream: 2, Frame: 0}, {Stream: 3, Frame: 0}}, Task{Stream: 0, Frame: 0}, true, 0, true},
		{"sole partner waits", []Task{{Stream: 1, Frame: 4}}, Task{Stream: 0, Frame: 4}, true, 0, false},
		{"partner skipped", []Task{{Stream: 1, Frame: 4}, {Stream: 0, Frame: 5}}, Task{Stream: 0, Frame: 4}, true, 1, true},
		{"partner of other frame", []Task{{Stream: 1, Frame: 3}}, Task{Stream: 0, Frame: 4}, true, 0, true},
		{"same stream next frame", []Task{{Stream: 0, Frame: 5}}, Task{Stream: 0, Frame: 4}, true, 0, true},
		{"color after depth", []Task{{Stream: 0, Frame: 4}}, Task{Stream: 1, Frame: 4}, true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := selectTask(tt.queue, tt.last, tt.hasLast)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && idx != tt.wantIdx {
				t.Errorf("idx = %d, want %d", idx, tt.wantIdx)
			}
		})
	}
}

// nextAsync runs workQueue.next in a goroutine.
func nextAsync(q *workQueue, last Task, hasLast bool) <-chan Task {
	ch := make(chan Task, 1)
	go func() {
		task, ok := q.next(last, hasLast)
		if ok {
			ch <- task
		}
		close(ch)
	}()
	return ch
}

func TestWorkQueueSelfPairWaitsForOtherWorker(t *testing.T) {
	q := newWorkQueue()
	q.push(Task{Stream: 1, Frame: 0, Wanted: true})

	self := nextAsync(q, Task{Stream: 0, Frame: 0}, true)

	select {
	case task := <-self:
		t.Fatalf("worker claimed its own sole partner %v", task)
	case <-time.After(50 * time.Millisecond):
	}

	// Another worker drains the partner.
	other := nextAsync(q, Task{Stream: 4, Frame: 2}, true)
	select {
	case task := <-other:
		if task.Stream != 1 || task.Frame != 0 {
			t.Fatalf("other worker got %v, want depth of frame 0", task)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for other worker")
	}

	// The first worker keeps waiting until new work shows up.
	select {
	case task := <-self:
		t.Fatalf("unexpected task %v", task)
	case <-time.After(20 * time.Millisecond):
	}

	q.push(Task{Stream: 0, Frame: 1})
	select {
	case task := <-self:
		if task.Stream != 0 || task.Frame != 1 {
			t.Errorf("got %v, want color of frame 1", task)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for worker to take new task")
	}
}

func TestWorkQueueSkipsPartner(t *testing.T) {
	q := newWorkQueue()
	q.push(Task{Stream: 1, Frame: 0}, Task{Stream: 0, Frame: 1}, Task{Stream: 1, Frame: 1})

	task, ok := q.next(Task{Stream: 0, Frame: 0}, true)
	if !ok {
		t.Fatal("expected a task")
	}
	if task.Stream != 0 || task.Frame != 1 {
		t.Errorf("got %v, want color of frame 1", task)
	}
	if q.len() != 2 {
		t.Errorf("len = %d, want 2", q.len())
	}

	task, _ = q.next(Task{}, false)
	if task.Stream != 1 || task.Frame != 0 {
		t.Errorf("partner should stay at the front, got %v", task)
	}
}

func TestWorkQueueCloseWakesWaiters(t *testing.T) {
	q := newWorkQueue()
	ch := nextAsync(q, Task{}, false)

	time.Sleep(20 * time.Millisecond)
	q.close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected no task after close")
		}
	case <-time.After(time.Second):
		t.Fatal("close did not wake waiter")
	}

	q.push(Task{Stream: 0})
	if q.len() != 0 {
		t.Error("push after close should be dropped")
	}
}
