package scheduler

import (
	"container/list"
	"sync"

	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/task"
)

// FCFS is a single mutex-guarded FIFO. Pop(device) returns the front task
// if its hint permits this device's type; otherwise it searches forward
// for the first compatible task and removes it, preserving relative order
// among compatible items.
type FCFS struct {
	mu sync.Mutex
	q  *list.List // of *task.Task
}

// NewFCFS constructs an empty FCFS scheduler.
func NewFCFS() *FCFS {
	return &FCFS{q: list.New()}
}

// Push implements Scheduler.
func (f *FCFS) Push(t *task.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.q.PushBack(t)
}

// Pop implements Scheduler.
func (f *FCFS) Pop(dev *device.Device) *task.Task {
	f.mu.Lock()
	defer f.mu.Unlock()

	for e := f.q.Front(); e != nil; e = e.Next() {
		t := e.Value.(*task.Task)
		if compatible(t.Hint, dev.TypeOf()) {
			f.q.Remove(e)
			return t
		}
	}
	return nil
}

// HasWork implements Scheduler.
func (f *FCFS) HasWork() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.q.Len() > 0
}

var _ Scheduler = (*FCFS)(nil)
