package scheduler

import (
	"container/list"
	"sort"
	"sync"

	"github.com/parallelme/pme/device"
	"github.com/parallelme/pme/task"
)

// HEFT is a heterogeneous-earliest-finish-time list scheduler: on each push it
// maintains per-device earliest-free-time estimates and assigns the task
// to the device minimizing projected completion, tie-breaking by lowest
// device id. Per-device FIFO subqueues are what Pop reads.
type HEFT struct {
	mu       sync.Mutex
	devices  []*device.Device
	freeTime map[int]float64
	queues   map[int]*list.List
}

// NewHEFT constructs a HEFT scheduler over devices, each starting with a
// zero earliest-free-time estimate.
func NewHEFT(devices []*device.Device) *HEFT {
	sorted := make([]*device.Device, len(devices))
	copy(sorted, devices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	freeTime := make(map[int]float64, len(sorted))
	queues := make(map[int]*list.List, len(sorted))
	for _, d := range sorted {
		freeTime[d.ID()] = 0
		queues[d.ID()] = list.New()
	}
	return &HEFT{devices: sorted, freeTime: freeTime, queues: queues}
}

// scoreFor returns the per-device-class cost a Task carries for typ.
func scoreFor(t *task.Task, typ device.Type) float64 {
	if typ == device.TypeCPU {
		return t.Score.CPUScore
	}
	return t.Score.GPUScore
}

// Push implements Scheduler.
func (h *HEFT) Push(t *task.Task) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var best *device.Device
	var bestCompletion float64
	for _, d := range h.devices {
		completion := h.freeTime[d.ID()] + scoreFor(t, d.TypeOf())
		if best == nil || completion < bestCompletion {
			best = d
			bestCompletion = completion
		}
	}
	if best == nil {
		return
	}

	h.freeTime[best.ID()] = bestCompletion
	h.queues[best.ID()].PushBack(t)
}

// Pop implements Scheduler.
func (h *HEFT) Pop(dev *device.Device) *task.Task {
	h.mu.Lock()
	defer h.mu.Unlock()

	q, ok := h.queues[dev.ID()]
	if !ok || q.Len() == 0 {
		return nil
	}
	e := q.Front()
	q.Remove(e)
	return e.Value.(*task.Task)
}

// HasWork implements Scheduler.
func (h *HEFT) HasWork() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, q := range h.queues {
		if q.Len() > 0 {
			return true
		}
	}
	return false
}

var _ Scheduler = (*HEFT)(nil)
