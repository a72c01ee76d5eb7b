// Package handler implements the single-threaded work queue every
// component in the core (the API manager, each PluginWrapper) is built on
// top of: one worker goroutine, any number of named priority queues, and
// post-order delivery within a queue.
package handler

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/race-boat/raceboat/observability"
)

// Priority orders queues against each other; lower value runs first.
type Priority int

const (
	PriorityRealtime Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityIdle
)

// Work is a callable posted to a queue.
type Work func()

// postID is an internal sequence number used for FIFO-within-priority
// ordering.
type postID uint64

type workItem struct {
	queue     string
	priority  Priority
	id        postID
	postedAt  time.Time
	deadline  time.Time // zero means no timeout
	fn        Work
	onTimeout func()
	index     int // heap index
}

// workHeap implements container/heap.Interface, the same structure the
// teacher's kernel scheduler uses for its ready queue.
type workHeap []*workItem

func (h workHeap) Len() int { return len(h) }

func (h workHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].id < h[j].id
}

func (h workHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *workHeap) Push(x any) {
	item := x.(*workItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *workHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

type queueState struct {
	blocked bool
	closed  bool
}

// Handler owns one worker goroutine and any number of named queues.
type Handler struct {
	logger observability.Logger
	name   string

	mu      sync.Mutex
	cond    *sync.Cond
	items   workHeap
	queues  map[string]*queueState
	nextID  postID
	stopped bool
	done    chan struct{}
}

// New creates a Handler and starts its worker goroutine.
func New(name string, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	h := &Handler{
		logger: logger,
		name:   name,
		items:  make(workHeap, 0),
		queues: make(map[string]*queueState),
		done:   make(chan struct{}),
	}
	h.cond = sync.NewCond(&h.mu)
	heap.Init(&h.items)
	go h.run()
	return h
}

// Post submits fn to queue, tagged with priority and an optional timeout
// (zero means no timeout). Returns CANCELLED immediately via onTimeout if
// the queue is closed.
func (h *Handler) Post(queue string, priority Priority, fn Work, timeout time.Duration, onTimeout func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	qs := h.queues[queue]
	if qs == nil {
		qs = &queueState{}
		h.queues[queue] = qs
	}
	if qs.closed {
		if onTimeout != nil {
			onTimeout()
		}
		return
	}

	h.nextID++
	item := &workItem{
		queue:     queue,
		priority:  priority,
		id:        h.nextID,
		postedAt:  time.Now(),
		fn:        fn,
		onTimeout: onTimeout,
	}
	if timeout > 0 {
		item.deadline = item.postedAt.Add(timeout)
	}
	heap.Push(&h.items, item)
	h.cond.Signal()
}

// Block marks queue as blocked: posted items accumulate but are not run
// until Unblock is called.
func (h *Handler) Block(queue string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	qs := h.ensureQueue(queue)
	qs.blocked = true
}

// Unblock resumes delivery on queue.
func (h *Handler) Unblock(queue string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	qs := h.ensureQueue(queue)
	qs.blocked = false
	h.cond.Signal()
}

// Close closes queue: pending items are dropped; their onTimeout (used
// here as the cancellation callback) runs with CANCELLED semantics the
// caller encodes into the closure. Future posts to this queue are rejected.
func (h *Handler) Close(queue string) {
	h.mu.Lock()
	qs := h.ensureQueue(queue)
	qs.closed = true
	qs.blocked = false

	var dropped []*workItem
	remaining := make(workHeap, 0, len(h.items))
	for _, it := range h.items {
		if it.queue == queue {
			dropped = append(dropped, it)
			continue
		}
		remaining = append(remaining, it)
	}
	h.items = remaining
	heap.Init(&h.items)
	h.mu.Unlock()

	for _, it := range dropped {
		if it.onTimeout != nil {
			it.onTimeout()
		}
	}
}

func (h *Handler) ensureQueue(queue string) *queueState {
	qs := h.queues[queue]
	if qs == nil {
		qs = &queueState{}
		h.queues[queue] = qs
	}
	return qs
}

// Stop joins the worker and rejects further posts. In-flight callables
// complete.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.cond.Signal()
	h.mu.Unlock()
	<-h.done
}

func (h *Handler) run() {
	defer close(h.done)
	for {
		item, ok := h.next()
		if !ok {
			return
		}
		if !item.deadline.IsZero() && time.Now().After(item.deadline) {
			if item.onTimeout != nil {
				item.onTimeout()
			}
			continue
		}
		h.runItem(item)
	}
}

func (h *Handler) runItem(item *workItem) {
	err := observability.SafeExecute(h.logger, fmt.Sprintf("handler.%s.%s", h.name, item.queue), func() error {
		item.fn()
		return nil
	})
	if err != nil {
		h.logger.Error("handler_item_panicked", "handler", h.name, "queue", item.queue, "err", err)
	}
}

// next pops the next runnable item, blocking until one is available or the
// handler is stopped.
func (h *Handler) next() (*workItem, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		if idx, ok := h.popRunnableLocked(); ok {
			return idx, true
		}
		if h.stopped {
			return nil, false
		}
		h.cond.Wait()
	}
}

// popRunnableLocked scans the heap for the highest-priority, non-blocked,
// non-closed item. Must be called with h.mu held.
func (h *Handler) popRunnableLocked() (*workItem, bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	// The heap only orders by (priority, postedAt) globally; a blocked
	// queue must not stall unrelated queues, so we scan rather than pop
	// blindly. Queue counts stay small (one per connection/plugin) so a
	// linear scan is fine.
	best := -1
	for i, it := range h.items {
		qs := h.queues[it.queue]
		if qs != nil && qs.blocked {
			continue
		}
		if best == -1 || h.items.Less(i, best) {
			best = i
		}
	}
	if best == -1 {
		return nil, false
	}
	item := h.items[best]
	heap.Remove(&h.items, best)
	return item, true
}
