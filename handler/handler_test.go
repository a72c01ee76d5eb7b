package handler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostOrderWithinQueue(t *testing.T) {
	h := New("test", nil)
	defer h.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		i := i
		h.Post("q", PriorityNormal, func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}, 0, nil)
	}
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestHigherPriorityRunsFirstWhenQueued(t *testing.T) {
	h := New("test", nil)
	defer h.Stop()

	// Block the worker with a long-running item so both posts queue up
	// before either is picked.
	release := make(chan struct{})
	started := make(chan struct{})
	h.Post("blocker", PriorityNormal, func() {
		close(started)
		<-release
	}, 0, nil)
	<-started

	var mu sync.Mutex
	var order []string
	done := make(chan struct{}, 2)
	h.Post("low", PriorityLow, func() {
		mu.Lock()
		order = append(order, "low")
		mu.Unlock()
		done <- struct{}{}
	}, 0, nil)
	h.Post("high", PriorityHigh, func() {
		mu.Lock()
		order = append(order, "high")
		mu.Unlock()
		done <- struct{}{}
	}, 0, nil)

	close(release)
	<-done
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, "high", order[0])
}

func TestCloseQueueCancelsPending(t *testing.T) {
	h := New("test", nil)
	defer h.Stop()

	h.Block("q")
	cancelled := make(chan struct{}, 1)
	h.Post("q", PriorityNormal, func() {
		t.Fatal("should not run after close")
	}, 0, func() {
		cancelled <- struct{}{}
	})

	h.Close("q")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancellation")
	}
}

func TestPostToClosedQueueCancelsImmediately(t *testing.T) {
	h := New("test", nil)
	defer h.Stop()

	h.Close("q")
	cancelled := make(chan struct{}, 1)
	h.Post("q", PriorityNormal, func() {}, 0, func() { cancelled <- struct{}{} })

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancellation")
	}
}

func TestBlockedQueueDoesNotStallOthers(t *testing.T) {
	h := New("test", nil)
	defer h.Stop()

	h.Block("blocked")
	h.Post("blocked", PriorityRealtime, func() {
		t.Fatal("blocked queue must not run")
	}, 0, nil)

	ran := make(chan struct{}, 1)
	h.Post("open", PriorityLow, func() { ran <- struct{}{} }, 0, nil)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("open queue item never ran")
	}
}

func TestTimeoutFiresOnTimeoutCallback(t *testing.T) {
	h := New("test", nil)
	defer h.Stop()

	h.Block("q")
	timedOut := make(chan struct{}, 1)
	h.Post("q", PriorityNormal, func() {}, time.Millisecond, func() { timedOut <- struct{}{} })

	// Give the deadline time to pass, then unblock so the worker re-checks it.
	time.Sleep(20 * time.Millisecond)
	h.Unblock("q")

	select {
	case <-timedOut:
	case <-time.After(time.Second):
		t.Fatal("timeout callback never fired")
	}
}
