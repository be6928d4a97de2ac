package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiresAtDeadline(t *testing.T) {
	fired := make(chan int64, 1)
	s := New(func(ctx context.Context, orderID int64) error {
		fired <- orderID
		return nil
	}, 0, time.Millisecond)
	defer s.Drain()

	s.Arm(42, time.Now().Add(20*time.Millisecond))

	select {
	case id := <-fired:
		assert.Equal(t, int64(42), id)
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	assert.Equal(t, 0, s.Len())
}

func TestPastDeadlineFiresImmediately(t *testing.T) {
	fired := make(chan int64, 1)
	s := New(func(ctx context.Context, orderID int64) error {
		fired <- orderID
		return nil
	}, 0, time.Millisecond)
	defer s.Drain()

	s.Arm(7, time.Now().Add(-time.Minute))

	select {
	case id := <-fired:
		assert.Equal(t, int64(7), id)
	case <-time.After(time.Second):
		t.Fatal("past deadline did not fire")
	}
}

func TestCancelSuppressesFire(t *testing.T) {
	var fires int32
	s := New(func(ctx context.Context, orderID int64) error {
		atomic.AddInt32(&fires, 1)
		return nil
	}, 0, time.Millisecond)
	defer s.Drain()

	s.Arm(1, time.Now().Add(50*time.Millisecond))
	s.Cancel(1)
	s.Cancel(1) // idempotent

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fires))
	assert.Equal(t, 0, s.Len())
}

func TestRearmReplacesPriorSchedule(t *testing.T) {
	fired := make(chan time.Time, 2)
	s := New(func(ctx context.Context, orderID int64) error {
		fired <- time.Now()
		return nil
	}, 0, time.Millisecond)
	defer s.Drain()

	s.Arm(9, time.Now().Add(30*time.Millisecond))
	s.Arm(9, time.Now().Add(120*time.Millisecond))
	start := time.Now()

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 90*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("re-armed timer never fired")
	}

	select {
	case <-fired:
		t.Fatal("replaced schedule fired as well")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRetriesWithBackoff(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	s := New(func(ctx context.Context, orderID int64) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient write failure")
		}
		close(done)
		return nil
	}, 3, time.Millisecond)
	defer s.Drain()

	s.Arm(5, time.Now())

	select {
	case <-done:
		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	case <-time.After(time.Second):
		t.Fatal("callback retries never succeeded")
	}
}

func TestConcurrentArmCancel(t *testing.T) {
	s := New(func(ctx context.Context, orderID int64) error {
		return nil
	}, 0, time.Millisecond)
	defer s.Drain()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.Arm(id, time.Now().Add(10*time.Millisecond))
			s.Arm(id, time.Now().Add(20*time.Millisecond))
			s.Cancel(id)
		}(int64(i))
	}
	wg.Wait()

	require.Equal(t, 0, s.Len())
}

func TestDrainStopsPendingTimers(t *testing.T) {
	var fires int32
	s := New(func(ctx context.Context, orderID int64) error {
		atomic.AddInt32(&fires, 1)
		return nil
	}, 0, time.Millisecond)

	s.Arm(1, time.Now().Add(time.Hour))
	s.Arm(2, time.Now().Add(time.Hour))
	s.Drain()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int32(0), atomic.LoadInt32(&fires))

	// Arm after drain is ignored.
	s.Arm(3, time.Now())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fires))
}
