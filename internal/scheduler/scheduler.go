package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chinmaymk2005/my-local-shop/internal/util"
)

// ExpireFunc is invoked when an order's confirmation deadline elapses. It
// must be safe to call for orders that have already left `incomplete`.
type ExpireFunc func(ctx context.Context, orderID int64) error

// Scheduler owns one pending deadline timer per order. It keeps only the
// order id and fire time, never order data, so it cannot serve stale fields.
type Scheduler struct {
	expire  ExpireFunc
	retries int
	backoff time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	timers   map[int64]*entry
	closed   bool
	inFlight sync.WaitGroup
}

type entry struct {
	timer *time.Timer
	gen   uint64
}

// New creates a scheduler. retries is the number of additional attempts
// after a failed expire callback; backoff is the initial delay between
// attempts, doubled each retry.
func New(expire ExpireFunc, retries int, backoff time.Duration) *Scheduler {
	return &Scheduler{
		expire:  expire,
		retries: retries,
		backoff: backoff,
		logger:  util.NamedLogger("scheduler"),
		timers:  make(map[int64]*entry),
	}
}

// Arm schedules the expire callback for orderID at deadline. Re-arming an
// already-armed order replaces the prior schedule. A deadline already in the
// past fires immediately, so no overdue order is left without its expiry.
func (s *Scheduler) Arm(orderID int64, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	var gen uint64 = 1
	if prev, ok := s.timers[orderID]; ok {
		prev.timer.Stop()
		gen = prev.gen + 1
	}

	e := &entry{gen: gen}
	delay := time.Until(deadline)
	if delay < 0 {
		delay = 0
	}
	e.timer = time.AfterFunc(delay, func() {
		s.fire(orderID, gen)
	})
	s.timers[orderID] = e
	util.SchedulerActiveTimers.Set(float64(len(s.timers)))

	s.logger.Debug("timer armed",
		zap.Int64("order_id", orderID),
		zap.Time("deadline", deadline),
		zap.Duration("delay", delay))
}

// Cancel drops the pending timer for orderID. Idempotent: cancelling an
// unknown or already-fired order is a no-op. Safe to call concurrently with
// a just-fired callback; whichever loses simply does nothing.
func (s *Scheduler) Cancel(orderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.timers[orderID]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(s.timers, orderID)
	util.SchedulerActiveTimers.Set(float64(len(s.timers)))

	s.logger.Debug("timer cancelled", zap.Int64("order_id", orderID))
}

// Len returns the number of armed timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Drain stops all pending timers and waits for in-flight callbacks to
// finish. The scheduler accepts no further Arm calls afterwards.
func (s *Scheduler) Drain() {
	s.mu.Lock()
	s.closed = true
	for id, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, id)
	}
	util.SchedulerActiveTimers.Set(0)
	s.mu.Unlock()

	s.inFlight.Wait()
	s.logger.Info("scheduler drained")
}

// fire runs when a timer elapses. The generation check discards callbacks
// from timers that were replaced or cancelled after this one was queued.
func (s *Scheduler) fire(orderID int64, gen uint64) {
	s.mu.Lock()
	e, ok := s.timers[orderID]
	if !ok || e.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, orderID)
	util.SchedulerActiveTimers.Set(float64(len(s.timers)))
	s.inFlight.Add(1)
	s.mu.Unlock()

	defer s.inFlight.Done()
	s.runExpire(orderID)
}

func (s *Scheduler) runExpire(orderID int64) {
	backoff := s.backoff
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = s.expire(ctx, orderID)
		cancel()
		if err == nil {
			return
		}

		s.logger.Warn("expire callback failed",
			zap.Int64("order_id", orderID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	// Exhausted retries: surface loudly so the order can be reconciled
	// manually rather than sit incomplete past its deadline.
	util.SchedulerFireFailures.Inc()
	s.logger.Error("expire callback exhausted retries, order needs reconciliation",
		zap.Int64("order_id", orderID),
		zap.Error(err))
}
