package machine

import (
	"context"
	"sync"
	"time"
)

// RealClock is the wall-clock time base for a hosted controller. The tick
// runs on its own goroutine; busy-wait passes sleep for the poll interval
// instead of spinning a core.
type RealClock struct {
	period time.Duration
	poll   time.Duration
	wake   <-chan struct{}

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewRealClock creates a clock ticking every period. Busy-wait passes last
// poll; Halt returns when wake receives.
func NewRealClock(period, poll time.Duration, wake <-chan struct{}) *RealClock {
	return &RealClock{period: period, poll: poll, wake: wake}
}

// Enable starts calling tick every period. Enabling a running clock is a no-op.
func (c *RealClock) Enable(tick func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(tick, c.stop, c.done)
}

func (c *RealClock) run(tick func(), stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(c.period)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			tick()
		}
	}
}

// Disable stops the tick and waits for a running tick to finish.
func (c *RealClock) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop = nil
	c.done = nil
}

// Pause sleeps for one poll interval.
func (c *RealClock) Pause(ctx context.Context) error {
	return c.Delay(ctx, c.poll)
}

// Delay sleeps for d or until ctx is done.
func (c *RealClock) Delay(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Halt blocks until the wake source fires. Wake signals received while
// running are discarded first.
func (c *RealClock) Halt(ctx context.Context) error {
	for {
		select {
		case <-c.wake:
			continue
		default:
		}
		break
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.wake:
		return nil
	}
}
