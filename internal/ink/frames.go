package ink

import (
	"sync"
	"time"
)

// Frames coalesces render requests: any number of Request calls between
// two Runs produce exactly one render.
type Frames struct {
	mu      sync.Mutex
	pending bool
	render  func()
}

func NewFrames(render func()) *Frames {
	return &Frames{render: render}
}

// Request schedules a frame unless one is already pending.
func (f *Frames) Request() {
	f.mu.Lock()
	f.pending = true
	f.mu.Unlock()
}

// Pending reports whether a frame is waiting to run.
func (f *Frames) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// Cancel drops the pending frame, if any.
func (f *Frames) Cancel() {
	f.mu.Lock()
	f.pending = false
	f.mu.Unlock()
}

// Run renders if a frame is pending and reports whether it did.
func (f *Frames) Run() bool {
	f.mu.Lock()
	if !f.pending {
		f.mu.Unlock()
		return false
	}
	f.pending = false
	f.mu.Unlock()
	if f.render != nil {
		f.render()
	}
	return true
}

// DefaultFrameInterval is roughly one display refresh at 60 Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameClock calls tick on a fixed interval until stopped.
type FrameClock struct {
	interval time.Duration
	tick     func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	once     sync.Once
}

func NewFrameClock(interval time.Duration, tick func()) *FrameClock {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameClock{interval: interval, tick: tick}
}

// Start begins ticking. Should be called once.
func (c *FrameClock) Start() {
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.loop()
}

func (c *FrameClock) loop() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.tick()
		case <-c.stopCh:
			return
		}
	}
}

// Stop terminates the loop and waits for an in-flight tick to return.
func (c *FrameClock) Stop() {
	c.once.Do(func() {
		if c.stopCh == nil {
			return
		}
		close(c.stopCh)
		<-c.doneCh
	})
}
