package docrender

import (
	"context"
	"math"
	"runtime/debug"
	"sync"
	"time"
)

// Limits bounds the resources of a single render.
type Limits struct {
	// Timeout caps the render duration. Zero leaves only the caller's
	// context deadline in place.
	Timeout time.Duration

	// MemoryLimit is the Go runtime soft memory limit, in bytes, requested
	// while the render runs. It can only raise the process limit, never
	// lower it. Zero leaves the runtime limit alone.
	MemoryLimit int64
}

// DefaultFullLimits are the limits applied by [Renderer.RenderFull].
var DefaultFullLimits = Limits{MemoryLimit: 512 << 20}

// merge returns l with any unset field taken from base.
func (l Limits) merge(base Limits) Limits {
	if l.Timeout == 0 {
		l.Timeout = base.Timeout
	}
	if l.MemoryLimit == 0 {
		l.MemoryLimit = base.MemoryLimit
	}
	return l
}

// memoryCeiling reference-counts raised soft memory limits so concurrent
// scopes compose. While any scope is open the runtime limit is the largest
// of the prior limit and every open request; the prior limit comes back
// when the last scope exits.
type memoryCeiling struct {
	mu     sync.Mutex
	set    func(int64) int64
	prior  int64
	open   map[uint64]int64
	nextID uint64
}

var processCeiling = &memoryCeiling{set: debug.SetMemoryLimit}

func (c *memoryCeiling) raise(limit int64) (release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.open) == 0 {
		c.prior = c.set(-1)
		c.open = make(map[uint64]int64)
	}
	c.nextID++
	id := c.nextID
	c.open[id] = limit
	c.apply()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.open, id)
			if len(c.open) == 0 {
				c.set(c.prior)
				return
			}
			c.apply()
		})
	}
}

// apply must be called with c.mu held.
func (c *memoryCeiling) apply() {
	effective := c.prior
	for _, l := range c.open {
		if l > effective {
			effective = l
		}
	}
	if effective <= 0 {
		effective = math.MaxInt64
	}
	c.set(effective)
}

// enterLimits opens a limit scope for one render. The returned release
// function cancels the derived context and restores the memory limit.
func enterLimits(ctx context.Context, l Limits) (context.Context, func()) {
	return processCeiling.enter(ctx, l)
}

func (c *memoryCeiling) enter(ctx context.Context, l Limits) (context.Context, func()) {
	releaseMem := func() {}
	if l.MemoryLimit > 0 {
		releaseMem = c.raise(l.MemoryLimit)
	}
	cancel := context.CancelFunc(func() {})
	if l.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
	}
	return ctx, func() {
		cancel()
		releaseMem()
	}
}
