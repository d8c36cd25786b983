package docrender

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRuntime stands in for debug.SetMemoryLimit.
type fakeRuntime struct {
	mu    sync.Mutex
	limit int64
	sets  []int64
}

func (f *fakeRuntime) set(l int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.limit
	if l >= 0 {
		f.limit = l
		f.sets = append(f.sets, l)
	}
	return prev
}

func (f *fakeRuntime) current() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limit
}

func TestMemoryCeilingRaisesAndRestores(t *testing.T) {
	rt := &fakeRuntime{limit: 100}
	c := &memoryCeiling{set: rt.set}

	release := c.raise(512)
	assert.Equal(t, int64(512), rt.current())

	release()
	assert.Equal(t, int64(100), rt.current())

	// Releasing twice is harmless.
	release()
	assert.Equal(t, int64(100), rt.current())
}

func TestMemoryCeilingNeverLowers(t *testing.T) {
	rt := &fakeRuntime{limit: 1 << 30}
	c := &memoryCeiling{set: rt.set}

	release := c.raise(512)
	assert.Equal(t, int64(1<<30), rt.current())
	release()
	assert.Equal(t, int64(1<<30), rt.current())
}

func TestMemoryCeilingNestedScopes(t *testing.T) {
	rt := &fakeRuntime{limit: 100}
	c := &memoryCeiling{set: rt.set}

	outer := c.raise(300)
	inner := c.raise(500)
	assert.Equal(t, int64(500), rt.current())

	// The outer scope ends first; the inner one still holds its limit.
	outer()
	assert.Equal(t, int64(500), rt.current())

	third := c.raise(200)
	assert.Equal(t, int64(500), rt.current())

	inner()
	assert.Equal(t, int64(200), rt.current())

	third()
	assert.Equal(t, int64(100), rt.current())
}

func TestMemoryCeilingUnlimitedPrior(t *testing.T) {
	rt := &fakeRuntime{limit: math.MaxInt64}
	c := &memoryCeiling{set: rt.set}

	release := c.raise(512)
	assert.Equal(t, int64(math.MaxInt64), rt.current())
	release()
	assert.Equal(t, int64(math.MaxInt64), rt.current())
}

func TestMemoryCeilingConcurrent(t *testing.T) {
	rt := &fakeRuntime{limit: 64}
	c := &memoryCeiling{set: rt.set}

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := c.raise(int64(128 + i))
			assert.GreaterOrEqual(t, rt.current(), int64(128+i))
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(64), rt.current())
}

func TestEnterTimeout(t *testing.T) {
	rt := &fakeRuntime{limit: 100}
	c := &memoryCeiling{set: rt.set}

	ctx, release := c.enter(context.Background(), Limits{Timeout: 10 * time.Millisecond, MemoryLimit: 400})
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, time.Second)
	assert.Equal(t, int64(400), rt.current())

	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)

	release()
	assert.Equal(t, int64(100), rt.current())
}

func TestEnterWithoutLimits(t *testing.T) {
	rt := &fakeRuntime{limit: 100}
	c := &memoryCeiling{set: rt.set}

	parent := context.Background()
	ctx, release := c.enter(parent, Limits{})
	assert.Equal(t, parent, ctx)
	release()
	assert.Empty(t, rt.sets)
}

func TestLimitsMerge(t *testing.T) {
	base := Limits{Timeout: time.Minute, MemoryLimit: 1 << 20}
	assert.Equal(t, base, Limits{}.merge(base))
	assert.Equal(t, Limits{Timeout: time.Second, MemoryLimit: 1 << 20}, Limits{Timeout: time.Second}.merge(base))
	assert.Equal(t, Limits{Timeout: time.Minute, MemoryLimit: 512 << 20}, DefaultFullLimits.merge(base))
}
