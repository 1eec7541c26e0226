package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allsource/controlplane/internal/tenant"
)

func TestPresetBurst(t *testing.T) {
	assert.Equal(t, Preset{PerMinute: 60, Burst: 6}, PresetFree)
	assert.Equal(t, Preset{PerMinute: 300, Burst: 30}, PresetStandard)
	assert.Equal(t, Preset{PerMinute: 600, Burst: 60}, PresetProfessional)
	assert.Equal(t, 1, preset(5).Burst) // burst never drops below one
}

func TestForTier(t *testing.T) {
	assert.Equal(t, PresetStandard, ForTier(tenant.TierStandard))
	assert.Equal(t, PresetProfessional, ForTier(tenant.TierProfessional))
	assert.Equal(t, PresetUnlimited, ForTier(tenant.TierUnlimited))
	assert.Equal(t, PresetFree, ForTier(tenant.TierFree))
	assert.Equal(t, PresetFree, ForTier(tenant.Tier("mystery")))
}

func TestAllowStartsFull(t *testing.T) {
	l := NewLimiter()
	defer l.Stop()

	d := l.Allow("tenant:acme", PresetFree)
	assert.True(t, d.Allowed)
}

func TestAllowExhaustsBurst(t *testing.T) {
	l := NewLimiter()
	defer l.Stop()

	for i := 0; i < PresetFree.Burst; i++ {
		require.True(t, l.Allow("tenant:acme", PresetFree).Allowed, "request %d", i)
	}

	d := l.Allow("tenant:acme", PresetFree)
	require.False(t, d.Allowed)
	assert.GreaterOrEqual(t, d.RetryAfter, time.Second)
	// At one token per second the hint should stay near one second.
	assert.LessOrEqual(t, d.RetryAfter, 2*time.Second)
}

func TestAllowIsolatesIdentities(t *testing.T) {
	l := NewLimiter()
	defer l.Stop()

	for i := 0; i < PresetFree.Burst; i++ {
		l.Allow("tenant:acme", PresetFree)
	}
	require.False(t, l.Allow("tenant:acme", PresetFree).Allowed)

	assert.True(t, l.Allow("tenant:globex", PresetFree).Allowed)
	assert.True(t, l.Allow("ip:10.0.0.1", PresetFree).Allowed)
}

func TestPresetChangeRebuildsBucket(t *testing.T) {
	l := NewLimiter()
	defer l.Stop()

	for i := 0; i < PresetFree.Burst; i++ {
		l.Allow("tenant:acme", PresetFree)
	}
	require.False(t, l.Allow("tenant:acme", PresetFree).Allowed)

	// A tier upgrade replaces the bucket, full again at the new capacity.
	assert.True(t, l.Allow("tenant:acme", PresetStandard).Allowed)
}

func TestAllowConcurrent(t *testing.T) {
	l := NewLimiter()
	defer l.Stop()

	const workers = 16
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("tenant:%d", w%4)
			for i := 0; i < 100; i++ {
				l.Allow(id, PresetUnlimited)
			}
		}(w)
	}
	wg.Wait()
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	l := NewLimiter()
	defer l.Stop()

	l.Allow("tenant:acme", PresetFree)
	s := l.shardFor("tenant:acme")
	s.mu.Lock()
	s.buckets["tenant:acme"].lastSeen = time.Now().Add(-2 * bucketIdleTTL)
	s.mu.Unlock()

	l.sweep()

	s.mu.RLock()
	_, ok := s.buckets["tenant:acme"]
	s.mu.RUnlock()
	assert.False(t, ok)
}
