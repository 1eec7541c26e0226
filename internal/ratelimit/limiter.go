// internal/ratelimit/limiter.go
// Per-identity token buckets behind a sharded concurrent map. Buckets are
// created full on first use and refill continuously.
package ratelimit

import (
	"hash/fnv"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/allsource/controlplane/internal/tenant"
)

const (
	shardCount = 64 // power of 2

	sweepInterval = 5 * time.Minute
	bucketIdleTTL = 10 * time.Minute
)

// Preset is a tier's sustained rate and burst capacity.
type Preset struct {
	PerMinute int
	Burst     int
}

func preset(perMinute int) Preset {
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	return Preset{PerMinute: perMinute, Burst: burst}
}

var (
	PresetFree         = preset(60)
	PresetStandard     = preset(300)
	PresetProfessional = preset(600)
	PresetUnlimited    = preset(10_000)
	PresetDev          = preset(100_000)
)

// ForTier resolves a tenant tier to its rate preset.
func ForTier(tier tenant.Tier) Preset {
	switch tier {
	case tenant.TierStandard:
		return PresetStandard
	case tenant.TierProfessional:
		return PresetProfessional
	case tenant.TierUnlimited:
		return PresetUnlimited
	default:
		return PresetFree
	}
}

// Decision is the limiter's verdict for one request.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type bucket struct {
	mu       sync.Mutex
	lim      *rate.Limiter
	lastSeen time.Time
}

type shard struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

// Limiter holds one bucket per identity across sharded maps. The limiter
// never returns an error; exhaustion is a deny verdict with a retry hint.
type Limiter struct {
	shards    []*shard
	shardMask uint32

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewLimiter() *Limiter {
	l := &Limiter{
		shards:    make([]*shard, shardCount),
		shardMask: shardCount - 1,
		stopCh:    make(chan struct{}),
	}
	for i := range l.shards {
		l.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}

	l.wg.Add(1)
	go l.sweepWorker()
	return l
}

func (l *Limiter) shardFor(identity string) *shard {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return l.shards[h.Sum32()&l.shardMask]
}

// Allow consumes one token from the identity's bucket, creating it at full
// capacity on first use. A preset change for an existing identity rebuilds
// the bucket.
func (l *Limiter) Allow(identity string, p Preset) Decision {
	b := l.bucketFor(identity, p)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSeen = time.Now()

	r := b.lim.Reserve()
	if !r.OK() {
		return Decision{Allowed: false, RetryAfter: time.Second}
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		retry := time.Duration(math.Ceil(delay.Seconds())) * time.Second
		if retry < time.Second {
			retry = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retry}
	}
	return Decision{Allowed: true}
}

func (l *Limiter) bucketFor(identity string, p Preset) *bucket {
	s := l.shardFor(identity)

	s.mu.RLock()
	b, ok := s.buckets[identity]
	s.mu.RUnlock()
	if ok && b.lim.Burst() == p.Burst {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buckets[identity]; ok && b.lim.Burst() == p.Burst {
		return b
	}
	b = &bucket{
		lim:      rate.NewLimiter(rate.Limit(float64(p.PerMinute)/60.0), p.Burst),
		lastSeen: time.Now(),
	}
	s.buckets[identity] = b
	return b
}

func (l *Limiter) sweepWorker() {
	defer l.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	cutoff := time.Now().Add(-bucketIdleTTL)
	for _, s := range l.shards {
		s.mu.Lock()
		for id, b := range s.buckets {
			b.mu.Lock()
			idle := b.lastSeen.Before(cutoff)
			b.mu.Unlock()
			if idle {
				delete(s.buckets, id)
			}
		}
		s.mu.Unlock()
	}
}

// Stop terminates the background sweeper.
func (l *Limiter) Stop() {
	close(l.stopCh)
	l.wg.Wait()
}
