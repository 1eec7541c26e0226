// internal/tenant/repository.go
// Tenant storage contract and the in-memory reference implementation.
package tenant

import (
	"context"
	"errors"
	"hash/fnv"
	"sort"
	"sync"
	"time"
)

var (
	ErrTenantNotFound         = errors.New("tenant not found")
	ErrTenantExists           = errors.New("tenant already exists")
	ErrDefaultTenantProtected = errors.New("default tenant cannot be deleted")
	ErrInvalidTenantID        = errors.New("invalid tenant id")
)

// Repository is the tenant storage contract. Implementations must be safe
// for concurrent use.
type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	Delete(ctx context.Context, id string) error
	// RecordRequest bumps the tenant's request counter for an accepted
	// request. Unknown tenants are a no-op.
	RecordRequest(ctx context.Context, id string)
}

const repoShardCount = 32 // power of 2

type repoShard struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
}

// MemoryRepository is the reference Repository: sharded maps under
// reader-preferring locks, seeded with the default tenant.
type MemoryRepository struct {
	shards    []*repoShard
	shardMask uint32
}

func NewMemoryRepository() *MemoryRepository {
	r := &MemoryRepository{
		shards:    make([]*repoShard, repoShardCount),
		shardMask: repoShardCount - 1,
	}
	for i := range r.shards {
		r.shards[i] = &repoShard{tenants: make(map[string]*Tenant)}
	}

	now := time.Now().UTC()
	r.shardFor(DefaultTenantID).tenants[DefaultTenantID] = &Tenant{
		ID:        DefaultTenantID,
		Name:      "Default",
		Tier:      TierUnlimited,
		Status:    StatusActive,
		Quotas:    QuotasForTier(TierUnlimited),
		Usage:     &Usage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r
}

func (r *MemoryRepository) shardFor(id string) *repoShard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return r.shards[h.Sum32()&r.shardMask]
}

func (r *MemoryRepository) Create(ctx context.Context, t *Tenant) error {
	id, err := NormalizeID(t.ID)
	if err != nil {
		return err
	}
	t.ID = id
	if t.Tier == "" {
		t.Tier = TierFree
	}
	if !ValidTier(t.Tier) {
		return ErrInvalidTenantID
	}
	t.Status = StatusActive
	t.Quotas = QuotasForTier(t.Tier)
	if t.Usage == nil {
		t.Usage = &Usage{}
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	shard := r.shardFor(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if _, exists := shard.tenants[id]; exists {
		return ErrTenantExists
	}
	cp := *t
	shard.tenants[id] = &cp
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Tenant, error) {
	shard := r.shardFor(id)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	t, ok := shard.tenants[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]*Tenant, error) {
	var out []*Tenant
	for _, shard := range r.shards {
		shard.mu.RLock()
		for _, t := range shard.tenants {
			cp := *t
			out = append(out, &cp)
		}
		shard.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, t *Tenant) error {
	shard := r.shardFor(t.ID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	cur, ok := shard.tenants[t.ID]
	if !ok {
		return ErrTenantNotFound
	}
	if t.Name != "" {
		cur.Name = t.Name
	}
	if t.Tier != "" {
		if !ValidTier(t.Tier) {
			return ErrInvalidTenantID
		}
		cur.Tier = t.Tier
		cur.Quotas = QuotasForTier(t.Tier)
	}
	if t.Status != "" {
		if !ValidStatus(t.Status) {
			return ErrInvalidTenantID
		}
		cur.Status = t.Status
	}
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	if id == DefaultTenantID {
		return ErrDefaultTenantProtected
	}
	shard := r.shardFor(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if _, ok := shard.tenants[id]; !ok {
		return ErrTenantNotFound
	}
	delete(shard.tenants, id)
	return nil
}

func (r *MemoryRepository) RecordRequest(ctx context.Context, id string) {
	shard := r.shardFor(id)
	shard.mu.RLock()
	t, ok := shard.tenants[id]
	shard.mu.RUnlock()
	if ok {
		t.Usage.RequestsTotal.Add(1)
	}
}
