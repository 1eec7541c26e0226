// internal/tenant/tenant.go
// Tenant model: tiers, quotas, usage counters.
package tenant

import (
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultTenantID is the tenant guaranteed to exist at startup. It cannot
// be deleted.
const DefaultTenantID = "default"

// Tier determines a tenant's quota and rate-limit presets.
type Tier string

const (
	TierFree         Tier = "free"
	TierStandard     Tier = "standard"
	TierProfessional Tier = "professional"
	TierUnlimited    Tier = "unlimited"
)

// Status is the tenant lifecycle state. Only active tenants may mutate
// state through their credentials.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// NoCap marks a quota dimension as unlimited.
const NoCap int64 = -1

// Quotas are the per-tier consumption ceilings.
type Quotas struct {
	MaxEventsPerDay   int64 `json:"max_events_per_day"`
	MaxStorageBytes   int64 `json:"max_storage_bytes"`
	MaxQueriesPerHour int64 `json:"max_queries_per_hour"`
	MaxAPIKeys        int64 `json:"max_api_keys"`
	MaxProjections    int64 `json:"max_projections"`
	MaxPipelines      int64 `json:"max_pipelines"`
}

var tierQuotas = map[Tier]Quotas{
	TierFree: {
		MaxEventsPerDay:   10_000,
		MaxStorageBytes:   1 << 30, // 1 GiB
		MaxQueriesPerHour: 1_000,
		MaxAPIKeys:        2,
		MaxProjections:    5,
		MaxPipelines:      2,
	},
	TierStandard: {
		MaxEventsPerDay:   100_000,
		MaxStorageBytes:   10 << 30,
		MaxQueriesPerHour: 10_000,
		MaxAPIKeys:        10,
		MaxProjections:    25,
		MaxPipelines:      10,
	},
	TierProfessional: {
		MaxEventsPerDay:   1_000_000,
		MaxStorageBytes:   100 << 30,
		MaxQueriesPerHour: 100_000,
		MaxAPIKeys:        50,
		MaxProjections:    100,
		MaxPipelines:      50,
	},
	TierUnlimited: {
		MaxEventsPerDay:   NoCap,
		MaxStorageBytes:   NoCap,
		MaxQueriesPerHour: NoCap,
		MaxAPIKeys:        NoCap,
		MaxProjections:    NoCap,
		MaxPipelines:      NoCap,
	},
}

// QuotasForTier returns the fixed quota preset for a tier. Unknown tiers
// get the free preset.
func QuotasForTier(tier Tier) Quotas {
	if q, ok := tierQuotas[tier]; ok {
		return q
	}
	return tierQuotas[TierFree]
}

// ValidTier reports whether the literal names a known tier.
func ValidTier(tier Tier) bool {
	_, ok := tierQuotas[tier]
	return ok
}

// ValidStatus reports whether the literal names a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusSuspended, StatusDeleted:
		return true
	}
	return false
}

// Usage holds a tenant's mutable consumption counters. Updated atomically
// on each accepted request; shared by pointer so counters survive tenant
// snapshot copies.
type Usage struct {
	EventsToday   atomic.Int64
	StorageBytes  atomic.Int64
	QueriesHour   atomic.Int64
	RequestsTotal atomic.Int64
}

// UsageSnapshot is the JSON-facing view of Usage.
type UsageSnapshot struct {
	EventsToday   int64 `json:"events_today"`
	StorageBytes  int64 `json:"storage_bytes"`
	QueriesHour   int64 `json:"queries_this_hour"`
	RequestsTotal int64 `json:"requests_total"`
}

func (u *Usage) Snapshot() UsageSnapshot {
	return UsageSnapshot{
		EventsToday:   u.EventsToday.Load(),
		StorageBytes:  u.StorageBytes.Load(),
		QueriesHour:   u.QueriesHour.Load(),
		RequestsTotal: u.RequestsTotal.Load(),
	}
}

// Tenant is an isolated customer environment fronting the core event store.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Tier      Tier      `json:"tier"`
	Status    Status    `json:"status"`
	Quotas    Quotas    `json:"quotas"`
	Usage     *Usage    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var tenantIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// NormalizeID lowercases and validates a tenant id.
func NormalizeID(id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if !tenantIDPattern.MatchString(id) {
		return "", ErrInvalidTenantID
	}
	return id, nil
}
