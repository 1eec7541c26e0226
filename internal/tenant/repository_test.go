package tenant

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedsDefaultTenant(t *testing.T) {
	r := NewMemoryRepository()

	d, err := r.Get(context.Background(), DefaultTenantID)
	require.NoError(t, err)
	assert.Equal(t, TierUnlimited, d.Tier)
	assert.Equal(t, StatusActive, d.Status)
	assert.Equal(t, NoCap, d.Quotas.MaxEventsPerDay)
}

func TestCreateNormalizesAndDefaults(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	tn := &Tenant{ID: "  ACME-Corp ", Name: "Acme"}
	require.NoError(t, r.Create(ctx, tn))
	assert.Equal(t, "acme-corp", tn.ID)
	assert.Equal(t, TierFree, tn.Tier)
	assert.Equal(t, StatusActive, tn.Status)
	assert.Equal(t, QuotasForTier(TierFree), tn.Quotas)
	assert.False(t, tn.CreatedAt.IsZero())

	got, err := r.Get(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
}

func TestCreateRejectsBadInput(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	assert.ErrorIs(t, r.Create(ctx, &Tenant{ID: "", Name: "x"}), ErrInvalidTenantID)
	assert.ErrorIs(t, r.Create(ctx, &Tenant{ID: "-leading", Name: "x"}), ErrInvalidTenantID)
	assert.ErrorIs(t, r.Create(ctx, &Tenant{ID: "has space", Name: "x"}), ErrInvalidTenantID)
	assert.ErrorIs(t, r.Create(ctx, &Tenant{ID: "ok", Name: "x", Tier: Tier("platinum")}), ErrInvalidTenantID)
}

func TestCreateDuplicate(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &Tenant{ID: "acme", Name: "Acme"}))
	assert.ErrorIs(t, r.Create(ctx, &Tenant{ID: "acme", Name: "Again"}), ErrTenantExists)
	// Normalization collides too.
	assert.ErrorIs(t, r.Create(ctx, &Tenant{ID: "ACME", Name: "Shout"}), ErrTenantExists)
}

func TestUpdateAppliesPartialFields(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, &Tenant{ID: "acme", Name: "Acme", Tier: TierFree}))

	require.NoError(t, r.Update(ctx, &Tenant{ID: "acme", Tier: TierProfessional}))
	got, err := r.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name) // untouched
	assert.Equal(t, TierProfessional, got.Tier)
	assert.Equal(t, QuotasForTier(TierProfessional), got.Quotas)

	require.NoError(t, r.Update(ctx, &Tenant{ID: "acme", Status: StatusSuspended}))
	got, err = r.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, got.Status)

	assert.ErrorIs(t, r.Update(ctx, &Tenant{ID: "ghost"}), ErrTenantNotFound)
	assert.ErrorIs(t, r.Update(ctx, &Tenant{ID: "acme", Tier: Tier("platinum")}), ErrInvalidTenantID)
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, &Tenant{ID: "acme", Name: "Acme"}))

	assert.ErrorIs(t, r.Update(ctx, &Tenant{ID: "acme", Status: Status("suspnded")}),
		ErrInvalidTenantID)

	got, err := r.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status) // typo never applied
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusActive))
	assert.True(t, ValidStatus(StatusSuspended))
	assert.True(t, ValidStatus(StatusDeleted))
	assert.False(t, ValidStatus(Status("")))
	assert.False(t, ValidStatus(Status("frozen")))
}

func TestDeleteProtectsDefault(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	assert.ErrorIs(t, r.Delete(ctx, DefaultTenantID), ErrDefaultTenantProtected)
	assert.ErrorIs(t, r.Delete(ctx, "ghost"), ErrTenantNotFound)

	require.NoError(t, r.Create(ctx, &Tenant{ID: "acme", Name: "Acme"}))
	require.NoError(t, r.Delete(ctx, "acme"))
	_, err := r.Get(ctx, "acme")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestListSortedByID(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	for _, id := range []string{"zeta", "acme", "mid"} {
		require.NoError(t, r.Create(ctx, &Tenant{ID: id, Name: id}))
	}

	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"acme", "default", "mid", "zeta"},
		[]string{all[0].ID, all[1].ID, all[2].ID, all[3].ID})
}

func TestRecordRequestSurvivesCopies(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, &Tenant{ID: "acme", Name: "Acme"}))

	// Get returns a copy, but usage counters are shared by pointer.
	before, err := r.Get(ctx, "acme")
	require.NoError(t, err)

	r.RecordRequest(ctx, "acme")
	r.RecordRequest(ctx, "acme")
	r.RecordRequest(ctx, "ghost") // no-op

	assert.Equal(t, int64(2), before.Usage.Snapshot().RequestsTotal)
}

func TestConcurrentUsageCounters(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, &Tenant{ID: "acme", Name: "Acme"}))

	const workers, perWorker = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				r.RecordRequest(ctx, "acme")
			}
		}()
	}
	wg.Wait()

	got, err := r.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), got.Usage.Snapshot().RequestsTotal)
}

func TestNormalizeID(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"acme", "acme", true},
		{"ACME", "acme", true},
		{" acme-2 ", "acme-2", true},
		{"9lives", "9lives", true},
		{"-acme", "", false},
		{"", "", false},
		{"a_b", "", false},
		{"a.b", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeID(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			assert.Equal(t, tc.want, got)
		} else {
			assert.ErrorIs(t, err, ErrInvalidTenantID, tc.in)
		}
	}
}

func TestMemoryRepositoryShardSpread(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		require.NoError(t, r.Create(ctx, &Tenant{
			ID: fmt.Sprintf("tenant-%d", i), Name: "t"}))
	}
	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 101)
}
