package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allsource/controlplane/internal/identity"
)

func TestUserRepositoryRoundTrip(t *testing.T) {
	r := NewMemoryUserRepository()
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, identity.User{
		ID: "u-2", Username: "bob", TenantID: "acme", Role: identity.RoleDeveloper}))
	require.NoError(t, r.Create(ctx, identity.User{
		ID: "u-1", Username: "alice", TenantID: "acme", Role: identity.RoleAdmin}))

	u, err := r.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.False(t, u.CreatedAt.IsZero())

	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "u-1", all[0].ID)
	assert.Equal(t, "u-2", all[1].ID)

	require.NoError(t, r.Delete(ctx, "u-2"))
	assert.ErrorIs(t, r.Delete(ctx, "u-2"), ErrUserNotFound)
	_, err = r.Get(ctx, "u-2")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
