// internal/tenant/users.go
// User storage contract. The core service owns accounts; the control plane
// mirrors the subset its admin endpoints need.
package tenant

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/allsource/controlplane/internal/identity"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository stores the control plane's user mirror.
type UserRepository interface {
	Create(ctx context.Context, u identity.User) error
	Get(ctx context.Context, id string) (identity.User, error)
	List(ctx context.Context) ([]identity.User, error)
	Delete(ctx context.Context, id string) error
}

// MemoryUserRepository is the reference UserRepository.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]identity.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]identity.User)}
}

func (r *MemoryUserRepository) Create(ctx context.Context, u identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.users[u.ID] = u
	return nil
}

func (r *MemoryUserRepository) Get(ctx context.Context, id string) (identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return identity.User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) List(ctx context.Context) ([]identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]identity.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}
