package authinfra

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
)

// MemoryUserDirectory is an in-process auth.UserDirectory for tests and the
// memory profile.
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[kernel.UserID]auth.Identity
}

func NewMemoryUserDirectory(identities ...auth.Identity) *MemoryUserDirectory {
	d := &MemoryUserDirectory{users: make(map[kernel.UserID]auth.Identity)}
	for _, id := range identities {
		d.Put(id)
	}
	return d
}

// Put inserts or replaces an identity; the email is stored normalized
func (d *MemoryUserDirectory) Put(id auth.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id.Email = auth.NormalizeEmail(id.Email)
	d.users[id.ID] = id
}

func (d *MemoryUserDirectory) FindByEmail(_ context.Context, email string) (*auth.Identity, error) {
	email = auth.NormalizeEmail(email)

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, auth.ErrIdentityNotFound()
}

func (d *MemoryUserDirectory) FindByID(_ context.Context, id kernel.UserID) (*auth.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, auth.ErrIdentityNotFound()
	}
	return &u, nil
}

func (d *MemoryUserDirectory) UpdateLastLogin(_ context.Context, id kernel.UserID, at time.Time) error {
	return d.mutate(id, func(u *auth.Identity) { u.LastLoginAt = &at })
}

func (d *MemoryUserDirectory) UpdatePasswordHash(_ context.Context, id kernel.UserID, hash string) error {
	return d.mutate(id, func(u *auth.Identity) { u.PasswordHash = hash })
}

func (d *MemoryUserDirectory) mutate(id kernel.UserID, fn func(*auth.Identity)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return auth.ErrIdentityNotFound()
	}
	fn(&u)
	d.users[id] = u
	return nil
}
