package authinfra

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/Abraxas-365/tenantauth/pkg/ptrx"
)

// MemoryRefreshStore keeps refresh tokens in process. One mutex guards every
// record, which makes each operation trivially atomic. Tokens are never removed.
type MemoryRefreshStore struct {
	mu     sync.Mutex
	byHash map[string]*auth.RefreshToken
	byID   map[string]string
	byUser map[kernel.UserID][]string
	now    func() time.Time
}

type MemoryStoreOption func(*MemoryRefreshStore)

func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryRefreshStore) {
		s.now = now
	}
}

func NewMemoryRefreshStore(opts ...MemoryStoreOption) *MemoryRefreshStore {
	s := &MemoryRefreshStore{
		byHash: make(map[string]*auth.RefreshToken),
		byID:   make(map[string]string),
		byUser: make(map[kernel.UserID][]string),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryRefreshStore) Issue(_ context.Context, userID kernel.UserID, ip string, ttl time.Duration) (*auth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(userID, ip, ttl)
}

func (s *MemoryRefreshStore) insertLocked(userID kernel.UserID, ip string, ttl time.Duration) (*auth.RefreshToken, error) {
	rt, err := auth.NewRefreshToken(userID, ip, s.now().UTC(), ttl)
	if err != nil {
		return nil, err
	}
	stored := *rt
	stored.Token = ""
	s.byHash[rt.TokenHash] = &stored
	s.byID[rt.ID] = rt.TokenHash
	s.byUser[userID] = append(s.byUser[userID], rt.TokenHash)
	return rt, nil
}

func (s *MemoryRefreshStore) Lookup(_ context.Context, tokenValue string) (*auth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.byHash[auth.HashRefreshToken(tokenValue)]
	if !ok {
		return nil, auth.ErrRefreshTokenNotFound()
	}
	return cloneRefreshToken(rt), nil
}

func (s *MemoryRefreshStore) Revoke(_ context.Context, tokenValue string, byIP string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.byHash[auth.HashRefreshToken(tokenValue)]
	if !ok {
		return false, nil
	}
	now := s.now().UTC()
	if !rt.IsActive(now) {
		return false, nil
	}
	revoke(rt, now, byIP)
	return true, nil
}

func (s *MemoryRefreshStore) RevokeAllForUser(_ context.Context, userID kernel.UserID, byIP string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	n := 0
	for _, h := range s.byUser[userID] {
		if rt := s.byHash[h]; rt != nil && rt.IsActive(now) {
			revoke(rt, now, byIP)
			n++
		}
	}
	return n, nil
}

func (s *MemoryRefreshStore) RevokeSuccessors(_ context.Context, token *auth.RefreshToken, byIP string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	n := 0
	cur := s.byHash[token.TokenHash]
	for cur != nil && cur.ReplacedBy != nil {
		cur = s.byHash[s.byID[*cur.ReplacedBy]]
		if cur != nil && cur.IsActive(now) {
			revoke(cur, now, byIP)
			n++
		}
	}
	return n, nil
}

func (s *MemoryRefreshStore) Rotate(_ context.Context, tokenValue string, byIP string, ttl time.Duration) (*auth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byHash[auth.HashRefreshToken(tokenValue)]
	now := s.now().UTC()
	if !ok || !old.IsActive(now) {
		return nil, auth.ErrRefreshTokenNotActive()
	}

	next, err := s.insertLocked(old.UserID, byIP, ttl)
	if err != nil {
		return nil, err
	}
	revoke(old, now, byIP)
	old.ReplacedBy = ptrx.String(next.ID)
	return next, nil
}

// Len is the number of records ever issued
func (s *MemoryRefreshStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}

func revoke(rt *auth.RefreshToken, at time.Time, byIP string) {
	rt.RevokedAt = ptrx.Time(at)
	rt.RevokedByIP = ptrx.String(byIP)
}

func cloneRefreshToken(rt *auth.RefreshToken) *auth.RefreshToken {
	cp := *rt
	cp.RevokedAt = ptrx.Clone(rt.RevokedAt)
	cp.RevokedByIP = ptrx.Clone(rt.RevokedByIP)
	cp.ReplacedBy = ptrx.Clone(rt.ReplacedBy)
	return &cp
}
