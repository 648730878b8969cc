package authinfra

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/kernel"
	"github.com/Abraxas-365/tenantauth/pkg/ptrx"
	"github.com/redis/go-redis/v9"
)

// RedisRefreshStore keeps one hash per token and one set of token digests per
// user. Conditional mutations run as Lua scripts so the check and the write
// are a single server-side step. Keys carry no TTL: records are retained.
// The scripts reach keys derived from stored fields, so the store needs a
// single-node client; Redis Cluster is not supported.
type RedisRefreshStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

type RedisStoreOption func(*RedisRefreshStore)

func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(s *RedisRefreshStore) {
		s.prefix = prefix
	}
}

func WithRedisClock(now func() time.Time) RedisStoreOption {
	return func(s *RedisRefreshStore) {
		s.now = now
	}
}

func NewRedisRefreshStore(client *redis.Client, opts ...RedisStoreOption) *RedisRefreshStore {
	s := &RedisRefreshStore{client: client, prefix: "tenantauth:", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisRefreshStore) tokenKeyPrefix() string { return s.prefix + "rt:" }
func (s *RedisRefreshStore) userKeyPrefix() string  { return s.prefix + "rt:user:" }

func (s *RedisRefreshStore) tokenKey(hash string) string {
	return s.tokenKeyPrefix() + hash
}

func (s *RedisRefreshStore) userKey(userID kernel.UserID) string {
	return s.userKeyPrefix() + userID.String()
}

// revokeScript: KEYS[1]=token, ARGV[1]=now ms, ARGV[2]=ip.
// Returns 1 when revoked, 0 when inactive, -1 when unknown.
var revokeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local revoked = redis.call('HGET', KEYS[1], 'revoked_at')
if revoked and revoked ~= '' then
  return 0
end
local exp = tonumber(redis.call('HGET', KEYS[1], 'expires_at') or '0')
if exp <= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'revoked_at', ARGV[1], 'revoked_by_ip', ARGV[2])
return 1
`)

// rotateScript: KEYS[1]=old token, KEYS[2]=new token,
// ARGV = now ms, ip, new id, new hash, new expires ms, user key prefix.
// Returns the user id, or false when the old token was not active.
var rotateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
local revoked = redis.call('HGET', KEYS[1], 'revoked_at')
if revoked and revoked ~= '' then
  return false
end
local exp = tonumber(redis.call('HGET', KEYS[1], 'expires_at') or '0')
if exp <= tonumber(ARGV[1]) then
  return false
end
local uid = redis.call('HGET', KEYS[1], 'user_id')
redis.call('HSET', KEYS[1], 'revoked_at', ARGV[1], 'revoked_by_ip', ARGV[2],
  'replaced_by', ARGV[3], 'replaced_by_hash', ARGV[4])
redis.call('HSET', KEYS[2],
  'id', ARGV[3], 'token_hash', ARGV[4], 'user_id', uid,
  'created_at', ARGV[1], 'expires_at', ARGV[5], 'created_by_ip', ARGV[2])
redis.call('SADD', ARGV[6] .. uid, ARGV[4])
return uid
`)

// revokeAllScript: KEYS[1]=user set, ARGV = now ms, ip, token key prefix.
// Returns the number of tokens revoked.
var revokeAllScript = redis.NewScript(`
local n = 0
for _, h in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local k = ARGV[3] .. h
  local revoked = redis.call('HGET', k, 'revoked_at')
  local exp = tonumber(redis.call('HGET', k, 'expires_at') or '0')
  if (not revoked or revoked == '') and exp > tonumber(ARGV[1]) then
    redis.call('HSET', k, 'revoked_at', ARGV[1], 'revoked_by_ip', ARGV[2])
    n = n + 1
  end
end
return n
`)

// revokeSuccessorsScript: KEYS[1]=starting token, ARGV = now ms, ip, token key prefix.
// Follows replaced_by_hash and returns the number of tokens revoked.
var revokeSuccessorsScript = redis.NewScript(`
local n = 0
local h = redis.call('HGET', KEYS[1], 'replaced_by_hash')
while h do
  local k = ARGV[3] .. h
  local revoked = redis.call('HGET', k, 'revoked_at')
  local exp = tonumber(redis.call('HGET', k, 'expires_at') or '0')
  if (not revoked or revoked == '') and exp > tonumber(ARGV[1]) then
    redis.call('HSET', k, 'revoked_at', ARGV[1], 'revoked_by_ip', ARGV[2])
    n = n + 1
  end
  h = redis.call('HGET', k, 'replaced_by_hash')
end
return n
`)

func (s *RedisRefreshStore) Issue(ctx context.Context, userID kernel.UserID, ip string, ttl time.Duration) (*auth.RefreshToken, error) {
	rt, err := auth.NewRefreshToken(userID, ip, s.now().UTC(), ttl)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.tokenKey(rt.TokenHash), map[string]interface{}{
			"id":            rt.ID,
			"token_hash":    rt.TokenHash,
			"user_id":       rt.UserID.String(),
			"created_at":    rt.CreatedAt.UnixMilli(),
			"expires_at":    rt.ExpiresAt.UnixMilli(),
			"created_by_ip": rt.CreatedByIP,
		})
		pipe.SAdd(ctx, s.userKey(userID), rt.TokenHash)
		return nil
	})
	if err != nil {
		return nil, auth.ErrStorageUnavailable(err)
	}
	return rt, nil
}

func (s *RedisRefreshStore) Lookup(ctx context.Context, tokenValue string) (*auth.RefreshToken, error) {
	fields, err := s.client.HGetAll(ctx, s.tokenKey(auth.HashRefreshToken(tokenValue))).Result()
	if err != nil {
		return nil, auth.ErrStorageUnavailable(err)
	}
	if len(fields) == 0 {
		return nil, auth.ErrRefreshTokenNotFound()
	}
	return refreshTokenFromHash(fields), nil
}

func (s *RedisRefreshStore) Revoke(ctx context.Context, tokenValue string, byIP string) (bool, error) {
	key := s.tokenKey(auth.HashRefreshToken(tokenValue))
	n, err := revokeScript.Run(ctx, s.client, []string{key}, s.now().UTC().UnixMilli(), byIP).Int64()
	if err != nil {
		return false, auth.ErrStorageUnavailable(err)
	}
	return n == 1, nil
}

func (s *RedisRefreshStore) RevokeAllForUser(ctx context.Context, userID kernel.UserID, byIP string) (int, error) {
	n, err := revokeAllScript.Run(ctx, s.client,
		[]string{s.userKey(userID)},
		s.now().UTC().UnixMilli(), byIP, s.tokenKeyPrefix(),
	).Int64()
	if err != nil {
		return 0, auth.ErrStorageUnavailable(err)
	}
	return int(n), nil
}

func (s *RedisRefreshStore) RevokeSuccessors(ctx context.Context, token *auth.RefreshToken, byIP string) (int, error) {
	n, err := revokeSuccessorsScript.Run(ctx, s.client,
		[]string{s.tokenKey(token.TokenHash)},
		s.now().UTC().UnixMilli(), byIP, s.tokenKeyPrefix(),
	).Int64()
	if err != nil {
		return 0, auth.ErrStorageUnavailable(err)
	}
	return int(n), nil
}

func (s *RedisRefreshStore) Rotate(ctx context.Context, tokenValue string, byIP string, ttl time.Duration) (*auth.RefreshToken, error) {
	now := s.now().UTC()
	next, err := auth.NewRefreshToken("", byIP, now, ttl)
	if err != nil {
		return nil, err
	}

	uid, err := rotateScript.Run(ctx, s.client,
		[]string{s.tokenKey(auth.HashRefreshToken(tokenValue)), s.tokenKey(next.TokenHash)},
		now.UnixMilli(), byIP, next.ID, next.TokenHash, next.ExpiresAt.UnixMilli(), s.userKeyPrefix(),
	).Text()
	if err != nil {
		// Lua false comes back as a nil reply
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrRefreshTokenNotActive()
		}
		return nil, auth.ErrStorageUnavailable(err)
	}

	next.UserID = kernel.NewUserID(uid)
	// Stored timestamps have millisecond precision
	next.CreatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	next.ExpiresAt = time.UnixMilli(next.ExpiresAt.UnixMilli()).UTC()
	return next, nil
}

func refreshTokenFromHash(f map[string]string) *auth.RefreshToken {
	rt := &auth.RefreshToken{
		ID:          f["id"],
		TokenHash:   f["token_hash"],
		UserID:      kernel.NewUserID(f["user_id"]),
		CreatedAt:   millis(f["created_at"]),
		ExpiresAt:   millis(f["expires_at"]),
		CreatedByIP: f["created_by_ip"],
	}
	if v := f["revoked_at"]; v != "" {
		rt.RevokedAt = ptrx.Time(millis(v))
	}
	if v, ok := f["revoked_by_ip"]; ok {
		rt.RevokedByIP = ptrx.String(v)
	}
	if v := f["replaced_by"]; v != "" {
		rt.ReplacedBy = ptrx.String(v)
	}
	return rt
}

func millis(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(n).UTC()
}
