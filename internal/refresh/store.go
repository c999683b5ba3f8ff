package refresh

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tenantauth/tenantauth/internal/db/models"
	"github.com/tenantauth/tenantauth/internal/uniuri"
)

// DefaultTTL is the refresh token lifetime when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

// Record is the stored state of one refresh token.
// Roles are a snapshot captured at issuance; authorization decisions use
// the live role assignments, not this snapshot.
type Record struct {
	ID         string   `json:"id"`
	UserID     uint64   `json:"user_id"`
	Email      string   `json:"email"`
	TenantID   uint64   `json:"tenant_id"`
	Roles      []string `json:"roles"`
	SecretHash string   `json:"secret_hash"`
	ExpiresAt  int64    `json:"expires_at"`
}

// Store is the refresh token lifecycle contract.
// The Redis implementation is the production design; anything in-process
// cannot serve a multi-instance deployment.
type Store interface {
	// Generate creates a new active token for the user and returns its
	// opaque value.
	Generate(ctx context.Context, user *models.User) (string, error)
	// Validate returns the record behind a token, or nil if the token is
	// unknown, malformed or expired. Expired records are evicted.
	Validate(ctx context.Context, token string) (*Record, error)
	// Revoke removes the record behind a token. Idempotent.
	Revoke(ctx context.Context, token string) error
	// RevokeAll removes every token of the given user.
	RevokeAll(ctx context.Context, userID uint64) error
	// Rotate atomically invalidates oldToken and issues a successor.
	// If oldToken is not active, ok is false and nothing is mutated.
	Rotate(ctx context.Context, oldToken string, user *models.User) (newToken string, ok bool, err error)
}

// rotateScript validates the predecessor, deletes it and writes the
// successor in one atomic unit. Concurrent rotations of the same token
// serialize here; at most one call observes the predecessor and wins.
//
// KEYS[1] = predecessor record key
// KEYS[2] = successor record key
// KEYS[3] = user token index (set of record ids)
// ARGV[1] = provided secret hash
// ARGV[2] = now (unix seconds)
// ARGV[3] = successor record blob
// ARGV[4] = successor TTL (milliseconds)
// ARGV[5] = predecessor record id
// ARGV[6] = successor record id
const rotateScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end

local rec = cjson.decode(data)

if rec.secret_hash ~= ARGV[1] then
  return 0
end

if tonumber(rec.expires_at) <= tonumber(ARGV[2]) then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", KEYS[3], ARGV[5])
  return 0
end

redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[3], ARGV[5])
redis.call("SET", KEYS[2], ARGV[3], "PX", ARGV[4])
redis.call("SADD", KEYS[3], ARGV[6])
redis.call("PEXPIRE", KEYS[3], ARGV[4])
return 1
`

var rotateLua = redis.NewScript(rotateScript)

// RedisStore is the Redis-backed refresh token store.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a refresh token [Store] backed by the given
// Redis client. prefix namespaces the keys; ttl <= 0 uses DefaultTTL.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) recordKey(id string) string {
	return s.prefix + ":refresh:" + id
}

func (s *RedisStore) userKey(userID uint64) string {
	return fmt.Sprintf("%s:refreshuser:%d", s.prefix, userID)
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// splitToken separates "<id>.<secret>". The id is a UUID, the secret an
// alphanumeric string, so the first dot is unambiguous.
func splitToken(token string) (id, secret string, err error) {
	id, secret, found := strings.Cut(token, ".")
	if !found || id == "" || secret == "" {
		return "", "", ErrMalformedToken
	}

	return id, secret, nil
}

func (s *RedisStore) newRecord(user *models.User) (rec Record, token string) {
	id := uuid.NewString()
	secret := uniuri.NewLen(uniuri.TokenLen)

	rec = Record{
		ID:         id,
		UserID:     user.ID,
		Email:      user.Email,
		TenantID:   user.TenantID,
		Roles:      user.RoleNames(),
		SecretHash: hashSecret(secret),
		ExpiresAt:  time.Now().Add(s.ttl).Unix(),
	}

	return rec, id + "." + secret
}

// Generate creates a new active record with expiry now+TTL and snapshots
// the user's current role names.
func (s *RedisStore) Generate(ctx context.Context, user *models.User) (string, error) {
	rec, token := s.newRecord(user)

	blob, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode refresh record: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.recordKey(rec.ID), blob, s.ttl)
	pipe.SAdd(ctx, s.userKey(user.ID), rec.ID)
	pipe.Expire(ctx, s.userKey(user.ID), s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return token, nil
}

// Validate returns the record behind the token, or nil for unknown,
// malformed or expired tokens. Expired records are evicted as a side
// effect.
func (s *RedisStore) Validate(ctx context.Context, token string) (*Record, error) {
	id, secret, err := splitToken(token)
	if err != nil {
		return nil, nil //nolint:nilnil // unknown and malformed are indistinguishable by design
	}

	blob, err := s.redis.Get(ctx, s.recordKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil //nolint:nilnil
		}

		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, fmt.Errorf("corrupt refresh record %s: %w", id, err)
	}

	if subtle.ConstantTimeCompare([]byte(rec.SecretHash), []byte(hashSecret(secret))) != 1 {
		return nil, nil //nolint:nilnil
	}

	if rec.ExpiresAt <= time.Now().Unix() {
		// Redis TTL normally evicts first; this covers clock edges.
		s.evict(ctx, &rec)
		return nil, nil //nolint:nilnil
	}

	return &rec, nil
}

func (s *RedisStore) evict(ctx context.Context, rec *Record) {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.recordKey(rec.ID))
	pipe.SRem(ctx, s.userKey(rec.UserID), rec.ID)
	_, _ = pipe.Exec(ctx)
}

// Revoke removes the record behind the token. No error if absent.
func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	rec, err := s.Validate(ctx, token)
	if err != nil {
		return err
	}

	if rec == nil {
		return nil
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.recordKey(rec.ID))
	pipe.SRem(ctx, s.userKey(rec.UserID), rec.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return nil
}

// RevokeAll removes every record for the user.
func (s *RedisStore) RevokeAll(ctx context.Context, userID uint64) error {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	pipe := s.redis.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.recordKey(id))
	}

	pipe.Del(ctx, s.userKey(userID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return nil
}

// Rotate atomically invalidates oldToken and issues a new active record
// snapshotting the user's current roles. ok is false when oldToken is
// not active (unknown, expired, or already rotated away); in that case
// nothing was mutated.
func (s *RedisStore) Rotate(ctx context.Context, oldToken string, user *models.User) (string, bool, error) {
	oldID, oldSecret, err := splitToken(oldToken)
	if err != nil {
		return "", false, nil
	}

	rec, token := s.newRecord(user)

	blob, err := json.Marshal(rec)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode refresh record: %w", err)
	}

	res, err := rotateLua.Run(ctx, s.redis,
		[]string{s.recordKey(oldID), s.recordKey(rec.ID), s.userKey(user.ID)},
		hashSecret(oldSecret),
		time.Now().Unix(),
		string(blob),
		s.ttl.Milliseconds(),
		oldID,
		rec.ID,
	).Int64()
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if res != 1 {
		return "", false, nil
	}

	return token, true, nil
}
