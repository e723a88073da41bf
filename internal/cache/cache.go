// Package cache is the redis layer: the access-token blacklist, session
// snapshots, and role read caching. Everything here is an optimization or a
// denylist; the store in postgres stays authoritative.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/identware/identity-service/internal/domain"
)

// ErrMiss is returned when a key is absent. Callers fall back to postgres.
var ErrMiss = errors.New("cache miss")

const (
	blacklistPrefix = "blacklist:"
	sessionPrefix   = "session:user:"
	rolePrefix      = "role:"
	rolesAllKey     = "roles:all"
)

// Client wraps go-redis with the key layout used by the session layer.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a cache client over an established redis connection.
func NewClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// hashKey keeps raw JWTs out of redis keys and bounds key length.
func hashKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Blacklist marks an access token revoked for the given TTL. The TTL should
// be the token's remaining lifetime so the entry expires with the token.
func (c *Client) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token already expired; signature verification rejects it anyway.
		return nil
	}
	if err := c.rdb.Set(ctx, blacklistPrefix+hashKey(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether an access token has been revoked before its
// expiry. Errors propagate: the gate fails closed on redis trouble.
func (c *Client) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+hashKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return n > 0, nil
}

// CacheSession stores a session snapshot under the user's ID.
func (c *Client) CacheSession(ctx context.Context, s *domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := c.rdb.Set(ctx, sessionPrefix+s.UserID, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache session: %w", err)
	}
	return nil
}

// GetSession fetches a cached session snapshot. Returns ErrMiss when absent.
func (c *Client) GetSession(ctx context.Context, userID string) (*domain.Session, error) {
	data, err := c.rdb.Get(ctx, sessionPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

// InvalidateSession drops the cached snapshot for an identity.
func (c *Client) InvalidateSession(ctx context.Context, userID string) error {
	if err := c.rdb.Del(ctx, sessionPrefix+userID).Err(); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

// CacheRoles stores the full role list.
func (c *Client) CacheRoles(ctx context.Context, roles []*domain.Role, ttl time.Duration) error {
	data, err := json.Marshal(roles)
	if err != nil {
		return fmt.Errorf("marshal roles: %w", err)
	}
	if err := c.rdb.Set(ctx, rolesAllKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache roles: %w", err)
	}
	return nil
}

// GetRoles fetches the cached role list. Returns ErrMiss when absent.
func (c *Client) GetRoles(ctx context.Context) ([]*domain.Role, error) {
	data, err := c.rdb.Get(ctx, rolesAllKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("get roles: %w", err)
	}
	var roles []*domain.Role
	if err := json.Unmarshal(data, &roles); err != nil {
		return nil, fmt.Errorf("unmarshal roles: %w", err)
	}
	return roles, nil
}

// CacheRole stores a single role by ID.
func (c *Client) CacheRole(ctx context.Context, role *domain.Role, ttl time.Duration) error {
	data, err := json.Marshal(role)
	if err != nil {
		return fmt.Errorf("marshal role: %w", err)
	}
	if err := c.rdb.Set(ctx, rolePrefix+role.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache role: %w", err)
	}
	return nil
}

// GetRole fetches a cached role by ID. Returns ErrMiss when absent.
func (c *Client) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	data, err := c.rdb.Get(ctx, rolePrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	var role domain.Role
	if err := json.Unmarshal(data, &role); err != nil {
		return nil, fmt.Errorf("unmarshal role: %w", err)
	}
	return &role, nil
}

// InvalidateRoles drops the role list and the named role entries.
func (c *Client) InvalidateRoles(ctx context.Context, roleIDs ...string) error {
	keys := make([]string, 0, len(roleIDs)+1)
	keys = append(keys, rolesAllKey)
	for _, id := range roleIDs {
		keys = append(keys, rolePrefix+id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate roles: %w", err)
	}
	return nil
}

// InvalidateSessions drops every cached session snapshot. Used when a role's
// permission grants change and the staleness window is not acceptable.
func (c *Client) InvalidateSessions(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, sessionPrefix+"*", 200).Result()
		if err != nil {
			return fmt.Errorf("scan sessions: %w", err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete sessions: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping checks redis connectivity for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
