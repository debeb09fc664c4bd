package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/monocle-dev/taskhub/internal/types"
)

// RoleResolver answers the single question the authorization gate asks.
type RoleResolver interface {
	GetRole(ctx context.Context, projectID, userID uint) (types.Role, bool, error)
}

// RoleCache keeps resolved project roles in one Redis hash per project.
// A nil *RoleCache is a valid, always-missing cache.
type RoleCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRoleCache(client *redis.Client, ttl time.Duration) *RoleCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RoleCache{redis: client, ttl: ttl}
}

func projectRolesKey(projectID uint) string {
	return fmt.Sprintf("taskhub:project:%d:roles", projectID)
}

// projectVersionKey counts invalidations of a project's roles. A fill only
// lands when the counter has not moved since before the database read.
func projectVersionKey(projectID uint) string {
	return fmt.Sprintf("taskhub:project:%d:roles:version", projectID)
}

const versionTTL = 24 * time.Hour

func (c *RoleCache) get(ctx context.Context, projectID, userID uint) (types.Role, bool) {
	if c == nil {
		return "", false
	}
	val, err := c.redis.HGet(ctx, projectRolesKey(projectID), strconv.FormatUint(uint64(userID), 10)).Result()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).Warn("role cache read failed")
		}
		return "", false
	}
	return types.Role(val), true
}

// version returns the project's invalidation counter; ok is false when
// Redis cannot answer, in which case nothing should be cached.
func (c *RoleCache) version(ctx context.Context, projectID uint) (int64, bool) {
	if c == nil {
		return 0, false
	}
	v, err := c.redis.Get(ctx, projectVersionKey(projectID)).Int64()
	if err == redis.Nil {
		return 0, true
	}
	if err != nil {
		log.WithError(err).Warn("role cache version read failed")
		return 0, false
	}
	return v, true
}

// fill stores role unless the project was invalidated after version was read.
func (c *RoleCache) fill(ctx context.Context, projectID, userID uint, role types.Role, version int64) {
	if c == nil {
		return
	}
	vkey := projectVersionKey(projectID)
	key := projectRolesKey(projectID)

	err := c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return redis.TxFailedErr
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, strconv.FormatUint(uint64(userID), 10), string(role))
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, vkey)

	switch {
	case err == nil:
	case err == redis.TxFailedErr:
		log.WithFields(log.Fields{"project_id": projectID, "user_id": userID}).Debug("role cache fill skipped after invalidation")
	default:
		log.WithError(err).Warn("role cache write failed")
	}
}

// InvalidateMember drops one cached role and bumps the project version.
func (c *RoleCache) InvalidateMember(ctx context.Context, projectID, userID uint) {
	if c == nil {
		return
	}
	pipe := c.redis.TxPipeline()
	pipe.Incr(ctx, projectVersionKey(projectID))
	pipe.Expire(ctx, projectVersionKey(projectID), versionTTL)
	pipe.HDel(ctx, projectRolesKey(projectID), strconv.FormatUint(uint64(userID), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		log.WithError(err).Warn("role cache invalidate failed")
	}
}

// InvalidateProject drops every cached role of a project.
func (c *RoleCache) InvalidateProject(ctx context.Context, projectID uint) {
	if c == nil {
		return
	}
	pipe := c.redis.TxPipeline()
	pipe.Incr(ctx, projectVersionKey(projectID))
	pipe.Expire(ctx, projectVersionKey(projectID), versionTTL)
	pipe.Del(ctx, projectRolesKey(projectID))
	if _, err := pipe.Exec(ctx); err != nil {
		log.WithError(err).Warn("role cache invalidate failed")
	}
}

// CachedRoles reads through the cache into the registry. Absence is never
// cached so a freshly added member is visible immediately.
type CachedRoles struct {
	base  RoleResolver
	cache *RoleCache
}

func NewCachedRoles(base RoleResolver, cache *RoleCache) *CachedRoles {
	if base == nil {
		panic("store.NewCachedRoles: base resolver is nil")
	}
	return &CachedRoles{base: base, cache: cache}
}

func (c *CachedRoles) GetRole(ctx context.Context, projectID, userID uint) (types.Role, bool, error) {
	if role, ok := c.cache.get(ctx, projectID, userID); ok {
		return role, true, nil
	}

	version, cacheable := c.cache.version(ctx, projectID)

	role, ok, err := c.base.GetRole(ctx, projectID, userID)
	if err != nil || !ok {
		return role, ok, err
	}

	if cacheable {
		c.cache.fill(ctx, projectID, userID, role, version)
	}
	return role, true, nil
}
