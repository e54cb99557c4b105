package access

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// PrincipalLoader fetches the role and location of a user from storage.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID int64) (Principal, error)
}

// Resolver turns session user ids into principals, caching results in Redis
// and collapsing concurrent lookups for the same user.
type Resolver struct {
	loader PrincipalLoader
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewResolver builds a Resolver. cache may be nil to disable caching.
func NewResolver(loader PrincipalLoader, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{loader: loader, cache: cache, ttl: ttl, logger: logger}
}

// Resolve returns the principal for userID. The shared lookup outlives the
// caller that started it; callers that give up only stop waiting.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (Principal, error) {
	if p, ok := r.cached(ctx, userID); ok {
		return p, nil
	}
	key := strconv.FormatInt(userID, 10)
	lookupCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		p, err := r.loader.LoadPrincipal(lookupCtx, userID)
		if err != nil {
			return Principal{}, err
		}
		r.store(lookupCtx, p)
		return p, nil
	})
	select {
	case <-ctx.Done():
		return Principal{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Principal{}, res.Err
		}
		return res.Val.(Principal), nil
	}
}

// Invalidate drops any cached principal for userID. Call it after changing a
// user's role, location or active flag.
func (r *Resolver) Invalidate(ctx context.Context, userID int64) error {
	if r == nil || r.cache == nil {
		return nil
	}
	if err := r.cache.Del(ctx, cacheKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (r *Resolver) cached(ctx context.Context, userID int64) (Principal, bool) {
	if r.cache == nil || r.ttl <= 0 {
		return Principal{}, false
	}
	raw, err := r.cache.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && r.logger != nil {
			r.logger.Warn("principal cache get", slog.Any("error", err))
		}
		return Principal{}, false
	}
	var p Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return Principal{}, false
	}
	return p, true
}

func (r *Resolver) store(ctx context.Context, p Principal) {
	if r.cache == nil || r.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(p.UserID), raw, r.ttl).Err(); err != nil && r.logger != nil {
		r.logger.Warn("principal cache set", slog.Any("error", err))
	}
}

func cacheKey(userID int64) string {
	return "principal:" + strconv.FormatInt(userID, 10)
}
