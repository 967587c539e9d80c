package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/attribution"
	"go.uber.org/zap"
)

// RedisCacheRepository wraps a LinkRepository with Redis caching for code lookups,
// which sit on the redirect hot path.
type RedisCacheRepository struct {
	store  attribution.LinkRepository
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCacheRepository creates a new Redis-cached link repository decorator.
func NewRedisCacheRepository(
	store attribution.LinkRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		store:  store,
		client: client,
		prefix: "link:",
		ttl:    ttl,
		logger: logger,
	}
}

// Save stores a link in the underlying store and writes it through to the cache.
func (r *RedisCacheRepository) Save(ctx context.Context, link *attribution.Link) error {
	if err := r.store.Save(ctx, link); err != nil {
		return err
	}

	r.cacheLink(ctx, link)

	return nil
}

// GetByCode retrieves a link by its code, checking the cache first.
func (r *RedisCacheRepository) GetByCode(ctx context.Context, code attribution.Code) (*attribution.Link, error) {
	if link, err := r.getFromCache(ctx, code); err == nil {
		return link, nil
	}

	link, err := r.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	r.cacheLink(ctx, link)

	return link, nil
}

// ListByOwner always reads through to the underlying store.
func (r *RedisCacheRepository) ListByOwner(ctx context.Context, owner attribution.OwnerID) ([]attribution.Link, error) {
	return r.store.ListByOwner(ctx, owner)
}

// Delete removes the link and evicts it from the cache.
func (r *RedisCacheRepository) Delete(ctx context.Context, code attribution.Code, owner attribution.OwnerID) error {
	if err := r.store.Delete(ctx, code, owner); err != nil {
		return err
	}

	// a stale entry keeps redirecting until the TTL expires
	if err := r.client.Del(ctx, r.prefix+string(code)).Err(); err != nil {
		r.logger.Error("failed to evict deleted link from cache",
			zap.String("code", string(code)),
			zap.Duration("ttl", r.ttl),
			zap.Error(err),
		)
	}

	return nil
}

func (r *RedisCacheRepository) getFromCache(ctx context.Context, code attribution.Code) (*attribution.Link, error) {
	result, err := r.client.HGetAll(ctx, r.prefix+string(code)).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, attribution.ErrNotFound
	}

	id, err := strconv.ParseInt(result["id"], 10, 64)
	if err != nil {
		return nil, err
	}

	var createdAt time.Time

	if nanos, err := strconv.ParseInt(result["created_at"], 10, 64); err == nil {
		createdAt = time.Unix(0, nanos)
	}

	return &attribution.Link{
		ID:             attribution.LinkID(id),
		Code:           attribution.Code(result["code"]),
		DestinationURL: result["destination_url"],
		OwnerID:        attribution.OwnerID(result["owner_id"]),
		CreatedAt:      createdAt,
	}, nil
}

func (r *RedisCacheRepository) cacheLink(ctx context.Context, link *attribution.Link) {
	key := r.prefix + string(link.Code)
	pipe := r.client.Pipeline()

	pipe.HSet(ctx, key, map[string]any{
		"id":              int64(link.ID),
		"code":            string(link.Code),
		"destination_url": link.DestinationURL,
		"owner_id":        string(link.OwnerID),
		"created_at":      link.CreatedAt.UnixNano(),
	})

	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("failed to cache link", zap.String("code", string(link.Code)), zap.Error(err))
	}
}

// Compile-time check.
var _ attribution.LinkRepository = (*RedisCacheRepository)(nil)
