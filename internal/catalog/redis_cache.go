package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

const redisCachePrefix = "quentin:catalog:search:"

// redisCacheBackend stores catalog search results in Redis as JSON,
// grounded on the teacher's RedisCacheBackend
// (torrent-search/internal/search/cache_redis.go) generalized from
// caching domain.SearchResponse to caching []domain.CachedTorrent.
type redisCacheBackend struct {
	client *redis.Client
}

func newRedisCacheBackend(client *redis.Client) *redisCacheBackend {
	return &redisCacheBackend{client: client}
}

func (r *redisCacheBackend) Get(ctx context.Context, key string) ([]domain.CachedTorrent, bool, error) {
	data, err := r.client.Get(ctx, redisCachePrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	var results []domain.CachedTorrent
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false, err
	}
	return results, true, nil
}

func (r *redisCacheBackend) Set(ctx context.Context, key string, results []domain.CachedTorrent, ttl time.Duration) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisCachePrefix+key, data, ttl).Err()
}

func (r *redisCacheBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
