// Package redis implementa cache.Client sobre go-redis, para que varias
// instancias del servidor JWKS compartan el documento cacheado.
package redis

import (
	"context"
	"errors"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/arku/fxa/internal/cache"
)

type Cache struct {
	c      *rdb.Client
	prefix string
}

// New crea el cliente. prefix namespacea las keys (ej: "fxa:jwks:").
func New(addr string, db int, prefix string) *Cache {
	return &Cache{
		c:      rdb.NewClient(&rdb.Options{Addr: addr, DB: db}),
		prefix: prefix,
	}
}

func (r *Cache) Get(ctx context.Context, k string) ([]byte, error) {
	b, err := r.c.Get(ctx, r.prefix+k).Bytes()
	if err != nil {
		if errors.Is(err, rdb.Nil) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *Cache) Set(ctx context.Context, k string, v []byte, ttl time.Duration) error {
	return r.c.Set(ctx, r.prefix+k, v, ttl).Err()
}

func (r *Cache) Delete(ctx context.Context, k string) error {
	return r.c.Del(ctx, r.prefix+k).Err()
}

func (r *Cache) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *Cache) Close() error {
	return r.c.Close()
}
