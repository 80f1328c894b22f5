package jwks

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arku/fxa/internal/cache"
	"github.com/arku/fxa/internal/keys"
	"github.com/arku/fxa/internal/metrics"
)

const cacheKey = "jwks"

// Cache sirve el JWKS con un TTL corto sobre un cache.Client.
//
// El material de claves solo cambia por acción de un operador, así que un
// TTL de segundos acota la propagación de una rotación sin costo por
// request. singleflight colapsa los rebuilds concurrentes en un cache miss.
type Cache struct {
	store keys.RingStore
	cli   cache.Client
	ttl   time.Duration

	sf singleflight.Group
}

// NewCache crea el cache del documento publicado.
func NewCache(store keys.RingStore, cli cache.Client, ttl time.Duration) *Cache {
	return &Cache{store: store, cli: cli, ttl: ttl}
}

// Get devuelve el JWKS JSON, reconstruyéndolo del ring si expiró.
func (c *Cache) Get(ctx context.Context) (json.RawMessage, error) {
	if data, err := c.cli.Get(ctx, cacheKey); err == nil {
		return data, nil
	}

	v, err, _ := c.sf.Do(cacheKey, func() (any, error) {
		start := time.Now()
		ring, err := c.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		data, err := PublishJSON(ring)
		if err != nil {
			return nil, err
		}
		metrics.JWKSBuildDuration.Observe(time.Since(start).Seconds())

		_ = c.cli.Set(ctx, cacheKey, data, c.ttl)
		return json.RawMessage(data), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

// Invalidate descarta el documento cacheado (post-rotación).
func (c *Cache) Invalidate(ctx context.Context) {
	_ = c.cli.Delete(ctx, cacheKey)
}
