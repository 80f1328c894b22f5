package jwks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	memcache "github.com/arku/fxa/internal/cache/memory"
	"github.com/arku/fxa/internal/keys"
)

type fakeRingStore struct {
	ring  *keys.RingState
	loads int
}

func (f *fakeRingStore) Load(ctx context.Context) (*keys.RingState, error) {
	f.loads++
	return f.ring, nil
}

func (f *fakeRingStore) Save(ctx context.Context, s *keys.RingState) error {
	f.ring = s
	return nil
}

func TestCache_ServesCachedDocument(t *testing.T) {
	ctx := context.Background()
	ks := testRingKeys(t)
	store := &fakeRingStore{ring: &keys.RingState{Active: ks[0]}}
	c := NewCache(store, memcache.New(time.Minute), time.Minute)

	first, err := c.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if store.loads != 1 {
		t.Fatalf("expected 1 load, got %d", store.loads)
	}

	// mutar el ring por fuera: el documento cacheado no cambia hasta invalidar
	store.ring = &keys.RingState{Active: ks[1]}
	second, err := c.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatal("expected cached document within TTL")
	}
	if store.loads != 1 {
		t.Fatalf("cache miss not expected, loads=%d", store.loads)
	}

	c.Invalidate(ctx)
	third, err := c.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var doc Document
	if err := json.Unmarshal(third, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Keys[0].KID != ks[1].KID {
		t.Fatal("expected rebuilt document after invalidate")
	}
}
