package jwks

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/arku/fxa/internal/keys"
)

var (
	ringOnce sync.Once
	ringKeys [3]*keys.SigningKey
)

// testRingKeys genera tres claves una sola vez para todo el package.
func testRingKeys(t *testing.T) [3]*keys.SigningKey {
	t.Helper()
	ringOnce.Do(func() {
		g := keys.NewGenerator(2048)
		for i := range ringKeys {
			k, err := g.Generate()
			if err != nil {
				panic(err)
			}
			ringKeys[i] = k
		}
	})
	return ringKeys
}

func TestPublish_ActiveOnly(t *testing.T) {
	ks := testRingKeys(t)
	doc := Publish(&keys.RingState{Active: ks[0]})

	if len(doc.Keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(doc.Keys))
	}
	pub := keys.ExtractPublic(ks[0])
	got := doc.Keys[0]
	if got.KID != pub.KID || got.Kty != "RSA" || got.Alg != "RS256" || got.Use != "sig" {
		t.Fatalf("unexpected jwk: %+v", got)
	}
	if got.N != encodeBigInt(pub.Public.N) {
		t.Fatal("modulus mismatch")
	}
	if got.E != "AQAB" { // 65537 big-endian base64url
		t.Fatalf("unexpected exponent encoding: %s", got.E)
	}
	if got.CreatedAt != pub.CreatedAt.Unix() {
		t.Fatal("created_at mismatch")
	}
}

func TestPublish_FixedOrder(t *testing.T) {
	ks := testRingKeys(t)
	ring := &keys.RingState{
		Active:   ks[0],
		Pending:  ks[1],
		Retiring: keys.ExtractPublic(ks[2]),
	}
	doc := Publish(ring)

	if len(doc.Keys) != 3 {
		t.Fatalf("expected 3 keys, got %d", len(doc.Keys))
	}
	want := []string{ks[0].KID, ks[1].KID, ks[2].KID}
	for i, w := range want {
		if doc.Keys[i].KID != w {
			t.Fatalf("position %d: got %s want %s (order must be active, pending, retiring)",
				i, doc.Keys[i].KID, w)
		}
	}
}

func TestPublish_SkipsEmptySlots(t *testing.T) {
	ks := testRingKeys(t)
	doc := Publish(&keys.RingState{Active: ks[0], Retiring: keys.ExtractPublic(ks[2])})
	if len(doc.Keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(doc.Keys))
	}
	if doc.Keys[1].KID != ks[2].KID {
		t.Fatal("retiring must follow active when pending is empty")
	}
}

func TestPublishJSON_WireFields(t *testing.T) {
	ks := testRingKeys(t)
	data, err := PublishJSON(&keys.RingState{Active: ks[0]})
	if err != nil {
		t.Fatal(err)
	}

	// exactamente {kty, alg, kid, created_at, use, n, e}; nada privado
	var doc map[string][]map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	entry := doc["keys"][0]
	for _, f := range []string{"kty", "alg", "kid", "created_at", "use", "n", "e"} {
		if _, ok := entry[f]; !ok {
			t.Fatalf("missing wire field %s", f)
		}
	}
	if len(entry) != 7 {
		t.Fatalf("unexpected extra fields: %v", entry)
	}
	for _, f := range []string{"d", "p", "q", "dp", "dq", "qi"} {
		if _, leaked := entry[f]; leaked {
			t.Fatalf("private field %s leaked to wire", f)
		}
	}
}

func TestPublish_NilRing(t *testing.T) {
	if got := Publish(nil); len(got.Keys) != 0 {
		t.Fatal("nil ring must publish empty set")
	}
}
