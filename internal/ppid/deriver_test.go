package ppid

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
	"time"
)

var (
	testSalt = bytes.Repeat([]byte{0xa5}, 32)
	userID   = []byte("user-0123456789abcdef")
	rpStable = []byte("rp-stable")
	rpRotate = []byte("rp-rotating")
	rpOff    = []byte("rp-disabled")
)

func newTestDeriver(t *testing.T, enabled bool) *Deriver {
	t.Helper()
	table := NewPolicyTable([]Policy{
		{RelyingParty: string(rpStable), Enabled: true},
		{RelyingParty: string(rpRotate), Enabled: true, Rotating: true, RotationPeriod: 6 * time.Hour},
		{RelyingParty: string(rpOff), Enabled: false},
	})
	d, err := NewDeriver(enabled, testSalt, 16, table)
	if err != nil {
		t.Fatalf("new deriver: %v", err)
	}
	return d
}

func atTime(d *Deriver, ts time.Time) *Deriver {
	d.now = func() time.Time { return ts }
	return d
}

func TestDerive_FallbackIsHexUserID(t *testing.T) {
	d := newTestDeriver(t, true)
	want := hex.EncodeToString(userID)

	cases := []struct {
		name string
		rp   []byte
	}{
		{"unknown relying party", []byte("never-configured")},
		{"policy disabled", rpOff},
	}
	for _, tc := range cases {
		for _, seed := range []int64{0, 1, 99999} {
			if got := d.Derive(userID, tc.rp, seed); got != want {
				t.Fatalf("%s seed=%d: got %s want %s", tc.name, seed, got, want)
			}
		}
	}

	// global off: fallback incluso para policies habilitadas
	off := newTestDeriver(t, false)
	if got := off.Derive(userID, rpStable, 0); got != want {
		t.Fatalf("global disabled: got %s want %s", got, want)
	}
}

func TestDerive_NonRotatingStableAcrossTime(t *testing.T) {
	d := newTestDeriver(t, true)

	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(400 * 24 * time.Hour)

	a := atTime(d, t1).Derive(userID, rpStable, 7)
	b := atTime(d, t2).Derive(userID, rpStable, 7)
	if a != b {
		t.Fatalf("non-rotating policy must be time-independent: %s != %s", a, b)
	}
}

func TestDerive_RotatingBucketBoundary(t *testing.T) {
	d := newTestDeriver(t, true)
	period := 6 * time.Hour

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sameBucket := base.Add(period - time.Millisecond)
	nextBucket := base.Add(period)

	a := atTime(d, base).Derive(userID, rpRotate, 0)
	b := atTime(d, sameBucket).Derive(userID, rpRotate, 0)
	c := atTime(d, nextBucket).Derive(userID, rpRotate, 0)

	if a != b {
		t.Fatal("same bucket must derive identical identifiers")
	}
	if a == c {
		t.Fatal("different buckets must derive different identifiers")
	}
}

func TestDerive_OutputShape(t *testing.T) {
	d := newTestDeriver(t, true)

	got := d.Derive(userID, rpStable, 0)
	if len(got) != 2*d.IDByteLen() {
		t.Fatalf("expected %d hex chars, got %d", 2*d.IDByteLen(), len(got))
	}
	if _, err := hex.DecodeString(got); err != nil {
		t.Fatalf("output not lowercase hex: %v", err)
	}
	if got != string(bytes.ToLower([]byte(got))) {
		t.Fatal("output must be lowercase")
	}
	if got == hex.EncodeToString(userID) {
		t.Fatal("enabled policy must not leak the raw user id")
	}
}

func TestDerive_DistinctPerRelyingParty(t *testing.T) {
	table := NewPolicyTable([]Policy{
		{RelyingParty: "rp-a", Enabled: true},
		{RelyingParty: "rp-b", Enabled: true},
	})
	d, err := NewDeriver(true, testSalt, 16, table)
	if err != nil {
		t.Fatal(err)
	}

	a := d.Derive(userID, []byte("rp-a"), 0)
	b := d.Derive(userID, []byte("rp-b"), 0)
	if a == b {
		t.Fatal("same user must not be correlatable across relying parties")
	}
}

func TestDerive_SeedChangesOutput(t *testing.T) {
	d := newTestDeriver(t, true)
	if d.Derive(userID, rpStable, 0) == d.Derive(userID, rpStable, 1) {
		t.Fatal("client seed must feed the derivation")
	}
}

func TestNewDeriver_Validation(t *testing.T) {
	table := NewPolicyTable(nil)

	if _, err := NewDeriver(true, nil, 16, table); !errors.Is(err, ErrMissingSalt) {
		t.Fatalf("enabled without salt: expected ErrMissingSalt, got %v", err)
	}
	if _, err := NewDeriver(true, testSalt, 0, table); !errors.Is(err, ErrBadIDLength) {
		t.Fatalf("zero id length: expected ErrBadIDLength, got %v", err)
	}
	// deshabilitado sin salt es válido: solo emite fallbacks
	if _, err := NewDeriver(false, nil, 16, table); err != nil {
		t.Fatalf("disabled without salt must be valid: %v", err)
	}
}

func TestDerive_Deterministic(t *testing.T) {
	d := newTestDeriver(t, true)
	a := d.Derive(userID, rpStable, 42)
	b := d.Derive(userID, rpStable, 42)
	if a != b {
		t.Fatal("derivation must be deterministic for identical inputs")
	}
}
