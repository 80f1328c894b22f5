package keys

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestRotator(t *testing.T) (*Rotator, *FSRingStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFSRingStore(dir, nil)
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	return NewRotator(store, NewGenerator(2048)), store, dir
}

// bootstrap deja el ring con solo active seteada.
func bootstrap(t *testing.T, r *Rotator) {
	t.Helper()
	ctx := context.Background()
	if _, err := r.Prepare(ctx); err != nil {
		t.Fatalf("bootstrap prepare: %v", err)
	}
	if _, err := r.Activate(ctx); err != nil {
		t.Fatalf("bootstrap activate: %v", err)
	}
}

func TestRotation_FullSequence(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRotator(t)
	bootstrap(t, r)

	ring, _ := store.Load(ctx)
	if ring.Active == nil || ring.Pending != nil || ring.Retiring != nil {
		t.Fatal("bootstrap must leave only active set")
	}
	activeKID := ring.Active.KID

	// prepare: pending aparece, active/retiring intactos
	if _, err := r.Prepare(ctx); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	ring, _ = store.Load(ctx)
	if ring.Pending == nil || !ring.Pending.HasPrivate() {
		t.Fatal("prepare must store a full pending key")
	}
	if ring.Active.KID != activeKID || ring.Retiring != nil {
		t.Fatal("prepare must not touch active/retiring")
	}
	pendingKID := ring.Pending.KID

	// activate: active = ex-pending, retiring = proyección pública del ex-active
	if _, err := r.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}
	ring, _ = store.Load(ctx)
	if ring.Active.KID != pendingKID {
		t.Fatalf("active should be former pending: %s != %s", ring.Active.KID, pendingKID)
	}
	if ring.Pending != nil {
		t.Fatal("pending must be cleared after activate")
	}
	if ring.Retiring == nil || ring.Retiring.KID != activeKID {
		t.Fatal("retiring must be the former active")
	}
	if ring.Retiring.HasPrivate() {
		t.Fatal("retiring must not carry private material")
	}
	if err := ring.Validate(); err != nil {
		t.Fatalf("ring invalid after activate: %v", err)
	}

	// retire: retiring se limpia, active intacta
	if _, err := r.Retire(ctx); err != nil {
		t.Fatalf("retire: %v", err)
	}
	ring, _ = store.Load(ctx)
	if ring.Retiring != nil {
		t.Fatal("retiring must be empty after retire")
	}
	if ring.Active.KID != pendingKID {
		t.Fatal("retire must not touch active")
	}
}

func TestPrepare_FailsWhenPendingExists(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRotator(t)

	if _, err := r.Prepare(ctx); err != nil {
		t.Fatalf("first prepare: %v", err)
	}
	ring, _ := store.Load(ctx)
	kid := ring.Pending.KID

	_, err := r.Prepare(ctx)
	if !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("expected ErrAlreadyPending, got %v", err)
	}

	// la pending original no fue pisada
	ring, _ = store.Load(ctx)
	if ring.Pending.KID != kid {
		t.Fatal("failed prepare must not overwrite pending")
	}
}

func TestActivate_NoPending_StateUnchanged(t *testing.T) {
	ctx := context.Background()
	r, _, dir := newTestRotator(t)
	bootstrap(t, r)

	before, err := os.ReadFile(filepath.Join(dir, "ring.json"))
	if err != nil {
		t.Fatalf("read ring: %v", err)
	}

	_, aerr := r.Activate(ctx)
	if !errors.Is(aerr, ErrNoPendingKey) {
		t.Fatalf("expected ErrNoPendingKey, got %v", aerr)
	}

	after, err := os.ReadFile(filepath.Join(dir, "ring.json"))
	if err != nil {
		t.Fatalf("read ring: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("failed activate must leave persisted state byte-for-byte unchanged")
	}
}

func TestRetire_IdempotentWhenEmpty(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRotator(t)
	bootstrap(t, r)

	for i := 0; i < 2; i++ {
		ch, err := r.Retire(ctx)
		if err != nil {
			t.Fatalf("retire #%d: %v", i+1, err)
		}
		if ch.Dropped != "" {
			t.Fatalf("retire #%d dropped %q on empty slot", i+1, ch.Dropped)
		}
	}
}

func TestActivate_FirstKeyBootstrap(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRotator(t)

	if _, err := r.Prepare(ctx); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	ch, err := r.Activate(ctx)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if ch.Retiring != "" || ch.Dropped != "" {
		t.Fatal("first activate has no former active to retire")
	}

	ring, _ := store.Load(ctx)
	if err := ring.Validate(); err != nil {
		t.Fatalf("ring invalid after first activate: %v", err)
	}
}

func TestRingValidate(t *testing.T) {
	k := genTestKey(t)

	if err := (&RingState{}).Validate(); !errors.Is(err, ErrNoActiveKey) {
		t.Fatalf("empty ring: expected ErrNoActiveKey, got %v", err)
	}

	// retiring con privada es inválido
	bad := &RingState{Active: k, Retiring: k}
	if err := bad.Validate(); err == nil {
		t.Fatal("retiring with private material must be invalid")
	}

	// retiring proyectada con kid distinto... mismo kid en dos slots es inválido
	dup := &RingState{Active: k, Retiring: ExtractPublic(k)}
	if err := dup.Validate(); err == nil {
		t.Fatal("duplicate kid across slots must be invalid")
	}
}
