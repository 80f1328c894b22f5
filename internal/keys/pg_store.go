package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRingStore persiste el ring como una única fila JSONB en Postgres.
// El UPDATE de la fila es atómico por sí mismo; igual se envuelve en una
// transacción para mantener el mismo contrato que el resto de stores.
//
// Schema esperado:
//
//	CREATE TABLE signing_key_ring (
//	    id         smallint PRIMARY KEY CHECK (id = 1),
//	    doc        jsonb NOT NULL,
//	    updated_at timestamptz NOT NULL DEFAULT now()
//	);
type PGRingStore struct {
	pool      *pgxpool.Pool
	masterKey []byte
}

// NewPGRingStore crea el store sobre un pool existente.
func NewPGRingStore(pool *pgxpool.Pool, masterKey []byte) *PGRingStore {
	return &PGRingStore{pool: pool, masterKey: masterKey}
}

// Load lee la fila del ring. Sin fila => ring vacío.
func (s *PGRingStore) Load(ctx context.Context) (*RingState, error) {
	const q = `SELECT doc FROM signing_key_ring WHERE id = 1`

	var data []byte
	if err := s.pool.QueryRow(ctx, q).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &RingState{}, nil
		}
		return nil, fmt.Errorf("load ring: %w", err)
	}
	return decodeRing(data, s.masterKey)
}

// Save reemplaza el documento del ring en una tx.
func (s *PGRingStore) Save(ctx context.Context, state *RingState) error {
	data, err := encodeRing(state, s.masterKey)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `
INSERT INTO signing_key_ring (id, doc, updated_at)
VALUES (1, $1, now())
ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`
	if _, err := tx.Exec(ctx, q, data); err != nil {
		return fmt.Errorf("save ring: %w", err)
	}
	return tx.Commit(ctx)
}
