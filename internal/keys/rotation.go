package keys

import (
	"context"

	"github.com/arku/fxa/internal/metrics"
	"github.com/arku/fxa/internal/observability/logger"
)

// Change describe lo que una transición cambió, para confirmarle al operador.
type Change struct {
	Op       string // prepare | activate | retire
	Active   string // kid post-transición ("" si no hay)
	Pending  string
	Retiring string
	// Dropped es el kid cuyo material se descartó de forma permanente
	// (la privada del ex-active en activate, la pública remanente en retire).
	Dropped string
}

// Rotator expone las tres transiciones del key ring.
//
// Protocolo de rotación: el diseño de tres slots garantiza que los tokens
// firmados con la clave saliente siguen siendo verificables (via retiring en
// el JWKS) durante un intervalo completo de rotación, y el paso doble
// prepare→activate deja validar/distribuir la clave nueva antes de que firme
// nada.
//
// No hay transiciones automáticas: la cadencia es una decisión operacional
// externa, igual que la exclusión mutua entre operadores concurrentes.
type Rotator struct {
	store RingStore
	gen   *Generator
}

// NewRotator crea el orquestador sobre un store y un generador.
func NewRotator(store RingStore, gen *Generator) *Rotator {
	return &Rotator{store: store, gen: gen}
}

// Prepare genera una clave nueva y la guarda como pending.
// Falla con ErrAlreadyPending si ya hay una pending sin activar: pisar una
// clave generada y quizás ya distribuida debe ser una decisión explícita
// (activate o borrar a mano), nunca un efecto colateral.
func (r *Rotator) Prepare(ctx context.Context) (*Change, error) {
	log := logger.From(ctx).With(logger.Component("keys.rotator"), logger.Op("prepare"))

	ring, err := r.store.Load(ctx)
	if err != nil {
		return nil, r.fail("prepare", err)
	}
	if ring.Pending != nil {
		log.Warn("pending key already exists", logger.KID(ring.Pending.KID))
		return nil, r.fail("prepare", ErrAlreadyPending)
	}

	k, err := r.gen.Generate()
	if err != nil {
		return nil, r.fail("prepare", err)
	}
	ring.Pending = k

	if err := r.store.Save(ctx, ring); err != nil {
		return nil, r.fail("prepare", err)
	}

	log.Info("new pending key generated", logger.KID(k.KID))
	metrics.KeyRotationsTotal.WithLabelValues("prepare", "ok").Inc()
	return r.change("prepare", ring, ""), nil
}

// Activate promueve pending a active y mueve el ex-active (solo material
// público) a retiring. La privada del ex-active se descarta de forma
// permanente en este paso. Falla con ErrNoPendingKey si no hay pending.
func (r *Rotator) Activate(ctx context.Context) (*Change, error) {
	log := logger.From(ctx).With(logger.Component("keys.rotator"), logger.Op("activate"))

	ring, err := r.store.Load(ctx)
	if err != nil {
		return nil, r.fail("activate", err)
	}
	if ring.Pending == nil {
		return nil, r.fail("activate", ErrNoPendingKey)
	}

	var dropped string
	if ring.Active != nil {
		dropped = ring.Active.KID
		ring.Retiring = ExtractPublic(ring.Active)
	}
	ring.Active = ring.Pending
	ring.Pending = nil

	// Un único Save: o las tres mudanzas de slot quedan persistidas o
	// ninguna. Un estado intermedio podría firmar con la clave equivocada o
	// abrir una ventana de verificación.
	if err := r.store.Save(ctx, ring); err != nil {
		return nil, r.fail("activate", err)
	}

	log.Info("key activated",
		logger.KID(ring.Active.KID),
		logger.String("former_active", dropped),
	)
	metrics.KeyRotationsTotal.WithLabelValues("activate", "ok").Inc()
	return r.change("activate", ring, dropped), nil
}

// Retire limpia el slot retiring, descartando el último remanente público de
// la clave vieja. Idempotente si retiring ya está vacío.
func (r *Rotator) Retire(ctx context.Context) (*Change, error) {
	log := logger.From(ctx).With(logger.Component("keys.rotator"), logger.Op("retire"))

	ring, err := r.store.Load(ctx)
	if err != nil {
		return nil, r.fail("retire", err)
	}
	if ring.Retiring == nil {
		log.Info("retiring slot already empty")
		metrics.KeyRotationsTotal.WithLabelValues("retire", "noop").Inc()
		return r.change("retire", ring, ""), nil
	}

	dropped := ring.Retiring.KID
	ring.Retiring = nil

	if err := r.store.Save(ctx, ring); err != nil {
		return nil, r.fail("retire", err)
	}

	log.Info("retiring key wiped", logger.String("dropped", dropped))
	metrics.KeyRotationsTotal.WithLabelValues("retire", "ok").Inc()
	return r.change("retire", ring, dropped), nil
}

// Status devuelve el estado actual sin mutarlo.
func (r *Rotator) Status(ctx context.Context) (*Change, error) {
	ring, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return r.change("status", ring, ""), nil
}

func (r *Rotator) change(op string, ring *RingState, dropped string) *Change {
	c := &Change{Op: op, Dropped: dropped}
	if ring.Active != nil {
		c.Active = ring.Active.KID
	}
	if ring.Pending != nil {
		c.Pending = ring.Pending.KID
	}
	if ring.Retiring != nil {
		c.Retiring = ring.Retiring.KID
	}
	return c
}

func (r *Rotator) fail(op string, err error) error {
	metrics.KeyRotationsTotal.WithLabelValues(op, "error").Inc()
	return err
}
