package keys

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveKey: ring sin clave activa después del bootstrap.
	// Es un error fatal de configuración al startup del servicio.
	ErrNoActiveKey = errors.New("no_active_signing_key")

	// ErrAlreadyPending: prepare con una pending sin activar.
	// Evita pisar por accidente una clave ya generada y distribuida.
	ErrAlreadyPending = errors.New("pending_key_already_exists")

	// ErrNoPendingKey: activate sin pending que promover.
	ErrNoPendingKey = errors.New("no_pending_key")
)

// RingState es el estado completo del key ring.
//
// Ownership: el ring es dueño exclusivo de los tres slots; ningún otro
// componente los muta directamente. Los tres se persisten como un único
// documento con replace atómico, así una transición nunca se observa a
// medias (ver RingStore).
type RingState struct {
	Active   *SigningKey // requerida post-init, con material privado
	Pending  *SigningKey // opcional, completa (nunca a medias)
	Retiring *SigningKey // opcional, solo material público
}

// Validate chequea los invariantes del ring para un servicio en marcha.
// La ausencia de active es ErrNoActiveKey (fatal al boot).
func (s *RingState) Validate() error {
	if s == nil || s.Active == nil {
		return ErrNoActiveKey
	}
	if !s.Active.HasPrivate() {
		return fmt.Errorf("active key %s: missing private material", s.Active.KID)
	}
	if s.Pending != nil && !s.Pending.HasPrivate() {
		return fmt.Errorf("pending key %s: half-written (missing private material)", s.Pending.KID)
	}
	if s.Retiring != nil && s.Retiring.HasPrivate() {
		return fmt.Errorf("retiring key %s: must not carry private material", s.Retiring.KID)
	}

	// kids distintos entre slots (por construcción; una colisión acá es un
	// bug de diseño, no algo a manejar en runtime)
	seen := map[string]string{}
	for slot, k := range map[string]*SigningKey{
		SlotActive:   s.Active,
		SlotPending:  s.Pending,
		SlotRetiring: s.Retiring,
	} {
		if k == nil {
			continue
		}
		if prev, dup := seen[k.KID]; dup {
			return fmt.Errorf("kid %s present in slots %s and %s", k.KID, prev, slot)
		}
		seen[k.KID] = slot
	}
	return nil
}

// IsEmpty indica un ring recién creado, sin bootstrap todavía.
func (s *RingState) IsEmpty() bool {
	return s == nil || (s.Active == nil && s.Pending == nil && s.Retiring == nil)
}

// Lookup busca una clave por kid en cualquier slot (para verificación).
func (s *RingState) Lookup(kid string) *SigningKey {
	if s == nil {
		return nil
	}
	for _, k := range []*SigningKey{s.Active, s.Pending, s.Retiring} {
		if k != nil && k.KID == kid {
			return k
		}
	}
	return nil
}
