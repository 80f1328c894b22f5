// Package keys implementa el ciclo de vida de las signing keys del issuer:
// generación RSA, el key ring de tres slots (active/pending/retiring) y las
// transiciones de rotación sobre un store con escritura atómica.
package keys

import (
	"crypto/rsa"
	"time"
)

// Slot names del key ring.
const (
	SlotActive   = "active"
	SlotPending  = "pending"
	SlotRetiring = "retiring"
)

const (
	// KeyType es el tipo JWK de todas las claves emitidas.
	KeyType = "RSA"
	// Algorithm es el alg de firma fijo del issuer.
	Algorithm = "RS256"
)

// SigningKey es una clave de firma RSA con su metadata de publicación.
// Private puede ser nil: toda clave que cruza al slot retiring o al JWKS
// viaja solo con material público (ver ExtractPublic).
type SigningKey struct {
	Kty       string
	Alg       string
	KID       string
	CreatedAt time.Time // truncado a la hora, UTC

	Public  *rsa.PublicKey
	Private *rsa.PrivateKey
}

// HasPrivate indica si la clave conserva material privado.
func (k *SigningKey) HasPrivate() bool {
	return k != nil && k.Private != nil
}

// ExtractPublic devuelve una copia reteniendo solo
// {kty, alg, kid, created_at, modulus, exponent}.
//
// Esta proyección es el único camino válido hacia el slot retiring y hacia
// cualquier salida JWKS; nunca pasar un SigningKey completo por ese borde.
func ExtractPublic(k *SigningKey) *SigningKey {
	if k == nil {
		return nil
	}
	return &SigningKey{
		Kty:       k.Kty,
		Alg:       k.Alg,
		KID:       k.KID,
		CreatedAt: k.CreatedAt,
		Public:    k.Public,
	}
}
