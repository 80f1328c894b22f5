// Package jwks proyecta el key ring al documento público de claves (RFC 7517).
package jwks

import (
	"encoding/base64"
	"encoding/json"
	"math/big"

	"github.com/arku/fxa/internal/keys"
)

// JWK es una clave pública RSA en formato wire. Exactamente los campos
// {kty, alg, kid, created_at, use, n, e}; nada privado llega acá.
type JWK struct {
	Kty       string `json:"kty"`
	Alg       string `json:"alg"`
	KID       string `json:"kid"`
	CreatedAt int64  `json:"created_at"` // unix seconds, ya truncado a la hora
	Use       string `json:"use"`
	N         string `json:"n"`
	E         string `json:"e"`
}

// Document es el key set publicado: { "keys": [...] }.
type Document struct {
	Keys []JWK `json:"keys"`
}

// Publish proyecta el ring en orden fijo: active, pending (si hay),
// retiring (si hay). Cada entrada pasa por ExtractPublic aunque el slot ya
// sea público: un bug que filtre un campo privado a retiring no debe llegar
// a los callers.
//
// Un ring con solo active es válido y produce un set de una entrada.
func Publish(ring *keys.RingState) Document {
	doc := Document{Keys: make([]JWK, 0, 3)}
	if ring == nil {
		return doc
	}
	for _, k := range []*keys.SigningKey{ring.Active, ring.Pending, ring.Retiring} {
		if k == nil {
			continue
		}
		doc.Keys = append(doc.Keys, fromKey(keys.ExtractPublic(k)))
	}
	return doc
}

// PublishJSON serializa el documento publicado.
func PublishJSON(ring *keys.RingState) ([]byte, error) {
	return json.Marshal(Publish(ring))
}

func fromKey(k *keys.SigningKey) JWK {
	return JWK{
		Kty:       k.Kty,
		Alg:       k.Alg,
		KID:       k.KID,
		CreatedAt: k.CreatedAt.Unix(),
		Use:       "sig",
		N:         encodeBigInt(k.Public.N),
		E:         encodeBigInt(big.NewInt(int64(k.Public.E))),
	}
}

// encodeBigInt: base64url sin padding de los bytes big-endian (RFC 7518 §6.3).
func encodeBigInt(v *big.Int) string {
	return base64.RawURLEncoding.EncodeToString(v.Bytes())
}
