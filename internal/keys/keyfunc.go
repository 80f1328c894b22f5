package keys

import (
	"context"
	"errors"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var ErrKIDNotFound = errors.New("kid_not_found")

// Verifier resuelve kid → clave pública contra el ring persistido, para
// callers estilo introspección (resource servers que validan RS256 sin
// pasar por el endpoint JWKS). La firma de tokens no vive acá.
type Verifier struct {
	store RingStore
}

func NewVerifier(store RingStore) *Verifier {
	return &Verifier{store: store}
}

// Keyfunc devuelve un jwt.Keyfunc que acepta cualquier clave publicada del
// ring (active, pending o retiring); sin kid en el header, usa la activa.
// Usar junto con jwt.WithValidMethods([]string{"RS256"}).
func (v *Verifier) Keyfunc(ctx context.Context) jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		ring, err := v.store.Load(ctx)
		if err != nil {
			return nil, err
		}

		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			if ring.Active == nil {
				return nil, ErrNoActiveKey
			}
			return ring.Active.Public, nil
		}
		if k := ring.Lookup(kid); k != nil {
			return k.Public, nil
		}
		return nil, ErrKIDNotFound
	}
}
