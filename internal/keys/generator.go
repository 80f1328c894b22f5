package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// MinRSABits es el mínimo aceptado para el módulo RSA.
const MinRSABits = 2048

// kidHashLen: caracteres hex del hash del módulo incluidos en el kid.
const kidHashLen = 16

// Generator produce signing keys nuevas.
// La generación RSA es CPU-bound (vale correrla fuera del request path);
// el único error posible es fallo de la fuente de entropía, que es fatal
// para el caller.
type Generator struct {
	bits int
	now  func() time.Time
}

// NewGenerator crea un Generator. bits < MinRSABits se eleva al mínimo.
func NewGenerator(bits int) *Generator {
	if bits < MinRSABits {
		bits = MinRSABits
	}
	return &Generator{bits: bits, now: time.Now}
}

// Generate produce un keypair RSA nuevo con kid derivado y created_at
// truncado a la hora (no filtra el momento exacto de generación).
func (g *Generator) Generate() (*SigningKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, g.bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa keypair: %w", err)
	}

	now := g.now().UTC()
	return &SigningKey{
		Kty:       KeyType,
		Alg:       Algorithm,
		KID:       KeyID(now, priv.N),
		CreatedAt: now.Truncate(time.Hour),
		Public:    &priv.PublicKey,
		Private:   priv,
	}, nil
}

// KeyID deriva el kid: fecha ISO (precisión día) + "-" + hash truncado del
// módulo público. Estable por clave, resistente a colisiones, y no filtra
// la hora exacta de creación.
func KeyID(now time.Time, modulus *big.Int) string {
	sum := sha256.Sum256(modulus.Bytes())
	return now.UTC().Format("2006-01-02") + "-" + hex.EncodeToString(sum[:])[:kidHashLen]
}
