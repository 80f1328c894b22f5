package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/arku/fxa/internal/security/keywrap"
)

// keyFileData es la representación JSON de una clave en el documento del ring.
// La privada va en PEM plano (dev) o cifrada con la master key (prod);
// nunca ambos campos a la vez.
type keyFileData struct {
	KID           string    `json:"kid"`
	Algorithm     string    `json:"algorithm"`
	CreatedAt     time.Time `json:"created_at"`
	PublicKeyPEM  string    `json:"public_key_pem"`
	PrivateKeyPEM string    `json:"private_key_pem,omitempty"`
	PrivateKeyEnc string    `json:"private_key_enc,omitempty"`
}

// ringFileData es el documento completo persistido (ring.json / fila pg).
type ringFileData struct {
	Active   *keyFileData `json:"active"`
	Pending  *keyFileData `json:"pending,omitempty"`
	Retiring *keyFileData `json:"retiring,omitempty"`
}

// encodeRing serializa el ring a JSON. masterKey opcional: si está, las
// privadas se cifran at-rest.
func encodeRing(s *RingState, masterKey []byte) ([]byte, error) {
	doc := ringFileData{}
	var err error
	if doc.Active, err = encodeKey(s.Active, masterKey); err != nil {
		return nil, fmt.Errorf("encode active: %w", err)
	}
	if doc.Pending, err = encodeKey(s.Pending, masterKey); err != nil {
		return nil, fmt.Errorf("encode pending: %w", err)
	}
	// retiring se persiste siempre proyectada: aunque un bug dejara material
	// privado en el slot, no llega al disco
	if doc.Retiring, err = encodeKey(ExtractPublic(s.Retiring), masterKey); err != nil {
		return nil, fmt.Errorf("encode retiring: %w", err)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// decodeRing deserializa un documento de ring.
func decodeRing(data []byte, masterKey []byte) (*RingState, error) {
	var doc ringFileData
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal ring: %w", err)
	}
	s := &RingState{}
	var err error
	if s.Active, err = decodeKey(doc.Active, masterKey); err != nil {
		return nil, fmt.Errorf("decode active: %w", err)
	}
	if s.Pending, err = decodeKey(doc.Pending, masterKey); err != nil {
		return nil, fmt.Errorf("decode pending: %w", err)
	}
	if s.Retiring, err = decodeKey(doc.Retiring, masterKey); err != nil {
		return nil, fmt.Errorf("decode retiring: %w", err)
	}
	return s, nil
}

func encodeKey(k *SigningKey, masterKey []byte) (*keyFileData, error) {
	if k == nil {
		return nil, nil
	}
	pubDER, err := x509.MarshalPKIXPublicKey(k.Public)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	kd := &keyFileData{
		KID:          k.KID,
		Algorithm:    k.Alg,
		CreatedAt:    k.CreatedAt,
		PublicKeyPEM: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
	}
	if k.Private != nil {
		privPEM := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(k.Private),
		})
		if len(masterKey) > 0 {
			enc, err := keywrap.Seal(masterKey, privPEM)
			if err != nil {
				return nil, fmt.Errorf("encrypt private key: %w", err)
			}
			kd.PrivateKeyEnc = enc
		} else {
			kd.PrivateKeyPEM = string(privPEM)
		}
	}
	return kd, nil
}

func decodeKey(kd *keyFileData, masterKey []byte) (*SigningKey, error) {
	if kd == nil {
		return nil, nil
	}

	block, _ := pem.Decode([]byte(kd.PublicKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("key %s: invalid public key PEM", kd.KID)
	}
	pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("key %s: parse public key: %w", kd.KID, err)
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key %s: public key is not RSA", kd.KID)
	}

	k := &SigningKey{
		Kty:       KeyType,
		Alg:       kd.Algorithm,
		KID:       kd.KID,
		CreatedAt: kd.CreatedAt,
		Public:    pub,
	}

	var privPEM []byte
	switch {
	case kd.PrivateKeyEnc != "":
		if len(masterKey) == 0 {
			return nil, fmt.Errorf("key %s: encrypted private key but no master key configured", kd.KID)
		}
		privPEM, err = keywrap.Open(masterKey, kd.PrivateKeyEnc)
		if err != nil {
			return nil, fmt.Errorf("key %s: decrypt private key: %w", kd.KID, err)
		}
	case kd.PrivateKeyPEM != "":
		privPEM = []byte(kd.PrivateKeyPEM)
	default:
		return k, nil // clave solo pública (retiring)
	}

	pblock, _ := pem.Decode(privPEM)
	if pblock == nil {
		return nil, fmt.Errorf("key %s: invalid private key PEM", kd.KID)
	}
	priv, err := x509.ParsePKCS1PrivateKey(pblock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("key %s: parse private key: %w", kd.KID, err)
	}
	k.Private = priv
	return k, nil
}
