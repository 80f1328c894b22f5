// Package keywrap cifra material privado de signing keys at-rest con AES-256-GCM.
//
// El formato en disco es base64(nonce)|base64(ciphertext), igual que el resto
// de secretos del sistema. La master key se pasa explícita (viene de config,
// típicamente SIGNING_MASTER_KEY en base64); acá no se leen env vars.
package keywrap

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nonceSizeGCM      = 12  // AES-GCM nonce recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

var (
	ErrBadKeyLength  = errors.New("keywrap: master key must be 32 bytes")
	ErrBadCiphertext = errors.New("keywrap: malformed ciphertext")
)

// ParseMasterKey decodifica una master key base64 y valida su longitud.
func ParseMasterKey(b64 string) ([]byte, error) {
	k, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("keywrap: decode master key: %w", err)
	}
	if len(k) != requiredKeyLength {
		return nil, ErrBadKeyLength
	}
	return k, nil
}

// Seal cifra plaintext y devuelve base64(nonce)|base64(ciphertext).
func Seal(masterKey, plaintext []byte) (string, error) {
	aesgcm, err := newGCM(masterKey)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("keywrap: nonce random: %w", err)
	}

	ct := aesgcm.Seal(nil, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Open descifra un valor producido por Seal.
func Open(masterKey []byte, enc string) ([]byte, error) {
	parts := strings.SplitN(enc, sep, 2)
	if len(parts) != 2 {
		return nil, ErrBadCiphertext
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSizeGCM {
		return nil, ErrBadCiphertext
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrBadCiphertext
	}

	aesgcm, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}
	pt, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("keywrap: open: %w", err)
	}
	return pt, nil
}

func newGCM(masterKey []byte) (cipher.AEAD, error) {
	if len(masterKey) != requiredKeyLength {
		return nil, ErrBadKeyLength
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("keywrap: aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keywrap: cipher.NewGCM: %w", err)
	}
	return aesgcm, nil
}
