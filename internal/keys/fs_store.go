package keys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/arku/fxa/internal/util/atomicwrite"
)

// ringFile es el documento único del ring dentro del keys dir.
const ringFile = "ring.json"

// Nombres del layout legacy de tres archivos (un archivo por slot, sin
// atomicidad entre ellos). Se leen una sola vez para migrar; no se escriben.
var legacySlotFiles = [3]string{"active.json", "pending.json", "retiring.json"}

// FSRingStore persiste el ring como un único ring.json con replace atómico
// (write tmp → fsync → rename). Reemplaza el layout viejo de tres archivos
// por slot, cuya actualización en activate podía observarse a medias.
type FSRingStore struct {
	dir       string
	masterKey []byte // opcional; cifra privadas at-rest
}

// NewFSRingStore crea el store sobre dir. masterKey puede ser nil (dev).
func NewFSRingStore(dir string, masterKey []byte) (*FSRingStore, error) {
	if dir == "" {
		return nil, errors.New("fs ring store: keys dir required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create keys directory: %w", err)
	}
	return &FSRingStore{dir: dir, masterKey: masterKey}, nil
}

// Load lee ring.json. Si no existe, intenta consolidar el layout legacy;
// si tampoco hay, devuelve un ring vacío (el bootstrap lo llena).
func (s *FSRingStore) Load(ctx context.Context) (*RingState, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, ringFile))
	if errors.Is(err, fs.ErrNotExist) {
		return s.loadLegacy()
	}
	if err != nil {
		return nil, fmt.Errorf("read ring: %w", err)
	}
	return decodeRing(data, s.masterKey)
}

// Save reemplaza ring.json de forma atómica.
func (s *FSRingStore) Save(ctx context.Context, state *RingState) error {
	data, err := encodeRing(state, s.masterKey)
	if err != nil {
		return err
	}
	if err := atomicwrite.AtomicWriteFile(filepath.Join(s.dir, ringFile), data, 0600); err != nil {
		return fmt.Errorf("write ring: %w", err)
	}
	return nil
}

// loadLegacy consolida los tres archivos por-slot del layout viejo en un
// RingState. Solo lectura: la primera Save posterior escribe ring.json y el
// layout viejo queda como resto histórico.
func (s *FSRingStore) loadLegacy() (*RingState, error) {
	var doc ringFileData
	slots := [3]**keyFileData{&doc.Active, &doc.Pending, &doc.Retiring}
	found := false

	for i, name := range legacySlotFiles {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read legacy %s: %w", name, err)
		}
		var kd keyFileData
		if err := json.Unmarshal(data, &kd); err != nil {
			return nil, fmt.Errorf("unmarshal legacy %s: %w", name, err)
		}
		*slots[i] = &kd
		found = true
	}

	if !found {
		return &RingState{}, nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return decodeRing(raw, s.masterKey)
}
