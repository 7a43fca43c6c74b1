// Package store persists device records as a single JSON snapshot,
// encrypted at rest when a secret is configured (records carry peripheral
// session passwords). An empty path keeps the store memory-only.
package store

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mr-tron/base58/base58"

	"wristlink/go-fleet/internal/securestore"
	"wristlink/go-fleet/pkg/models"
)

const snapshotVersion = 1

var ErrInvalidSnapshot = errors.New("store: device snapshot payload is invalid")

type snapshot struct {
	Version int                       `json:"version"`
	Devices map[string]*models.Device `json:"devices"`
}

// FileStore implements the fleet DeviceStore port. Records are held in
// memory keyed by a derived record key and written out as one snapshot on
// Persist. The store keeps the same *Device pointers it hands out, so
// field updates made by the fleet core are captured by the next Persist.
type FileStore struct {
	mu      sync.Mutex
	path    string
	secret  string
	devices map[string]*models.Device
}

func NewFileStore(path, secret string) *FileStore {
	return &FileStore{
		path:    strings.TrimSpace(path),
		secret:  strings.TrimSpace(secret),
		devices: make(map[string]*models.Device),
	}
}

// RecordKey derives the stable snapshot key for a peripheral address.
func RecordKey(address string) string {
	h := sha256.Sum256([]byte(models.NormalizeAddress(address)))
	return "dev1" + base58.Encode(h[:])
}

// LoadAll reads the snapshot from disk (decrypting when a secret is set,
// falling back to a plaintext parse for pre-encryption files) and returns
// the records. A missing file is an empty fleet, not an error.
func (s *FileStore) LoadAll() ([]*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != "" {
		var plaintext []byte
		var err error
		if s.secret != "" {
			plaintext, err = securestore.ReadDecryptedFile(s.path, s.secret)
			if errors.Is(err, securestore.ErrLegacyData) {
				plaintext, err = os.ReadFile(s.path)
			}
		} else {
			plaintext, err = os.ReadFile(s.path)
		}
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// first run
		case err != nil:
			return nil, err
		default:
			var snap snapshot
			if err := json.Unmarshal(plaintext, &snap); err != nil {
				return nil, ErrInvalidSnapshot
			}
			if snap.Version != snapshotVersion {
				return nil, ErrInvalidSnapshot
			}
			s.devices = snap.Devices
			if s.devices == nil {
				s.devices = make(map[string]*models.Device)
			}
		}
	}

	out := make([]*models.Device, 0, len(s.devices))
	for _, dev := range s.devices {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool {
		return models.NormalizeAddress(out[i].Address) < models.NormalizeAddress(out[j].Address)
	})
	return out, nil
}

// Add registers a device record. Adding a record for an address that is
// already present replaces it.
func (s *FileStore) Add(dev *models.Device) error {
	if dev == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[RecordKey(dev.Address)] = dev
	return nil
}

// Delete removes a device record; absent records are a no-op.
func (s *FileStore) Delete(dev *models.Device) error {
	if dev == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, RecordKey(dev.Address))
	return nil
}

// Persist writes the snapshot to disk. Memory-only stores persist nothing.
func (s *FileStore) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	snap := snapshot{Version: snapshotVersion, Devices: s.devices}
	if s.secret != "" {
		return securestore.WriteEncryptedJSON(s.path, s.secret, snap)
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, payload, 0o600)
}
