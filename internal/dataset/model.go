package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// Model is the optional serialized scoring artifact. It is carried as opaque
// bytes; churn risk is scored by the risk package's heuristic and the artifact
// is only reported as available.
type Model struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Digest   string    `json:"sha256"`
	LoadedAt time.Time `json:"loaded_at"`
	data     []byte
}

// Bytes returns the raw artifact.
func (m *Model) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.data
}

// LoadModel reads the artifact at path. A missing file yields (nil, nil).
func LoadModel(path string) (*Model, error) {
	if path == "" {
		return nil, nil
	}
	// #nosec G304 - model path comes from operator configuration
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}
	sum := sha256.Sum256(data)
	return &Model{
		Path:     path,
		Size:     int64(len(data)),
		Digest:   hex.EncodeToString(sum[:]),
		LoadedAt: time.Now(),
		data:     data,
	}, nil
}
