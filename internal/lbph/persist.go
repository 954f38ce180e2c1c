package lbph

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes the trained model to path using gob encoding.
func (m *Model) Save(path string) error {
	if !m.Trained() {
		return ErrNoSamples
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close model file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads a model previously written by Save.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m Model
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", path, err)
	}
	if len(m.Labels) != len(m.Histograms) {
		return nil, fmt.Errorf("model %s is corrupt: %d labels for %d histograms", path, len(m.Labels), len(m.Histograms))
	}
	return &m, nil
}

// Fingerprint returns a hex SHA-256 over the labels and pixels of samples.
// Two sample sets with the same fingerprint train identical models.
func Fingerprint(samples []Sample) string {
	h := sha256.New()
	var buf [8]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(s.Label)))
		h.Write(buf[:])
		if s.Image == nil {
			continue
		}
		b := s.Image.Bounds()
		binary.LittleEndian.PutUint32(buf[:4], uint32(b.Dx()))
		binary.LittleEndian.PutUint32(buf[4:], uint32(b.Dy()))
		h.Write(buf[:])
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := s.Image.PixOffset(b.Min.X, y)
			h.Write(s.Image.Pix[off : off+b.Dx()])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TrainCached trains a model from samples, reusing a model stored in dir under the
// fingerprint of samples when one exists. An empty dir disables caching.
func TrainCached(dir string, samples []Sample) (*Model, bool, error) {
	if len(samples) == 0 {
		return nil, false, ErrNoSamples
	}

	var path string
	if dir != "" {
		path = filepath.Join(dir, "lbph-"+Fingerprint(samples)[:16]+".gob")
		if m, err := Load(path); err == nil && len(m.Labels) == len(samples) {
			return m, true, nil
		}
	}

	m := New()
	if err := m.Train(samples); err != nil {
		return nil, false, err
	}
	if path != "" {
		if err := m.Save(path); err != nil {
			return m, false, fmt.Errorf("model trained but not cached: %w", err)
		}
	}
	return m, false, nil
}
