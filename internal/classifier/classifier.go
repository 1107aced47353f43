// Package classifier runs a pretrained light-curve model over a features table.
package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
	"github.com/mwvgroup/pittgoogle-user/internal/features"
)

// DeviceCPU is the only execution device the service uses.
const DeviceCPU = "cpu"

// Classifier produces class probabilities for one object's light curve.
type Classifier interface {
	Classify(ctx context.Context, t *features.Table) (*Prediction, error)
	Name() string
}

// Prediction is a classifier's raw output.
type Prediction struct {
	Probabilities []float64
	Aux           map[string]any
	// FromCache is set when the prediction was served by Cached.
	FromCache bool
}

// Artifact describes a loaded model file or directory.
type Artifact struct {
	Path   string
	Size   int64
	Digest string
}

// Model is a reference to a pretrained artifact on disk. The artifact is
// read once per process, on first use.
type Model struct {
	Path   string
	Family string
	Device string

	load func() (Artifact, error)
}

// NewModel returns a Model for the artifact at path.
func NewModel(path, family string) *Model {
	m := &Model{Path: path, Family: family, Device: DeviceCPU}
	m.load = sync.OnceValues(m.read)
	return m
}

// Artifact returns the artifact's digest, reading it on the first call.
// A missing or unreadable artifact yields ErrClassificationUnavailable on every call.
func (m *Model) Artifact() (Artifact, error) {
	return m.load()
}

func (m *Model) read() (Artifact, error) {
	info, err := os.Stat(m.Path)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: model %s: %v", events.ErrClassificationUnavailable, m.Family, err)
	}

	h := sha256.New()
	var size int64
	if !info.IsDir() {
		if size, err = hashFile(h, m.Path); err != nil {
			return Artifact{}, fmt.Errorf("%w: model %s: %v", events.ErrClassificationUnavailable, m.Family, err)
		}
	} else {
		err = filepath.WalkDir(m.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(m.Path, path)
			if err != nil {
				return err
			}
			io.WriteString(h, filepath.ToSlash(rel))
			n, err := hashFile(h, path)
			size += n
			return err
		})
		if err != nil {
			return Artifact{}, fmt.Errorf("%w: model %s: %v", events.ErrClassificationUnavailable, m.Family, err)
		}
	}

	return Artifact{Path: m.Path, Size: size, Digest: hex.EncodeToString(h.Sum(nil))}, nil
}

func hashFile(w io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

// checkProbabilities validates a classifier output of length want.
func checkProbabilities(p []float64, want int) error {
	if len(p) != want {
		return fmt.Errorf("%w: got %d probabilities, want %d", events.ErrClassificationUnavailable, len(p), want)
	}
	for i, v := range p {
		if !(v >= 0 && v <= 1) {
			return fmt.Errorf("%w: probability %d is %v", events.ErrClassificationUnavailable, i, v)
		}
	}
	return nil
}
