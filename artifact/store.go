// Package artifact persists the fitted model, the fitted scaler and a run
// manifest. Two backends are provided: a directory of files and a single
// bbolt database.
package artifact

import (
	"encoding/json"
	"time"

	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

// Well-known artifact names.
const (
	ModelName    = "model"
	ScalerName   = "scaler"
	ManifestName = "manifest"
)

// Backend names accepted by Open.
const (
	BackendFile = "file"
	BackendBolt = "bolt"
)

// Store saves and loads named artifacts. Models and scalers are gob
// encoded; a *Manifest is always stored as JSON. Load returns an error
// matching errors.ErrArtifactNotFound when name was never saved.
type Store interface {
	Save(name string, v any) error
	Load(name string, v any) error
	// List returns the saved artifact names in sorted order.
	List() ([]string, error)
	Close() error
}

// Manifest describes one pipeline run and the artifacts it produced.
type Manifest struct {
	CreatedAt        time.Time              `json:"created_at"`
	SelectedFeatures []string               `json:"selected_features"`
	Classes          []string               `json:"classes"`
	RandomState      int64                  `json:"random_state"`
	TrainSamples     int                    `json:"train_samples"`
	TestSamples      int                    `json:"test_samples"`
	Accuracy         float64                `json:"accuracy"`
	ModelParams      map[string]interface{} `json:"model_params,omitempty"`
	Artifacts        []string               `json:"artifacts"`
}

// Open returns the Store for backend rooted at path. For BackendFile path
// is a directory, for BackendBolt a database file.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendFile:
		return NewFileStore(path)
	case BackendBolt:
		return NewBoltStore(path)
	default:
		return nil, errors.NewValidationError("store.backend", "must be 'file' or 'bolt'", backend)
	}
}

func isManifest(v any) bool {
	switch v.(type) {
	case *Manifest, Manifest:
		return true
	}
	return false
}

func encodeManifest(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode manifest")
	}
	return data, nil
}

func decodeManifest(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "failed to decode manifest")
	}
	return nil
}

func validName(name string) error {
	if name == "" {
		return errors.NewValidationError("name", "artifact name cannot be empty", name)
	}
	for _, r := range name {
		if r == '/' || r == '\\' || r == '.' {
			return errors.NewValidationError("name", "artifact name must not contain path separators or dots", name)
		}
	}
	return nil
}
