package artifact

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/YuminosukeSato/thyroidml/core/model"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

const (
	gobExt  = ".gob"
	jsonExt = ".json"
)

// FileStore keeps every artifact in its own file under Dir: "<name>.gob"
// for gob values and "<name>.json" for the manifest.
type FileStore struct {
	Dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create artifact directory %s", dir)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(name string, v any) string {
	if isManifest(v) {
		return filepath.Join(s.Dir, name+jsonExt)
	}
	return filepath.Join(s.Dir, name+gobExt)
}

// Save implements Store.
func (s *FileStore) Save(name string, v any) error {
	if err := validName(name); err != nil {
		return err
	}
	if !isManifest(v) {
		return model.SaveModel(v, s.path(name, v))
	}

	data, err := encodeManifest(v)
	if err != nil {
		return err
	}
	tmp := s.path(name, v) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, s.path(name, v)); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to move manifest into %s", s.path(name, v))
	}
	return nil
}

// Load implements Store.
func (s *FileStore) Load(name string, v any) error {
	if err := validName(name); err != nil {
		return err
	}
	if !isManifest(v) {
		return model.LoadModel(v, s.path(name, v))
	}

	data, err := os.ReadFile(s.path(name, v))
	if os.IsNotExist(err) {
		return errors.Wrapf(errors.ErrArtifactNotFound, "%s", name)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", s.path(name, v))
	}
	return decodeManifest(data, v)
}

// List implements Store.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", s.Dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != gobExt && ext != jsonExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}

// Close implements Store. A FileStore holds no resources.
func (s *FileStore) Close() error { return nil }
