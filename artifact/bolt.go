package artifact

import (
	"bytes"
	"time"

	"go.etcd.io/bbolt"

	"github.com/YuminosukeSato/thyroidml/core/model"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

const artifactsBucket = "artifacts"

// BoltStore keeps artifacts as values of the "artifacts" bucket of a bbolt
// database, keyed by name.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open artifact database %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(artifactsBucket)); err != nil {
			return errors.Wrap(err, "create artifacts bucket")
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Save implements Store.
func (s *BoltStore) Save(name string, v any) error {
	if err := validName(name); err != nil {
		return err
	}

	var data []byte
	if isManifest(v) {
		var err error
		if data, err = encodeManifest(v); err != nil {
			return err
		}
	} else {
		var buf bytes.Buffer
		if err := model.SaveModelToWriter(v, &buf); err != nil {
			return err
		}
		data = buf.Bytes()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(artifactsBucket)).Put([]byte(name), data)
	})
}

// Load implements Store.
func (s *BoltStore) Load(name string, v any) error {
	if err := validName(name); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		// dataはトランザクション内でのみ有効
		data := tx.Bucket([]byte(artifactsBucket)).Get([]byte(name))
		if data == nil {
			return errors.Wrapf(errors.ErrArtifactNotFound, "%s", name)
		}
		if isManifest(v) {
			return decodeManifest(data, v)
		}
		return model.LoadModelFromReader(v, bytes.NewReader(data))
	})
}

// List implements Store.
func (s *BoltStore) List() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(artifactsBucket)).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// Close implements Store.
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
