package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する。
// 一時ファイルに書き出してからリネームするため、途中で失敗しても既存のファイルは壊れない。
//
// 使用例:
//
//	forest := ensemble.NewRandomForestClassifier()
//	// ... モデルの学習 ...
//	err := model.SaveModel(forest, "model.gob")
func SaveModel(model interface{}, filename string) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "failed to create file for %s", filename)
	}
	defer os.Remove(tmp.Name())

	if err := SaveModelToWriter(model, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrapf(err, "failed to move model into %s", filename)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む。ファイルが存在しない場合は
// errors.ErrArtifactNotFound を返す。
//
// 使用例:
//
//	forest := &ensemble.RandomForestClassifier{}
//	err := model.LoadModel(forest, "model.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if os.IsNotExist(err) {
		return errors.Wrapf(errors.ErrArtifactNotFound, "%s", filename)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", filename)
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
