package filestore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/absento/core/proof"
)

type Disk struct {
	root string
}

var _ proof.FileStore = (*Disk)(nil) // interface compliance check

func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating file store root")
	}
	return &Disk{root: root}, nil
}

func (d *Disk) Save(_ context.Context, key string, upload proof.Upload) (proof.FileRef, error) {
	k, err := cleanKey(key)
	if err != nil {
		return proof.FileRef{}, err
	}
	fp := filepath.Join(d.root, filepath.FromSlash(k))
	if err = os.MkdirAll(filepath.Dir(fp), 0o750); err != nil {
		return proof.FileRef{}, errors.Wrap(err, "creating file directory")
	}
	if err = os.WriteFile(fp, upload.Data, 0o640); err != nil {
		return proof.FileRef{}, errors.Wrap(err, "writing file")
	}
	return fileRef(k, upload), nil
}

// Delete is a no-op for missing files.
func (d *Disk) Delete(_ context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err = os.Remove(filepath.Join(d.root, filepath.FromSlash(k))); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting file")
	}
	return nil
}
