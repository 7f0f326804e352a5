// Package filestore keeps the files attached to proofs.
package filestore

import (
	"net/http"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/absento/core/proof"
)

var ErrInvalidKey = errors.New("invalid file key")

// cleanKey rejects keys escaping the store root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.TrimSpace(key))[1:]
	if k == "" || k != strings.TrimPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	return k, nil
}

func fileRef(key string, upload proof.Upload) proof.FileRef {
	ct := upload.ContentType
	if ct == "" {
		ct = http.DetectContentType(upload.Data)
	}
	return proof.FileRef{
		Key:         key,
		Name:        path.Base(upload.Name),
		ContentType: ct,
		Size:        int64(len(upload.Data)),
	}
}
