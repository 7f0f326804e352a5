package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/absento/core/proof"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "proofs/s1/a.pdf", want: "proofs/s1/a.pdf"},
		{key: "/proofs/s1/a.pdf", want: "proofs/s1/a.pdf"},
		{key: "../etc/passwd", wantErr: true},
		{key: "proofs/../../x", wantErr: true},
		{key: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cleanKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("cleanKey() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("cleanKey() got = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDisk(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewDisk(root)
	require.NoError(t, err)

	data := []byte("%PDF-1.4 certificate")
	ref, err := store.Save(ctx, "proofs/s1/abc.pdf", proof.Upload{Name: "dir/certificat.pdf", Data: data})
	require.NoError(t, err)
	assert.Equal(t, proof.FileRef{Key: "proofs/s1/abc.pdf", Name: "certificat.pdf", ContentType: "application/pdf", Size: int64(len(data))}, ref)

	got, err := os.ReadFile(filepath.Join(root, "proofs", "s1", "abc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, store.Delete(ctx, ref.Key))
	_, err = os.Stat(filepath.Join(root, "proofs", "s1", "abc.pdf"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(ctx, ref.Key), "deleting twice")
	_, err = store.Save(ctx, "../escape.pdf", proof.Upload{Data: data})
	assert.Equal(t, ErrInvalidKey, err)
}

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	bodies  [][]byte
	deletes []*s3.DeleteObjectInput
	err     error
}

func (f *fakeS3) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &manager.UploadOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletes = append(f.deletes, in)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{}
	store := &S3{bucket: "proofs-bucket", uploader: fake, deleter: fake}

	ref, err := store.Save(ctx, "proofs/s1/abc.png", proof.Upload{Name: "scan.png", ContentType: "image/png", Data: []byte("png")})
	require.NoError(t, err)
	assert.Equal(t, "image/png", ref.ContentType)
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "proofs-bucket", *fake.puts[0].Bucket)
	assert.Equal(t, "proofs/s1/abc.png", *fake.puts[0].Key)
	assert.Equal(t, []byte("png"), fake.bodies[0])

	require.NoError(t, store.Delete(ctx, ref.Key))
	require.Len(t, fake.deletes, 1)
	assert.Equal(t, "proofs/s1/abc.png", *fake.deletes[0].Key)

	fake.err = errors.New("access denied")
	_, err = store.Save(ctx, "proofs/s1/b.png", proof.Upload{Data: []byte("x")})
	assert.Error(t, err)
}
