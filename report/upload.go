package report

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// Uploader mirrors finished artifacts to a cloud bucket. A nil bucket
// handle disables uploads, so callers write one code path.
type Uploader struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

// NewUploader connects to the named bucket using ambient credentials.
// An empty bucket name returns a disabled uploader and no error.
func NewUploader(ctx context.Context, bucketName, prefix string) (*Uploader, error) {
	u := &Uploader{prefix: prefix}
	if bucketName == "" {
		return u, nil
	}
	gcpClient, err := google.DefaultClient(ctx, storage.ScopeFullControl)
	if err != nil {
		return nil, errors.Wrap(err, "gcp credentials")
	}
	u.client, err = storage.NewClient(ctx, option.WithHTTPClient(gcpClient))
	if err != nil {
		return nil, errors.Wrap(err, "storage client")
	}
	u.bucket = u.client.Bucket(bucketName)
	return u, nil
}

func (u *Uploader) Close() error {
	if u.client == nil {
		return nil
	}
	return u.client.Close()
}

// UploadFile copies one local artifact into the bucket under the
// uploader's prefix, keyed by base name.
func (u *Uploader) UploadFile(ctx context.Context, localPath string) error {
	if u.bucket == nil {
		return nil
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrap(err, "read artifact")
	}
	name := path.Join(u.prefix, filepath.Base(localPath))
	w := u.bucket.Object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errors.Wrapf(err, "upload %s", name)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "finalize %s", name)
	}
	log.WithFields(log.Fields{"object": name, "bytes": len(data)}).Info("uploaded artifact")
	return nil
}
