package storage

import (
	"context"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/archstudio/intake/internal/utils"
)

type GCSUploader struct {
	client *gcs.Client
	bucket string
	public bool
}

// NewGCSUploader opens a client for bucket. When public is set every object is
// made world readable so the browser can play it back directly.
func NewGCSUploader(ctx context.Context, bucket string, public bool, opts ...option.ClientOption) (*GCSUploader, error) {
	const op = "GCSUploader.New"
	if bucket == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "bucket is required", nil)
	}
	c, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to create storage client", err)
	}
	return &GCSUploader{client: c, bucket: bucket, public: public}, nil
}

func (u *GCSUploader) Close() error { return u.client.Close() }

func (u *GCSUploader) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	const op = "GCSUploader.Upload"
	obj := u.client.Bucket(u.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", utils.E(utils.CodeUnavailable, op, "failed to write object", err)
	}
	if err := w.Close(); err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to finalize object", err)
	}

	if u.public {
		if err := obj.ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
			return "", utils.E(utils.CodeUnavailable, op, "failed to publish object", err)
		}
	}

	return PublicURL(u.bucket, objectName), nil
}
