package storage

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/archstudio/intake/internal/utils"
)

// LocalUploader stores objects under a directory and returns file:// URLs.
// Used by the CLI when no bucket is configured.
type LocalUploader struct {
	root string
}

func NewLocalUploader(root string) *LocalUploader { return &LocalUploader{root: root} }

func (u *LocalUploader) Upload(ctx context.Context, objectName string, _ string, r io.Reader) (string, error) {
	const op = "LocalUploader.Upload"
	if err := ctx.Err(); err != nil {
		return "", utils.E(utils.CodeCancelled, op, "context done", err)
	}
	dest := filepath.Join(u.root, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to create dir", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to create file", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", utils.E(utils.CodeInternal, op, "failed to write file", err)
	}
	if err := f.Close(); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to close file", err)
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		abs = dest
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
