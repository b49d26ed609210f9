package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/crypto/blake2b"
)

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedURL string, err error)
}

const publicHost = "storage.googleapis.com"

// SegmentObjectName builds a content addressed key for a segment upload:
// recordings/<run>/<index>-<digest><ext>. Re-uploading identical bytes for the
// same run lands on the same object.
func SegmentObjectName(runID string, index int, ext string, content []byte) string {
	sum := blake2b.Sum256(content)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("recordings/%s/%03d-%s%s", runID, index, hex.EncodeToString(sum[:8]), ext)
}

// SourceObjectName is the key of the original file kept for re-analysis.
func SourceObjectName(runID, fileName string) string {
	fileName = strings.TrimSpace(fileName)
	if i := strings.LastIndexAny(fileName, `/\`); i >= 0 {
		fileName = fileName[i+1:]
	}
	if fileName == "" {
		fileName = "source"
	}
	return fmt.Sprintf("recordings/%s/source/%s", runID, fileName)
}

// PublicURL is the https form of a bucket object.
func PublicURL(bucket, objectName string) string {
	return fmt.Sprintf("https://%s/%s/%s", publicHost, bucket, objectName)
}

// GSURI maps a public storage URL (or an existing gs:// URI) to gs://bucket/object.
// ok is false for URLs outside cloud storage.
func GSURI(raw string) (string, bool) {
	if strings.HasPrefix(raw, "gs://") {
		return raw, true
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host != publicHost {
		return "", false
	}
	path := strings.TrimPrefix(u.Path, "/")
	if !strings.Contains(path, "/") {
		return "", false
	}
	return "gs://" + path, true
}
