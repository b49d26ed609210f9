package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/archstudio/intake/internal/i18n"
	"github.com/archstudio/intake/internal/media"
	"github.com/archstudio/intake/internal/storage"
	"github.com/archstudio/intake/internal/utils"
)

// upload stores every segment in index order with a single attempt each. The
// first failure aborts the run.
func (p *Pipeline) upload(ctx context.Context, r *run, segments []media.Segment) error {
	const op = "Pipeline.upload"
	if p.uploader == nil {
		return utils.E(utils.CodeInternal, op, "uploader is not configured", nil)
	}

	total := len(segments)
	for i := range segments {
		if r.token.Cancelled() {
			return utils.E(utils.CodeCancelled, op, "cancelled", utils.ErrCancelled)
		}
		seg := &segments[i]
		msg := i18n.T(r.in.Locale, i18n.KeyStageUploading, i+1, total, humanize.Bytes(uint64(seg.SizeBytes)))
		r.report(Progress{Stage: StageUploading, Current: i, Total: total, Percent: percent(float64(i)+0.5, total), Message: msg})

		data, err := os.ReadFile(seg.LocalPath)
		if err != nil {
			return utils.E(utils.CodeInternal, op, "failed to read segment", fmt.Errorf("%w: %w", utils.ErrUploadFailed, err))
		}
		name := storage.SegmentObjectName(r.in.RunID, seg.Index, filepath.Ext(seg.LocalPath), data)
		url, err := p.uploader.Upload(ctx, name, seg.MimeType, bytes.NewReader(data))
		if err != nil {
			r.log.WithError(err).WithField("segment_index", seg.Index).Error("segment upload failed")
			return utils.E(utils.CodeUnavailable, op, "segment upload failed", fmt.Errorf("%w: %w", utils.ErrUploadFailed, err))
		}
		seg.RemoteURL = url
		r.log.WithFields(logrus.Fields{"segment_index": seg.Index, "size_bytes": seg.SizeBytes}).Debug("segment uploaded")
		r.report(Progress{Stage: StageUploading, Current: i + 1, Total: total, Percent: percent(float64(i+1), total), Message: msg})
	}
	return nil
}

// audioURL returns the playback URL of the recording. A single segment serves
// as its own playback file; otherwise the original is stored best effort.
func (p *Pipeline) audioURL(ctx context.Context, r *run, segments []media.Segment) string {
	if r.in.AudioURL != "" {
		return r.in.AudioURL
	}
	if len(segments) == 1 || r.in.Source.Path == "" {
		return segments[0].RemoteURL
	}
	f, err := os.Open(r.in.Source.Path)
	if err != nil {
		r.log.WithError(err).Warn("failed to open source for storage")
		return segments[0].RemoteURL
	}
	defer f.Close()
	url, err := p.uploader.Upload(ctx, storage.SourceObjectName(r.in.RunID, filepath.Base(r.in.Source.Path)), r.in.Source.MimeType, f)
	if err != nil {
		r.log.WithError(err).Warn("failed to store original source, using first segment")
		return segments[0].RemoteURL
	}
	return url
}
