package pipeline

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/archstudio/intake/internal/i18n"
	"github.com/archstudio/intake/internal/media"
	"github.com/archstudio/intake/internal/providers/stt"
	"github.com/archstudio/intake/internal/utils"
)

// transcribe runs the speech provider on every segment in index order. A
// failing segment is logged and skipped; the run fails only when no segment
// produced text.
func (p *Pipeline) transcribe(ctx context.Context, r *run, segments []media.Segment) (string, error) {
	const op = "Pipeline.transcribe"
	if p.transcriber == nil {
		return "", utils.E(utils.CodeInternal, op, "transcriber is not configured", nil)
	}

	total := len(segments)
	parts := make([]string, 0, total)
	for i, seg := range segments {
		if r.token.Cancelled() {
			return "", utils.E(utils.CodeCancelled, op, "cancelled", utils.ErrCancelled)
		}
		r.report(Progress{
			Stage:   StageTranscribing,
			Current: i,
			Total:   total,
			Percent: percent(float64(i), total),
			Message: i18n.T(r.in.Locale, i18n.KeyStageTranscribing, i+1, total),
		})

		res, err := p.transcriber.Transcribe(ctx, stt.Request{
			URL:          seg.RemoteURL,
			MimeType:     seg.MimeType,
			SampleRateHz: seg.SampleRateHz,
			Language:     r.in.Language,
		})
		text := strings.TrimSpace(res.Text)
		if err != nil || text == "" {
			marker := i18n.T(r.in.Locale, i18n.KeySegmentFailed, seg.Index+1)
			entry := r.log.WithField("segment_index", seg.Index)
			if err != nil {
				entry = entry.WithError(err)
			}
			entry.Warn(marker)
			r.report(Progress{Stage: StageTranscribing, Current: i + 1, Total: total, Percent: percent(float64(i+1), total), Message: marker, Level: "warn"})
			r.out.FailedSegments = append(r.out.FailedSegments, seg.Index)
			continue
		}

		parts = append(parts, text)
		r.log.WithFields(logrus.Fields{
			"segment_index": seg.Index,
			"text_length":   len(text),
			"confidence":    res.Confidence,
		}).Debug("segment transcribed")
	}

	if len(parts) == 0 {
		return "", utils.E(utils.CodeFailedPrecondition, op, "every segment failed", utils.ErrNoTranscriptionProduced)
	}
	return strings.Join(parts, " "), nil
}
