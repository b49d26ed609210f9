package pipeline

import (
	"context"

	"github.com/archstudio/intake/internal/media"
	"github.com/archstudio/intake/internal/models"
)

// persist stores the recording, its document entry and the checklist. Failures
// are logged and recorded on the outcome; the analysis is already final.
func (p *Pipeline) persist(ctx context.Context, r *run, segments []media.Segment) {
	if p.persistence == nil {
		return
	}
	rec := p.persistRecording(ctx, r, segments, r.out.Analysis)

	if rec != nil {
		doc, err := p.persistence.CreateDocument(ctx, DocumentInput{
			ProjectID:   r.in.ProjectID,
			Title:       r.in.Title,
			FileURL:     rec.AudioURL,
			RecordingID: rec.ID,
			Tags:        documentTags(r.in),
		})
		if err != nil {
			r.persistFailed("create_document", err)
		} else {
			r.out.Document = doc
		}
	}

	if r.in.ProjectID == "" || r.in.ProjectStage == "" {
		return
	}
	items, err := p.persistence.UpdateChecklist(ctx, models.ChecklistOwnerID(r.in.ProjectID, r.in.ProjectStage), r.out.Analysis.ChecklistAnalysis)
	if err != nil {
		r.persistFailed("update_checklist", err)
		return
	}
	r.out.Checklist = items
}

func (p *Pipeline) persistRecording(ctx context.Context, r *run, segments []media.Segment, result *models.AnalysisResult) *models.Recording {
	if p.persistence == nil {
		return nil
	}
	status := models.RecordingAnalyzed
	if result == nil {
		status = models.RecordingNoResults
	}
	urls := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.RemoteURL != "" {
			urls = append(urls, seg.RemoteURL)
		}
	}
	rec, err := p.persistence.CreateRecording(ctx, RecordingInput{
		RunID:         r.in.RunID,
		ProjectID:     r.in.ProjectID,
		ProjectStage:  r.in.ProjectStage,
		Title:         r.in.Title,
		AudioURL:      r.out.AudioURL,
		SegmentURLs:   urls,
		Transcription: r.out.Transcript,
		Analysis:      result,
		Status:        status,
	})
	if err != nil {
		r.persistFailed("create_recording", err)
		return nil
	}
	r.out.Recording = rec
	return rec
}

func (r *run) persistFailed(step string, err error) {
	r.log.WithError(err).WithField("step", step).Error("persistence failed, keeping in-memory result")
	r.out.PersistErrors = append(r.out.PersistErrors, step+": "+err.Error())
	r.report(Progress{Message: step + " failed", Level: "warn"})
}

func documentTags(in Input) []string {
	tags := []string{"recording"}
	if in.ProjectStage != "" {
		tags = append(tags, in.ProjectStage)
	}
	return append(tags, in.Tags...)
}
