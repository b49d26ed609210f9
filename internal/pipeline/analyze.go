package pipeline

import (
	"context"

	"github.com/archstudio/intake/internal/analysis"
	"github.com/archstudio/intake/internal/checklist"
	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/utils"
)

func (p *Pipeline) analyze(ctx context.Context, r *run) (*models.AnalysisResult, error) {
	const op = "Pipeline.analyze"
	if p.analyzer == nil {
		return nil, utils.E(utils.CodeInternal, op, "analyzer is not configured", nil)
	}

	result, err := p.analyzer.Analyze(ctx, analysis.Input{
		Transcript:  r.out.Transcript,
		Stage:       r.in.ProjectStage,
		ProjectType: r.in.ProjectType,
		Questions:   checklist.Questions(r.in.Checklist),
		Learnings:   r.in.Learnings,
	})
	if err != nil {
		return nil, err
	}

	r.out.Checklist = checklist.Reconcile(r.in.Checklist, result.ChecklistAnalysis)
	r.out.ChangedItems = checklist.Changed(r.in.Checklist, r.out.Checklist)
	return result, nil
}
