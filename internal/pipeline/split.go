package pipeline

import (
	"context"

	"github.com/archstudio/intake/internal/i18n"
	"github.com/archstudio/intake/internal/media"
	"github.com/archstudio/intake/internal/utils"
)

func (p *Pipeline) split(ctx context.Context, r *run) ([]media.Segment, error) {
	if p.splitter == nil {
		return nil, utils.E(utils.CodeInternal, "Pipeline.split", "splitter is not configured", nil)
	}
	src := r.in.Source
	if len(r.in.LiveSegments) > 0 {
		src.Live = true
	}
	return p.splitter.Split(ctx, src, media.SplitOptions{
		WorkDir:      r.in.WorkDir,
		LiveSegments: r.in.LiveSegments,
		Cancelled:    r.token.Cancelled,
		Progress: func(done, total int) {
			r.report(Progress{
				Stage:   StageSplitting,
				Current: done,
				Total:   total,
				Percent: percent(float64(done), total),
				Message: i18n.T(r.in.Locale, i18n.KeyStageSplitting, done, total),
			})
		},
	})
}
