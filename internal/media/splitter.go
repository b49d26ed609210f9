package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/archstudio/intake/internal/utils"
)

// Splitter produces the ordered segment list for a source.
type Splitter struct {
	policy     Policy
	transcoder Transcoder
	workDir    string
	log        logrus.FieldLogger
}

func NewSplitter(policy Policy, transcoder Transcoder, workDir string, log logrus.FieldLogger) *Splitter {
	if log == nil {
		log = logrus.New()
	}
	return &Splitter{policy: policy, transcoder: transcoder, workDir: workDir, log: log}
}

func (s *Splitter) Policy() Policy { return s.policy }

type SplitOptions struct {
	// WorkDir is the parent of the per-call directory that receives transcoded
	// segment files. Defaults to the splitter's dir.
	WorkDir string
	// LiveSegments carries the capture output for live sources.
	LiveSegments []Segment
	Progress     func(done, total int)
	Cancelled    func() bool
}

func (s *Splitter) Split(ctx context.Context, src AudioSource, opts SplitOptions) ([]Segment, error) {
	const op = "Splitter.Split"

	var (
		out []Segment
		err error
	)
	switch strategy := s.policy.Plan(src); strategy {
	case StrategyLive:
		out, err = s.fromLive(opts)
	case StrategyTranscode:
		out, err = s.transcode(ctx, src, opts)
	case StrategyPassthrough:
		out, err = s.passthrough(ctx, src, opts)
	default:
		return nil, utils.E(utils.CodeInternal, op, fmt.Sprintf("unknown strategy %q", strategy), nil)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, utils.E(utils.CodeFailedPrecondition, op, "no usable segments", utils.ErrNoSegmentsProduced)
	}
	return out, nil
}

func (s *Splitter) fromLive(opts SplitOptions) ([]Segment, error) {
	total := len(opts.LiveSegments)
	out := make([]Segment, 0, total)
	for i, seg := range opts.LiveSegments {
		if cancelled(opts) {
			return nil, errCancelled("Splitter.fromLive")
		}
		if seg.SizeBytes > s.policy.LiveChunkCapBytes {
			return nil, utils.E(utils.CodeInvalidArgument, "Splitter.fromLive",
				fmt.Sprintf("live segment %d exceeds the %d byte cap", seg.Index, s.policy.LiveChunkCapBytes), nil)
		}
		if s.degenerate(seg.SizeBytes) {
			s.log.WithField("segment_index", seg.Index).Warn("dropping degenerate live segment")
			continue
		}
		seg.Index = len(out)
		out = append(out, seg)
		report(opts, i+1, total)
	}
	return out, nil
}

func (s *Splitter) passthrough(ctx context.Context, src AudioSource, opts SplitOptions) ([]Segment, error) {
	if NativeForTranscription(src.MimeType) {
		if s.degenerate(src.SizeBytes) {
			return nil, nil
		}
		report(opts, 1, 1)
		return []Segment{{
			Index:           0,
			DurationSeconds: src.EstimatedDuration(),
			SizeBytes:       src.SizeBytes,
			LocalPath:       src.Path,
			MimeType:        NormalizeMimeType(src.MimeType, src.Path),
		}}, nil
	}

	// The speech service cannot read this container; normalize it in one pass.
	dir, err := s.ensureWorkDir(opts)
	if err != nil {
		return nil, err
	}
	seg, ok, err := s.extract(ctx, src, dir, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	seg.DurationSeconds = src.EstimatedDuration()
	report(opts, 1, 1)
	return []Segment{seg}, nil
}

func (s *Splitter) transcode(ctx context.Context, src AudioSource, opts SplitOptions) ([]Segment, error) {
	dir, err := s.ensureWorkDir(opts)
	if err != nil {
		return nil, err
	}

	total := s.policy.SegmentCount(src.EstimatedDuration())
	s.log.WithFields(logrus.Fields{
		"size_bytes":         src.SizeBytes,
		"estimated_seconds":  src.EstimatedDuration(),
		"segment_count":      total,
		"segment_seconds":    s.policy.SegmentSeconds,
		"target_sample_rate": s.policy.SampleRateHz,
	}).Info("transcoding source into segments")

	out := make([]Segment, 0, total)
	for i := 0; i < total; i++ {
		if cancelled(opts) {
			return nil, errCancelled("Splitter.transcode")
		}
		start := i * s.policy.SegmentSeconds
		seg, ok, err := s.extract(ctx, src, dir, len(out), start, s.policy.SegmentSeconds)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, seg)
		}
		report(opts, i+1, total)
	}
	return out, nil
}

// extract runs the transcoder for one range. A failed or degenerate output is
// dropped (ok=false); only context errors abort.
func (s *Splitter) extract(ctx context.Context, src AudioSource, dir string, index, startSec, durationSec int) (Segment, bool, error) {
	if s.transcoder == nil {
		return Segment{}, false, utils.E(utils.CodeInternal, "Splitter.extract", "transcoder is not configured", nil)
	}
	dest := filepath.Join(dir, fmt.Sprintf("segment_%03d_%d.ogg", index, startSec))
	log := s.log.WithFields(logrus.Fields{"segment_index": index, "start_seconds": startSec})

	if err := s.transcoder.Extract(ctx, src.Path, startSec, durationSec, dest); err != nil {
		if ctx.Err() != nil {
			return Segment{}, false, utils.E(utils.CodeCancelled, "Splitter.extract", "context done", ctx.Err())
		}
		log.WithError(err).Warn("transcoder failed for segment, dropping it")
		_ = os.Remove(dest)
		return Segment{}, false, nil
	}

	info, err := os.Stat(dest)
	if err != nil || s.degenerate(info.Size()) {
		log.Warn("dropping degenerate segment output")
		_ = os.Remove(dest)
		return Segment{}, false, nil
	}

	dur := float64(durationSec)
	return Segment{
		Index:              index,
		StartOffsetSeconds: float64(startSec),
		DurationSeconds:    dur,
		SizeBytes:          info.Size(),
		LocalPath:          dest,
		MimeType:           "audio/ogg",
		SampleRateHz:       s.policy.SampleRateHz,
	}, true, nil
}

// ensureWorkDir creates a fresh directory for one Split call under the
// configured work dir, so concurrent runs never share segment file names.
func (s *Splitter) ensureWorkDir(opts SplitOptions) (string, error) {
	base := opts.WorkDir
	if base == "" {
		base = s.workDir
	}
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", utils.E(utils.CodeInternal, "Splitter.ensureWorkDir", "failed to create work dir", err)
	}
	dir, err := os.MkdirTemp(base, "split-")
	if err != nil {
		return "", utils.E(utils.CodeInternal, "Splitter.ensureWorkDir", "failed to create split dir", err)
	}
	return dir, nil
}

func (s *Splitter) degenerate(size int64) bool {
	return size < s.policy.MinSegmentBytes || size <= 0
}

func cancelled(opts SplitOptions) bool {
	return opts.Cancelled != nil && opts.Cancelled()
}

func report(opts SplitOptions, done, total int) {
	if opts.Progress != nil {
		opts.Progress(done, total)
	}
}

func errCancelled(op string) error {
	return utils.E(utils.CodeCancelled, op, "cancelled", utils.ErrCancelled)
}
