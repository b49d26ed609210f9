package media

import (
	"fmt"
	"math"
)

// Policy holds the segmentation limits.
type Policy struct {
	// Uploaded files above this size are cut with the transcoder.
	LargeFileThresholdBytes int64
	// Hard cap for a live capture segment.
	LiveChunkCapBytes int64
	// Duration of a transcoded segment.
	SegmentSeconds int
	// Upper bound a transcoded segment should stay under.
	TargetSegmentBytes int64
	BitrateKbps        int
	SampleRateHz       int
	Channels           int
	// Encoded outputs smaller than this are degenerate and dropped.
	MinSegmentBytes int64
}

func DefaultPolicy() Policy {
	return Policy{
		LargeFileThresholdBytes: 24 * MiB,
		LiveChunkCapBytes:       25 * MiB,
		SegmentSeconds:          900,
		TargetSegmentBytes:      10 * MiB,
		BitrateKbps:             32,
		SampleRateHz:            16000,
		Channels:                1,
		MinSegmentBytes:         1024,
	}
}

// Validate checks the policy is internally consistent: a full transcoded
// segment at the configured bitrate must fit the target size.
func (p Policy) Validate() error {
	switch {
	case p.LargeFileThresholdBytes <= 0:
		return fmt.Errorf("media policy: large file threshold must be positive")
	case p.LiveChunkCapBytes <= 0:
		return fmt.Errorf("media policy: live chunk cap must be positive")
	case p.SegmentSeconds <= 0:
		return fmt.Errorf("media policy: segment seconds must be positive")
	case p.BitrateKbps <= 0 || p.SampleRateHz <= 0 || p.Channels <= 0:
		return fmt.Errorf("media policy: bitrate, sample rate and channels must be positive")
	}
	if p.TargetSegmentBytes > 0 && p.ExpectedSegmentBytes() > p.TargetSegmentBytes {
		return fmt.Errorf("media policy: %d kbps for %ds exceeds target segment size %d bytes",
			p.BitrateKbps, p.SegmentSeconds, p.TargetSegmentBytes)
	}
	return nil
}

// ExpectedSegmentBytes is the encoded size of one full transcoded segment.
func (p Policy) ExpectedSegmentBytes() int64 {
	return int64(p.BitrateKbps) * 1000 / 8 * int64(p.SegmentSeconds)
}

// SegmentCount returns ceil(duration / SegmentSeconds).
func (p Policy) SegmentCount(durationSeconds float64) int {
	if durationSeconds <= 0 || p.SegmentSeconds <= 0 {
		return 0
	}
	return int(math.Ceil(durationSeconds / float64(p.SegmentSeconds)))
}

type Strategy string

const (
	StrategyLive        Strategy = "live"
	StrategyTranscode   Strategy = "transcode"
	StrategyPassthrough Strategy = "passthrough"
)

// Plan picks the segmentation strategy for a source. Live captures are cut by
// the LiveChunker at MaxSegmentBytes while recording, so their size never
// selects a file strategy.
func (p Policy) Plan(src AudioSource) Strategy {
	switch {
	case src.Live:
		return StrategyLive
	case src.SizeBytes > p.LargeFileThresholdBytes:
		return StrategyTranscode
	default:
		return StrategyPassthrough
	}
}
