package main

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/archstudio/intake/internal/media"
)

type planSegment struct {
	Index        int     `json:"index"`
	StartSeconds float64 `json:"start_seconds"`
	Seconds      float64 `json:"seconds"`
}

type planReport struct {
	File             string         `json:"file"`
	SizeBytes        int64          `json:"size_bytes"`
	MimeType         string         `json:"mime_type"`
	Strategy         media.Strategy `json:"strategy"`
	Transcode        bool           `json:"transcode"`
	EstimatedSeconds float64        `json:"estimated_seconds"`
	Segments         []planSegment  `json:"segments"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var (
		live     bool
		mimeType string
		duration float64
	)
	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Show how a recording would be split before processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			info, err := os.Stat(args[0])
			if err != nil {
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", args[0])
			}
			src := media.AudioSource{
				Path:            args[0],
				SizeBytes:       info.Size(),
				MimeType:        media.NormalizeMimeType(mimeType, args[0]),
				Live:            live,
				DurationSeconds: duration,
			}
			report := buildPlan(settings.Media, src)
			if ctx.jsonOut {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s %s, about %s\n", report.File, humanize.Bytes(uint64(report.SizeBytes)), report.MimeType, formatSeconds(report.EstimatedSeconds))
			fmt.Fprintf(out, "strategy: %s (transcode: %t)\n", report.Strategy, report.Transcode)
			rows := make([][]string, 0, len(report.Segments))
			for _, seg := range report.Segments {
				rows = append(rows, []string{strconv.Itoa(seg.Index), formatSeconds(seg.StartSeconds), formatSeconds(seg.Seconds)})
			}
			fmt.Fprintln(out, renderTable([]string{"Segment", "Start", "Length"}, rows, 0, 1, 2))
			return nil
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "Treat the file as a live capture stream")
	cmd.Flags().StringVar(&mimeType, "mime", "", "Content type (guessed from the extension when empty)")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Known duration in seconds")
	return cmd
}

// buildPlan mirrors the splitter's decisions without running the transcoder.
func buildPlan(p media.Policy, src media.AudioSource) planReport {
	est := src.EstimatedDuration()
	r := planReport{
		File:             src.Path,
		SizeBytes:        src.SizeBytes,
		MimeType:         src.MimeType,
		Strategy:         p.Plan(src),
		EstimatedSeconds: est,
	}
	switch r.Strategy {
	case media.StrategyTranscode:
		r.Transcode = true
		n := p.SegmentCount(est)
		for i := 0; i < n; i++ {
			start := float64(i * p.SegmentSeconds)
			r.Segments = append(r.Segments, planSegment{Index: i, StartSeconds: start, Seconds: math.Min(float64(p.SegmentSeconds), est-start)})
		}
	case media.StrategyLive:
		n := int((src.SizeBytes + p.LiveChunkCapBytes - 1) / p.LiveChunkCapBytes)
		per := est / math.Max(float64(n), 1)
		for i := 0; i < n; i++ {
			r.Segments = append(r.Segments, planSegment{Index: i, StartSeconds: float64(i) * per, Seconds: per})
		}
	default:
		r.Transcode = !media.NativeForTranscription(src.MimeType)
		r.Segments = []planSegment{{Index: 0, Seconds: est}}
	}
	return r
}

func formatSeconds(s float64) string {
	total := int(math.Round(s))
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total/60%60, total%60)
}
