package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/archstudio/intake/config"
	"github.com/archstudio/intake/internal/analysis"
	"github.com/archstudio/intake/internal/checklist"
	"github.com/archstudio/intake/internal/media"
	"github.com/archstudio/intake/internal/pipeline"
	"github.com/archstudio/intake/internal/providers/llm"
	"github.com/archstudio/intake/internal/providers/stt"
	"github.com/archstudio/intake/internal/storage"
)

type processOptions struct {
	projectID   string
	stage       string
	projectType string
	language    string
	outDir      string
	live        bool
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	opts := processOptions{}
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run the full pipeline on a local file without touching the databases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			return runProcess(cmd, ctx, settings, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.projectID, "project", "local", "Project id recorded on the run")
	cmd.Flags().StringVar(&opts.stage, "stage", "first_call", "Project stage (first_call, first_meeting)")
	cmd.Flags().StringVar(&opts.projectType, "project-type", "", "Checklist template project type")
	cmd.Flags().StringVar(&opts.language, "language", "", "Speech language (defaults to STT_LANGUAGE)")
	cmd.Flags().StringVar(&opts.outDir, "out", "intake-out", "Directory for results and, without a bucket, uploaded objects")
	cmd.Flags().BoolVar(&opts.live, "live", false, "Feed the file through the live capture chunker")
	return cmd
}

func runProcess(cmd *cobra.Command, ctx *commandContext, settings config.Settings, opts processOptions, path string) error {
	log := ctx.logger()
	c := cmd.Context()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("inspect file: %w", err)
	}
	runID := uuid.NewString()
	workDir := filepath.Join(opts.outDir, runID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return err
	}

	var gcpOpts []option.ClientOption
	if settings.CredentialsFile != "" {
		gcpOpts = append(gcpOpts, option.WithCredentialsFile(settings.CredentialsFile))
	}

	var uploader storage.Uploader
	if settings.Bucket == "" {
		uploader = storage.NewLocalUploader(filepath.Join(opts.outDir, "objects"))
	} else {
		gcs, err := storage.NewGCSUploader(c, settings.Bucket, settings.PublicObjects, gcpOpts...)
		if err != nil {
			return err
		}
		defer gcs.Close()
		uploader = gcs
	}

	speech, err := stt.NewGoogleSpeech(c, settings.Language, gcpOpts...)
	if err != nil {
		return err
	}
	defer speech.Close()
	gemini, err := llm.NewVertexGemini(c, settings.GCPProject, settings.GCPLocation, settings.Model, analysis.SystemPrompt, gcpOpts...)
	if err != nil {
		return err
	}
	defer gemini.Close()

	templates, err := checklist.LoadTemplates(settings.TemplatesPath)
	if err != nil {
		return err
	}
	tpl, ok := templates.Lookup(opts.projectType, opts.stage)
	if !ok {
		return fmt.Errorf("no checklist template for stage %q", opts.stage)
	}

	language := opts.language
	if language == "" {
		language = settings.Language
	}
	in := pipeline.Input{
		RunID:        runID,
		SourceID:     "cli:" + path,
		ProjectID:    opts.projectID,
		ProjectStage: opts.stage,
		ProjectType:  opts.projectType,
		Title:        filepath.Base(path),
		Language:     language,
		Locale:       ctx.locale,
		WorkDir:      workDir,
		Checklist:    checklist.FromTemplate(tpl),
		Source: media.AudioSource{
			Path:      path,
			SizeBytes: info.Size(),
			MimeType:  media.NormalizeMimeType("", path),
			Live:      opts.live,
		},
	}
	if opts.live {
		segs, err := chunkFile(path, filepath.Join(workDir, "live"), in.Source.MimeType, settings.Media.LiveChunkCapBytes)
		if err != nil {
			return err
		}
		in.Source.Path = ""
		in.LiveSegments = segs
	}

	p := pipeline.New(pipeline.Deps{
		Splitter:    media.NewSplitter(settings.Media, media.NewFFmpeg(settings.FFmpegPath, settings.Media), workDir, log),
		Uploader:    uploader,
		Transcriber: speech,
		Analyzer:    analysis.NewAnalyzer(gemini, log),
		Log:         log,
	})

	// Ctrl-C asks the run to stop at its next checkpoint.
	token := pipeline.NewCancellationToken(nil)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	go func() {
		if _, ok := <-sig; ok {
			token.Cancel()
		}
	}()

	out, runErr := p.Run(c, in, token, newProgressPrinter(cmd.ErrOrStderr()))
	if err := writeResults(workDir, out); err != nil {
		runErr = errors.Join(runErr, err)
	}

	if ctx.jsonOut {
		if err := writeJSON(cmd, outcomeSummary(out, workDir)); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(out, workDir))
		if len(out.Checklist) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), renderChecklist(out.Checklist, out.ChangedItems))
		}
	}
	return runErr
}

// chunkFile replays a file through the live chunker as a capture would.
func chunkFile(path, dir, mimeType string, capBytes int64) ([]media.Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	chunker, err := media.NewLiveChunker(dir, "live", mimeType, capBytes)
	if err != nil {
		return nil, err
	}
	if _, err := io.CopyBuffer(chunker, f, make([]byte, 64<<10)); err != nil {
		_, _ = chunker.Close()
		return nil, err
	}
	return chunker.Close()
}

func writeResults(dir string, out *pipeline.Outcome) error {
	var errs []error
	if out.Transcript != "" {
		errs = append(errs, os.WriteFile(filepath.Join(dir, "transcript.txt"), []byte(out.Transcript+"\n"), 0o644))
	}
	if out.Analysis != nil {
		errs = append(errs, writeIndented(filepath.Join(dir, "analysis.json"), out.Analysis))
	}
	if len(out.Checklist) > 0 {
		errs = append(errs, writeIndented(filepath.Join(dir, "checklist.json"), out.Checklist))
	}
	return errors.Join(errs...)
}

func writeIndented(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

type summary struct {
	RunID          string   `json:"run_id"`
	Stage          string   `json:"stage"`
	Message        string   `json:"message"`
	Segments       int      `json:"segments"`
	SegmentBytes   int64    `json:"segment_bytes"`
	FailedSegments []int    `json:"failed_segments,omitempty"`
	AudioURL       string   `json:"audio_url,omitempty"`
	ChangedItems   []string `json:"changed_items,omitempty"`
	OutputDir      string   `json:"output_dir"`
}

func outcomeSummary(out *pipeline.Outcome, dir string) summary {
	s := summary{
		RunID:          out.RunID,
		Stage:          string(out.Stage),
		Message:        out.Message,
		Segments:       len(out.Segments),
		FailedSegments: out.FailedSegments,
		AudioURL:       out.AudioURL,
		ChangedItems:   out.ChangedItems,
		OutputDir:      dir,
	}
	for _, seg := range out.Segments {
		s.SegmentBytes += seg.SizeBytes
	}
	return s
}

func renderSummary(out *pipeline.Outcome, dir string) string {
	s := outcomeSummary(out, dir)
	failed := make([]string, 0, len(s.FailedSegments))
	for _, idx := range s.FailedSegments {
		failed = append(failed, strconv.Itoa(idx))
	}
	rows := [][]string{
		{"Run", s.RunID},
		{"Stage", s.Stage},
		{"Message", s.Message},
		{"Segments", fmt.Sprintf("%d (%s)", s.Segments, humanize.Bytes(uint64(s.SegmentBytes)))},
		{"Failed segments", strings.Join(failed, ", ")},
		{"Audio", s.AudioURL},
		{"Checklist changes", strings.Join(s.ChangedItems, ", ")},
		{"Output", s.OutputDir},
	}
	return renderTable([]string{"", ""}, rows)
}
