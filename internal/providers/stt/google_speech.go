package stt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"github.com/archstudio/intake/internal/media"
	"github.com/archstudio/intake/internal/storage"
	"github.com/archstudio/intake/internal/utils"
)

// MaxInlineBytes bounds audio sent inline instead of by gs:// reference.
const MaxInlineBytes = 10 << 20

const defaultLanguage = "he-IL"

type GoogleSpeech struct {
	c          *speech.Client
	httpClient *http.Client
	language   string
}

func NewGoogleSpeech(ctx context.Context, language string, opts ...option.ClientOption) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, "GoogleSpeech.New", "failed to create speech client", err)
	}
	if language == "" {
		language = defaultLanguage
	}
	return &GoogleSpeech{
		c:          c,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		language:   language,
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Transcribe(ctx context.Context, req Request) (Result, error) {
	const op = "GoogleSpeech.Transcribe"

	audio, err := g.audioFor(ctx, req.URL)
	if err != nil {
		return Result{}, utils.E(utils.CodeUnavailable, op, "failed to resolve audio", err)
	}

	language := req.Language
	if language == "" {
		language = g.language
	}
	encoding := EncodingFor(req.MimeType)
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		LanguageCode:               language,
		AudioChannelCount:          1,
		EnableAutomaticPunctuation: true,
	}
	if rate := sampleRateFor(encoding, req.SampleRateHz); rate > 0 {
		cfg.SampleRateHertz = int32(rate)
	}

	lro, err := g.c.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{Config: cfg, Audio: audio})
	if err != nil {
		return Result{}, utils.E(utils.CodeUnavailable, op, "recognize request failed", err)
	}
	resp, err := lro.Wait(ctx)
	if err != nil {
		return Result{}, utils.E(utils.CodeUnavailable, op, "recognize operation failed", err)
	}

	return mergeResults(resp.GetResults()), nil
}

func (g *GoogleSpeech) audioFor(ctx context.Context, raw string) (*speechpb.RecognitionAudio, error) {
	if uri, ok := storage.GSURI(raw); ok {
		return &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: uri}}, nil
	}
	content, err := fetch(ctx, g.httpClient, raw)
	if err != nil {
		return nil, err
	}
	return &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: content}}, nil
}

// fetch reads http(s) and file URLs, refusing anything above MaxInlineBytes.
func fetch(ctx context.Context, client *http.Client, raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse audio url: %w", err)
	}

	var body io.ReadCloser
	switch u.Scheme {
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, err
		}
		body = f
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("fetch audio: status %d", resp.StatusCode)
		}
		body = resp.Body
	default:
		return nil, fmt.Errorf("unsupported audio url scheme %q", u.Scheme)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, MaxInlineBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxInlineBytes {
		return nil, fmt.Errorf("audio exceeds %d bytes inline limit", MaxInlineBytes)
	}
	return data, nil
}

// EncodingFor maps a container MIME type to the recognizer encoding. WAV and
// FLAC carry their own headers.
func EncodingFor(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	switch media.NormalizeMimeType(mimeType, "") {
	case "audio/ogg":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "audio/webm":
		return speechpb.RecognitionConfig_WEBM_OPUS
	case "audio/flac", "audio/x-flac":
		return speechpb.RecognitionConfig_FLAC
	case "audio/l16", "audio/pcm":
		return speechpb.RecognitionConfig_LINEAR16
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

// sampleRateFor fills in the rate of Opus containers when the caller does not
// know it: 16 kHz for transcoded Ogg, 48 kHz for browser WebM capture.
func sampleRateFor(enc speechpb.RecognitionConfig_AudioEncoding, hz int) int {
	if hz > 0 {
		return hz
	}
	switch enc {
	case speechpb.RecognitionConfig_OGG_OPUS:
		return 16000
	case speechpb.RecognitionConfig_WEBM_OPUS:
		return 48000
	default:
		return 0
	}
}

// mergeResults joins the top alternative of each consecutive result and
// averages their confidence.
func mergeResults(results []*speechpb.SpeechRecognitionResult) Result {
	var (
		parts []string
		sum   float64
		n     int
	)
	for _, r := range results {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		text := strings.TrimSpace(alts[0].GetTranscript())
		if text == "" {
			continue
		}
		parts = append(parts, text)
		sum += float64(alts[0].GetConfidence())
		n++
	}
	if n == 0 {
		return Result{}
	}
	return Result{Text: strings.Join(parts, " "), Confidence: sum / float64(n)}
}
