package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

func TestEncodingFor(t *testing.T) {
	cases := map[string]speechpb.RecognitionConfig_AudioEncoding{
		"audio/ogg":              speechpb.RecognitionConfig_OGG_OPUS,
		"audio/webm;codecs=opus": speechpb.RecognitionConfig_WEBM_OPUS,
		"audio/flac":             speechpb.RecognitionConfig_FLAC,
		"audio/wav":              speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
	}
	for mime, want := range cases {
		if got := EncodingFor(mime); got != want {
			t.Fatalf("EncodingFor(%q) = %v, want %v", mime, got, want)
		}
	}
}

func TestSampleRateFor(t *testing.T) {
	if got := sampleRateFor(speechpb.RecognitionConfig_OGG_OPUS, 0); got != 16000 {
		t.Fatalf("ogg default %d", got)
	}
	if got := sampleRateFor(speechpb.RecognitionConfig_WEBM_OPUS, 0); got != 48000 {
		t.Fatalf("webm default %d", got)
	}
	if got := sampleRateFor(speechpb.RecognitionConfig_WEBM_OPUS, 24000); got != 24000 {
		t.Fatalf("explicit rate should win, got %d", got)
	}
	if got := sampleRateFor(speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, 0); got != 0 {
		t.Fatalf("header formats carry their own rate, got %d", got)
	}
}

func TestMergeResultsJoinsInOrder(t *testing.T) {
	results := []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " שלום ", Confidence: 0.9}}},
		{},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "עולם", Confidence: 0.7}}},
	}
	got := mergeResults(results)
	if got.Text != "שלום עולם" {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if got.Confidence < 0.79 || got.Confidence > 0.81 {
		t.Fatalf("unexpected confidence %v", got.Confidence)
	}
	if empty := mergeResults(nil); empty.Text != "" || empty.Confidence != 0 {
		t.Fatalf("expected empty result, got %+v", empty)
	}
}

func TestFetchLimitsInlineAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/big" {
			_, _ = w.Write(make([]byte, MaxInlineBytes+10))
			return
		}
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	data, err := fetch(context.Background(), srv.Client(), srv.URL+"/ok")
	if err != nil || string(data) != "audio" {
		t.Fatalf("fetch ok: %q %v", data, err)
	}
	if _, err := fetch(context.Background(), srv.Client(), srv.URL+"/big"); err == nil || !strings.Contains(err.Error(), "inline limit") {
		t.Fatalf("expected inline limit error, got %v", err)
	}
	if _, err := fetch(context.Background(), srv.Client(), srv.URL+"/missing"); err == nil {
		t.Fatal("expected status error")
	}
	if _, err := fetch(context.Background(), srv.Client(), "ftp://x/y"); err == nil {
		t.Fatal("expected scheme error")
	}
}

func TestFetchFileURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.ogg")
	if err := os.WriteFile(path, []byte("ogg"), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := fetch(context.Background(), http.DefaultClient, "file://"+filepath.ToSlash(path))
	if err != nil || string(data) != "ogg" {
		t.Fatalf("fetch file: %q %v", data, err)
	}
}
