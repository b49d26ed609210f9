package stt

import "context"

// Request points the provider at one stored segment.
type Request struct {
	URL          string
	MimeType     string
	SampleRateHz int
	// BCP-47, e.g. "he-IL".
	Language string
}

type Result struct {
	Text       string
	Confidence float64
}

type Provider interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
	Close() error
}
