package media

import (
	"mime"
	"path/filepath"
	"strings"
)

const MiB = 1 << 20

// AudioSource is the original file or capture being ingested. It is not
// modified once a run starts.
type AudioSource struct {
	Path            string
	SizeBytes       int64
	MimeType        string
	Live            bool
	DurationSeconds float64 // zero when unknown
}

// EstimatedDuration returns the known duration, or roughly one minute per MiB
// at the target bitrate when the true duration is unknown.
func (s AudioSource) EstimatedDuration() float64 {
	if s.DurationSeconds > 0 {
		return s.DurationSeconds
	}
	if s.SizeBytes <= 0 {
		return 0
	}
	return float64(s.SizeBytes) / MiB * 60
}

// Segment is one bounded slice of a source. RemoteURL stays empty until the
// segment is uploaded.
type Segment struct {
	Index              int
	StartOffsetSeconds float64
	DurationSeconds    float64
	SizeBytes          int64
	LocalPath          string
	MimeType           string
	SampleRateHz       int
	RemoteURL          string
}

// Uploaded reports whether the segment already has a durable URL.
func (s Segment) Uploaded() bool { return s.RemoteURL != "" }

// NormalizeMimeType strips parameters ("audio/webm;codecs=opus" -> "audio/webm")
// and guesses from the file extension when the type is missing.
func NormalizeMimeType(mimeType, path string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType != "" {
		if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
			return strings.ToLower(mt)
		}
		if i := strings.Index(mimeType, ";"); i >= 0 {
			mimeType = mimeType[:i]
		}
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

// NativeForTranscription reports whether the speech service accepts the
// container as is.
func NativeForTranscription(mimeType string) bool {
	switch NormalizeMimeType(mimeType, "") {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/flac", "audio/x-flac", "audio/ogg", "audio/webm":
		return true
	default:
		return false
	}
}

func extensionFor(mimeType string) string {
	switch NormalizeMimeType(mimeType, "") {
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4":
		return ".m4a"
	default:
		return ".bin"
	}
}
