package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/archstudio/intake/internal/media"
)

// Settings are the service knobs read from the environment.
type Settings struct {
	Port string

	GCPProject      string
	GCPLocation     string
	CredentialsFile string
	Bucket          string
	PublicObjects   bool
	Model           string
	Language        string
	Locale          string

	StagingDir     string
	FFmpegPath     string
	TemplatesPath  string
	MaxUploadBytes int64

	// Tokens are issued by the external auth provider (HS256).
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	Workers     int
	RunLockTTL  time.Duration
	CancelCheck time.Duration

	Media media.Policy
}

// Load reads Settings from the environment and validates the media policy.
func Load() (Settings, error) {
	s := Settings{
		Port:            getenv("PORT", "8080"),
		GCPProject:      os.Getenv("GCP_PROJECT"),
		GCPLocation:     getenv("GCP_LOCATION", "us-central1"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		Bucket:          os.Getenv("GCS_BUCKET"),
		Model:           getenv("LLM_MODEL", "gemini-1.5-pro"),
		Language:        getenv("STT_LANGUAGE", "he-IL"),
		Locale:          getenv("LOCALE", "he"),
		StagingDir:      getenv("STAGING_DIR", filepath.Join(os.TempDir(), "intake")),
		FFmpegPath:      getenv("FFMPEG_PATH", media.FFmpegCommand),
		TemplatesPath:   os.Getenv("CHECKLIST_TEMPLATES"),
		JWTSecret:       os.Getenv("AUTH_JWT_SECRET"),
		JWTIssuer:       os.Getenv("AUTH_JWT_ISSUER"),
		JWTAudience:     os.Getenv("AUTH_JWT_AUDIENCE"),
		Media:           media.DefaultPolicy(),
	}

	var err error
	if s.PublicObjects, err = boolEnv("GCS_PUBLIC", true); err != nil {
		return s, err
	}
	if s.Workers, err = intEnv("PIPELINE_WORKERS", 2); err != nil {
		return s, err
	}
	if s.RunLockTTL, err = durationEnv("RUN_LOCK_TTL", 2*time.Hour); err != nil {
		return s, err
	}
	if s.CancelCheck, err = durationEnv("CANCEL_CHECK_INTERVAL", 2*time.Second); err != nil {
		return s, err
	}

	mb, err := intEnv("LARGE_FILE_THRESHOLD_MB", 24)
	if err != nil {
		return s, err
	}
	s.Media.LargeFileThresholdBytes = int64(mb) * media.MiB
	if mb, err = intEnv("LIVE_CHUNK_CAP_MB", 25); err != nil {
		return s, err
	}
	s.Media.LiveChunkCapBytes = int64(mb) * media.MiB
	if mb, err = intEnv("MAX_UPLOAD_MB", 1024); err != nil {
		return s, err
	}
	s.MaxUploadBytes = int64(mb) * media.MiB
	if s.Media.SegmentSeconds, err = intEnv("SEGMENT_SECONDS", s.Media.SegmentSeconds); err != nil {
		return s, err
	}
	if s.Media.BitrateKbps, err = intEnv("SEGMENT_BITRATE_KBPS", s.Media.BitrateKbps); err != nil {
		return s, err
	}

	if s.Workers < 1 {
		return s, fmt.Errorf("PIPELINE_WORKERS must be at least 1")
	}
	if err := s.Media.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
