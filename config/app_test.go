package config

import (
	"testing"
	"time"

	"github.com/archstudio/intake/internal/media"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "PIPELINE_WORKERS", "LARGE_FILE_THRESHOLD_MB", "LIVE_CHUNK_CAP_MB", "SEGMENT_SECONDS", "SEGMENT_BITRATE_KBPS", "STT_LANGUAGE", "GCS_PUBLIC", "RUN_LOCK_TTL", "MAX_UPLOAD_MB"} {
		t.Setenv(k, "")
	}
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Port != "8080" || s.Workers != 2 || s.Language != "he-IL" || !s.PublicObjects {
		t.Fatalf("unexpected defaults %+v", s)
	}
	if s.Media.LargeFileThresholdBytes != 24*media.MiB || s.Media.LiveChunkCapBytes != 25*media.MiB {
		t.Fatalf("unexpected media thresholds %+v", s.Media)
	}
	if s.MaxUploadBytes != 1024*media.MiB {
		t.Fatalf("unexpected upload limit %d", s.MaxUploadBytes)
	}
	if s.RunLockTTL != 2*time.Hour {
		t.Fatalf("unexpected lock ttl %v", s.RunLockTTL)
	}
}

func TestLoadOverridesAndValidation(t *testing.T) {
	t.Setenv("LARGE_FILE_THRESHOLD_MB", "10")
	t.Setenv("PIPELINE_WORKERS", "4")
	t.Setenv("RUN_LOCK_TTL", "30m")
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Media.LargeFileThresholdBytes != 10*media.MiB || s.Workers != 4 || s.RunLockTTL != 30*time.Minute {
		t.Fatalf("overrides not applied %+v", s)
	}

	t.Setenv("SEGMENT_BITRATE_KBPS", "256")
	if _, err := Load(); err == nil {
		t.Fatal("expected a bitrate that overflows the segment target to be rejected")
	}
	t.Setenv("SEGMENT_BITRATE_KBPS", "")
	t.Setenv("PIPELINE_WORKERS", "many")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
