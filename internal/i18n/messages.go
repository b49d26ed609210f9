// Package i18n holds the user-facing strings of the intake pipeline. Hebrew is
// the default locale; English is the fallback for anything else.
package i18n

import (
	"errors"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/archstudio/intake/internal/utils"
)

// Message keys.
const (
	KeyNoSegments          = "error.no_segments"
	KeyUploadFailed        = "error.upload_failed"
	KeyNoTranscription     = "error.no_transcription"
	KeyAnalysisUnparseable = "error.analysis_unparseable"
	KeyCancelled           = "error.cancelled"
	KeyRunActive           = "error.run_active"
	KeyGeneric             = "error.generic"

	KeySegmentFailed = "transcribe.segment_failed"

	KeyStageSplitting    = "progress.splitting"
	KeyStageUploading    = "progress.uploading"
	KeyStageTranscribing = "progress.transcribing"
	KeyStageAnalyzing    = "progress.analyzing"
	KeyStageDone         = "progress.done"
	KeyStageReanalyze    = "progress.reanalyze"
)

var catalog = map[language.Tag]map[string]string{
	language.Hebrew: {
		KeyNoSegments:          "לא ניתן היה לפצל את ההקלטה לקטעים תקינים",
		KeyUploadFailed:        "העלאת ההקלטה נכשלה",
		KeyNoTranscription:     "ההקלטה הועלתה אך לא ניתן היה לתמלל אותה",
		KeyAnalysisUnparseable: "לא ניתן היה לפענח את הניתוח. התמלול נשמר",
		KeyCancelled:           "העיבוד בוטל",
		KeyRunActive:           "ההקלטה כבר בעיבוד",
		KeyGeneric:             "אירעה שגיאה בעיבוד ההקלטה",
		KeySegmentFailed:       "[שגיאה בתמלול קטע %d]",
		KeyStageSplitting:      "מפצל קטע %d מתוך %d",
		KeyStageUploading:      "מעלה קטע %d מתוך %d (%s)",
		KeyStageTranscribing:   "מתמלל קטע %d מתוך %d",
		KeyStageAnalyzing:      "מנתח את השיחה",
		KeyStageDone:           "העיבוד הושלם",
		KeyStageReanalyze:      "מתמלל מחדש מהקובץ השמור",
	},
	language.English: {
		KeyNoSegments:          "The recording could not be split into usable segments",
		KeyUploadFailed:        "Uploading the recording failed",
		KeyNoTranscription:     "The recording was uploaded but could not be transcribed",
		KeyAnalysisUnparseable: "Could not parse the analysis. The transcript was kept",
		KeyCancelled:           "Processing was cancelled",
		KeyRunActive:           "This recording is already being processed",
		KeyGeneric:             "Something went wrong while processing the recording",
		KeySegmentFailed:       "[transcription failed for segment %d]",
		KeyStageSplitting:      "Splitting segment %d of %d",
		KeyStageUploading:      "Uploading segment %d of %d (%s)",
		KeyStageTranscribing:   "Transcribing segment %d of %d",
		KeyStageAnalyzing:      "Analyzing the conversation",
		KeyStageDone:           "Processing complete",
		KeyStageReanalyze:      "Transcribing again from the stored file",
	},
}

var (
	registerOnce sync.Once
	matcher      = language.NewMatcher([]language.Tag{language.Hebrew, language.English})
)

func register() {
	registerOnce.Do(func() {
		for tag, entries := range catalog {
			for key, msg := range entries {
				_ = message.SetString(tag, key, msg)
			}
		}
	})
}

// Printer returns a printer for the requested locale ("he", "en-US", ...).
// Empty or unknown locales resolve to Hebrew.
func Printer(locale string) *message.Printer {
	register()
	tag := language.Hebrew
	if locale = strings.TrimSpace(locale); locale != "" {
		if parsed, err := language.Parse(locale); err == nil {
			matched, _, confidence := matcher.Match(parsed)
			if confidence != language.No {
				tag = matched
			}
		}
	}
	base, _ := tag.Base()
	if base.String() == "en" {
		return message.NewPrinter(language.English)
	}
	return message.NewPrinter(language.Hebrew)
}

// T formats the message for key in the given locale.
func T(locale, key string, args ...any) string {
	return Printer(locale).Sprintf(key, args...)
}

// UserMessage maps a pipeline error to the localized text shown to the user.
func UserMessage(locale string, err error) string {
	if err == nil {
		return ""
	}
	return T(locale, KeyFor(err))
}

// KeyFor picks the message key matching the kind of err.
func KeyFor(err error) string {
	switch {
	case errors.Is(err, utils.ErrNoSegmentsProduced):
		return KeyNoSegments
	case errors.Is(err, utils.ErrUploadFailed):
		return KeyUploadFailed
	case errors.Is(err, utils.ErrNoTranscriptionProduced):
		return KeyNoTranscription
	case errors.Is(err, utils.ErrAnalysisUnparseable):
		return KeyAnalysisUnparseable
	case errors.Is(err, utils.ErrCancelled):
		return KeyCancelled
	case errors.Is(err, utils.ErrRunActive):
		return KeyRunActive
	default:
		return KeyGeneric
	}
}
