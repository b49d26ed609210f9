package handlers

import (
	"encoding/hex"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/archstudio/intake/internal/media"
	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/services"
	"github.com/archstudio/intake/internal/utils"
)

type RecordingHandler struct {
	runs           services.RunService
	recordings     services.RecordingService
	stagingDir     string
	maxUploadBytes int64
}

func NewRecordingHandler(runs services.RunService, recordings services.RecordingService, stagingDir string, maxUploadBytes int64) *RecordingHandler {
	return &RecordingHandler{runs: runs, recordings: recordings, stagingDir: stagingDir, maxUploadBytes: maxUploadBytes}
}

// Upload stages a recording sent as multipart field "file" and starts a run.
func (h *RecordingHandler) Upload(c *gin.Context) {
	const op = "RecordingHandler.Upload"
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	projectID, stage := c.Param("project_id"), c.Param("stage")

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'file'", err))
		return
	}
	if fh.Size <= 0 || (h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes) {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "file is empty or too large", nil))
		return
	}

	mimeType := media.NormalizeMimeType(fh.Header.Get("Content-Type"), fh.Filename)
	if !isAudio(mimeType) {
		// Some clients send application/octet-stream; trust the content.
		sniffed, err := sniff(fh)
		if err != nil || !isAudio(sniffed) {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "file is not audio", err))
			return
		}
		mimeType = sniffed
	}

	if err := os.MkdirAll(h.stagingDir, 0o755); err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to prepare staging dir", err))
		return
	}
	dest := filepath.Join(h.stagingDir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	digest, err := stageUpload(fh, dest)
	if err != nil {
		_ = os.Remove(dest)
		writeError(c, utils.E(utils.CodeInternal, op, "failed to stage upload", err))
		return
	}

	run, err := h.runs.Start(c.Request.Context(), services.StartRunRequest{
		ProjectID:   projectID,
		Stage:       stage,
		UserID:      userID,
		Title:       c.PostForm("title"),
		Language:    c.PostForm("language"),
		ProjectType: c.PostForm("project_type"),
		// Re-sending the same content while it is processing is rejected.
		SourceID: "upload:" + projectID + ":" + stage + ":" + digest,
		Source: models.RunSource{
			LocalPath: dest,
			FileName:  filepath.Base(fh.Filename),
			MimeType:  mimeType,
			SizeBytes: fh.Size,
		},
	})
	if err != nil {
		_ = os.Remove(dest)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// Reanalyze starts a run over the stored segments of a recording.
func (h *RecordingHandler) Reanalyze(c *gin.Context) {
	const op = "RecordingHandler.Reanalyze"
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	projectID, stage := c.Param("project_id"), c.Param("stage")

	rec, err := h.recordings.Get(c.Request.Context(), c.Param("recording_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if rec.ProjectID != projectID {
		writeError(c, utils.E(utils.CodeNotFound, op, "recording not found", utils.ErrNotFound))
		return
	}
	if len(rec.SegmentURLs) == 0 {
		writeError(c, utils.E(utils.CodeFailedPrecondition, op, "recording has no stored segments", nil))
		return
	}

	run, err := h.runs.Start(c.Request.Context(), services.StartRunRequest{
		ProjectID:   projectID,
		Stage:       stage,
		UserID:      userID,
		Title:       rec.Title,
		ProjectType: c.Query("project_type"),
		SourceID:    "recording:" + rec.ID,
		Source: models.RunSource{
			Reanalyze:   true,
			RemoteURL:   rec.AudioURL,
			SegmentURLs: rec.SegmentURLs,
		},
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

func (h *RecordingHandler) List(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	rows, err := h.recordings.ListByProject(c.Request.Context(), c.Param("project_id"), c.Param("stage"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": rows})
}

func isAudio(mimeType string) bool {
	return strings.HasPrefix(mimeType, "audio/") || mimeType == "video/webm" || mimeType == "video/mp4" || mimeType == "application/ogg"
}

// stageUpload copies the upload to dest and returns a content fingerprint.
func stageUpload(fh *multipart.FileHeader, dest string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	h, _ := blake2b.New256(nil)
	if _, err := io.Copy(io.MultiWriter(out, h), src); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)[:16]), nil
}

// sniff detects the content type from the first 512 bytes.
func sniff(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && n == 0 {
		return "", err
	}
	return media.NormalizeMimeType(http.DetectContentType(head[:n]), ""), nil
}
