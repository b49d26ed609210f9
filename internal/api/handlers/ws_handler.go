package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/archstudio/intake/internal/i18n"
	"github.com/archstudio/intake/internal/media"
	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/pipeline"
	"github.com/archstudio/intake/internal/services"
	"github.com/archstudio/intake/internal/utils"
)

type WSHandler struct {
	runs       services.RunService
	feed       services.ProgressFeed
	stagingDir string
	chunkCap   int64
	log        logrus.FieldLogger
	upgrader   websocket.Upgrader
}

func NewWSHandler(runs services.RunService, feed services.ProgressFeed, stagingDir string, chunkCap int64, log logrus.FieldLogger) *WSHandler {
	if log == nil {
		log = logrus.New()
	}
	return &WSHandler{
		runs:       runs,
		feed:       feed,
		stagingDir: stagingDir,
		chunkCap:   chunkCap,
		log:        log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict to the studio web origin once it is configurable
		},
	}
}

type wsClientMsg struct {
	Type string `json:"type"` // chunk_end|stop|abort
}

type segmentInfo struct {
	Index     int     `json:"index"`
	SizeBytes int64   `json:"size_bytes"`
	Seconds   float64 `json:"seconds"`
}

type wsServerMsg struct {
	Type        string              `json:"type"` // snapshot|segment|run|aborted|error
	Code        utils.Code          `json:"code,omitempty"`
	Message     string              `json:"message,omitempty"`
	UserMessage string              `json:"user_message,omitempty"`
	Run         *models.PipelineRun `json:"run,omitempty"`
	Segment     *segmentInfo        `json:"segment,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeJSON(m wsServerMsg) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return w.writeText(b)
}

func (w *wsConn) writeError(locale string, err error) {
	msg := wsServerMsg{Type: "error", Code: utils.CodeOf(err), Message: err.Error(), UserMessage: i18n.UserMessage(locale, err)}
	var ae *utils.AppError
	if errors.As(err, &ae) {
		msg.Message = ae.Message
	}
	_ = w.writeJSON(msg)
}

// RunProgress streams the progress of one run: a snapshot of the run document
// followed by every progress message until the run reaches a terminal stage.
func (h *WSHandler) RunProgress(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	run, err := h.runs.Get(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go drain(conn, cancel)

	h.relay(ctx, &wsConn{c: conn}, run, localeOf(c))
}

// Capture records a live conversation. The client sends binary audio frames
// and finally {"type":"stop"}, which starts a run over the captured segments.
// {"type":"abort"} discards the capture. A {"type":"chunk_end"} message closes
// the current segment; clients restart their recorder before sending it so each
// segment begins with its own container header.
func (h *WSHandler) Capture(c *gin.Context) {
	const op = "WSHandler.Capture"
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	projectID, stage := c.Param("project_id"), c.Param("stage")
	if !services.ValidProjectStage(stage) {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "stage must be first_call or first_meeting", nil))
		return
	}
	locale := localeOf(c)
	mimeType := media.NormalizeMimeType(c.DefaultQuery("mime", "audio/webm"), "")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	wc := &wsConn{c: conn}

	captureID := uuid.NewString()
	dir := filepath.Join(h.stagingDir, "live-"+captureID)
	log := h.log.WithFields(logrus.Fields{"capture_id": captureID, "project_id": projectID, "stage": stage})

	chunker, err := media.NewLiveChunker(dir, "live", mimeType, h.chunkCap,
		media.WithFlushHook(func(seg media.Segment) {
			_ = wc.writeJSON(wsServerMsg{Type: "segment", Segment: &segmentInfo{Index: seg.Index, SizeBytes: seg.SizeBytes, Seconds: seg.DurationSeconds}})
		}))
	if err != nil {
		wc.writeError(locale, utils.E(utils.CodeInternal, op, "failed to start capture", err))
		return
	}
	discard := func() {
		_, _ = chunker.Close()
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).Debug("failed to remove capture dir")
		}
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Info("capture connection closed before stop")
			discard()
			return
		}

		if mt == websocket.BinaryMessage {
			if _, err := chunker.Write(data); err != nil {
				wc.writeError(locale, utils.E(utils.CodeInternal, op, "failed to store audio", err))
				discard()
				return
			}
			continue
		}

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			wc.writeError(locale, utils.E(utils.CodeInvalidArgument, op, "invalid json", err))
			continue
		}
		switch msg.Type {
		case "chunk_end":
			if _, _, err := chunker.Cut(); err != nil {
				wc.writeError(locale, utils.E(utils.CodeInternal, op, "failed to store audio", err))
				discard()
				return
			}
		case "abort":
			discard()
			_ = wc.writeJSON(wsServerMsg{Type: "aborted"})
			return
		case "stop":
			run, err := h.startCapturedRun(c.Request.Context(), chunker, userID, projectID, stage, c.Query("project_type"), c.Query("language"), captureID, mimeType)
			if err != nil {
				wc.writeError(locale, err)
				discard()
				return
			}
			_ = wc.writeJSON(wsServerMsg{Type: "run", Run: run})

			ctx, cancel := context.WithCancel(c.Request.Context())
			go drain(conn, cancel)
			h.relay(ctx, wc, run, locale)
			cancel()
			return
		default:
			wc.writeError(locale, utils.E(utils.CodeInvalidArgument, op, "unknown message type", nil))
		}
	}
}

func (h *WSHandler) startCapturedRun(ctx context.Context, chunker *media.LiveChunker, userID, projectID, stage, projectType, language, captureID, mimeType string) (*models.PipelineRun, error) {
	segs, err := chunker.Close()
	if err != nil {
		return nil, utils.E(utils.CodeInternal, "WSHandler.Capture", "failed to flush capture", err)
	}
	if len(segs) == 0 {
		return nil, utils.E(utils.CodeFailedPrecondition, "WSHandler.Capture", "no audio captured", utils.ErrNoSegmentsProduced)
	}
	src := models.RunSource{Live: true, MimeType: mimeType, FileName: "live-" + captureID}
	for _, seg := range segs {
		src.SegmentPaths = append(src.SegmentPaths, seg.LocalPath)
		src.SizeBytes += seg.SizeBytes
	}
	return h.runs.Start(ctx, services.StartRunRequest{
		ProjectID:   projectID,
		Stage:       stage,
		UserID:      userID,
		Language:    language,
		ProjectType: projectType,
		SourceID:    "live:" + captureID,
		Source:      src,
	})
}

// relay subscribes before taking the snapshot so no message published in
// between is lost.
func (h *WSHandler) relay(ctx context.Context, wc *wsConn, run *models.PipelineRun, locale string) {
	msgs, release, err := h.feed.Subscribe(ctx, run.RunID)
	if err != nil {
		wc.writeError(locale, utils.E(utils.CodeUnavailable, "WSHandler.relay", "progress feed unavailable", err))
		return
	}
	defer func() { _ = release() }()

	if snap, err := h.runs.Get(ctx, run.RunID); err == nil {
		run = snap
	}
	if err := wc.writeJSON(wsServerMsg{Type: "snapshot", Run: run}); err != nil {
		return
	}
	if pipeline.Stage(run.PipelineStage).Terminal() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if err := wc.writeText(m); err != nil {
				return
			}
			var p pipeline.Progress
			if json.Unmarshal(m, &p) == nil && p.Stage.Terminal() {
				return
			}
		}
	}
}

// drain reads until the client goes away so control frames are handled.
func drain(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
