package workspace

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dataghost-gateway/internal/api"
	"dataghost-gateway/internal/journal"
	"dataghost-gateway/internal/shared/server/middleware"
	"dataghost-gateway/internal/shared/server/respond"
)

const (
	maxDatasetSize = 50 << 20 // 50MB
	maxContextSize = 25 << 20 // 25MB per batch
	maxAudioSize   = 10 << 20 // 10MB

	defaultJournalLimit = 50
	maxJournalLimit     = 200
)

// JournalReader lists recorded remote calls.
type JournalReader interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]journal.Entry, error)
}

// Handler exposes sessions over HTTP.
type Handler struct {
	Sessions *SessionStore
	Journal  JournalReader
}

// NewHandler constructs a Handler.
func NewHandler(sessions *SessionStore, j JournalReader) *Handler {
	return &Handler{Sessions: sessions, Journal: j}
}

// RegisterRoutes attaches workspace routes. askMiddleware guards the ask endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, askMiddleware ...gin.HandlerFunc) {
	ws := rg.Group("/workspace")
	ws.GET("", h.snapshot)
	ws.GET("/dataset", h.datasetSummary)
	ws.POST("/dataset", h.uploadDataset)
	ws.POST("/context", h.uploadContext)
	ws.POST("/question", h.editQuestion)
	ws.POST("/ask", chain(askMiddleware, h.ask)...)
	ws.POST("/clarifications", chain(askMiddleware, h.clarify)...)
	ws.POST("/voice/transcribe", h.transcribe)
	ws.POST("/voice/readback", h.readback)
	ws.GET("/audio/*key", h.audio)
	ws.GET("/journal", h.listJournal)
}

func (h *Handler) session(c *gin.Context) (*Session, context.Context) {
	id := middleware.UserIDFromContext(c)
	return h.Sessions.Get(id), journal.WithSession(c.Request.Context(), id)
}

func (h *Handler) snapshot(c *gin.Context) {
	sess, _ := h.session(c)
	reply(c, sess)
}

func (h *Handler) datasetSummary(c *gin.Context) {
	sess, ctx := h.session(c)
	if c.Query("refresh") == "true" {
		_, _ = sess.RefreshSummary(ctx)
	} else {
		_, _ = sess.DatasetSummary(ctx)
	}
	reply(c, sess)
}

func (h *Handler) uploadDataset(c *gin.Context) {
	sess, ctx := h.session(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxDatasetSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, closeFn, err := openPart(fileHeader)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer closeFn()

	_, _ = sess.UploadDataset(ctx, file)
	reply(c, sess)
}

func (h *Handler) uploadContext(c *gin.Context) {
	sess, ctx := h.session(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxContextSize)

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "files are required", nil)
		return
	}
	headers := form.File["files"]
	files := make([]api.File, 0, len(headers))
	for _, fh := range headers {
		file, closeFn, err := openPart(fh)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		defer closeFn()
		files = append(files, file)
	}

	if _, err := sess.UploadContext(ctx, files); err != nil {
		if h.precondition(c, err) {
			return
		}
	}
	reply(c, sess)
}

type questionRequest struct {
	Question string `json:"question"`
}

func (h *Handler) editQuestion(c *gin.Context) {
	sess, _ := h.session(c)
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	sess.Edit(req.Question)
	reply(c, sess)
}

func (h *Handler) ask(c *gin.Context) {
	sess, ctx := h.session(c)
	var req questionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}
	if _, err := sess.Ask(ctx, req.Question); err != nil {
		if h.precondition(c, err) {
			return
		}
	}
	reply(c, sess)
}

type clarificationsRequest struct {
	Clarifications map[string]string `json:"clarifications"`
}

func (h *Handler) clarify(c *gin.Context) {
	sess, ctx := h.session(c)
	var req clarificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if _, err := sess.SubmitClarifications(ctx, req.Clarifications); err != nil {
		if h.precondition(c, err) {
			return
		}
	}
	reply(c, sess)
}

func (h *Handler) transcribe(c *gin.Context) {
	sess, ctx := h.session(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAudioSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, closeFn, err := openPart(fileHeader)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer closeFn()

	_, _ = sess.Transcribe(ctx, file)
	reply(c, sess)
}

func (h *Handler) readback(c *gin.Context) {
	sess, ctx := h.session(c)
	if _, err := sess.Readback(ctx); err != nil {
		if h.precondition(c, err) {
			return
		}
	}
	reply(c, sess)
}

func (h *Handler) audio(c *gin.Context) {
	sess, ctx := h.session(c)
	key := strings.TrimPrefix(c.Param("key"), "/")

	rc, err := sess.OpenAudio(ctx, key)
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "audio not found", nil)
		return
	}
	defer rc.Close()

	contentType := "audio/mpeg"
	if snap := sess.Snapshot(); snap.Readback != nil && snap.Readback.Key == key && snap.Readback.ContentType != "" {
		contentType = snap.Readback.ContentType
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		_ = c.Error(err)
	}
}

func (h *Handler) listJournal(c *gin.Context) {
	if h.Journal == nil {
		respond.OK(c, gin.H{"items": []journal.Entry{}})
		return
	}
	sess, ctx := h.session(c)

	limit := defaultJournalLimit
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxJournalLimit {
		limit = maxJournalLimit
	}

	items, err := h.Journal.ListBySession(ctx, sess.ID(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list journal", nil)
		return
	}
	if items == nil {
		items = []journal.Entry{}
	}
	respond.OK(c, gin.H{"items": items})
}

// precondition writes an error response for local precondition failures.
// Remote failures are left to the snapshot.
func (h *Handler) precondition(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, ErrEmptyQuestion):
		respond.Error(c, http.StatusBadRequest, "validation_error", "question is required", nil)
	case errors.Is(err, ErrNoFiles):
		respond.Error(c, http.StatusBadRequest, "validation_error", "files are required", nil)
	case errors.Is(err, ErrNoDataset):
		respond.Error(c, http.StatusConflict, "dataset_required", "Upload a dataset before asking a question", nil)
	case errors.Is(err, ErrNoConversation):
		respond.Error(c, http.StatusConflict, "no_conversation", "No clarification is pending", nil)
	case errors.Is(err, ErrNoAnswer):
		respond.Error(c, http.StatusConflict, "no_answer", "No answer to read back", nil)
	default:
		return false
	}
	return true
}

func reply(c *gin.Context, sess *Session) {
	snap := sess.Snapshot()
	c.Set("conversationPhase", string(snap.Conversation.Phase))
	respond.OK(c, snap)
}

func chain(mw []gin.HandlerFunc, last gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, last)
}

func openPart(fh *multipart.FileHeader) (api.File, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return api.File{}, nil, err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return api.File{Name: fh.Filename, ContentType: contentType, Content: f}, func() { _ = f.Close() }, nil
}
