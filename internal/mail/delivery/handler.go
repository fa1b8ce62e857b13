package delivery

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	authdelivery "sage-backend/internal/auth/delivery"
	"sage-backend/internal/mail/domain"
	maildto "sage-backend/internal/mail/dto"
	"sage-backend/internal/mail/usecase"
	"sage-backend/pkg/aurinko"

	"github.com/gin-gonic/gin"
)

// EventStream serves the per-user server-sent event stream.
type EventStream interface {
	ServeHTTP(c *gin.Context, userID string)
}

// MessageInspector reports the raw body shape of one message.
type MessageInspector interface {
	InspectMessage(ctx context.Context, credential, id string) (aurinko.BodyShape, error)
}

type MailHandler struct {
	threadUsecase usecase.ThreadUsecase
	viewUsecase   usecase.ViewUsecase
	events        EventStream
	inspector     MessageInspector
}

func NewMailHandler(threadUsecase usecase.ThreadUsecase, viewUsecase usecase.ViewUsecase, events EventStream) *MailHandler {
	return &MailHandler{
		threadUsecase: threadUsecase,
		viewUsecase:   viewUsecase,
		events:        events,
	}
}

// SetInspector enables the body-shape debug route.
func (h *MailHandler) SetInspector(inspector MessageInspector) {
	h.inspector = inspector
}

// GET /api/inbox?limit=&q=
func (h *MailHandler) GetInbox(c *gin.Context) {
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	query := c.Query("q")

	msgs, err := h.threadUsecase.Inbox(c.Request.Context(), credential(c), limit, query)
	if err != nil {
		writeError(c, err, "Failed to load inbox.")
		return
	}
	c.JSON(http.StatusOK, maildto.NewInboxResponse(msgs, query))
}

// GET /api/threads/:threadId
func (h *MailHandler) GetThread(c *gin.Context) {
	thread, err := h.threadUsecase.GetThread(c.Request.Context(), credential(c), c.Param("threadId"))
	if err != nil {
		writeError(c, err, domain.NoticeLoadFailed)
		return
	}
	c.JSON(http.StatusOK, maildto.ThreadResponse{Thread: thread})
}

// GET /api/view
func (h *MailHandler) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, h.viewUsecase.Snapshot(userID(c)))
}

// POST /api/view/select
func (h *MailHandler) SelectThread(c *gin.Context) {
	var req maildto.SelectThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threadId is required"})
		return
	}

	snap, err := h.viewUsecase.Select(c.Request.Context(), userID(c), credential(c), req.ThreadID)
	if err != nil {
		writeError(c, err, domain.NoticeLoadFailed)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// POST /api/view/retry
func (h *MailHandler) RetryView(c *gin.Context) {
	snap, err := h.viewUsecase.Retry(c.Request.Context(), userID(c), credential(c))
	if err != nil {
		writeError(c, err, domain.NoticeLoadFailed)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// POST /api/view/messages/:id/toggle
func (h *MailHandler) ToggleMessage(c *gin.Context) {
	snap, err := h.viewUsecase.ToggleExpanded(userID(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// DELETE /api/view
func (h *MailHandler) CloseView(c *gin.Context) {
	h.viewUsecase.Close(userID(c))
	c.JSON(http.StatusOK, gin.H{"message": "view closed"})
}

// GET /api/events
func (h *MailHandler) Events(c *gin.Context) {
	h.events.ServeHTTP(c, userID(c))
}

// GET /api/debug/messages/:id
func (h *MailHandler) DebugMessage(c *gin.Context) {
	if h.inspector == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": domain.ErrUnsupported.Error()})
		return
	}
	shape, err := h.inspector.InspectMessage(c.Request.Context(), credential(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "Failed to load message.")
		return
	}
	c.JSON(http.StatusOK, shape)
}

func userID(c *gin.Context) string {
	return c.GetString(authdelivery.ContextUserID)
}

func credential(c *gin.Context) string {
	return c.GetString(authdelivery.ContextAccessToken)
}

// writeError maps domain errors to status codes. Upstream failures are reported with the
// generic message; the detail is left to the request log.
func writeError(c *gin.Context, err error, upstreamMessage string) {
	status, message := http.StatusBadGateway, upstreamMessage
	switch {
	case errors.Is(err, domain.ErrInvalidThreadID):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrThreadNotFound):
		status, message = http.StatusNotFound, domain.NoticeNotFound
	case errors.Is(err, domain.ErrNoSession), errors.Is(err, domain.ErrMessageNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrSuperseded):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrUnsupported):
		status, message = http.StatusNotImplemented, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		status, message = http.StatusUnauthorized, err.Error()
	}
	if message == "" {
		message = http.StatusText(status)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": message})
}
