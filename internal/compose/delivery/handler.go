package delivery

import (
	"errors"
	"io"
	"net/http"

	authdelivery "sage-backend/internal/auth/delivery"
	composedto "sage-backend/internal/compose/dto"
	"sage-backend/internal/compose/usecase"
	"sage-backend/internal/mail/domain"
	"sage-backend/pkg/ai"

	"github.com/gin-gonic/gin"
)

const maxAudioUpload = 25 << 20

type ComposeHandler struct {
	composeUsecase usecase.ComposeUsecase
}

func NewComposeHandler(composeUsecase usecase.ComposeUsecase) *ComposeHandler {
	return &ComposeHandler{composeUsecase: composeUsecase}
}

// POST /api/ai/summarize
func (h *ComposeHandler) Summarize(c *gin.Context) {
	var req composedto.SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.composeUsecase.Summarize(c.Request.Context(), req.EmailBody, req.Subject)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/ai/compose
func (h *ComposeHandler) Compose(c *gin.Context) {
	var req composedto.ComposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	draft, err := h.composeUsecase.Compose(c.Request.Context(), req.Prompt)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// POST /api/voice/transcribe (multipart field "audio")
func (h *ComposeHandler) Transcribe(c *gin.Context) {
	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioUpload+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read audio"})
		return
	}
	if len(audio) > maxAudioUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio file too large"})
		return
	}

	text, err := h.composeUsecase.Transcribe(c.Request.Context(), audio, header.Filename)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, composedto.TranscriptionResponse{Text: text})
}

// POST /api/voice/draft
func (h *ComposeHandler) VoiceDraft(c *gin.Context) {
	var req composedto.VoiceDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	draft, err := h.composeUsecase.DraftFromTranscript(c.Request.Context(), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// POST /api/voice/command
func (h *ComposeHandler) VoiceCommand(c *gin.Context) {
	var req composedto.VoiceCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd, err := h.composeUsecase.InterpretCommand(c.Request.Context(), req.Text, req.ContextSubject)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cmd)
}

// POST /api/mail/send
func (h *ComposeHandler) SendMail(c *gin.Context) {
	var req composedto.SendMailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	credential := c.GetString(authdelivery.ContextAccessToken)
	if err := h.composeUsecase.Send(c.Request.Context(), credential, req.To, req.Subject, req.Body); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email sent successfully"})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	message := "AI request failed"
	switch {
	case errors.Is(err, usecase.ErrInvalidRequest):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, ai.ErrUnsupportedAudio):
		status, message = http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, domain.ErrAIUnavailable):
		status, message = http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, domain.ErrSummaryFailed):
		status, message = http.StatusBadGateway, domain.NoticeNoSummary
	case errors.Is(err, domain.ErrUnsupported):
		status, message = http.StatusNotImplemented, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		status, message = http.StatusUnauthorized, err.Error()
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": message})
}
