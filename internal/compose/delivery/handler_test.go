package delivery

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	authdelivery "sage-backend/internal/auth/delivery"
	"sage-backend/internal/compose/usecase"
	"sage-backend/internal/mail/domain"
	"sage-backend/pkg/ai"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type stubAssistant struct {
	err error
}

func (s *stubAssistant) SummarizeThread(_ context.Context, excerpt, subject string) (domain.SummaryResult, error) {
	if s.err != nil {
		return domain.SummaryResult{}, s.err
	}
	return domain.SummaryResult{Bullets: []string{subject + ": " + excerpt}, Category: domain.CategoryDecision}, nil
}

func (s *stubAssistant) ComposeFromPrompt(_ context.Context, prompt string) (ai.Draft, error) {
	return ai.Draft{To: "bob@example.com", Subject: "Re", Body: prompt}, s.err
}

func (s *stubAssistant) GenerateDraft(_ context.Context, transcript string) (ai.Draft, error) {
	return ai.Draft{Subject: "Dictated", Body: transcript}, s.err
}

func (s *stubAssistant) InterpretCommand(_ context.Context, transcript, contextSubject string) (ai.Command, error) {
	return ai.Command{Action: "reply", Response: contextSubject, Draft: transcript}, s.err
}

type stubTranscriber struct {
	err      error
	filename string
}

func (s *stubTranscriber) Transcribe(_ context.Context, audio []byte, filename string) (string, error) {
	s.filename = filename
	if s.err != nil {
		return "", s.err
	}
	return "heard " + string(audio), nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []domain.OutgoingMessage
	cred string
}

func (s *recordingSender) Send(_ context.Context, credential string, msg domain.OutgoingMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = credential
	s.sent = append(s.sent, msg)
	return nil
}

func newRouter(uc usecase.ComposeUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewComposeHandler(uc)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(authdelivery.ContextAccessToken, "mail-token")
		c.Next()
	})
	r.POST("/api/ai/summarize", h.Summarize)
	r.POST("/api/ai/compose", h.Compose)
	r.POST("/api/voice/transcribe", h.Transcribe)
	r.POST("/api/voice/draft", h.VoiceDraft)
	r.POST("/api/voice/command", h.VoiceCommand)
	r.POST("/api/mail/send", h.SendMail)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSendMail(t *testing.T) {
	sender := &recordingSender{}
	r := newRouter(usecase.NewComposeUsecase(&stubAssistant{}, nil, sender, zerolog.Nop()))

	w := postJSON(r, "/api/mail/send", `{"to":"Bob <bob@example.com>, carol@example.com","subject":"Hi","body":"line1\nline2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"bob@example.com", "carol@example.com"}, sender.sent[0].To)
	assert.Equal(t, "line1<br>line2", sender.sent[0].Body)
	assert.Equal(t, "mail-token", sender.cred)

	for _, body := range []string{
		`{"subject":"Hi","body":"x"}`,
		`{"to":"bob@example.com","body":"x"}`,
		`{"to":"bob@example.com","subject":"Hi"}`,
		`{"to":"not an address","subject":"Hi","body":"x"}`,
	} {
		w = postJSON(r, "/api/mail/send", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Len(t, sender.sent, 1)
}

func TestSendMailUnsupported(t *testing.T) {
	r := newRouter(usecase.NewComposeUsecase(&stubAssistant{}, nil, nil, zerolog.Nop()))
	w := postJSON(r, "/api/mail/send", `{"to":"bob@example.com","subject":"Hi","body":"x"}`)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestAIRoutes(t *testing.T) {
	r := newRouter(usecase.NewComposeUsecase(&stubAssistant{}, nil, nil, zerolog.Nop()))

	w := postJSON(r, "/api/ai/summarize", `{"emailBody":"ship it","subject":"Launch"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Launch: ship it", gjson.Get(w.Body.String(), "bullets.0").String())
	assert.Equal(t, "decision", gjson.Get(w.Body.String(), "category").String())

	w = postJSON(r, "/api/ai/summarize", `{"emailBody":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/ai/compose", `{"prompt":"tell bob hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob@example.com", gjson.Get(w.Body.String(), "to").String())

	w = postJSON(r, "/api/voice/draft", `{"text":"dear team"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dear team", gjson.Get(w.Body.String(), "body").String())

	w = postJSON(r, "/api/voice/command", `{"text":"say yes","contextSubject":"Launch"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "reply", gjson.Get(w.Body.String(), "action").String())
	assert.Equal(t, "Launch", gjson.Get(w.Body.String(), "response").String())
}

func TestAIErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrAIUnavailable, http.StatusServiceUnavailable},
		{domain.ErrSummaryFailed, http.StatusBadGateway},
		{errors.New("openai API error (500)"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		r := newRouter(usecase.NewComposeUsecase(&stubAssistant{err: tt.err}, nil, nil, zerolog.Nop()))
		w := postJSON(r, "/api/ai/summarize", `{"emailBody":"x","subject":"y"}`)
		assert.Equal(t, tt.status, w.Code, tt.err.Error())
	}
}

func multipartAudio(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "memo.webm")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/voice/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestTranscribe(t *testing.T) {
	tr := &stubTranscriber{}
	r := newRouter(usecase.NewComposeUsecase(&stubAssistant{}, tr, nil, zerolog.Nop()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartAudio(t, "audio", []byte("abc")))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "heard abc", gjson.Get(w.Body.String(), "text").String())
	assert.Equal(t, "memo.webm", tr.filename)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartAudio(t, "file", []byte("abc")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tr.err = ai.ErrUnsupportedAudio
	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartAudio(t, "audio", []byte("abc")))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	noTranscriber := newRouter(usecase.NewComposeUsecase(&stubAssistant{}, nil, nil, zerolog.Nop()))
	w = httptest.NewRecorder()
	noTranscriber.ServeHTTP(w, multipartAudio(t, "audio", []byte("abc")))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
