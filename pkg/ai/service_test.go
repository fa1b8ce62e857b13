package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sage-backend/internal/mail/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeProvider struct {
	name      string
	available bool
	reply     string
	err       error
	calls     int
	lastReq   CompletionRequest
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.calls++
	f.lastReq = req
	return f.reply, f.err
}

func newTestService(p Provider) *Service {
	return NewService(p, time.Millisecond, time.Second, zerolog.Nop())
}

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		bullets  []string
		category domain.Category
		wantErr  bool
	}{
		{
			name:     "json object",
			reply:    `{"bullets": ["Budget approved", "Launch moved"], "category": "decision"}`,
			bullets:  []string{"Budget approved", "Launch moved"},
			category: domain.CategoryDecision,
		},
		{
			name:     "fenced json with unknown category",
			reply:    "```json\n{\"bullets\": [\"One\"], \"category\": \"urgent\"}\n```",
			bullets:  []string{"One"},
			category: domain.CategoryFYI,
		},
		{
			name:     "caps at three and drops empties",
			reply:    `{"bullets": ["a", " ", "- b", "c", "d"], "category": "GATEKEEPER"}`,
			bullets:  []string{"a", "b", "c"},
			category: domain.CategoryGatekeeper,
		},
		{
			name:     "plain bullet lines",
			reply:    "Here you go:\n• First point\n- Second point\nnot a bullet\n* Third point",
			bullets:  []string{"First point", "Second point", "Third point"},
			category: domain.CategoryFYI,
		},
		{
			name:     "summary string field",
			reply:    `{"summary": "- Only line", "category": "fyi"}`,
			bullets:  []string{"Only line"},
			category: domain.CategoryFYI,
		},
		{name: "no bullets", reply: `{"bullets": [], "category": "fyi"}`, wantErr: true},
		{name: "prose", reply: "I cannot help with that.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSummary(tt.reply)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrSummaryFailed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bullets, got.Bullets)
			assert.Equal(t, tt.category, got.Category)
		})
	}
}

func TestParseCommand(t *testing.T) {
	cmd := ParseCommand(`{"action": "Search", "response": "Looking", "searchQuery": "invoices"}`)
	assert.Equal(t, "search", cmd.Action)
	assert.Equal(t, "invoices", cmd.SearchQuery)

	cmd = ParseCommand(`{"action": "delete_everything", "response": "no"}`)
	assert.Equal(t, "chat", cmd.Action)

	cmd = ParseCommand("Sure, happy to help")
	assert.Equal(t, Command{Action: "chat", Response: "Sure, happy to help"}, cmd)
}

func TestParseDraft(t *testing.T) {
	d := ParseDraft(`{"to": "bob@example.com", "subject": "Hi", "body": "Hello Bob"}`)
	assert.Equal(t, Draft{To: "bob@example.com", Subject: "Hi", Body: "Hello Bob"}, d)

	d = ParseDraft("  just text  ")
	assert.Equal(t, Draft{Body: "just text"}, d)
}

func TestSummarizeThread(t *testing.T) {
	p := &fakeProvider{name: "fake", available: true, reply: `{"bullets":["x"],"category":"decision"}`}
	svc := newTestService(p)

	got, err := svc.SummarizeThread(context.Background(), "From Ada (2024-01-01): hi", "Plan")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.Bullets)
	assert.True(t, p.lastReq.JSON)
	assert.Contains(t, p.lastReq.Prompt, "Subject: Plan")
	assert.Contains(t, p.lastReq.Prompt, "From Ada")

	_, err = svc.SummarizeThread(context.Background(), "   ", "Plan")
	assert.ErrorIs(t, err, domain.ErrSummaryFailed)
	assert.Equal(t, 1, p.calls)
}

func TestServiceWithoutProvider(t *testing.T) {
	svc := newTestService(nil)
	_, err := svc.ComposeFromPrompt(context.Background(), "write to bob")
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, "", svc.ProviderName())

	svc.SetProvider(&fakeProvider{name: "fake", available: true, reply: "{}"})
	assert.Equal(t, "fake", svc.ProviderName())
}

func TestProviderErrorPropagates(t *testing.T) {
	svc := newTestService(&fakeProvider{name: "fake", available: true, err: errors.New("boom")})
	_, err := svc.InterpretCommand(context.Background(), "archive this", "Plan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestFallbackService(t *testing.T) {
	down := &fakeProvider{name: "down", available: true, err: errors.New("dial tcp: connection refused")}
	off := &fakeProvider{name: "off", available: false, reply: "never"}
	up := &fakeProvider{name: "up", available: true, reply: "ok"}

	chain := NewFallbackService(zerolog.Nop(), down, off, up)
	assert.Equal(t, "fallback(down,up)", chain.Name())

	got, err := chain.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, down.calls)
	assert.Equal(t, 0, off.calls)

	empty := NewFallbackService(zerolog.Nop(), off)
	assert.False(t, empty.Available())
	_, err = empty.Complete(context.Background(), CompletionRequest{})
	assert.Error(t, err)
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, isConnectionError(errors.New("Post: dial tcp 127.0.0.1:11434: connection refused")))
	assert.False(t, isConnectionError(errors.New("bad request")))
	assert.True(t, isQuotaError(errors.New("openai API error (429): rate limit")))
	assert.False(t, isQuotaError(nil))
}

func TestOpenAIProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "json_object", gjson.GetBytes(body, "response_format.type").String())
		assert.Equal(t, "system", gjson.GetBytes(body, "messages.0.role").String())
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "", srv.URL+"/")
	got, err := p.Complete(context.Background(), CompletionRequest{System: "s", Prompt: "p", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, got)
}

func TestOllamaProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "mistral", gjson.GetBytes(body, "model").String())
		assert.Equal(t, "json", gjson.GetBytes(body, "format").String())
		_, _ = w.Write([]byte(`{"response":"hello","done":true}`))
	}))
	defer srv.Close()

	model := "mistral"
	p := NewOllamaServiceWithGetters(func() string { return srv.URL }, func() string { return model })
	got, err := p.Complete(context.Background(), CompletionRequest{Prompt: "p", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(Config{Provider: ProviderOpenAI}, zerolog.Nop())
	assert.Error(t, err)

	p, err := NewProvider(Config{Provider: ProviderOllama}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	p, err = NewProvider(Config{Provider: ProviderAuto, OpenAIAPIKey: "sk"}, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.Name(), "fallback(openai"))
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "recording.wav", header.Filename)
		_, _ = w.Write([]byte(`{"text":" reply yes to Ada "}`))
	}))
	defer srv.Close()

	wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
	tr := NewTranscriber("sk-test", srv.URL)
	text, err := tr.Transcribe(context.Background(), wav, "")
	require.NoError(t, err)
	assert.Equal(t, "reply yes to Ada", text)

	_, err = tr.Transcribe(context.Background(), []byte("%PDF-1.7 not audio"), "doc.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedAudio)

	_, err = NewTranscriber("", srv.URL).Transcribe(context.Background(), wav, "a.wav")
	assert.Error(t, err)
}
