package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/tidwall/gjson"
)

const maxAudioBytes = 25 << 20

var ErrUnsupportedAudio = errors.New("unsupported audio format")

// Transcriber converts recorded audio to text with the OpenAI whisper endpoint.
type Transcriber struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewTranscriber(apiKey, baseURL string) *Transcriber {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Transcriber{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   "whisper-1",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (t *Transcriber) Available() bool {
	return t.apiKey != ""
}

// Transcribe uploads audio and returns the recognised text. The payload is sniffed
// and anything that is not audio (or a webm recording) is rejected before upload.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if !t.Available() {
		return "", fmt.Errorf("transcriber not configured")
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio: %w", ErrUnsupportedAudio)
	}
	if len(audio) > maxAudioBytes {
		return "", fmt.Errorf("audio exceeds %d bytes: %w", maxAudioBytes, ErrUnsupportedAudio)
	}

	mt := mimetype.Detect(audio)
	if !isAudio(mt) {
		return "", fmt.Errorf("%s: %w", mt.String(), ErrUnsupportedAudio)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename == "" {
		filename = "recording" + mt.Extension()
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if err := w.WriteField("model", t.model); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API error (%d): %s", resp.StatusCode, string(body))
	}
	return strings.TrimSpace(gjson.GetBytes(body, "text").String()), nil
}

func isAudio(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") || m.Is("video/webm") {
			return true
		}
	}
	return false
}
