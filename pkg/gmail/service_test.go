package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
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
)

const threadJSON = `{
  "id": "T1",
  "messages": [{
    "id": "m1",
    "threadId": "T1",
    "internalDate": "1704189600000",
    "snippet": "Hi &amp; bye",
    "payload": {
      "mimeType": "multipart/alternative",
      "headers": [
        {"name": "Subject", "value": "Quarterly plan"},
        {"name": "From", "value": "Ada Lovelace <ada@example.com>"},
        {"name": "To", "value": "bob@example.com, \"Carol\" <carol@example.com>"}
      ],
      "parts": [
        {"mimeType": "text/plain", "body": {"data": "cGxhaW4gYm9keQ=="}},
        {"mimeType": "text/html", "body": {"data": "PGI-aGk8L2I-"}}
      ]
    }
  }]
}`

func newGmailServer(t *testing.T, sent *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Header.Get("Authorization") == "Bearer revoked":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":401,"message":"invalid"}}`))
		case strings.HasSuffix(r.URL.Path, "/threads/T1"):
			_, _ = w.Write([]byte(threadJSON))
		case strings.Contains(r.URL.Path, "/threads/"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
		case strings.HasSuffix(r.URL.Path, "/messages/send"):
			body, _ := io.ReadAll(r.Body)
			*sent = string(body)
			_, _ = w.Write([]byte(`{"id":"out1"}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListThreadMessages(t *testing.T) {
	var sent string
	srv := newGmailServer(t, &sent)
	s := NewService(zerolog.Nop())
	s.SetEndpoint(srv.URL + "/")

	msgs, err := s.ListThreadMessages(context.Background(), "tok", "T1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Equal(t, "T1", m.ThreadID)
	assert.Equal(t, "Quarterly plan", m.Subject)
	assert.Equal(t, domain.Address{Name: "Ada Lovelace", Address: "ada@example.com"}, m.From)
	assert.Equal(t, []domain.Address{{Address: "bob@example.com"}, {Name: "Carol", Address: "carol@example.com"}}, m.To)
	assert.Equal(t, "Hi & bye", m.Snippet)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), m.CreatedTime)
	assert.Equal(t, "plain body", m.Body.TextBody)

	require.Len(t, m.Body.Parts, 1)
	root, ok := m.Body.Parts[0].(*domain.ContainerPart)
	require.True(t, ok)
	require.Len(t, root.Children, 2)
	html, ok := root.Children[1].(*domain.LeafPart)
	require.True(t, ok)
	assert.Equal(t, "PGI-aGk8L2I-", html.Data)
}

func TestListThreadMessagesNotFoundIsEmpty(t *testing.T) {
	var sent string
	srv := newGmailServer(t, &sent)
	s := NewService(zerolog.Nop())
	s.SetEndpoint(srv.URL + "/")

	msgs, err := s.ListThreadMessages(context.Background(), "tok", "missing")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestListThreadMessagesUnauthorized(t *testing.T) {
	var sent string
	srv := newGmailServer(t, &sent)
	s := NewService(zerolog.Nop())
	s.SetEndpoint(srv.URL + "/")

	_, err := s.ListThreadMessages(context.Background(), "revoked", "T1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestSendBuildsMIME(t *testing.T) {
	var sent string
	srv := newGmailServer(t, &sent)
	s := NewService(zerolog.Nop())
	s.SetEndpoint(srv.URL + "/")

	err := s.Send(context.Background(), "tok", domain.OutgoingMessage{
		To:      []string{"bob@example.com"},
		Subject: "Héllo",
		Body:    "<p>hi</p>",
	})
	require.NoError(t, err)

	var payload struct {
		Raw string `json:"raw"`
	}
	require.NoError(t, json.Unmarshal([]byte(sent), &payload))
	raw, err := base64.URLEncoding.DecodeString(payload.Raw)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "To: bob@example.com\r\n")
	assert.Contains(t, string(raw), "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(string(raw), "<p>hi</p>"))
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Address
	}{
		{"", domain.Address{}},
		{"ada@example.com", domain.Address{Address: "ada@example.com"}},
		{"Ada <ada@example.com>", domain.Address{Name: "Ada", Address: "ada@example.com"}},
		{"Broken Name, Inc <x@example.com>", domain.Address{Name: "Broken Name, Inc", Address: "x@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAddress(tt.in))
		})
	}
}
