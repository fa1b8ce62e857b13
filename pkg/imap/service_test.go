package imap

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"sage-backend/internal/mail/domain"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multipartReply = "From: Ada Lovelace <ada@example.com>\r\n" +
	"To: Bob <bob@example.com>, carol@example.com\r\n" +
	"Subject: Re: Engine notes\r\n" +
	"Date: Tue, 02 Jan 2024 10:00:00 +0000\r\n" +
	"Message-ID: <reply-2@example.com>\r\n" +
	"In-Reply-To: <reply-1@example.com>\r\n" +
	"References: <root@example.com> <reply-1@example.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Plain   version\r\nof the note\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"PHA+SFRNTCB2ZXJzaW9uPC9wPg==\r\n" +
	"--b1--\r\n"

func TestParseMessageBuildsPartTree(t *testing.T) {
	m, err := ParseMessage(strings.NewReader(multipartReply))
	require.NoError(t, err)

	assert.Equal(t, "reply-2@example.com", m.ID)
	assert.Equal(t, "root@example.com", m.ThreadID)
	assert.Equal(t, "Re: Engine notes", m.Subject)
	assert.Equal(t, domain.Address{Name: "Ada Lovelace", Address: "ada@example.com"}, m.From)
	assert.Len(t, m.To, 2)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), m.CreatedTime)
	assert.Equal(t, "Plain version of the note", m.Snippet)

	require.Len(t, m.Body.Parts, 1)
	root, ok := m.Body.Parts[0].(*domain.ContainerPart)
	require.True(t, ok)
	assert.Equal(t, "multipart/alternative", root.MimeType)
	require.Len(t, root.Children, 2)
	html, ok := root.Children[1].(*domain.LeafPart)
	require.True(t, ok)
	assert.Equal(t, "text/html", html.MimeType)
	assert.Equal(t, "<p>HTML version</p>", html.Content)
}

func TestParseMessageThreadFallbacks(t *testing.T) {
	onlyParent := "Message-ID: <b@x>\r\nIn-Reply-To: <a@x>\r\nContent-Type: text/plain\r\n\r\nhi"
	m, err := ParseMessage(strings.NewReader(onlyParent))
	require.NoError(t, err)
	assert.Equal(t, "a@x", m.ThreadID)

	standalone := "Message-ID: <solo@x>\r\n\r\nhi"
	m, err = ParseMessage(strings.NewReader(standalone))
	require.NoError(t, err)
	assert.Equal(t, "solo@x", m.ThreadID)
	assert.Equal(t, "hi", m.Body.TextBody)
}

func startMemoryServer(t *testing.T) (string, int) {
	t.Helper()
	s := server.New(memory.New())
	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() { _ = s.Close() })

	addr := l.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestServiceAgainstMemoryBackend(t *testing.T) {
	host, port := startMemoryServer(t)
	svc := NewService(Config{Server: host, Port: port, Username: "username"}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msgs, err := svc.ListThreadMessages(ctx, "password", "ignored")
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "A little message, just for you", msgs[0].Subject)
	assert.Equal(t, "contact@example.org", msgs[0].From.Address)
	assert.Contains(t, msgs[0].Body.TextBody, "Hi there")

	inbox, err := svc.ListInbox(ctx, "password", 5)
	require.NoError(t, err)
	require.NotEmpty(t, inbox)
	assert.Empty(t, inbox[0].Body.Parts)
	assert.Equal(t, msgs[0].ThreadID, inbox[0].ThreadID)
}

func TestServiceRejectsBadPassword(t *testing.T) {
	host, port := startMemoryServer(t)
	svc := NewService(Config{Server: host, Port: port, Username: "username"}, zerolog.Nop())

	_, err := svc.ListInbox(context.Background(), "wrong", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}
