package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"sage-backend/internal/mail/domain"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const user = "me"

// Service reads threads through the Gmail API. It implements domain.MessageSource and domain.MailSender.
type Service struct {
	endpoint string
	log      zerolog.Logger
}

func NewService(log zerolog.Logger) *Service {
	return &Service{log: log}
}

// SetEndpoint overrides the API root, used against local test servers.
func (s *Service) SetEndpoint(endpoint string) {
	s.endpoint = endpoint
}

// GetGmailService creates a Gmail client authorised with the caller's access token.
func (s *Service) GetGmailService(ctx context.Context, accessToken string) (*gmail.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// ListThreadMessages returns every message of the thread. An unknown thread yields an empty list.
func (s *Service) ListThreadMessages(ctx context.Context, accessToken, threadID string) ([]domain.Message, error) {
	srv, err := s.GetGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	thread, err := srv.Users.Threads.Get(user, threadID).Format("full").Context(ctx).Do()
	if isNotFound(err) {
		return []domain.Message{}, nil
	}
	if err != nil {
		return nil, mapAPIError("unable to retrieve thread", err)
	}

	messages := make([]domain.Message, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		messages = append(messages, convertMessage(m))
	}
	return messages, nil
}

// ListInbox returns the newest inbox messages with headers only.
func (s *Service) ListInbox(ctx context.Context, accessToken string, limit int) ([]domain.Message, error) {
	srv, err := s.GetGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Users.Messages.List(user).LabelIds("INBOX").MaxResults(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, mapAPIError("unable to list messages", err)
	}

	messages := make([]domain.Message, len(resp.Messages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5)
	for i, ref := range resp.Messages {
		i, id := i, ref.Id
		g.Go(func() error {
			msg, err := srv.Users.Messages.Get(user, id).Format("metadata").
				MetadataHeaders("From", "To", "Subject").Context(gctx).Do()
			if err != nil {
				return mapAPIError("unable to retrieve message "+id, err)
			}
			messages[i] = convertMessage(msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return messages, nil
}

// Send delivers an HTML message as raw MIME.
func (s *Service) Send(ctx context.Context, accessToken string, out domain.OutgoingMessage) error {
	srv, err := s.GetGmailService(ctx, accessToken)
	if err != nil {
		return err
	}

	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(buildMIME(out))}
	if _, err := srv.Users.Messages.Send(user, msg).Context(ctx).Do(); err != nil {
		return mapAPIError("unable to send message", err)
	}
	s.log.Info().Int("recipients", len(out.To)).Msg("message sent")
	return nil
}

func buildMIME(out domain.OutgoingMessage) []byte {
	var b bytes.Buffer
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(out.To, ", ")))
	// RFC 2047 so non-ASCII subjects survive
	b.WriteString(fmt.Sprintf("Subject: =?utf-8?B?%s?=\r\n", base64.StdEncoding.EncodeToString([]byte(out.Subject))))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(out.Body)
	return b.Bytes()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func mapAPIError(msg string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
		return fmt.Errorf("%s: %w", msg, domain.ErrUnauthorized)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func convertMessage(msg *gmail.Message) domain.Message {
	m := domain.Message{
		ID:          msg.Id,
		ThreadID:    msg.ThreadId,
		Snippet:     html.UnescapeString(msg.Snippet),
		CreatedTime: time.UnixMilli(msg.InternalDate).UTC(),
	}
	if msg.Payload == nil {
		return m
	}

	headers := msg.Payload.Headers
	m.Subject = getHeader(headers, "Subject")
	m.From = parseAddress(getHeader(headers, "From"))
	if list, err := mail.ParseAddressList(getHeader(headers, "To")); err == nil {
		for _, a := range list {
			m.To = append(m.To, domain.Address{Name: a.Name, Address: a.Address})
		}
	}

	m.Body.Parts = []domain.Part{convertPart(msg.Payload)}
	m.Body.TextBody = findPlainText(msg.Payload)
	return m
}

func convertPart(p *gmail.MessagePart) domain.Part {
	if len(p.Parts) > 0 {
		container := &domain.ContainerPart{MimeType: p.MimeType}
		for _, child := range p.Parts {
			container.Children = append(container.Children, convertPart(child))
		}
		return container
	}
	leaf := &domain.LeafPart{MimeType: p.MimeType}
	if p.Body != nil {
		leaf.Data = p.Body.Data
	}
	return leaf
}

// findPlainText returns the first decodable text/plain leaf.
func findPlainText(p *gmail.MessagePart) string {
	if p.MimeType == "text/plain" && p.Body != nil && p.Body.Data != "" {
		if data, err := decodeBase64URL(p.Body.Data); err == nil {
			return string(data)
		}
	}
	for _, child := range p.Parts {
		if text := findPlainText(child); text != "" {
			return text
		}
	}
	return ""
}

func decodeBase64URL(s string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return base64.RawURLEncoding.DecodeString(s)
	}
	return data, nil
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// parseAddress handles "Name <addr>" and bare addresses.
func parseAddress(raw string) domain.Address {
	if raw == "" {
		return domain.Address{}
	}
	if a, err := mail.ParseAddress(raw); err == nil {
		return domain.Address{Name: a.Name, Address: a.Address}
	}
	if idx := strings.Index(raw, "<"); idx > 0 {
		return domain.Address{
			Name:    strings.Trim(strings.TrimSpace(raw[:idx]), `"`),
			Address: strings.Trim(raw[idx:], "<> "),
		}
	}
	return domain.Address{Address: strings.TrimSpace(raw)}
}
