package aurinko

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sage-backend/internal/mail/domain"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const (
	maxPageSize = 50
	defaultURL  = "https://api.aurinko.io"
)

// Client talks to the Aurinko unified mail API. It implements domain.MessageSource and domain.MailSender.
type Client struct {
	baseURL   string
	scanLimit int
	base      *http.Client
	log       zerolog.Logger
}

// NewClient builds a client. scanLimit caps how many records a thread lookup scans.
func NewClient(baseURL string, scanLimit int, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultURL
	}
	if scanLimit <= 0 {
		scanLimit = maxPageSize
	}
	return &Client{
		baseURL:   baseURL,
		scanLimit: scanLimit,
		base:      &http.Client{Timeout: 30 * time.Second},
		log:       log,
	}
}

// httpClient wraps the base client with a bearer token source for this credential.
func (c *Client) httpClient(ctx context.Context, credential string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential, TokenType: "Bearer"})
	return oauth2.NewClient(ctx, ts)
}

// ListThreadMessages scans recent messages with bodies. The upstream cannot filter by thread,
// so the result may include other threads.
func (c *Client) ListThreadMessages(ctx context.Context, credential, threadID string) ([]domain.Message, error) {
	return c.listMessages(ctx, credential, c.scanLimit, true)
}

// ListInbox returns the newest messages without bodies.
func (c *Client) ListInbox(ctx context.Context, credential string, limit int) ([]domain.Message, error) {
	return c.listMessages(ctx, credential, limit, false)
}

func (c *Client) listMessages(ctx context.Context, credential string, limit int, withBody bool) ([]domain.Message, error) {
	client := c.httpClient(ctx, credential)

	messages := make([]domain.Message, 0, limit)
	pageToken := ""
	for len(messages) < limit {
		pageSize := limit - len(messages)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("returnBody", strconv.FormatBool(withBody))
		if withBody {
			q.Set("bodyType", "html")
		}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		body, err := c.do(ctx, client, http.MethodGet, "/v1/email/messages?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}

		page := gjson.ParseBytes(body)
		records := page.Get("records").Array()
		for _, rec := range records {
			messages = append(messages, decodeMessage(rec))
		}

		pageToken = page.Get("nextPageToken").String()
		if pageToken == "" || len(records) == 0 {
			break
		}
	}

	if len(messages) > limit {
		messages = messages[:limit]
	}
	c.log.Debug().Int("count", len(messages)).Bool("with_body", withBody).Msg("listed messages")
	return messages, nil
}

// Send posts an HTML message with send=true.
func (c *Client) Send(ctx context.Context, credential string, msg domain.OutgoingMessage) error {
	type recipient struct {
		Address string `json:"address"`
	}
	payload := struct {
		Subject string      `json:"subject"`
		Body    string      `json:"body"`
		To      []recipient `json:"to"`
	}{Subject: msg.Subject, Body: msg.Body}
	for _, addr := range msg.To {
		payload.To = append(payload.To, recipient{Address: addr})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err := c.do(ctx, c.httpClient(ctx, credential), http.MethodPost, "/v1/email/messages?send=true", data); err != nil {
		return err
	}
	c.log.Info().Int("recipients", len(payload.To)).Msg("message sent")
	return nil
}

// GetMessageRaw returns one message record as delivered by the API.
func (c *Client) GetMessageRaw(ctx context.Context, credential, id string) ([]byte, error) {
	return c.do(ctx, c.httpClient(ctx, credential), http.MethodGet,
		"/v1/email/messages/"+url.PathEscape(id)+"?returnBody=true", nil)
}

// InspectMessage reports which body shapes a message record carries.
func (c *Client) InspectMessage(ctx context.Context, credential, id string) (BodyShape, error) {
	raw, err := c.GetMessageRaw(ctx, credential, id)
	if err != nil {
		return BodyShape{}, err
	}
	return DescribeBody(raw), nil
}

func (c *Client) do(ctx context.Context, client *http.Client, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aurinko request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("aurinko API error (%d): %w", resp.StatusCode, domain.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("aurinko API error (%d): %s", resp.StatusCode, truncate(string(respBody), 300))
	}
	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
