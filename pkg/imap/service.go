package imap

import (
	"context"
	"fmt"
	"io"
	"strings"

	"sage-backend/internal/mail/domain"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"
)

const snippetLength = 200

// Config identifies the mailbox. The caller's credential is used as the password.
type Config struct {
	Server    string
	Port      int
	TLS       bool
	Username  string
	Mailbox   string
	ScanLimit int
}

// Service reads messages over IMAP. It implements domain.MessageSource.
type Service struct {
	cfg Config
	log zerolog.Logger
}

func NewService(cfg Config, log zerolog.Logger) *Service {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = 50
	}
	return &Service{cfg: cfg, log: log}
}

func (s *Service) connect(password string) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)

	var (
		c   *client.Client
		err error
	)
	if s.cfg.TLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if err := c.Login(s.cfg.Username, password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login failed: %w", domain.ErrUnauthorized)
	}
	return c, nil
}

// ListThreadMessages fetches the newest ScanLimit messages with full bodies.
func (s *Service) ListThreadMessages(ctx context.Context, password, threadID string) ([]domain.Message, error) {
	return s.fetch(ctx, password, s.cfg.ScanLimit, &imap.BodySectionName{Peek: true}, true)
}

// ListInbox fetches headers of the newest messages.
func (s *Service) ListInbox(ctx context.Context, password string, limit int) ([]domain.Message, error) {
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier},
		Peek:         true,
	}
	return s.fetch(ctx, password, limit, section, false)
}

func (s *Service) fetch(ctx context.Context, password string, limit int, section *imap.BodySectionName, withBody bool) ([]domain.Message, error) {
	c, err := s.connect(password)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	// go-imap v1 has no context support; closing the connection aborts a pending fetch.
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	mbox, err := c.Select(s.cfg.Mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("error selecting folder %s: %w", s.cfg.Mailbox, err)
	}
	if mbox.Messages == 0 {
		return []domain.Message{}, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(limit) {
		from = mbox.Messages - uint32(limit) + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var result []domain.Message
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		m, err := parse(body, withBody)
		if err != nil {
			s.log.Warn().Err(err).Uint32("uid", msg.Uid).Msg("skipping unparseable message")
			continue
		}
		if m.ID == "" {
			m.ID = fmt.Sprintf("uid-%d", msg.Uid)
		}
		if m.ThreadID == "" {
			m.ThreadID = m.ID
		}
		if m.CreatedTime.IsZero() {
			m.CreatedTime = msg.InternalDate.UTC()
		}
		result = append(result, m)
	}

	if err := <-done; err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("error during fetch: %w", err)
	}
	return result, nil
}

// ParseMessage reads an RFC 5322 message into a Message with a MIME part tree. The thread id
// is the first References entry, else In-Reply-To, else the Message-Id.
func ParseMessage(r io.Reader) (domain.Message, error) {
	return parse(r, true)
}

func parse(r io.Reader, withBody bool) (domain.Message, error) {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return domain.Message{}, fmt.Errorf("failed to read message: %w", err)
	}

	h := mail.Header{Header: entity.Header}
	var m domain.Message

	m.ID, _ = h.MessageID()
	m.Subject, _ = h.Subject()
	if date, err := h.Date(); err == nil {
		m.CreatedTime = date.UTC()
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		m.From = domain.Address{Name: from[0].Name, Address: from[0].Address}
	}
	if to, err := h.AddressList("To"); err == nil {
		for _, a := range to {
			m.To = append(m.To, domain.Address{Name: a.Name, Address: a.Address})
		}
	}
	m.ThreadID = threadRoot(h, m.ID)
	if !withBody {
		return m, nil
	}

	root, err := readPart(entity)
	if err != nil {
		return domain.Message{}, err
	}
	if root != nil {
		m.Body.Parts = []domain.Part{root}
		m.Body.TextBody = firstPlainText(root)
		m.Snippet = makeSnippet(m.Body.TextBody)
	}
	return m, nil
}

func threadRoot(h mail.Header, messageID string) string {
	if refs, err := h.MsgIDList("References"); err == nil && len(refs) > 0 {
		return refs[0]
	}
	if parents, err := h.MsgIDList("In-Reply-To"); err == nil && len(parents) > 0 {
		return parents[0]
	}
	return messageID
}

func readPart(e *message.Entity) (domain.Part, error) {
	mediaType, _, err := e.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}

	if mr := e.MultipartReader(); mr != nil {
		container := &domain.ContainerPart{MimeType: mediaType}
		for {
			child, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) {
				return nil, fmt.Errorf("failed to read part: %w", err)
			}
			part, err := readPart(child)
			if err != nil {
				return nil, err
			}
			if part != nil {
				container.Children = append(container.Children, part)
			}
		}
		return container, nil
	}

	if !strings.HasPrefix(mediaType, "text/") {
		return &domain.LeafPart{MimeType: mediaType}, nil
	}
	content, err := io.ReadAll(e.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return &domain.LeafPart{MimeType: mediaType, Content: string(content)}, nil
}

func firstPlainText(p domain.Part) string {
	switch part := p.(type) {
	case *domain.LeafPart:
		if part.MimeType == "text/plain" {
			return part.Content
		}
	case *domain.ContainerPart:
		for _, child := range part.Children {
			if text := firstPlainText(child); text != "" {
				return text
			}
		}
	}
	return ""
}

func makeSnippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len([]rune(text)) > snippetLength {
		return string([]rune(text)[:snippetLength])
	}
	return text
}
