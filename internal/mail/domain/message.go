package domain

import "time"

// Address is a mailbox with an optional display name.
type Address struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// DisplayName prefers the name and falls back to the address.
func (a Address) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Address
}

// Message is one email as returned by a message source. It is not mutated after creation.
type Message struct {
	ID          string      `json:"id"`
	ThreadID    string      `json:"threadId"`
	Subject     string      `json:"subject"`
	From        Address     `json:"from"`
	To          []Address   `json:"to"`
	CreatedTime time.Time   `json:"createdTime"`
	Snippet     string      `json:"snippet"`
	Body        BodyPayload `json:"-"`
}

// BodyPayload holds every body shape a provider may deliver. Extraction tries them in a fixed order.
type BodyPayload struct {
	// HTMLBody is pre-extracted HTML.
	HTMLBody string
	// Structured is a body object tagged with a content type.
	Structured *StructuredBody
	// Parts is a MIME-style part tree.
	Parts []Part
	// TextBody is a dedicated plain-text body.
	TextBody string
	// RawBody is a body delivered as a bare string.
	RawBody string
}

// StructuredBody is a {contentType, content} body object.
type StructuredBody struct {
	ContentType string
	Content     string
}

// Part is a node of a MIME part tree: either a *LeafPart or a *ContainerPart.
type Part interface {
	Type() string
	isPart()
}

// LeafPart carries content. Data is base64 encoded when set; Content is used verbatim otherwise.
type LeafPart struct {
	MimeType string
	Data     string
	Content  string
}

func (p *LeafPart) Type() string { return p.MimeType }
func (*LeafPart) isPart()        {}

// ContainerPart groups sub-parts (multipart/*).
type ContainerPart struct {
	MimeType string
	Children []Part
}

func (p *ContainerPart) Type() string { return p.MimeType }
func (*ContainerPart) isPart()        {}

// DisplayMessage is a Message plus the fields derived for display.
type DisplayMessage struct {
	Message
	HTMLBody string `json:"htmlBody"`
	Expanded bool   `json:"expanded"`
}

// Thread is a non-empty, newest-first list of messages sharing one thread id.
type Thread struct {
	ID       string            `json:"threadId"`
	Subject  string            `json:"subject"`
	Messages []*DisplayMessage `json:"messages"`
}

// Latest returns the newest message.
func (t *Thread) Latest() *DisplayMessage {
	if t == nil || len(t.Messages) == 0 {
		return nil
	}
	return t.Messages[0]
}

// OutgoingMessage is what the send collaborator delivers.
type OutgoingMessage struct {
	To      []string
	Subject string
	Body    string
}
