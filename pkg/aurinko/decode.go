package aurinko

import (
	"time"

	"sage-backend/internal/mail/domain"

	"github.com/tidwall/gjson"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// decodeMessage maps one record. Field names vary by upstream account type.
func decodeMessage(rec gjson.Result) domain.Message {
	msg := domain.Message{
		ID:          rec.Get("id").String(),
		ThreadID:    rec.Get("threadId").String(),
		Subject:     rec.Get("subject").String(),
		From:        decodeAddress(firstExisting(rec, "from", "sender")),
		CreatedTime: parseTime(firstExisting(rec, "createdTime", "sentAt", "receivedAt").String()),
		Snippet:     firstExisting(rec, "snippet", "bodySnippet").String(),
	}

	for _, to := range rec.Get("to").Array() {
		msg.To = append(msg.To, decodeAddress(to))
	}

	msg.Body.HTMLBody = rec.Get("htmlBody").String()
	msg.Body.TextBody = rec.Get("textBody").String()

	switch body := rec.Get("body"); {
	case body.Type == gjson.String:
		msg.Body.RawBody = body.String()
	case body.IsObject():
		msg.Body.Structured = &domain.StructuredBody{
			ContentType: body.Get("contentType").String(),
			Content:     body.Get("content").String(),
		}
	}

	for _, p := range rec.Get("payload.parts").Array() {
		msg.Body.Parts = append(msg.Body.Parts, decodePart(p))
	}
	return msg
}

func decodePart(p gjson.Result) domain.Part {
	if children := p.Get("parts").Array(); len(children) > 0 {
		container := &domain.ContainerPart{MimeType: p.Get("mimeType").String()}
		for _, child := range children {
			container.Children = append(container.Children, decodePart(child))
		}
		return container
	}
	return &domain.LeafPart{
		MimeType: p.Get("mimeType").String(),
		Data:     p.Get("body.data").String(),
		Content:  p.Get("body.content").String(),
	}
}

func decodeAddress(v gjson.Result) domain.Address {
	if v.Type == gjson.String {
		return domain.Address{Address: v.String()}
	}
	return domain.Address{
		Name:    v.Get("name").String(),
		Address: v.Get("address").String(),
	}
}

func firstExisting(rec gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := rec.Get(p); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// BodyShape describes which body variants a raw record carries.
type BodyShape struct {
	ID              string   `json:"id"`
	HasHTMLBody     bool     `json:"hasHtmlBody"`
	HasTextBody     bool     `json:"hasTextBody"`
	BodyKind        string   `json:"bodyKind"`
	BodyContentType string   `json:"bodyContentType,omitempty"`
	HasPayloadParts bool     `json:"hasPayloadParts"`
	Fields          []string `json:"fields"`
}

// DescribeBody reports the body shape of a raw record.
func DescribeBody(raw []byte) BodyShape {
	rec := gjson.ParseBytes(raw)
	shape := BodyShape{
		ID:              rec.Get("id").String(),
		HasHTMLBody:     rec.Get("htmlBody").String() != "",
		HasTextBody:     rec.Get("textBody").String() != "",
		HasPayloadParts: len(rec.Get("payload.parts").Array()) > 0,
		BodyKind:        "none",
	}
	switch body := rec.Get("body"); {
	case body.Type == gjson.String:
		shape.BodyKind = "string"
	case body.IsObject():
		shape.BodyKind = "object"
		shape.BodyContentType = body.Get("contentType").String()
	}
	rec.ForEach(func(key, _ gjson.Result) bool {
		shape.Fields = append(shape.Fields, key.String())
		return true
	})
	return shape
}
