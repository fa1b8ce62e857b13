package usecase

import (
	"encoding/base64"
	"mime"
	"strings"

	"sage-backend/internal/mail/domain"
)

const htmlMime = "text/html"

// ExtractHTMLBody returns the display HTML for a message, or "" when it has no usable body.
// Shapes are tried in order: htmlBody, structured text/html body, MIME part tree, plain text.
func ExtractHTMLBody(msg *domain.Message) string {
	if msg == nil {
		return ""
	}
	body := msg.Body

	if strings.TrimSpace(body.HTMLBody) != "" {
		return body.HTMLBody
	}

	if sb := body.Structured; sb != nil && isHTMLType(sb.ContentType) && strings.TrimSpace(sb.Content) != "" {
		return sb.Content
	}

	if html, ok := findHTMLPart(body.Parts); ok {
		return html
	}

	for _, text := range fallbackTexts(msg) {
		if strings.TrimSpace(text) != "" {
			return convertTextToHTML(text)
		}
	}
	return ""
}

func fallbackTexts(msg *domain.Message) []string {
	texts := []string{msg.Body.TextBody, msg.Snippet, msg.Body.RawBody}
	if sb := msg.Body.Structured; sb != nil {
		texts = append(texts, sb.Content)
	}
	return texts
}

// findHTMLPart walks the part tree depth-first and returns the first non-empty text/html leaf.
func findHTMLPart(parts []domain.Part) (string, bool) {
	for _, p := range parts {
		switch part := p.(type) {
		case *domain.LeafPart:
			if !isHTMLType(part.MimeType) {
				continue
			}
			if content := leafContent(part); strings.TrimSpace(content) != "" {
				return content, true
			}
		case *domain.ContainerPart:
			if html, ok := findHTMLPart(part.Children); ok {
				return html, true
			}
		}
	}
	return "", false
}

func leafContent(part *domain.LeafPart) string {
	if part.Data != "" {
		if decoded, ok := decodeBase64(part.Data); ok {
			return decoded
		}
	}
	return part.Content
}

// decodeBase64 accepts URL-safe and standard alphabets, padded or not.
func decodeBase64(data string) (string, bool) {
	data = strings.TrimSpace(data)
	data = strings.NewReplacer("\r", "", "\n", "").Replace(data)
	encodings := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}
	for _, enc := range encodings {
		if b, err := enc.DecodeString(data); err == nil {
			return string(b), true
		}
	}
	return "", false
}

func isHTMLType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
	}
	return mediaType == htmlMime
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// convertTextToHTML wraps plain text in a paragraph. Text that already carries block markup passes through.
func convertTextToHTML(text string) string {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "<div") || strings.Contains(lower, "<p") || strings.Contains(lower, "<br") {
		return text
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = textEscaper.Replace(text)
	text = strings.ReplaceAll(text, "\n\n", "</p><p>")
	text = strings.ReplaceAll(text, "\n", "<br>")
	return "<p>" + text + "</p>"
}
