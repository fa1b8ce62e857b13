package ai

import (
	"fmt"
	"strings"

	"sage-backend/internal/mail/domain"

	"github.com/tidwall/gjson"
)

var bulletMarkers = []string{"•", "-", "*"}

// ParseSummary reads a {bullets, category} reply. Non-JSON replies fall back to bullet lines.
// A missing or unknown category becomes fyi; a reply without bullets is an error.
func ParseSummary(reply string) (domain.SummaryResult, error) {
	var (
		bullets  []string
		category string
	)

	if obj, ok := extractJSONObject(reply); ok {
		category = obj.Get("category").String()
		switch b := obj.Get("bullets"); {
		case b.IsArray():
			for _, item := range b.Array() {
				bullets = append(bullets, item.String())
			}
		case b.Type == gjson.String:
			bullets = bulletLines(b.String(), false)
		}
		if len(bullets) == 0 {
			if summary := obj.Get("summary"); summary.Exists() {
				bullets = bulletLines(summary.String(), false)
			}
		}
	} else {
		bullets = bulletLines(reply, true)
	}

	bullets = cleanBullets(bullets)
	if len(bullets) == 0 {
		return domain.SummaryResult{}, fmt.Errorf("reply has no bullets: %w", domain.ErrSummaryFailed)
	}
	return domain.SummaryResult{
		Bullets:  bullets,
		Category: domain.ParseCategory(strings.ToLower(strings.TrimSpace(category))),
	}, nil
}

// ParseDraft reads a {to, subject, body} reply. Plain text becomes the body.
func ParseDraft(reply string) Draft {
	obj, ok := extractJSONObject(reply)
	if !ok {
		return Draft{Body: strings.TrimSpace(reply)}
	}
	return Draft{
		To:      obj.Get("to").String(),
		Subject: obj.Get("subject").String(),
		Body:    obj.Get("body").String(),
	}
}

// ParseCommand reads an {action, response, draft, searchQuery} reply. Unknown actions become chat.
func ParseCommand(reply string) Command {
	obj, ok := extractJSONObject(reply)
	if !ok {
		return Command{Action: "chat", Response: strings.TrimSpace(reply)}
	}
	cmd := Command{
		Action:      strings.ToLower(strings.TrimSpace(obj.Get("action").String())),
		Response:    obj.Get("response").String(),
		Draft:       obj.Get("draft").String(),
		SearchQuery: obj.Get("searchQuery").String(),
	}
	if !commandActions[cmd.Action] {
		cmd.Action = "chat"
	}
	return cmd
}

// extractJSONObject finds the outermost {...} in a reply, tolerating code fences and prose.
func extractJSONObject(reply string) (gjson.Result, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end <= start {
		return gjson.Result{}, false
	}
	raw := reply[start : end+1]
	if !gjson.Valid(raw) {
		return gjson.Result{}, false
	}
	return gjson.Parse(raw), true
}

// bulletLines returns the lines of text. With markedOnly, only lines starting with a bullet marker count.
func bulletLines(text string, markedOnly bool) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		marked := false
		for _, m := range bulletMarkers {
			if strings.HasPrefix(line, m) {
				line = strings.TrimPrefix(line, m)
				marked = true
				break
			}
		}
		if markedOnly && !marked {
			continue
		}
		out = append(out, line)
	}
	return out
}

func cleanBullets(in []string) []string {
	out := make([]string, 0, maxBullets)
	for _, b := range in {
		b = strings.TrimSpace(b)
		for _, m := range bulletMarkers {
			b = strings.TrimSpace(strings.TrimPrefix(b, m))
		}
		if b == "" {
			continue
		}
		out = append(out, b)
		if len(out) == maxBullets {
			break
		}
	}
	return out
}
