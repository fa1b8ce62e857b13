package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Category classifies a thread for triage.
type Category string

const (
	CategoryDecision   Category = "decision"
	CategoryFYI        Category = "fyi"
	CategoryGatekeeper Category = "gatekeeper"
)

// ParseCategory maps free text to a Category, defaulting to fyi.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryDecision, CategoryGatekeeper, CategoryFYI:
		return Category(s)
	}
	return CategoryFYI
}

// SummaryResult is the AI enrichment for a thread.
type SummaryResult struct {
	Bullets  []string `json:"bullets"`
	Category Category `json:"category"`
}

// SummaryState tracks one summary cycle.
type SummaryState string

const (
	SummaryIdle       SummaryState = "idle"
	SummaryRequesting SummaryState = "requesting"
	SummarySucceeded  SummaryState = "succeeded"
	SummaryFailed     SummaryState = "failed"
)

// StringArray is a JSON-encoded string list column.
type StringArray []string

// Value implements driver.Valuer
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil
	}
	if len(raw) == 0 {
		*a = []string{}
		return nil
	}
	return json.Unmarshal(raw, a)
}

// ThreadSummary caches a summary per user, thread and newest message.
type ThreadSummary struct {
	ID              string      `json:"id" gorm:"primaryKey"`
	UserID          string      `json:"user_id" gorm:"uniqueIndex:idx_user_thread;not null"`
	ThreadID        string      `json:"thread_id" gorm:"uniqueIndex:idx_user_thread;not null"`
	LatestMessageID string      `json:"latest_message_id" gorm:"not null"`
	Bullets         StringArray `json:"bullets" gorm:"type:text"`
	Category        string      `json:"category"`
	CreatedAt       time.Time   `json:"created_at"`
}

// TableName specifies the table name for GORM
func (ThreadSummary) TableName() string {
	return "thread_summaries"
}

// Result converts the cached row back into a SummaryResult.
func (s *ThreadSummary) Result() SummaryResult {
	return SummaryResult{Bullets: []string(s.Bullets), Category: ParseCategory(s.Category)}
}
