package domain

// ViewState is the load state of a user's thread view.
type ViewState string

const (
	ViewIdle     ViewState = "idle"
	ViewLoading  ViewState = "loading"
	ViewReady    ViewState = "ready"
	ViewNotFound ViewState = "not_found"
	ViewFailed   ViewState = "failed"
)

const (
	NoticeNotFound   = "No messages found."
	NoticeLoadFailed = "Failed to load thread."
	NoticeNoSummary  = "No summary available."
	NoticeGenerating = "Generating summary..."
)

// ViewSnapshot is a copy of a view session for presentation.
type ViewSnapshot struct {
	Generation   uint64         `json:"generation"`
	ThreadID     string         `json:"threadId"`
	State        ViewState      `json:"state"`
	Notice       string         `json:"notice,omitempty"`
	CanRetry     bool           `json:"canRetry"`
	Thread       *Thread        `json:"thread,omitempty"`
	SummaryState SummaryState   `json:"summaryState"`
	Summary      *SummaryResult `json:"summary,omitempty"`
	SummaryNote  string         `json:"summaryNote,omitempty"`
}
