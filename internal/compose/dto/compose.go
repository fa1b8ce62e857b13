package dto

type SummarizeRequest struct {
	EmailBody string `json:"emailBody"`
	Subject   string `json:"subject"`
}

type ComposeRequest struct {
	Prompt string `json:"prompt"`
}

type VoiceDraftRequest struct {
	Text string `json:"text"`
}

type VoiceCommandRequest struct {
	Text           string `json:"text"`
	ContextSubject string `json:"contextSubject"`
}

type SendMailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type TranscriptionResponse struct {
	Text string `json:"text"`
}
