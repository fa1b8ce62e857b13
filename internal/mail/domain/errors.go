package domain

import "errors"

var (
	ErrInvalidThreadID = errors.New("invalid thread id")
	ErrThreadNotFound  = errors.New("no messages found for thread")
	ErrSuperseded      = errors.New("superseded by a newer selection")
	ErrNoSession       = errors.New("no thread selected")
	ErrMessageNotFound = errors.New("message not in current thread")
	ErrUnsupported     = errors.New("operation not supported by mail provider")
	ErrUnauthorized    = errors.New("mail provider rejected credential")
	ErrSummaryFailed   = errors.New("summary unavailable")
	ErrAIUnavailable   = errors.New("no AI provider available")
)
