package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

// FallbackService tries providers in order. A connection or quota failure moves on to the next
// provider; any other failure is also retried on the next one but logged as such.
type FallbackService struct {
	providers []Provider
	log       zerolog.Logger
}

// NewFallbackService creates a fallback chain. Unavailable providers are skipped.
func NewFallbackService(log zerolog.Logger, providers ...Provider) *FallbackService {
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil && p.Available() {
			available = append(available, p)
		}
	}
	return &FallbackService{providers: available, log: log}
}

func (f *FallbackService) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

func (f *FallbackService) Available() bool {
	return len(f.providers) > 0
}

// Complete returns the first successful completion.
func (f *FallbackService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if len(f.providers) == 0 {
		return "", errors.New("no AI provider available")
	}

	var lastErr error
	for _, p := range f.providers {
		result, err := p.Complete(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		evt := f.log.Warn().Err(err).Str("provider", p.Name())
		switch {
		case isConnectionError(err):
			evt.Msg("provider unreachable, falling back")
		case isQuotaError(err):
			evt.Msg("provider quota exhausted, falling back")
		default:
			evt.Msg("provider error, falling back")
		}

		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("all AI providers failed: %w", lastErr)
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}
	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"resource_exhausted",
	}
	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
