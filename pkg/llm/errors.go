package llm

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

var (
	// ErrRateLimited marks a backend rejection that should be retried per
	// the dispatch queue's backoff table.
	ErrRateLimited = errors.New("rate limited")

	// ErrServerUnavailable marks a transient backend failure, retriable a
	// small fixed number of times.
	ErrServerUnavailable = errors.New("service unavailable")
)

// Classify wraps backend errors with the matching sentinel so callers can use
// errors.Is. Unrecognized errors pass through unchanged (permanent).
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return classifyStatus(gErr.Code, err)
	}

	// Fallback for providers that surface status codes only in the message
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "UNAVAILABLE"):
		return fmt.Errorf("%w: %w", ErrServerUnavailable, err)
	}
	return err
}

func classifyStatus(code int, err error) error {
	switch {
	case code == 429:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case code >= 500 && code < 600:
		return fmt.Errorf("%w: %w", ErrServerUnavailable, err)
	}
	return err
}

// IsRateLimited reports whether the error is a rate-limit rejection.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTransient reports whether the error is a transient server failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrServerUnavailable)
}
