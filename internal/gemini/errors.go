package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RateLimitMessage is shown verbatim whenever the free-tier limit is hit,
// whether detected locally or reported by the API.
const RateLimitMessage = "Sorry, your Gemini free-tier limit is reached. Try again once your free-tier credits are replenished in a few hours."

// FallbackMessage is shown for failures that carry no message of their own.
const FallbackMessage = "An unexpected error occurred."

var (
	// ErrConfiguration means no API key is available. Raised before any network call.
	ErrConfiguration = errors.New("API Key is missing. Please set it in Settings.")

	// ErrRateLimited means the request budget is exhausted.
	ErrRateLimited = errors.New(RateLimitMessage)
)

// RemoteError is any other failure reported by, or on the way to, the API.
type RemoteError struct {
	StatusCode int    // HTTP status, 0 for transport errors
	Status     string // API status token, e.g. "INVALID_ARGUMENT"
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.StatusCode > 0 && e.Status != "":
		return fmt.Sprintf("gemini: %d %s: %s", e.StatusCode, e.Status, msg)
	case e.StatusCode > 0:
		return fmt.Sprintf("gemini: %d: %s", e.StatusCode, msg)
	default:
		return "gemini: " + msg
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }

// UserMessage maps an error from this package to the text shown to users.
func UserMessage(err error) string {
	var remote *RemoteError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return RateLimitMessage
	case errors.Is(err, ErrConfiguration):
		return ErrConfiguration.Error()
	case errors.As(err, &remote):
		if msg := strings.TrimSpace(remote.Message); msg != "" {
			return msg
		}
		if remote.Err != nil && remote.Err.Error() != "" {
			return remote.Err.Error()
		}
		return FallbackMessage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err.Error()
	default:
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			return msg
		}
		return FallbackMessage
	}
}
