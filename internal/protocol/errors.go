package protocol

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrDuplicateMessage = errors.New("duplicate message id")
	ErrNotJoined        = errors.New("connection has not joined")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

// Error codes sent back to the originating connection in an error frame.
const (
	CodeMalformed = "malformed"
	CodeUnknown   = "unknown_event"
	CodeDuplicate = "duplicate"
	CodeNotJoined = "not_joined"
	CodeRateLimit = "rate_limited"
)

var validate = validator.New()

// Validate checks the struct tags of a payload.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// ErrorCode maps an error returned by a handler to the code reported to the
// client.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownEvent):
		return CodeUnknown
	case errors.Is(err, ErrDuplicateMessage):
		return CodeDuplicate
	case errors.Is(err, ErrNotJoined):
		return CodeNotJoined
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimit
	default:
		return CodeMalformed
	}
}
