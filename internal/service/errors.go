package service

import (
	"errors"

	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
)

// ErrInvalidSubmission marks request validation failures.
var ErrInvalidSubmission = errors.New("invalid submission")

// ValidationError carries a client-facing message for a rejected request
// body. It matches ErrInvalidSubmission under errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSubmission
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// BlockedError is returned when the submission gate or a rate limiter rejects
// a request.
type BlockedError struct {
	Decision model.SubmissionDecision
}

func (e *BlockedError) Error() string {
	return e.Decision.Reason
}

// RateLimited reports whether the rejection carries a retry-after.
func (e *BlockedError) RateLimited() bool {
	return e.Decision.RetryAfter > 0
}
