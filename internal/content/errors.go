package content

import (
	"errors"
	"fmt"
)

// Error kinds, matched with errors.Is
var (
	ErrNotFound           = errors.New("not found")
	ErrInvariantViolation = errors.New("invariant violation")
)

// OpError is returned by every failed store operation. Message is meant for end users.
type OpError struct {
	Kind    error
	Message string
}

func (e *OpError) Error() string {
	return e.Message
}

func (e *OpError) Is(target error) bool {
	return target == e.Kind
}

func notFound(format string, args ...any) error {
	return &OpError{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func violation(format string, args ...any) error {
	return &OpError{Kind: ErrInvariantViolation, Message: fmt.Sprintf(format, args...)}
}

func pageNotFound(pageID string) error {
	return notFound("Page %s does not exist", pageID)
}
