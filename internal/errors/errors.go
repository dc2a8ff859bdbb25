package errors

import (
	"errors"
	"net/http"

	"github.com/Quai1921/SmartClass-sub000/internal/content"
	"github.com/go-playground/validator/v10"
)

// APIError is the error shape returned to API clients
type APIError struct {
	Status   int               `json:"status"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	Internal error             `json:"-"` // original error, logged only
}

func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Internal
}

func New(status int, message string, err error) *APIError {
	return &APIError{
		Status:   status,
		Message:  message,
		Internal: err,
	}
}

func BadRequest(message string, err error) *APIError {
	return New(http.StatusBadRequest, message, err)
}

func Unauthorized(message string, err error) *APIError {
	return New(http.StatusUnauthorized, message, err)
}

func Forbidden(message string, err error) *APIError {
	return New(http.StatusForbidden, message, err)
}

func NotFound(message string, err error) *APIError {
	return New(http.StatusNotFound, message, err)
}

func Conflict(message string, err error) *APIError {
	return New(http.StatusConflict, message, err)
}

func UnprocessableEntity(message string, err error) *APIError {
	return New(http.StatusUnprocessableEntity, message, err)
}

func Internal(err error) *APIError {
	return New(http.StatusInternalServerError, "Internal server error", err)
}

// NewValidationError turns binding errors into a 422 listing the failed fields
func NewValidationError(err error) *APIError {
	apiErr := UnprocessableEntity("Validation failed", err)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		apiErr.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			apiErr.Fields[fe.Field()] = fe.Tag()
		}
	}
	return apiErr
}

// FromDomain maps content store errors; the store's message is shown to the user as is.
func FromDomain(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, content.ErrNotFound):
		return NotFound(err.Error(), err)
	case errors.Is(err, content.ErrInvariantViolation):
		return UnprocessableEntity(err.Error(), err)
	}
	return Internal(err)
}
