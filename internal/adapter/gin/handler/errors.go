package handler

import (
	"errors"
	"net/http"

	domain "user-service/internal/domain/user"
	apperrors "user-service/pkg/errors"
)

// Error kinds reported in ErrorResponse.Error.
const (
	KindValidation           = "validation_error"
	KindInvalidID            = "invalid_id"
	KindDuplicateEmail       = "duplicate_email"
	KindDuplicatePhoneNumber = "duplicate_phone_number"
	KindNotFound             = "not_found"
	KindRateLimitExceeded    = "rate_limit_exceeded"
	KindInternal             = "internal_error"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorFor maps an application error to its HTTP status and body. Unknown
// errors are reported as internal without exposing their text.
func ErrorFor(err error) (int, ErrorResponse) {
	var (
		validation *apperrors.ValidationError
		notFound   *apperrors.NotFoundError
		exists     *apperrors.AlreadyExistsError
	)

	switch {
	case errors.As(err, &validation):
		return validation.HTTPStatus(), ErrorResponse{Error: KindValidation, Message: validation.Error()}
	case errors.As(err, &notFound):
		return notFound.HTTPStatus(), ErrorResponse{Error: KindNotFound, Message: notFound.Error()}
	case errors.Is(err, domain.ErrDuplicateEmail):
		errors.As(err, &exists)
		return exists.HTTPStatus(), ErrorResponse{Error: KindDuplicateEmail, Message: exists.Error()}
	case errors.Is(err, domain.ErrDuplicatePhoneNumber):
		errors.As(err, &exists)
		return exists.HTTPStatus(), ErrorResponse{Error: KindDuplicatePhoneNumber, Message: exists.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: KindInternal, Message: "An internal error occurred"}
}
