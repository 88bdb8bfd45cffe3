package user

import (
	"fmt"

	apperrors "user-service/pkg/errors"
)

// Domain errors. Each matches, via errors.Is, any error of the same kind
// returned by the use case or the store adapters.
var (
	ErrUserNotFound         = apperrors.NewNotFoundError("user", "user not found")
	ErrDuplicateEmail       = apperrors.NewAlreadyExistsError("email", "Email already exists")
	ErrDuplicatePhoneNumber = apperrors.NewAlreadyExistsError("phone_number", "Phone number already exists")
)

// NewNotFoundError returns a not-found error naming the missing user ID.
func NewNotFoundError(id int64) error {
	return apperrors.NewNotFoundError("user", fmt.Sprintf("User with ID %d not found", id))
}
