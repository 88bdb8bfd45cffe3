package user

import domain "user-service/internal/domain/user"

// CreateUserRequest represents the request payload for creating a new user.
type CreateUserRequest struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	Position    string `json:"position" validate:"required,max=100"`
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
	Email       string `json:"email" validate:"required,email,max=255"`
}

// UpdateUserRequest represents the request payload for updating an existing user.
// Nil fields are left unchanged. Free-text fields may be set to "", while
// email and phone_number, once supplied, must be valid.
type UpdateUserRequest struct {
	ID          int64   `json:"id"`
	FirstName   *string `json:"first_name" validate:"omitnil,max=100"`
	LastName    *string `json:"last_name" validate:"omitnil,max=100"`
	Position    *string `json:"position" validate:"omitnil,max=100"`
	PhoneNumber *string `json:"phone_number" validate:"omitnil,phone"`
	Email       *string `json:"email" validate:"omitnil,email,max=255"`
}

// Patch converts the optional fields into a domain patch.
func (r UpdateUserRequest) Patch() domain.Patch {
	return domain.Patch{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Position:    r.Position,
		PhoneNumber: r.PhoneNumber,
		Email:       r.Email,
	}
}

// DeleteUserRequest represents the request payload for deleting a user.
type DeleteUserRequest struct {
	ID int64
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID int64
}

// ListUsersRequest represents the request payload for listing users.
// A zero Page or Size selects the default. Sort fields accept "asc", "desc"
// or "" for no ordering on that column.
type ListUsersRequest struct {
	FirstName string
	LastName  string
	Position  string
	Page      int64
	Size      int64
}

// ListUsersResponse represents one page of users with its metadata.
type ListUsersResponse struct {
	Users      []User
	Pagination *Pagination
}

// Pagination represents pagination information for list responses.
type Pagination = domain.Pagination

// User is the representation returned to transports.
type User = domain.User
