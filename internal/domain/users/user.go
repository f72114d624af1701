package users

import "errors"

var (
	// ErrNotFound is returned when no user has the requested ID
	ErrNotFound = errors.New("user not found")
	// ErrInvalid is returned for users missing required fields
	ErrInvalid = errors.New("invalid user")
)

// User is a row of the users table
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Profile is a user enriched with external service data
type Profile struct {
	User
	ExternalData map[string]any `json:"external_data"`
}
