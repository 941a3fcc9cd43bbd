package models

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/foxfit/backend/internal/apperr"
)

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks the fields a user supplies at registration. The display
// name is shown next to every chat message, so it is bounded in characters.
func (u *User) Validate() error {
	if u.Email == "" {
		return apperr.Validation("email", "required")
	}
	if addr, err := mail.ParseAddress(u.Email); err != nil || addr.Address != u.Email {
		return apperr.Validation("email", "email")
	}
	name := strings.TrimSpace(u.DisplayName)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return apperr.Validation("display_name", "required")
	case n < 2:
		return apperr.Validation("display_name", "min=2")
	case n > 100:
		return apperr.Validation("display_name", "max=100")
	}
	return nil
}

type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	DisplayName string `json:"display_name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
