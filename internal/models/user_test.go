package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxfit/backend/internal/apperr"
)

func TestUser_Validate(t *testing.T) {
	tests := []struct {
		name       string
		user       User
		field      string
		constraint string
	}{
		{"valid", User{Email: "coach@foxfit.test", DisplayName: "Coach Anna"}, "", ""},
		{"accented name counts characters", User{Email: "a@foxfit.test", DisplayName: "Zoë"}, "", ""},
		{"100 characters", User{Email: "a@foxfit.test", DisplayName: strings.Repeat("é", 100)}, "", ""},
		{"empty email", User{DisplayName: "Coach"}, "email", "required"},
		{"invalid email", User{Email: "invalid-email", DisplayName: "Coach"}, "email", "email"},
		{"email with display part", User{Email: "Anna <a@foxfit.test>", DisplayName: "Coach"}, "email", "email"},
		{"empty display name", User{Email: "a@foxfit.test", DisplayName: "   "}, "display_name", "required"},
		{"display name too short", User{Email: "a@foxfit.test", DisplayName: "A"}, "display_name", "min=2"},
		{"display name too long", User{Email: "a@foxfit.test", DisplayName: strings.Repeat("a", 101)}, "display_name", "max=100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			ve, ok := apperr.AsValidation(err)
			require.True(t, ok, "expected a validation error, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.constraint, ve.Constraint)
		})
	}
}
