package registry

import (
	"context"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/models"
	"github.com/foxfit/backend/internal/repository/memory"
)

func newRegistry(t *testing.T) (*Registry, *memory.Store, uuid.UUID) {
	t.Helper()
	store := memory.New()
	owner := &models.User{Email: "owner@foxfit.test", DisplayName: "Owner"}
	require.NoError(t, store.Users().Create(context.Background(), owner))
	return New(store.Channels(), store), store, owner.ID
}

func TestGenerateStreamKey(t *testing.T) {
	a, err := GenerateStreamKey()
	require.NoError(t, err)
	b, err := GenerateStreamKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, StreamKeyPrefix))
	assert.Len(t, a, len(StreamKeyPrefix)+32)
	assert.NotEqual(t, a, b)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Morning HIIT", "morning-hiit"},
		{"Yoga für Anfänger", "yoga-fur-anfanger"},
		{"  --Core & Cardio!!  ", "core-cardio"},
		{"???", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestValidSlug(t *testing.T) {
	assert.True(t, ValidSlug("morning-hiit"))
	assert.False(t, ValidSlug("Morning"))
	assert.False(t, ValidSlug("a--b"))
	assert.False(t, ValidSlug("-abc"))
	assert.False(t, ValidSlug("ab"))
}

func TestRegisterValidation(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterValidation(v))

	type input struct {
		Slug string `validate:"omitempty,slug"`
	}
	assert.NoError(t, v.Struct(input{Slug: "leg-day"}))
	assert.NoError(t, v.Struct(input{}))
	assert.Error(t, v.Struct(input{Slug: "Leg Day"}))
}

func TestCreate_DerivesSlugAndKey(t *testing.T) {
	reg, _, owner := newRegistry(t)
	ctx := context.Background()

	ch, err := reg.Create(ctx, owner, CreateInput{Name: "Morning HIIT"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ch.Slug, "morning-hiit-"))
	assert.True(t, ValidSlug(ch.Slug))
	assert.True(t, strings.HasPrefix(ch.StreamKey, StreamKeyPrefix))
	assert.False(t, ch.IsLive)

	byKey, err := reg.ResolveByStreamKey(ctx, ch.StreamKey)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, byKey.ID)

	bySlug, err := reg.ResolveBySlug(ctx, ch.Slug)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, bySlug.ID)
}

func TestCreate_Validation(t *testing.T) {
	reg, _, owner := newRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, owner, CreateInput{Name: " "})
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "name", ve.Field)

	_, err = reg.Create(ctx, owner, CreateInput{Name: "Pilates", Slug: "Not A Slug"})
	ve, ok = apperr.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "slug", ve.Field)
}

func TestCreate_DuplicateSlug(t *testing.T) {
	reg, _, owner := newRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, owner, CreateInput{Name: "Pilates", Slug: "pilates"})
	require.NoError(t, err)
	_, err = reg.Create(ctx, owner, CreateInput{Name: "Pilates 2", Slug: "pilates"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestResolve_Unknown(t *testing.T) {
	reg, _, _ := newRegistry(t)
	ctx := context.Background()

	_, err := reg.ResolveByStreamKey(ctx, "live_missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NotContains(t, err.Error(), "live_missing")

	_, err = reg.ResolveByStreamKey(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = reg.ResolveBySlug(ctx, "no-such-channel")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRotateStreamKey(t *testing.T) {
	reg, store, owner := newRegistry(t)
	ctx := context.Background()

	ch, err := reg.Create(ctx, owner, CreateInput{Name: "Spin", Slug: "spin-class"})
	require.NoError(t, err)
	oldKey := ch.StreamKey

	_, err = reg.RotateStreamKey(ctx, uuid.New(), ch.Slug)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	rotated, err := reg.RotateStreamKey(ctx, owner, ch.Slug)
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, rotated.StreamKey)

	_, err = reg.ResolveByStreamKey(ctx, oldKey)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, store.Channels().SetLive(ctx, ch.ID, true))
	_, err = reg.RotateStreamKey(ctx, owner, ch.Slug)
	assert.ErrorIs(t, err, apperr.ErrStateConflict)
}
