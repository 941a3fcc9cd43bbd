package access

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxfit/backend/internal/models"
	"github.com/foxfit/backend/internal/repository/memory"
)

func TestAuthorizer(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	owner := &models.User{Email: "owner@foxfit.test", DisplayName: "Owner"}
	require.NoError(t, store.Users().Create(ctx, owner))
	ch := &models.Channel{OwnerID: owner.ID, Name: "HIIT", Slug: "hiit", StreamKey: "live_abc123"}
	require.NoError(t, store.Channels().Create(ctx, ch))

	a := NewAuthorizer(store.Channels())
	viewer := uuid.New()

	ok, err := a.CanView(ctx, viewer, ch.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CanView(ctx, uuid.Nil, ch.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.CanView(ctx, viewer, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.CanManage(ctx, owner.ID, ch.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CanManage(ctx, viewer, ch.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
