package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/foxfit/backend/internal/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", fmt.Errorf("failed to get channel: %w", sql.ErrNoRows), apperr.ErrNotFound},
		{"bad conn", driver.ErrBadConn, apperr.ErrTransient},
		{"unique violation", &pq.Error{Code: "23505"}, apperr.ErrConflict},
		{"connection failure", &pq.Error{Code: "08006"}, apperr.ErrTransient},
		{"admin shutdown", &pq.Error{Code: "57P01"}, apperr.ErrTransient},
		{"serialization failure", &pq.Error{Code: "40001"}, apperr.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Classify(tt.err), tt.want)
		})
	}
}

func TestClassify_PassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, Classify(plain))
	assert.NoError(t, Classify(nil))

	syntax := &pq.Error{Code: "42601"}
	got := Classify(syntax)
	assert.False(t, errors.Is(got, apperr.ErrTransient))
	assert.False(t, errors.Is(got, apperr.ErrConflict))
}

func TestMigrations_VersionsAreUniqueAndReversible(t *testing.T) {
	seen := map[int]bool{}
	for _, m := range Migrations {
		assert.False(t, seen[m.Version], "duplicate migration version %d", m.Version)
		seen[m.Version] = true
		assert.NotEmpty(t, m.Up)
		assert.NotEmpty(t, m.Down)
	}

	sorted := sortedMigrations()
	for i := 1; i < len(sorted); i++ {
		assert.Less(t, sorted[i-1].Version, sorted[i].Version)
	}
}
