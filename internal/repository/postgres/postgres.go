// Package postgres implements the repository contracts on PostgreSQL through
// database/sql and lib/pq.
package postgres

import (
	"github.com/foxfit/backend/internal/database"
	"github.com/foxfit/backend/internal/repository"
)

var (
	_ repository.UserRepository    = (*UserRepository)(nil)
	_ repository.ChannelRepository = (*ChannelRepository)(nil)
	_ repository.VideoRepository   = (*VideoRepository)(nil)
	_ repository.ChatRepository    = (*ChatRepository)(nil)
	_ repository.Transactor        = (*database.DB)(nil)
)
