// Package memory is an in-process implementation of the repository
// contracts. It backs STORAGE_DRIVER=memory and the package tests.
//
// Transactions keep an undo log instead of a snapshot: writes are visible to
// other callers before commit and are reverted if the transaction fails.
// LockForUpdate takes a per-row mutex held until the transaction ends.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foxfit/backend/internal/models"
	"github.com/foxfit/backend/internal/repository"
)

type Store struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.User
	channels map[uuid.UUID]models.Channel
	videos   map[uuid.UUID]models.Video
	chat     map[uuid.UUID][]models.ChatMessage
	chatSeq  int64
	lastChat time.Time
	rowLocks map[uuid.UUID]*sync.Mutex

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]models.User),
		channels: make(map[uuid.UUID]models.Channel),
		videos:   make(map[uuid.UUID]models.Video),
		chat:     make(map[uuid.UUID][]models.ChatMessage),
		rowLocks: make(map[uuid.UUID]*sync.Mutex),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for created_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Users() *UserRepository       { return &UserRepository{s: s} }
func (s *Store) Channels() *ChannelRepository { return &ChannelRepository{s: s} }
func (s *Store) Videos() *VideoRepository     { return &VideoRepository{s: s} }
func (s *Store) Chat() *ChatRepository        { return &ChatRepository{s: s} }

var (
	_ repository.Transactor        = (*Store)(nil)
	_ repository.UserRepository    = (*UserRepository)(nil)
	_ repository.ChannelRepository = (*ChannelRepository)(nil)
	_ repository.VideoRepository   = (*VideoRepository)(nil)
	_ repository.ChatRepository    = (*ChatRepository)(nil)
)

type txKey struct{}

type txState struct {
	undo   []func()
	locked map[uuid.UUID]*sync.Mutex
}

func txFrom(ctx context.Context) *txState {
	tx, _ := ctx.Value(txKey{}).(*txState)
	return tx
}

// WithinTx runs fn and reverts its writes when it returns an error or panics.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx := &txState{locked: make(map[uuid.UUID]*sync.Mutex)}
	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			for i := len(tx.undo) - 1; i >= 0; i-- {
				tx.undo[i]()
			}
			s.mu.Unlock()
		}
		for _, m := range tx.locked {
			m.Unlock()
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	committed = true
	return nil
}

// record registers an undo step. Callers hold s.mu.
func (s *Store) record(ctx context.Context, undo func()) {
	if tx := txFrom(ctx); tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

// lockRow blocks until the row lock for id is owned by the transaction in
// ctx. Outside a transaction it is a no-op.
func (s *Store) lockRow(ctx context.Context, id uuid.UUID) error {
	tx := txFrom(ctx)
	if tx == nil {
		return nil
	}
	if _, held := tx.locked[id]; held {
		return nil
	}

	s.mu.Lock()
	m, ok := s.rowLocks[id]
	if !ok {
		m = &sync.Mutex{}
		s.rowLocks[id] = m
	}
	s.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		tx.locked[id] = m
		return nil
	case <-ctx.Done():
		// hand the lock back once the waiter gets it
		go func() {
			<-acquired
			m.Unlock()
		}()
		return ctx.Err()
	}
}
