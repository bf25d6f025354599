package revisions

import (
	"context"
	"database/sql"
	"sync"

	"github.com/dmitrijs2005/gophdrive/internal/dbx"
)

// Store runs repository scopes against a SQL database. Scopes are serialized
// and each one runs in its own transaction: it commits when fn returns nil and
// rolls back otherwise.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Perform runs fn inside a serialized transactional scope.
func (s *Store) Perform(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, NewSQLiteRepository(tx))
	})
}
