package postgres

import (
	"github.com/grapic/facematch/internal/facestore"
)

// Store implements facestore.Store on a PostgreSQL pool.
type Store struct {
	pool *Pool
}

// NewStore creates a Store over an initialized pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pool, for maintenance commands.
func (s *Store) Pool() *Pool {
	return s.pool
}

// Verify interface compliance.
var _ facestore.Store = (*Store)(nil)
