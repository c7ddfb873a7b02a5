// Package store provides tenant-scoped persistence. Every method takes the
// tenant identifier as an explicit argument; nothing here reads ambient
// state. Callers (typically the tenant middleware) are responsible for
// supplying the tenant id, and every query and mutation filters by it.
package store

import (
	"gorm.io/gorm"

	"cointoss-service/internal/assign"
)

// Store bundles the database handle and the coin-toss engine. A store
// method is one unit of work: it opens a transaction, runs its
// read-validate-write sequence inside it, and commits or rolls back as a
// whole.
type Store struct {
	db     *gorm.DB
	engine *assign.Engine
}

// New returns a store using the given database and engine.
func New(db *gorm.DB, engine *assign.Engine) *Store {
	return &Store{db: db, engine: engine}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}
