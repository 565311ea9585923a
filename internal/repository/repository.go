// Package repository is the sqlx-based persistence layer for SemperVigil.
//
// Each entity gets one repository type wrapping *sqlx.DB (or *sqlx.Tx, via
// the Queryer interface) with hand-written SQL and struct-tag scanning.
// This replaces a generated ORM: every query here is plain, reviewable SQL,
// grounded on the same "shared pool, explicit structs" pattern the rest of
// the pack's Go services use for their datastore layer.
package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx, letting every
// repository method run either standalone or inside a caller-managed
// transaction.
type Queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Repositories bundles every entity repository behind the shared db handle.
type Repositories struct {
	Sources   *SourceRepository
	Articles  *ArticleRepository
	CVEs      *CVERepository
	Vendors   *VendorRepository
	Events    *EventRepository
	LLMRuns   *LLMRunRepository
	RuntimeConfig *RuntimeConfigRepository
}

// New builds a Repositories bundle over the shared sqlx handle.
func New(db *sqlx.DB) *Repositories {
	return &Repositories{
		Sources:       &SourceRepository{db: db},
		Articles:      &ArticleRepository{db: db},
		CVEs:          &CVERepository{db: db},
		Vendors:       &VendorRepository{db: db},
		Events:        &EventRepository{db: db},
		LLMRuns:       &LLMRunRepository{db: db},
		RuntimeConfig: &RuntimeConfigRepository{db: db},
	}
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error (including panics re-raised by fn).
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
