package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdempotencyConflict reports a form submission that was already accepted.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore remembers submission keys per scope in idempotency_keys.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// Claim records key under scope. A key already claimed in the same scope
// yields ErrIdempotencyConflict.
func (s *IdempotencyStore) Claim(ctx context.Context, scope, key string) error {
	if err := checkIdempotencyArgs(s, scope, key); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO idempotency_keys (scope, key) VALUES ($1, $2) ON CONFLICT (scope, key) DO NOTHING`,
		scope, key)
	if err != nil {
		return fmt.Errorf("idempotency: claim %s: %w", scope, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Release forgets a claimed key so the submission can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	if err := checkIdempotencyArgs(s, scope, key); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE scope = $1 AND key = $2`, scope, key)
	return err
}

// Cleanup removes keys claimed more than olderThan ago.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < NOW() - make_interval(secs => $1)`, olderThan.Seconds())
	return err
}

func checkIdempotencyArgs(s *IdempotencyStore, scope, key string) error {
	switch {
	case s == nil:
		return errors.New("idempotency: store not initialised")
	case scope == "":
		return errors.New("idempotency: scope required")
	case key == "":
		return errors.New("idempotency: key required")
	}
	return nil
}
