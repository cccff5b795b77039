package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/angelmondragon/visitrewards-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 25 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RetryObserver is notified every time a conflicting attempt is retried.
type RetryObserver interface {
	IncConflictRetry(operation string)
}

// GuardParams wires a Guard.
type GuardParams struct {
	DB         txRunner
	MaxRetries int
	Backoff    time.Duration
	Observer   RetryObserver
	Logger     *logger.Logger
}

// Guard serializes mutations for one key (a membership or a program). Callers
// in the same process queue on an in-memory lock; across processes the
// callback is expected to take a row lock inside the supplied transaction.
// Conflicts are retried a bounded number of times before surfacing as CONFLICT.
type Guard struct {
	scope      string
	db         txRunner
	locks      *keyedMutex
	maxRetries int
	backoff    time.Duration
	observer   RetryObserver
	logg       *logger.Logger
}

// NewMembershipGuard returns the guard shared by visit and redemption flows.
func NewMembershipGuard(params GuardParams) (*Guard, error) {
	return newGuard("membership", params)
}

// NewProgramGuard returns the guard used by gift reconciliation.
func NewProgramGuard(params GuardParams) (*Guard, error) {
	return newGuard("program", params)
}

func newGuard(scope string, params GuardParams) (*Guard, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("%s guard: transaction runner required", scope)
	}
	if params.MaxRetries < 0 {
		return nil, fmt.Errorf("%s guard: max retries must be >= 0", scope)
	}
	maxRetries := params.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := params.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Guard{
		scope:      scope,
		db:         params.DB,
		locks:      newKeyedMutex(),
		maxRetries: maxRetries,
		backoff:    backoff,
		observer:   params.Observer,
		logg:       params.Logger,
	}, nil
}

// Do runs fn inside a transaction while holding exclusive access to key.
// fn may run more than once; it must not have side effects outside tx.
func (g *Guard) Do(ctx context.Context, key uuid.UUID, operation string, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return fmt.Errorf("%s guard: callback required", g.scope)
	}
	for attempt := 0; ; attempt++ {
		err := g.attempt(ctx, key, fn)
		if err == nil {
			return nil
		}
		if !IsConflict(err) {
			return err
		}
		if attempt >= g.maxRetries {
			if g.logg != nil {
				logCtx := g.logg.WithFields(ctx, map[string]any{
					"scope":     g.scope,
					"key":       key.String(),
					"operation": operation,
					"attempts":  attempt + 1,
				})
				g.logg.Warn(logCtx, "ledger conflict retries exhausted")
			}
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent update detected")
		}
		if g.observer != nil {
			g.observer.IncConflictRetry(operation)
		}
		if err := g.wait(ctx, attempt); err != nil {
			return err
		}
	}
}

func (g *Guard) attempt(ctx context.Context, key uuid.UUID, fn func(tx *gorm.DB) error) error {
	unlock := g.locks.Lock(key)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.db.WithTx(ctx, fn)
}

func (g *Guard) wait(ctx context.Context, attempt int) error {
	delay := g.backoff*time.Duration(attempt+1) + time.Duration(rand.Int64N(int64(g.backoff)))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsConflict reports whether err is a concurrency conflict worth retrying.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrVersionConflict) {
		return true
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		return true
	}
	return db.IsRetryableConflict(err)
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds or
// waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*refMutex)}
}

func (k *keyedMutex) Lock(key uuid.UUID) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &refMutex{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
