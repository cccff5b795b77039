package programs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// ReasonInvalidProgram tags NOT_FOUND / INACTIVE_ENTITY errors raised for the program itself.
const ReasonInvalidProgram = "invalid_program"

// ConfigCache stores serialized program configurations. *redis.Client satisfies it.
type ConfigCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ProgramConfigKey(programID string) string
}

// Resolver answers "what are this program's rules right now".
// Resolve may serve a briefly cached copy; ResolveTx always reads the database.
type Resolver struct {
	repo  Repository
	cache ConfigCache
	ttl   time.Duration
	logg  *logger.Logger
	group singleflight.Group
}

// NewResolver wires a resolver. A nil cache disables caching.
func NewResolver(repo Repository, cache ConfigCache, ttl time.Duration, logg *logger.Logger) (*Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("program repository required")
	}
	return &Resolver{repo: repo, cache: cache, ttl: ttl, logg: logg}, nil
}

// Resolve returns the configuration of an active program.
func (r *Resolver) Resolve(ctx context.Context, programID uuid.UUID) (*ProgramConfig, error) {
	if programID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "program id is required")
	}
	if cfg, ok := r.fromCache(ctx, programID); ok {
		return requireActive(cfg)
	}

	// The fill is shared by every waiter, so it must outlive the caller that started it.
	fillCtx := context.WithoutCancel(ctx)
	fill := r.group.DoChan(programID.String(), func() (any, error) {
		cfg, err := r.load(fillCtx, r.repo, programID)
		if err != nil {
			return nil, err
		}
		r.store(fillCtx, cfg)
		return cfg, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-fill:
		if res.Err != nil {
			return nil, res.Err
		}
		return requireActive(res.Val.(*ProgramConfig))
	}
}

// ResolveTx reads the authoritative configuration inside tx, bypassing the cache.
func (r *Resolver) ResolveTx(ctx context.Context, tx *gorm.DB, programID uuid.UUID) (*ProgramConfig, error) {
	cfg, err := r.load(ctx, r.repo.WithTx(tx), programID)
	if err != nil {
		return nil, err
	}
	return requireActive(cfg)
}

// Invalidate drops the cached configuration of a program.
func (r *Resolver) Invalidate(ctx context.Context, programID uuid.UUID) error {
	r.group.Forget(programID.String())
	if r.cache == nil {
		return nil
	}
	if err := r.cache.Del(ctx, r.cache.ProgramConfigKey(programID.String())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate program cache")
	}
	return nil
}

func (r *Resolver) load(ctx context.Context, repo Repository, programID uuid.UUID) (*ProgramConfig, error) {
	program, err := repo.FindProgram(ctx, programID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidProgram(pkgerrors.CodeNotFound, "program not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load program")
	}
	rewards, err := repo.ListRewards(ctx, programID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rewards")
	}
	return configFromModels(program, rewards), nil
}

func (r *Resolver) fromCache(ctx context.Context, programID uuid.UUID) (*ProgramConfig, bool) {
	if r.cache == nil || r.ttl <= 0 {
		return nil, false
	}
	raw, err := r.cache.Get(ctx, r.cache.ProgramConfigKey(programID.String()))
	if err != nil {
		if !errors.Is(err, redis.Nil) && r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "program cache read failed")
		}
		return nil, false
	}
	var cfg ProgramConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, false
	}
	return &cfg, true
}

func (r *Resolver) store(ctx context.Context, cfg *ProgramConfig) {
	if r.cache == nil || r.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, r.cache.ProgramConfigKey(cfg.ProgramID.String()), string(payload), r.ttl); err != nil && r.logg != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "program cache write failed")
	}
}

func requireActive(cfg *ProgramConfig) (*ProgramConfig, error) {
	if !cfg.Active {
		return nil, invalidProgram(pkgerrors.CodeInactiveEntity, "program is inactive")
	}
	return cfg, nil
}

func invalidProgram(code pkgerrors.Code, message string) error {
	return pkgerrors.New(code, message).WithDetails(map[string]any{"reason": ReasonInvalidProgram})
}
