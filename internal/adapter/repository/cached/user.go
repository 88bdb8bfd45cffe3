package cached

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"user-service/internal/adapter/cache"
	domain "user-service/internal/domain/user"
	"user-service/internal/usecase/user"
)

// UserRepository decorates a user.Repository with a read-through cache for
// lookups by ID. Cache failures degrade to the wrapped store.
type UserRepository struct {
	next  user.Repository
	cache cache.UserCache
	log   *zap.Logger
	group singleflight.Group
}

var _ user.Repository = (*UserRepository)(nil)

// NewUserRepository wraps next with c. A nil cache returns next unchanged.
func NewUserRepository(next user.Repository, c cache.UserCache, log *zap.Logger) user.Repository {
	if c == nil {
		return next
	}
	return &UserRepository{next: next, cache: c, log: log}
}

// GetByID serves from cache, collapsing concurrent misses for the same ID
// into a single store read.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if u, err := r.cache.Get(ctx, id); err != nil {
		r.log.Warn("cache get failed, reading from store", zap.Int64("id", id), zap.Error(err))
	} else if u != nil {
		return u, nil
	}

	// The shared read outlives any one caller, so it drops their cancellation.
	flight := context.WithoutCancel(ctx)
	ch := r.group.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		u, err := r.next.GetByID(flight, id)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(flight, u); err != nil {
			r.log.Warn("failed to cache user", zap.Int64("id", id), zap.Error(err))
		}
		return u, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		u := *res.Val.(*domain.User)
		return &u, nil
	}
}

// Update writes through and evicts the cached record.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) (*domain.User, error) {
	updated, err := r.next.Update(ctx, u)
	if err != nil {
		return nil, err
	}
	r.evict(ctx, u.ID)
	return updated, nil
}

// Delete removes the record and evicts it.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.evict(ctx, id)
	return nil
}

func (r *UserRepository) evict(ctx context.Context, id int64) {
	if err := r.cache.Delete(ctx, id); err != nil {
		r.log.Warn("failed to evict cached user", zap.Int64("id", id), zap.Error(err))
	}
}

// Create delegates to the wrapped store.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	return r.next.Create(ctx, u)
}

// GetByEmail delegates to the wrapped store.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.next.GetByEmail(ctx, email)
}

// GetByPhoneNumber delegates to the wrapped store.
func (r *UserRepository) GetByPhoneNumber(ctx context.Context, phone string) (*domain.User, error) {
	return r.next.GetByPhoneNumber(ctx, phone)
}

func (r *UserRepository) List(ctx context.Context, q domain.ListQuery) ([]domain.User, error) {
	return r.next.List(ctx, q)
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	return r.next.Count(ctx)
}
