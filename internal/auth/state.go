package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/shared"
)

// UserLoader fetches users by id.
type UserLoader interface {
	FindByID(ctx context.Context, id int64) (*User, error)
}

// StateResolverConfig tunes StateResolver.
type StateResolverConfig struct {
	// Wait bounds how long a request waits for the user before it is told
	// the session is still loading.
	Wait time.Duration
	// FetchTimeout bounds the background load itself.
	FetchTimeout time.Duration
	// CacheTTL controls how long resolved users stay in Redis. Zero disables
	// caching.
	CacheTTL time.Duration
}

// StateResolver turns a session into an rbac.AuthState.
type StateResolver struct {
	loader UserLoader
	cache  *redis.Client
	cfg    StateResolverConfig
	group  singleflight.Group
	logger *slog.Logger
}

// NewStateResolver builds a StateResolver. cache may be nil.
func NewStateResolver(loader UserLoader, cache *redis.Client, cfg StateResolverConfig, logger *slog.Logger) *StateResolver {
	if cfg.Wait <= 0 {
		cfg.Wait = 2 * time.Second
	}
	if cfg.FetchTimeout < cfg.Wait {
		cfg.FetchTimeout = 5 * cfg.Wait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StateResolver{loader: loader, cache: cache, cfg: cfg, logger: logger}
}

// Resolve reports whether the session belongs to a user. A load that does not
// finish within the configured wait yields a Loading state; the load keeps
// running so a later request can pick up the cached result. Other store
// failures are returned as errors.
func (s *StateResolver) Resolve(ctx context.Context, sess *shared.Session) (rbac.AuthState, *User, error) {
	if sess == nil || sess.User() == "" {
		return rbac.AuthState{}, nil, nil
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		s.logger.Warn("auth state parse user id", slog.String("value", sess.User()))
		return rbac.AuthState{}, nil, nil
	}
	user, err := s.load(ctx, id)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return rbac.AuthState{}, nil, nil
	case errors.Is(err, context.DeadlineExceeded):
		return rbac.AuthState{Loading: true}, nil, nil
	case err != nil:
		return rbac.AuthState{}, nil, fmt.Errorf("resolve user %d: %w", id, err)
	case !user.IsActive:
		return rbac.AuthState{}, nil, nil
	}
	subject := user.Subject()
	return rbac.AuthState{Authenticated: true, User: &subject}, user, nil
}

// Forget drops a cached user, e.g. after logout or a role change. Loads already
// in flight write under the previous generation and are never read back.
func (s *StateResolver) Forget(ctx context.Context, id int64) {
	s.group.Forget(strconv.FormatInt(id, 10))
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	_, err := s.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(id))
		pipe.Expire(ctx, generationKey(id), s.generationTTL())
		return nil
	})
	if err != nil {
		s.logger.Warn("auth state forget", slog.Int64("user_id", id), slog.Any("error", err))
	}
}

// Middleware stores the resolved state and user in the request context.
func (s *StateResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		state, user, err := s.Resolve(ctx, shared.SessionFromContext(ctx))
		if err != nil {
			s.logger.Error("auth state load user", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		ctx = rbac.ContextWithAuthState(ctx, state)
		if user != nil {
			ctx = ContextWithUser(ctx, user)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type cachedUser struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func (s *StateResolver) load(ctx context.Context, id int64) (*User, error) {
	gen, genOK := s.generation(ctx, id)
	if genOK {
		if user, ok := s.fromCache(ctx, id, gen); ok {
			return user, nil
		}
	}
	ch := s.group.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
		defer cancel()
		user, err := s.loader.FindByID(fetchCtx, id)
		if err != nil {
			return nil, err
		}
		if genOK {
			s.toCache(fetchCtx, user, gen)
		}
		return user, nil
	})
	wait := time.NewTimer(s.cfg.Wait)
	defer wait.Stop()
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*User), nil
	case <-wait.C:
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// generation returns the current cache generation of a user. ok is false when
// caching is off or the generation cannot be read.
func (s *StateResolver) generation(ctx context.Context, id int64) (int64, bool) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return 0, false
	}
	gen, err := s.cache.Get(ctx, generationKey(id)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, true
	case err != nil:
		s.logger.Warn("auth state cache generation", slog.Any("error", err))
		return 0, false
	}
	return gen, true
}

func (s *StateResolver) generationTTL() time.Duration {
	return s.cfg.CacheTTL + 24*time.Hour
}

func (s *StateResolver) fromCache(ctx context.Context, id, gen int64) (*User, bool) {
	raw, err := s.cache.Get(ctx, cacheKey(id, gen)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("auth state cache get", slog.Any("error", err))
		}
		return nil, false
	}
	var c cachedUser
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, false
	}
	return &User{ID: c.ID, Email: c.Email, Name: c.Name, Role: rbac.RoleID(c.Role), IsActive: c.IsActive}, true
}

func (s *StateResolver) toCache(ctx context.Context, user *User, gen int64) {
	data, err := json.Marshal(cachedUser{ID: user.ID, Email: user.Email, Name: user.Name, Role: string(user.Role), IsActive: user.IsActive})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(user.ID, gen), data, s.cfg.CacheTTL).Err(); err != nil {
		s.logger.Warn("auth state cache set", slog.Any("error", err))
	}
}

func cacheKey(id, gen int64) string {
	return "auth:user:" + strconv.FormatInt(id, 10) + ":" + strconv.FormatInt(gen, 10)
}

func generationKey(id int64) string {
	return "auth:user:" + strconv.FormatInt(id, 10) + ":gen"
}

type userContextKey struct{}

// ContextWithUser stores the full user record in ctx.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user stored by Middleware.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*User)
	return user, ok && user != nil
}
