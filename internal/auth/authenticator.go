package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// ErrUnauthorized is returned when a credential cannot be resolved to a live user.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the authenticated user attached to a connection.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// UserLookup resolves user ids to users.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
}

// Authenticator turns a raw handshake credential into an Identity.
type Authenticator struct {
	jwtConfig *JWTConfig
	users     UserLookup
	cache     IdentityCache
	lookups   singleflight.Group
	log       *zerolog.Logger
}

// NewAuthenticator builds an authenticator. cache may be nil.
func NewAuthenticator(jwtConfig *JWTConfig, users UserLookup, cache IdentityCache, logger *zerolog.Logger) *Authenticator {
	if cache == nil {
		cache = nopCache{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Authenticator{
		jwtConfig: jwtConfig,
		users:     users,
		cache:     cache,
		log:       logger,
	}
}

// Authenticate verifies signature and expiry of raw and resolves the named user.
// A valid token for a user that no longer exists is rejected.
// Errors wrapping ErrUnauthorized are caller faults; anything else is a lookup failure.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, fmt.Errorf("%w: missing credential", ErrUnauthorized)
	}

	claims, err := ValidateToken(a.jwtConfig, raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	return a.resolve(ctx, claims.UserID)
}

func (a *Authenticator) resolve(ctx context.Context, userID int64) (Identity, error) {
	if identity, ok, err := a.cache.Get(ctx, userID); err != nil {
		a.log.Warn().Err(err).Int64("user_id", userID).Msg("identity cache read failed")
	} else if ok {
		return identity, nil
	}

	v, err, _ := a.lookups.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		user, err := a.users.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		return Identity{UserID: user.ID, Username: user.Username}, nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: user %d no longer exists", ErrUnauthorized, userID)
		}
		return Identity{}, fmt.Errorf("lookup user: %w", err)
	}

	identity := v.(Identity)
	if _, disabled := a.cache.(nopCache); disabled {
		return identity, nil
	}
	if err := a.cache.Set(ctx, identity); err != nil {
		a.log.Warn().Err(err).Int64("user_id", userID).Msg("identity cache write failed")
		return identity, nil
	}

	// A deletion may have run between the lookup and Set; its Forget would then
	// precede the write. Check again so a deleted user is never left cached.
	if _, err := a.users.GetUserByID(ctx, userID); err != nil {
		if cacheErr := a.cache.Invalidate(ctx, userID); cacheErr != nil {
			a.log.Warn().Err(cacheErr).Int64("user_id", userID).Msg("identity cache invalidate failed")
		}
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: user %d no longer exists", ErrUnauthorized, userID)
		}
		return Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	return identity, nil
}

// Forget drops any cached identity for userID.
func (a *Authenticator) Forget(ctx context.Context, userID int64) error {
	return a.cache.Invalidate(ctx, userID)
}
