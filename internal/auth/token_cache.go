package auth

import (
	"context"
	"sync"
	"time"

	"signal_trader/internal/helper"
	"signal_trader/internal/models"
	"signal_trader/internal/storage"
	"signal_trader/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// Loginer exchanges the configured credentials for a session token.
type Loginer interface {
	Login(ctx context.Context) (string, error)
}

// TokenCache keeps the upstream session token in the marker store. Only one
// login runs at a time per cache; callers arriving during a refresh wait for it
// and then read the fresh token.
type TokenCache struct {
	store storage.Markers
	login Loginer
	ttl   time.Duration
	now   func() time.Time

	mu sync.Mutex
}

func NewTokenCache(store storage.Markers, login Loginer, ttl time.Duration) *TokenCache {
	return &TokenCache{store: store, login: login, ttl: ttl, now: time.Now}
}

func (c *TokenCache) GetToken(ctx context.Context) (string, error) {
	const op = "auth.get_token"

	if tok, ok, err := c.store.Get(ctx, helper.TokenKey); err == nil && ok && tok != "" {
		return tok, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// another caller may have refreshed while we waited
	tok, ok, err := c.store.Get(ctx, helper.TokenKey)
	if err != nil {
		logger.Warn("auth: token lookup failed, logging in: %v", err)
	} else if ok && tok != "" {
		return tok, nil
	}

	tok, err = c.login.Login(ctx)
	if err != nil {
		if models.KindOf(err) == models.KindAuth {
			return "", err
		}
		return "", models.NewError(models.KindAuth, op, err)
	}
	if tok == "" {
		return "", models.Errorf(models.KindAuth, op, "login returned no token")
	}

	ttl := c.ttlFor(tok)
	if ttl <= 0 {
		return "", models.Errorf(models.KindAuth, op, "login returned an expired token")
	}
	if err := c.store.Set(ctx, helper.TokenKey, tok, ttl); err != nil {
		// the token is still good for this call
		logger.Warn("auth: caching token failed: %v", err)
	}
	logger.Info("auth: new session token cached for %s", ttl.Round(time.Second))
	return tok, nil
}

// Invalidate drops the cached token so the next GetToken logs in again.
func (c *TokenCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Delete(ctx, helper.TokenKey); err != nil {
		logger.Warn("auth: invalidate token: %v", err)
	}
}

// ttlFor caps the configured ttl by the jwt exp claim when the token has one.
func (c *TokenCache) ttlFor(tok string) time.Duration {
	ttl := c.ttl
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return ttl
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return ttl
	}
	if left := exp.Sub(c.now()); left < ttl {
		return left
	}
	return ttl
}
