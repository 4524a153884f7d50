package mh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"facturasv/internal/platform/config"
	"facturasv/internal/platform/metrics"
	"facturasv/pkg/domain"
	dErrors "facturasv/pkg/domain-errors"
)

// fallbackTokenTTL is used when the MH token carries no exp claim. The
// published validity is 24h in production and 48h in the test environment.
var fallbackTokenTTL = map[domain.Environment]time.Duration{
	domain.EnvTest:       48 * time.Hour,
	domain.EnvProduction: 24 * time.Hour,
}

// TokenCache holds one MH bearer token per process and refreshes it lazily.
// Concurrent callers that all find the token stale trigger exactly one
// refresh; the rest wait for that flight and share its result.
type TokenCache struct {
	cfg     config.MHConfig
	env     domain.Environment
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// NewTokenCache builds a cache with an empty token. The first Token call
// performs the initial authentication.
func NewTokenCache(cfg config.MHConfig, env domain.Environment, httpClient *http.Client, logger *slog.Logger, m *metrics.Metrics) *TokenCache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &TokenCache{
		cfg:     cfg,
		env:     env,
		http:    httpClient,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Token returns a bearer token that is still valid for at least the
// configured safety margin, refreshing against the MH when needed.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	v, err, _ := c.group.Do("refresh", func() (any, error) {
		// Another flight may have refreshed while we queued.
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		return c.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token. Called when the MH rejects the bearer
// outright, so the next attempt authenticates from scratch.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return "", false
	}
	if !c.now().Before(c.expiresAt.Add(-c.cfg.TokenSafetyMargin)) {
		return "", false
	}
	return c.token, true
}

type authResponse struct {
	Status string `json:"status"`
	Body   struct {
		Token string `json:"token"`
	} `json:"body"`
}

func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	form := url.Values{"user": {c.cfg.NIT}, "pwd": {c.cfg.Password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.TokenRefreshFailures.Inc()
		return "", dErrors.Wrap(dErrors.CodeUnavailable, "MH auth unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.metrics.TokenRefreshFailures.Inc()
		return "", dErrors.Wrap(dErrors.CodeUnavailable, "MH auth read failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.TokenRefreshFailures.Inc()
		return "", dErrors.New(dErrors.CodeUnauthorized, fmt.Sprintf("MH auth returned %d", resp.StatusCode))
	}

	var parsed authResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.metrics.TokenRefreshFailures.Inc()
		return "", dErrors.Wrap(dErrors.CodeUnavailable, "MH auth response not JSON", err)
	}
	if !strings.EqualFold(parsed.Status, "OK") || parsed.Body.Token == "" {
		c.metrics.TokenRefreshFailures.Inc()
		return "", dErrors.New(dErrors.CodeUnauthorized, "MH auth rejected credentials")
	}

	token := parsed.Body.Token
	expiry := c.tokenExpiry(token)

	c.mu.Lock()
	c.token = token
	c.expiresAt = expiry
	c.mu.Unlock()

	c.metrics.TokenRefreshes.Inc()
	c.logger.Info("MH token refreshed", "expires_at", expiry)
	return token, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the MH
// signs tokens with a key it does not publish, and the claim only schedules
// our own refresh.
func (c *TokenCache) tokenExpiry(token string) time.Time {
	// The MH prefixes tokens with "Bearer " in some responses.
	compact := strings.TrimPrefix(token, "Bearer ")
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(compact, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return c.now().Add(fallbackTokenTTL[c.env])
}
