package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
)

const (
	// TokenCacheKey is the cache entry holding the warehouse access token
	TokenCacheKey = "autoloadwatch_bq_token"

	// assertionLifetime is the exp - iat of the signed assertion
	assertionLifetime = time.Hour

	// expirySkew keeps cached tokens clear of the server-side expiry
	expirySkew = time.Minute
)

// TokenProvider exchanges a signed service account assertion for a bearer
// token and caches it below the token's lifetime.
type TokenProvider struct {
	cache      repository.TokenCache
	scope      string
	ttl        time.Duration
	httpClient *http.Client
	logger     domain.Logger
	now        func() time.Time
}

// TokenProviderOption configures a TokenProvider
type TokenProviderOption func(*TokenProvider)

// WithHTTPClient sets the client used for the token exchange
func WithHTTPClient(client *http.Client) TokenProviderOption {
	return func(p *TokenProvider) {
		p.httpClient = client
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) TokenProviderOption {
	return func(p *TokenProvider) {
		p.now = now
	}
}

// NewTokenProvider creates a token provider
func NewTokenProvider(cache repository.TokenCache, cfg *config.WarehouseConfig, logger domain.Logger, opts ...TokenProviderOption) *TokenProvider {
	p := &TokenProvider{
		cache:      cache,
		scope:      cfg.Scope,
		ttl:        cfg.TokenCacheTTL(),
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger,
		now:        time.Now,
	}
	if p.scope == "" {
		p.scope = config.DefaultWarehouseScope
	}
	if p.ttl <= 0 || p.ttl >= assertionLifetime {
		p.ttl = 50 * time.Minute
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AccessToken returns a cached token or performs the JWT bearer exchange
func (p *TokenProvider) AccessToken(ctx context.Context, creds *entity.ServiceCredentials) (string, error) {
	if token, ok := p.cache.Get(TokenCacheKey); ok && token != "" {
		p.logger.Debug(ctx, "Using cached access token")
		return token, nil
	}

	conf := &jwt.Config{
		Email:        creds.ClientEmail,
		PrivateKey:   []byte(creds.PrivateKey),
		PrivateKeyID: creds.PrivateKeyID,
		Scopes:       []string{p.scope},
		TokenURL:     creds.TokenURI,
		Expires:      assertionLifetime,
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := conf.TokenSource(exchangeCtx).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", domain.ErrAuth("token endpoint rejected the assertion", err).
				WithDetails("statusCode", retrieveErr.Response.StatusCode).
				WithDetails("body", string(retrieveErr.Body))
		}
		return "", domain.ErrAuth("token exchange failed", err)
	}
	if token.AccessToken == "" {
		return "", domain.ErrAuth("no access_token in response", nil)
	}

	ttl := p.cacheTTL(token)
	if ttl > 0 {
		p.cache.Set(TokenCacheKey, token.AccessToken, ttl)
	}

	p.logger.Info(ctx, "Obtained warehouse access token",
		domain.NewField("cache_ttl", ttl.String()),
		domain.NewField("client_email", creds.ClientEmail))

	return token.AccessToken, nil
}

// cacheTTL returns the configured TTL, shortened when the token expires sooner
func (p *TokenProvider) cacheTTL(token *oauth2.Token) time.Duration {
	ttl := p.ttl
	if !token.Expiry.IsZero() {
		remaining := token.Expiry.Sub(p.now()) - expirySkew
		if remaining < ttl {
			ttl = remaining
		}
	}
	return ttl
}

// Invalidate drops the cached token
func (p *TokenProvider) Invalidate() {
	p.cache.Delete(TokenCacheKey)
}
