package authenticator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Vandebron/jwks-client/pkg/jwks"
	"github.com/Vandebron/jwks-client/pkg/source"
	"github.com/Vandebron/jwks-client/pkg/verifier"
)

const (
	UnauthenticatedHeader = "X-Auth-Unauthenticated"
	claimHeaderPrefix     = "X-Auth-"
)

// Config the plugin configuration.
type Config struct {
	JWKSURL            string   `json:"jwksUrl,omitempty"`
	ExcludeClaims      []string `json:"excludeClaims,omitempty"`
	RefreshInterval    string   `json:"refreshInterval,omitempty"`
	MinRefreshInterval string   `json:"minRefreshInterval,omitempty"`
	Timeout            string   `json:"timeout,omitempty"`
}

// CreateConfig creates the default plugin configuration.
func CreateConfig() *Config {
	return &Config{
		JWKSURL:            "",
		ExcludeClaims:      []string{},
		RefreshInterval:    "30m",
		MinRefreshInterval: "5m",
		Timeout:            "10s",
	}
}

// Authenticator plugin.
type Authenticator struct {
	next      http.Handler
	name      string
	client    *jwks.Client
	validator *verifier.TokenValidator
	cfg       *Config
	logger    *logrus.Entry
}

// New initialises the plugin.
func New(
	ctx context.Context,
	next http.Handler,
	config *Config,
	name string,
) (http.Handler, error) {
	logger := logrus.StandardLogger().WithFields(logrus.Fields{
		"component": "authenticator",
		"name":      name,
	})

	refreshInterval, err := parseDuration(config.RefreshInterval)
	if err != nil {
		return nil, fmt.Errorf("error parsing refresh interval: %w", err)
	}
	minRefreshInterval, err := parseDuration(config.MinRefreshInterval)
	if err != nil {
		return nil, fmt.Errorf("error parsing min refresh interval: %w", err)
	}
	timeout := source.DefaultTimeout
	if config.Timeout != "" {
		if timeout, err = time.ParseDuration(config.Timeout); err != nil {
			return nil, fmt.Errorf("error parsing timeout: %w", err)
		}
	}

	src, err := source.NewWebSource(config.JWKSURL,
		source.WithTimeout(timeout),
		source.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	client := jwks.New(src,
		jwks.WithMinRefreshInterval(minRefreshInterval),
		jwks.WithLogger(logger),
	)

	if err := client.Refresh(ctx); err != nil {
		logger.WithError(err).Error("error fetching JWKs")
		return nil, err
	}

	a := &Authenticator{
		next:      next,
		name:      name,
		client:    client,
		validator: verifier.New(client),
		cfg:       config,
		logger:    logger,
	}

	if refreshInterval > 0 {
		a.periodicRefreshJWK(ctx, refreshInterval)
	}

	return a, nil
}

// ServeHTTP is the authentication middleware that sets the
// headers for requests
func (a *Authenticator) ServeHTTP(
	w http.ResponseWriter,
	r *http.Request,
) {
	// claim headers only ever come from a validated token
	for header := range r.Header {
		if strings.HasPrefix(http.CanonicalHeaderKey(header), claimHeaderPrefix) {
			r.Header.Del(header)
		}
	}

	token := getAuthToken(r)
	if token == "" {
		r.Header.Set(UnauthenticatedHeader, "true")
		a.next.ServeHTTP(w, r)
		return
	}

	claims, err := a.validator.Validate(r.Context(), token)

	if claims == nil || err != nil {
		a.logger.WithError(err).Debug("token rejected")
		r.Header.Set(UnauthenticatedHeader, "true")
	} else {
		// Set the claims as headers
		for k, v := range claims {
			// Skip excluded claims
			if stringInList(k, a.cfg.ExcludeClaims) {
				continue
			}
			r.Header.Set(fmt.Sprintf("%s%v", claimHeaderPrefix, k), v)
		}
	}

	a.next.ServeHTTP(w, r)
}

// Starts a goroutine that periodically refreshes the JWKs
func (a *Authenticator) periodicRefreshJWK(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.refreshJWK(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Refreshes the JWKs, keeping the cached set on failure.
func (a *Authenticator) refreshJWK(ctx context.Context) {
	if err := a.client.Refresh(ctx); err != nil {
		a.logger.WithError(err).Warn("error refreshing JWKs")
	}
}

// getAuthToken extracts the Bearer token from the
// Authorization header.
func getAuthToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}

func stringInList(s string, list []string) bool {
	for _, item := range list {
		if s == item {
			return true
		}
	}
	return false
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
