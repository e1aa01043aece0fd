package jwks

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	jerrors "github.com/Vandebron/jwks-client/pkg/errors"
	"github.com/Vandebron/jwks-client/pkg/jwk"
	"github.com/Vandebron/jwks-client/pkg/metrics"
	"github.com/Vandebron/jwks-client/pkg/source"
)

const (
	DefaultMinRefreshInterval = 5 * time.Minute
	DefaultTimeToLive         = 24 * time.Hour
	DefaultFetchTimeout       = 30 * time.Second
)

// State is the cache state of a Client.
type State int

const (
	StateUninitialized State = iota
	StateFetching
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateFetching:
		return "Fetching"
	case StateReady:
		return "Ready"
	}
	return "Unknown"
}

// Client resolves keys by kid from a source, caching one snapshot of the
// key set. It is safe for concurrent use.
type Client struct {
	source             source.Source
	logger             *logrus.Entry
	minRefreshInterval time.Duration
	timeToLive         time.Duration
	fetchTimeout       time.Duration
	now                func() time.Time

	// mu guards everything below
	mu                sync.Mutex
	snapshot          *jwk.KeySet
	fetchedAt         time.Time
	lastForcedRefresh time.Time
	inflight          *refreshCall
}

// refreshCall is one fetch shared by every caller that asked for it while
// it ran.
type refreshCall struct {
	done chan struct{}
	set  *jwk.KeySet
	err  error

	// set when a miss started the call; restored if the fetch fails
	forced            bool
	prevForcedRefresh time.Time
}

func (r *refreshCall) wait(ctx context.Context) (*jwk.KeySet, error) {
	select {
	case <-r.done:
		return r.set, r.err
	case <-ctx.Done():
		return nil, jerrors.NewSourceUnavailableError("gave up waiting for key set", ctx.Err())
	}
}

// Option is a function that configures the client.
type Option func(*Client)

// WithMinRefreshInterval sets how long a refresh caused by an unknown kid
// blocks the next one. Zero refreshes on every miss.
func WithMinRefreshInterval(d time.Duration) Option {
	return func(c *Client) {
		c.minRefreshInterval = d
	}
}

// WithTimeToLive sets the age after which a snapshot is fetched again on the
// next lookup. Zero keeps a snapshot until a miss replaces it.
func WithTimeToLive(d time.Duration) Option {
	return func(c *Client) {
		c.timeToLive = d
	}
}

// WithFetchTimeout bounds a single fetch and parse.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.fetchTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client reading keys from src. Nothing is fetched until the
// first lookup.
func New(src source.Source, opts ...Option) *Client {
	c := &Client{
		source:             src,
		minRefreshInterval: DefaultMinRefreshInterval,
		timeToLive:         DefaultTimeToLive,
		fetchTimeout:       DefaultFetchTimeout,
		now:                time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logrus.StandardLogger().WithField("component", "jwks-client")
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = DefaultFetchTimeout
	}
	if c.minRefreshInterval < 0 {
		c.minRefreshInterval = 0
	}
	if c.timeToLive < 0 {
		c.timeToLive = 0
	}

	return c
}

// Get returns the key with the given kid.
//
// A kid missing from the cached snapshot causes one refresh, unless another
// refresh on a miss happened less than the minimum refresh interval ago. Fetch
// and parse failures are returned as SourceUnavailable and MalformedDocument
// errors; KeyNotFound means the kid is absent from a freshly fetched set.
func (c *Client) Get(ctx context.Context, kid string) (jwk.JWK, error) {
	if kid == "" {
		metrics.LookupTotal.WithLabelValues(metrics.LookupNotFound).Inc()
		return jwk.JWK{}, jerrors.NewKeyNotFoundError(kid)
	}

	set, err := c.current(ctx)
	if err != nil {
		metrics.LookupTotal.WithLabelValues(metrics.LookupError).Inc()
		return jwk.JWK{}, err
	}
	if key, ok := set.Lookup(kid); ok {
		metrics.LookupTotal.WithLabelValues(metrics.LookupHit).Inc()
		return key, nil
	}

	set, refreshed, err := c.refreshOnMiss(ctx, set, kid)
	if err != nil {
		metrics.LookupTotal.WithLabelValues(metrics.LookupError).Inc()
		return jwk.JWK{}, err
	}
	if refreshed {
		if key, ok := set.Lookup(kid); ok {
			metrics.LookupTotal.WithLabelValues(metrics.LookupRefreshedHit).Inc()
			return key, nil
		}
	}

	metrics.LookupTotal.WithLabelValues(metrics.LookupNotFound).Inc()
	return jwk.JWK{}, jerrors.NewKeyNotFoundError(kid)
}

// Refresh fetches the key set now, or waits for the fetch already running.
// It is not subject to the minimum refresh interval.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	call := c.startRefreshLocked()
	c.mu.Unlock()

	_, err := call.wait(ctx)
	return err
}

// KeySet returns the cached snapshot, if any.
func (c *Client) KeySet() (*jwk.KeySet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot, c.snapshot != nil
}

// State returns the current cache state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.inflight != nil:
		return StateFetching
	case c.snapshot != nil:
		return StateReady
	}
	return StateUninitialized
}

// current returns a snapshot that is not stale, fetching one if needed.
func (c *Client) current(ctx context.Context) (*jwk.KeySet, error) {
	c.mu.Lock()
	if c.snapshot != nil && !c.staleLocked() {
		set := c.snapshot
		c.mu.Unlock()
		return set, nil
	}
	call := c.startRefreshLocked()
	c.mu.Unlock()

	return call.wait(ctx)
}

// refreshOnMiss gets a newer snapshot than seen. It reports false when the
// rate limit prevented a refresh.
func (c *Client) refreshOnMiss(ctx context.Context, seen *jwk.KeySet, kid string) (*jwk.KeySet, bool, error) {
	c.mu.Lock()

	var call *refreshCall
	switch {
	case c.inflight != nil:
		call = c.inflight
	case c.snapshot != nil && c.snapshot != seen:
		// replaced since we looked, no need for another fetch
		set := c.snapshot
		c.mu.Unlock()
		return set, true, nil
	case c.rateLimitedLocked():
		c.mu.Unlock()
		metrics.RefreshRateLimitedTotal.Inc()
		c.logger.WithField("kid", kid).Debug("unknown kid, refresh skipped by minimum refresh interval")
		return seen, false, nil
	default:
		prev := c.lastForcedRefresh
		c.lastForcedRefresh = c.now()
		c.logger.WithField("kid", kid).Info("unknown kid, refreshing key set")
		call = c.startRefreshLocked()
		call.forced = true
		call.prevForcedRefresh = prev
	}
	c.mu.Unlock()

	set, err := call.wait(ctx)
	if err != nil {
		return nil, false, err
	}
	return set, true, nil
}

func (c *Client) staleLocked() bool {
	return c.timeToLive > 0 && c.now().Sub(c.fetchedAt) >= c.timeToLive
}

func (c *Client) rateLimitedLocked() bool {
	if c.minRefreshInterval == 0 || c.lastForcedRefresh.IsZero() {
		return false
	}
	return c.now().Sub(c.lastForcedRefresh) < c.minRefreshInterval
}

// startRefreshLocked returns the running refresh or starts a new one.
func (c *Client) startRefreshLocked() *refreshCall {
	if c.inflight != nil {
		return c.inflight
	}

	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call
	go c.runRefresh(call)

	return call
}

func (c *Client) runRefresh(call *refreshCall) {
	// the fetch outlives any single caller, only the fetch timeout ends it
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	set, err := c.fetch(ctx)

	c.mu.Lock()
	if err == nil {
		c.snapshot = set
		c.fetchedAt = c.now()
	} else if call.forced {
		// a failed refresh did not show the kid is absent, the next miss may try again
		c.lastForcedRefresh = call.prevForcedRefresh
	}
	c.inflight = nil
	call.set, call.err = set, err
	c.mu.Unlock()

	close(call.done)
}

func (c *Client) fetch(ctx context.Context) (*jwk.KeySet, error) {
	start := time.Now()
	observe := func(result string) {
		metrics.FetchTotal.WithLabelValues(result).Inc()
		metrics.FetchDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}

	c.logger.Debug("fetching key set")

	raw, err := c.fetchRaw(ctx)
	if err != nil {
		observe(metrics.ResultSourceError)
		c.logger.WithError(err).Error("failed to fetch key set")
		return nil, err
	}

	set, err := jwk.Parse(raw)
	if err != nil {
		observe(metrics.ResultParseError)
		c.logger.WithError(err).Error("failed to parse key set")
		return nil, err
	}

	skipped := set.Skipped()
	for _, s := range skipped {
		c.logger.WithError(s.Err).WithField("index", s.Index).Warn("skipping key set entry")
	}
	metrics.SkippedKeysTotal.Add(float64(len(skipped)))

	observe(metrics.ResultSuccess)
	c.logger.WithFields(logrus.Fields{
		"keys":    set.Len(),
		"skipped": len(skipped),
	}).Debug("fetched key set")

	return set, nil
}

// fetchRaw calls the source but stops waiting when ctx ends, so a source
// that ignores its context cannot hold the client in the fetching state.
func (c *Client) fetchRaw(ctx context.Context) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	ch := make(chan result, 1)
	go func() {
		data, err := c.source.Fetch(ctx)
		ch <- result{data: data, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && jerrors.TypeOf(r.err) == "" {
			return nil, jerrors.NewSourceUnavailableError("failed to fetch key set", r.err)
		}
		return r.data, r.err
	case <-ctx.Done():
		return nil, jerrors.NewSourceUnavailableError("key set fetch timed out", ctx.Err())
	}
}
