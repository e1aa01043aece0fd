package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	jerrors "github.com/Vandebron/jwks-client/pkg/errors"
)

const (
	DefaultTimeout         = 10 * time.Second
	DefaultMaxBodySize     = 1 << 20
	defaultInitialInterval = 200 * time.Millisecond
	defaultMaxInterval     = 5 * time.Second
)

// RetryPolicy controls how often a failed fetch is attempted again.
// The zero value disables retries.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// WebSource fetches a key set document over HTTP.
type WebSource struct {
	url        string
	timeout    time.Duration
	maxBody    int
	retry      RetryPolicy
	headers    map[string]string
	httpClient *http.Client
	logger     *logrus.Entry

	client *resty.Client
}

// Option is a function that configures the web source.
type Option func(*WebSource)

// WithTimeout sets the deadline of a single HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(w *WebSource) {
		w.timeout = d
	}
}

// WithMaxBodySize caps the size of the response body in bytes.
func WithMaxBodySize(n int) Option {
	return func(w *WebSource) {
		w.maxBody = n
	}
}

// WithRetry sets the retry policy for failed requests.
func WithRetry(p RetryPolicy) Option {
	return func(w *WebSource) {
		w.retry = p
	}
}

// WithHTTPClient sets the underlying HTTP client, e.g. to customise TLS.
func WithHTTPClient(c *http.Client) Option {
	return func(w *WebSource) {
		w.httpClient = c
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(w *WebSource) {
		w.headers[key] = value
	}
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Entry) Option {
	return func(w *WebSource) {
		w.logger = l
	}
}

// NewWebSource validates rawURL and the options and builds the source. No
// request is made.
func NewWebSource(rawURL string, opts ...Option) (*WebSource, error) {
	w := &WebSource{
		url:     rawURL,
		timeout: DefaultTimeout,
		maxBody: DefaultMaxBodySize,
		headers: map[string]string{},
	}

	for _, opt := range opts {
		opt(w)
	}

	if err := w.validate(); err != nil {
		return nil, err
	}

	if w.logger == nil {
		w.logger = logrus.StandardLogger().WithField("component", "jwks-web-source")
	}
	w.logger = w.logger.WithField("url", w.url)

	if w.httpClient != nil {
		w.client = resty.NewWithClient(w.httpClient)
	} else {
		w.client = resty.New()
	}
	w.client.
		SetTimeout(w.timeout).
		SetResponseBodyLimit(w.maxBody).
		SetLogger(w.logger).
		SetHeader("Accept", "application/json").
		SetHeaders(w.headers)

	return w, nil
}

func (w *WebSource) validate() error {
	if w.url == "" {
		return jerrors.NewConfigurationError("url is required", nil)
	}
	u, err := url.Parse(w.url)
	if err != nil {
		return jerrors.NewConfigurationError(fmt.Sprintf("invalid url %q", w.url), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return jerrors.NewConfigurationError(fmt.Sprintf("url %q must use http or https", w.url), nil)
	}
	if u.Host == "" {
		return jerrors.NewConfigurationError(fmt.Sprintf("url %q has no host", w.url), nil)
	}
	if w.timeout <= 0 {
		return jerrors.NewConfigurationError(fmt.Sprintf("timeout must be positive, got %s", w.timeout), nil)
	}
	if w.maxBody <= 0 {
		return jerrors.NewConfigurationError(fmt.Sprintf("max body size must be positive, got %d", w.maxBody), nil)
	}
	if w.retry.MaxRetries < 0 {
		return jerrors.NewConfigurationError(fmt.Sprintf("retry count must be non-negative, got %d", w.retry.MaxRetries), nil)
	}
	if w.retry.InitialInterval < 0 || w.retry.MaxInterval < 0 {
		return jerrors.NewConfigurationError("retry intervals must be non-negative", nil)
	}
	return nil
}

// URL returns the endpoint the source reads.
func (w *WebSource) URL() string {
	return w.url
}

// Fetch GETs the document. Transport errors, timeouts, 5xx and 429
// responses are retried according to the retry policy; any other non-2xx
// status fails right away. All failures are SourceUnavailable errors.
func (w *WebSource) Fetch(ctx context.Context) ([]byte, error) {
	operation := func() ([]byte, error) {
		res, err := w.client.R().SetContext(ctx).Get(w.url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(jerrors.NewSourceUnavailableError("request cancelled", err))
			}
			if errors.Is(err, resty.ErrResponseBodyTooLarge) {
				return nil, backoff.Permanent(jerrors.NewSourceUnavailableError(
					fmt.Sprintf("response larger than %d bytes", w.maxBody), err))
			}
			return nil, jerrors.NewSourceUnavailableError("request failed", err)
		}

		if !res.IsSuccess() {
			statusErr := jerrors.NewSourceUnavailableError(fmt.Sprintf("failed to get JWKS: %s", res.Status()), nil)
			if retryableStatus(res.StatusCode()) {
				return nil, statusErr
			}
			return nil, backoff.Permanent(statusErr)
		}

		return res.Body(), nil
	}

	notify := func(err error, next time.Duration) {
		w.logger.WithError(err).WithField("retryIn", next).Warn("fetching key set failed, retrying")
	}

	data, err := backoff.RetryNotifyWithData(operation, w.backOff(ctx), notify)
	if err != nil {
		if jerrors.TypeOf(err) == "" {
			err = jerrors.NewSourceUnavailableError("request cancelled", err)
		}
		return nil, err
	}

	return data, nil
}

func (w *WebSource) backOff(ctx context.Context) backoff.BackOff {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = w.retry.InitialInterval
	if expBackoff.InitialInterval == 0 {
		expBackoff.InitialInterval = defaultInitialInterval
	}
	expBackoff.MaxInterval = w.retry.MaxInterval
	if expBackoff.MaxInterval == 0 {
		expBackoff.MaxInterval = defaultMaxInterval
	}
	// the retry count bounds the attempts, not the elapsed time
	expBackoff.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(w.retry.MaxRetries)), ctx)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
