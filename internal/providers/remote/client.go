package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/resilience"
)

// ClientConfig configures the outbound client
type ClientConfig struct {
	Timeout         time.Duration
	Retries         int
	RequestsPerSec  float64
	BreakerFailures uint32
	UserAgent       string
}

// DefaultClientConfig returns conservative defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:         30 * time.Second,
		BreakerFailures: 10,
		UserAgent:       "ServiceHub/1.0",
	}
}

// errServerStatus marks 5xx answers so the breaker counts them
var errServerStatus = errors.New("server error status")

// Client wraps resty with rate limiting and per-host circuit breakers
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Set
	timeout  time.Duration
	mu       sync.RWMutex
}

// NewClient creates the outbound client
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 10
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultClientConfig().UserAgent
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil
	// hand the final response back untouched so its status and body can be reported
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")
	restyClient.SetTransport(retryClient.StandardClient().Transport)

	breakers := resilience.NewSet(resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: resilience.ConsecutiveFailures(cfg.BreakerFailures),
	})

	c := &Client{
		resty:    restyClient,
		breakers: breakers,
		timeout:  cfg.Timeout,
	}
	c.SetRateLimit(cfg.RequestsPerSec)
	return c
}

// SetRateLimit caps outbound requests per second; zero or less disables the cap
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// SetHeader adds a header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resty.SetHeader(key, value)
}

// BreakerStates reports the breaker state of every host called so far
func (c *Client) BreakerStates() map[string]string {
	return c.breakers.States()
}

// PostJSON sends body to ep. Any HTTP response, including error statuses,
// is returned with a nil error; transport failures and open breakers are
// returned as ErrRemoteTransport.
func (c *Client) PostJSON(ctx context.Context, ep Endpoint, body []byte, headers http.Header) (*resty.Response, error) {
	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %v", ErrRemoteTransport, err)
	}

	var resp *resty.Response
	err := c.breakers.Get(ep.Addr()).Do(func() error {
		c.mu.RLock()
		req := c.resty.R()
		c.mu.RUnlock()

		req.SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeaderMultiValues(headers).
			SetBody(body)

		var err error
		resp, err = req.Post(ep.String())
		if err != nil {
			return err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return errServerStatus
		}
		return nil
	})

	switch {
	case err == nil, errors.Is(err, errServerStatus):
		return resp, nil
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %s unavailable: %v", ErrRemoteTransport, ep.Addr(), err)
	case errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: request to %s timed out after %s", ErrRemoteTransport, ep.Addr(), c.timeout)
	default:
		return nil, fmt.Errorf("%w: %v", ErrRemoteTransport, err)
	}
}
