package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"t212cache/internal/ratelimit"
	"t212cache/internal/retry"
)

const (
	// MaxOrdersPage is the hard cap for the order history endpoint.
	// Trading212 returns 500 for any larger limit, so requests must clamp.
	MaxOrdersPage = 8

	// MaxHistoryPage is the cap for the dividend and transaction endpoints.
	MaxHistoryPage = 50
)

// Options parameterise the Trading212 client.
type Options struct {
	Key            string
	Secret         string
	Environment    string // "demo" or "live"
	BaseURL        string // overrides the environment-derived URL when set
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	UserAgent      string
}

// Client talks to the Trading212 REST API. Every request first blocks on
// the rate limiter for its endpoint, runs under the retry policy, and
// feeds response headers back into the limiter.
type Client struct {
	opts       Options
	httpClient *http.Client
	baseURL    string
	authHeader string
	limiter    *ratelimit.Limiter
	policy     retry.Policy
	logger     zerolog.Logger
}

// NewClient constructs a Trading212 client. Limiter and policy are
// injected so one pair can gate every client an engine owns.
func NewClient(opts Options, limiter *ratelimit.Limiter, policy retry.Policy, logger zerolog.Logger) (*Client, error) {
	if opts.Key == "" || opts.Secret == "" {
		return nil, errors.New("api key and secret are required")
	}

	env := opts.Environment
	if env == "" {
		env = "demo"
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.trading212.com/api/v0", env)
	}

	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(opts.Key + ":" + opts.Secret))

	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		baseURL:    baseURL,
		authHeader: "Basic " + credentials,
		limiter:    limiter,
		policy:     policy,
		logger:     logger.With().Str("component", "api_client").Logger(),
	}, nil
}

// get performs a rate-limited, retried GET and decodes the JSON body into
// out. The endpoint path is the rate-limiter key.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Block(ctx, path); err != nil {
			return err
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", c.authHeader)
		req.Header.Set("Accept", "application/json")
		if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
			req.Header.Set("User-Agent", ua)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request %s: %w", path, err)
		}
		defer resp.Body.Close()

		if c.limiter != nil {
			c.limiter.Update(path, resp.Header)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read %s response: %w", path, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return parseHTTPError(resp.StatusCode, body)
		}

		payload = body
		return nil
	}

	if err := c.policy.Do(ctx, attempt); err != nil {
		return err
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
