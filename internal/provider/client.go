package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	maxBodySize = 10 * 1024 * 1024 // 10 MB
	userAgent   = "trotd (+https://github.com/FelixSchausberger/trotd)"
)

// ClientConfig tunes the HTTP client shared by the adapters.
type ClientConfig struct {
	MaxRetries          uint64
	InitialBackoff      time.Duration
	MaxBackoff          time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	ResponseHeader      time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxRetries:          3,
		InitialBackoff:      250 * time.Millisecond,
		MaxBackoff:          2 * time.Second,
		DialTimeout:         5 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		ResponseHeader:      10 * time.Second,
	}
}

// Client performs GET requests with a bounded retry loop. Only network
// failures and 5xx responses are retried.
type Client struct {
	http   *http.Client
	cfg    ClientConfig
	logger *zap.Logger
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeader,
		ForceAttemptHTTP2:     true,
	}
	return &Client{
		http:   &http.Client{Transport: transport},
		cfg:    cfg,
		logger: logger,
	}
}

// NewClientWithHTTP wraps an existing *http.Client, mostly for tests.
func NewClientWithHTTP(hc *http.Client, cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: hc, cfg: cfg, logger: logger}
}

// Get fetches url and returns the body. budget caps the total time spent
// including retries; zero means the context deadline alone applies.
func (c *Client) Get(ctx context.Context, provider, url string, header http.Header, budget time.Duration) ([]byte, error) {
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.InitialBackoff
	eb.MaxInterval = c.cfg.MaxBackoff
	eb.MaxElapsedTime = budget

	var body []byte
	op := func() error {
		b, err := c.do(ctx, provider, url, header)
		if err != nil {
			var pe *Error
			if errors.As(err, &pe) && !pe.Temporary() {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying request",
			zap.String("provider", provider),
			zap.String("url", url),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.cfg.MaxRetries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		var pe *Error
		if !errors.As(err, &pe) {
			// the policy gave up because ctx ended between attempts
			return nil, NewTimeoutError(provider, err)
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, provider, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: ErrParseFailure, Provider: provider, Message: "building request", Err: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewTimeoutError(provider, ctx.Err())
		}
		return nil, NewNetworkError(provider, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, classifyStatus(provider, resp)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewTimeoutError(provider, ctx.Err())
		}
		return nil, NewNetworkError(provider, 0, fmt.Errorf("reading response body: %w", err))
	}
	if len(raw) > maxBodySize {
		return nil, NewParseError(provider, fmt.Errorf("response body too large (exceeds %d bytes)", maxBodySize))
	}
	return raw, nil
}
