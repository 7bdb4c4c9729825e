package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"signal_trader/internal/models"
	"signal_trader/pkg/tracing"

	"github.com/bytedance/sonic"
)

// TokenSource hands out the bearer token and forgets it after a 401.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

// Client talks to the ProjectX gateway REST API. Every call is bounded by
// timeout; a 401 invalidates the token and the call is retried once.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	tokens  TokenSource
	auth    *Authenticator
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, auth *Authenticator) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
		tokens:  tokens,
		auth:    auth,
	}
}

// Login exchanges the credentials for a fresh token, bypassing the cache.
func (c *Client) Login(ctx context.Context) (string, error) {
	return c.auth.Login(ctx)
}

// Token returns the cached session token.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.tokens.GetToken(ctx)
}

type response struct {
	status int
	body   []byte
}

func (r response) ok() bool { return r.status/100 == 2 }

func (c *Client) send(ctx context.Context, method, path, token string, payload []byte) (response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return response{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/plain")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read body: %w", err)
	}
	return response{status: resp.StatusCode, body: data}, nil
}

// do sends an authenticated request. Transport failures are NetworkError,
// a token that cannot be obtained is AuthError. The response status is left
// for the caller to judge.
func (c *Client) do(ctx context.Context, op, method, path string, in any) (_ response, err error) {
	span, ctx := tracing.StartSpan(ctx, "projectx."+op)
	defer func() { tracing.Finish(span, err) }()

	var payload []byte
	if in != nil {
		if payload, err = sonic.Marshal(in); err != nil {
			return response{}, models.NewError(models.KindValidation, op, fmt.Errorf("marshal: %w", err))
		}
	}

	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return response{}, err
	}

	resp, err := c.send(ctx, method, path, token, payload)
	if err != nil {
		return response{}, models.NewError(models.KindNetwork, op, err)
	}
	if resp.status != http.StatusUnauthorized {
		span.SetTag("http.status_code", resp.status)
		return resp, nil
	}

	c.tokens.Invalidate(ctx)
	if token, err = c.tokens.GetToken(ctx); err != nil {
		return response{}, err
	}
	if resp, err = c.send(ctx, method, path, token, payload); err != nil {
		return response{}, models.NewError(models.KindNetwork, op, err)
	}
	span.SetTag("http.status_code", resp.status)
	if resp.status == http.StatusUnauthorized {
		return resp, models.Errorf(models.KindAuth, op, "unauthorized after token refresh")
	}
	return resp, nil
}

// call is do plus a 2xx check and a decode of the body into out.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	resp, err := c.do(ctx, op, method, path, in)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(resp.body, out); err != nil {
		return models.NewError(models.KindNetwork, op, fmt.Errorf("decode: %w; body=%s", err, truncate(resp.body)))
	}
	return nil
}

func statusError(op string, resp response) error {
	kind := models.KindBrokerRejection
	if resp.status >= 500 {
		kind = models.KindNetwork
	}
	return models.Errorf(kind, op, "http %d: %s", resp.status, truncate(resp.body))
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
