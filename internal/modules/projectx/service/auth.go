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

// Authenticator performs the API key login. It holds no token itself.
type Authenticator struct {
	baseURL  string
	userName string
	apiKey   string
	timeout  time.Duration
	http     *http.Client
}

func NewAuthenticator(baseURL, userName, apiKey string, timeout time.Duration) *Authenticator {
	return &Authenticator{
		baseURL:  strings.TrimRight(baseURL, "/"),
		userName: userName,
		apiKey:   apiKey,
		timeout:  timeout,
		http:     &http.Client{},
	}
}

func (a *Authenticator) Login(ctx context.Context) (token string, err error) {
	const op = "login"
	span, ctx := tracing.StartSpan(ctx, "projectx."+op)
	defer func() { tracing.Finish(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	payload, err := sonic.Marshal(map[string]string{
		"userName": a.userName,
		"apiKey":   a.apiKey,
	})
	if err != nil {
		return "", models.NewError(models.KindAuth, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/Auth/loginKey", bytes.NewReader(payload))
	if err != nil {
		return "", models.NewError(models.KindAuth, op, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", models.NewError(models.KindAuth, op, fmt.Errorf("do: %w", err))
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", models.Errorf(models.KindAuth, op, "http %d: %s", resp.StatusCode, truncate(data))
	}

	var r struct {
		Token        string `json:"token"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := sonic.Unmarshal(data, &r); err != nil {
		return "", models.NewError(models.KindAuth, op, fmt.Errorf("decode: %w", err))
	}
	if r.Token == "" {
		return "", models.Errorf(models.KindAuth, op, "no token in response: %s", r.ErrorMessage)
	}
	return r.Token, nil
}
