package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
	"github.com/dmitrijs2005/tabkeeper/internal/common"
)

const (
	opPush = "push"
	opPull = "pull"
	opPing = "ping"

	defaultRequestTimeout = 15 * time.Second
)

// HTTPClient talks to the sync server over HTTP/JSON.
type HTTPClient struct {
	endpointURL    string
	httpClient     *http.Client
	requestTimeout time.Duration

	mu          sync.RWMutex
	accessToken string
}

// NewHTTPClient returns a client for endpointURL (e.g. "http://127.0.0.1:8080").
// A non-positive requestTimeout falls back to 15s.
func NewHTTPClient(endpointURL string, requestTimeout time.Duration) *HTTPClient {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &HTTPClient{
		endpointURL:    strings.TrimRight(endpointURL, "/"),
		httpClient:     &http.Client{},
		requestTimeout: requestTimeout,
	}
}

func (c *HTTPClient) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *HTTPClient) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Push uploads the whole replica. The response body is ignored.
func (c *HTTPClient) Push(ctx context.Context, payload *models.Dataset) error {
	return c.do(ctx, opPush, http.MethodPost, common.RoutePush, payload, nil)
}

// Pull fetches records changed since req.LastSyncTimestamp.
func (c *HTTPClient) Pull(ctx context.Context, req PullRequest) (*models.Dataset, error) {
	var resp models.Dataset
	if err := c.do(ctx, opPull, http.MethodPost, common.RoutePull, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping checks that the server answers. The caller's context bounds it; the
// connectivity prober passes its own short timeout.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, opPing, http.MethodGet, common.RoutePing, nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, op, method, route string, in, out any) error {
	if op != opPing {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return newSyncError(op, KindUnknown, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpointURL+route, body)
	if err != nil {
		return newSyncError(op, KindUnknown, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.mapError(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return newSyncError(op, KindUnauthorized, fmt.Errorf("status %s", resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return newSyncError(op, KindNetwork, fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(msg))))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return newSyncError(op, KindNetwork, err)
		}
		return newSyncError(op, KindParse, err)
	}
	return nil
}

// mapError classifies errors from http.Client.Do. Everything Do returns is a
// transport-level failure (dial, TLS, reset, deadline), so it is a network error.
func (c *HTTPClient) mapError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return newSyncError(op, KindNetwork, fmt.Errorf("request canceled: %w", err))
	}
	return newSyncError(op, KindNetwork, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
