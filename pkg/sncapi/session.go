// Package sncapi is the REST channel to the remote instance: an
// authenticated, rate-limited HTTP session with retry and backoff. Only a
// validated descriptor can open a session.
package sncapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AshishGautamKarn/sn-introspect/pkg/apperrors"
	"github.com/AshishGautamKarn/sn-introspect/pkg/logging"
	"github.com/AshishGautamKarn/sn-introspect/pkg/ratelimit"
	"github.com/AshishGautamKarn/sn-introspect/pkg/retry"
	"github.com/AshishGautamKarn/sn-introspect/pkg/validation"
)

// userAgent identifies the engine to the remote instance.
const userAgent = "sn-introspect/1.0"

// Session is an open API channel. Safe for concurrent use by all
// kind-extractors; the rate limiter is the shared synchronization point.
type Session struct {
	baseURL    string
	username   string
	credential string
	version    string
	httpClient *http.Client
	limiter    *ratelimit.SourceLimiter
	retryCfg   *retry.Config
	logger     *zap.Logger
}

// Open builds a session from a validated descriptor. No request is made
// here; the first call verifies reachability.
func Open(v validation.ValidatedAPI, limiter *ratelimit.SourceLimiter, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !v.TLSVerify() {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Session{
		baseURL:    v.BaseURL(),
		username:   v.Username(),
		credential: v.Credential(),
		version:    v.Version(),
		httpClient: &http.Client{
			Timeout:   v.Timeout(),
			Transport: transport,
		},
		limiter:  limiter,
		retryCfg: retry.DefaultConfig().WithMaxRetries(v.MaxRetries()),
		logger:   logger.Named("sncapi"),
	}
}

// Get performs a rate-limited GET with retry and backoff. Transient
// failures (timeouts, 5xx, connection resets, 429) are retried up to the
// descriptor's budget; 401/403 surface immediately as auth errors; other
// 4xx are terminal.
func (s *Session) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if err := s.limiter.Acquire(ctx, ratelimit.SourceAPI); err != nil {
		return nil, err
	}

	var lastErr error
	delay := s.retryCfg.InitialDelay

	for attempt := 0; attempt <= s.retryCfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			// Cancellation wins over the retry budget.
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		body, retryAfter, err := s.doOnce(ctx, path, params)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retry.IsRetryable(err) {
			return nil, err
		}
		if attempt == s.retryCfg.MaxRetries {
			break
		}

		wait := delay
		if retryAfter > 0 {
			wait = retryAfter
		}
		s.logger.Debug("retrying api request",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.String("error", logging.SanitizeError(err)))

		select {
		case <-time.After(wait):
			delay = time.Duration(float64(delay) * s.retryCfg.Multiplier)
			if delay > s.retryCfg.MaxDelay {
				delay = s.retryCfg.MaxDelay
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// doOnce executes one attempt. The returned duration is a server-requested
// Retry-After delay, zero when absent.
func (s *Session) doOnce(ctx context.Context, path string, params url.Values) (json.RawMessage, time.Duration, error) {
	fullURL := s.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, apperrors.Validation("build api request: %v", err)
	}
	req.SetBasicAuth(s.username, s.credential)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			// A timed-out request counts as one failed attempt.
			return nil, 0, apperrors.Timeout(fmt.Sprintf("api request to %s timed out", path), err)
		}
		return nil, 0, apperrors.ConnectionFailed(fmt.Sprintf("api request to %s failed", path), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, apperrors.ConnectionFailed("read api response", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, 0, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, 0, apperrors.Auth("api returned status %d for %s", resp.StatusCode, path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), apperrors.RateLimited("api",
			fmt.Errorf("server returned 429 for %s", path))
	case resp.StatusCode >= 500:
		return nil, 0, apperrors.ConnectionFailed(
			fmt.Sprintf("api returned status %d for %s", resp.StatusCode, path), nil)
	default:
		return nil, 0, apperrors.Validation("api rejected request to %s with status %d", path, resp.StatusCode)
	}
}

// parseRetryAfter reads a Retry-After header in seconds form. HTTP-date
// form is ignored; backoff covers that case.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// TablePath returns the Table API path for the session's API version.
func (s *Session) TablePath(table string) string {
	return "api/now/" + s.version + "/table/" + table
}

// TestConnection verifies the API is reachable with valid credentials by
// fetching a single record from a small system table.
func (s *Session) TestConnection(ctx context.Context) error {
	params := url.Values{}
	params.Set("sysparm_limit", "1")
	_, err := s.Get(ctx, s.TablePath("sys_properties"), params)
	return err
}

// Close releases the session's idle connections.
func (s *Session) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
