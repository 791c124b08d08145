// Package njt talks to the NJ Transit BUSDV2 and TrainData APIs.
package njt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	"github.com/bluele/gcache"
	"github.com/cenkalti/backoff/v4"

	"github.com/jusunglee/commute-go/internal/arrivals"
)

// HTTPError is returned for a 4xx or 5xx upstream response.
type HTTPError struct {
	URL, Status string
	StatusCode  int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: %s", e.URL, e.Status)
}

// Temporary reports whether retrying the request may succeed.
func (e *HTTPError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// ErrNoToken means authentication succeeded but returned no token.
var ErrNoToken = errors.New("njt: empty user token")

func check(r *http.Response) error {
	if r.StatusCode >= 400 && r.StatusCode < 600 {
		io.Copy(io.Discard, r.Body)
		return &HTTPError{
			URL:        r.Request.URL.Redacted(),
			Status:     r.Status,
			StatusCode: r.StatusCode,
		}
	}
	return nil
}

const tokenKey = "token"

// Option configures a bus or rail client.
type Option func(*client)

func WithHTTPClient(h *http.Client) Option { return func(c *client) { c.http = h } }

// WithLocation sets the zone tokens expire in and upstream times are read in.
func WithLocation(loc *time.Location) Option { return func(c *client) { c.loc = loc } }

func WithNow(now func() time.Time) Option { return func(c *client) { c.now = now } }

// WithBackOff replaces the retry policy. Each request gets a fresh policy.
func WithBackOff(f func() backoff.BackOff) Option { return func(c *client) { c.newBackOff = f } }

type client struct {
	baseURL  string
	username string
	password string
	authPath string

	http       *http.Client
	tokens     gcache.Cache
	loc        *time.Location
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

func newClient(baseURL, username, password, authPath string, opts []Option) *client {
	c := &client{
		baseURL:  baseURL,
		username: username,
		password: password,
		authPath: authPath,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		tokens:     gcache.New(1).LRU().Build(),
		loc:        arrivals.Eastern,
		now:        time.Now,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 20 * time.Second
	b.Reset()
	return b
}

// clock returns the service clock for the arrivals pipeline.
func (c *client) clock() arrivals.Clock {
	return arrivals.Clock{Loc: c.loc, Now: c.now().In(c.loc)}
}

// untilMidnight is how long a token fetched at t stays valid. NJT tokens
// are issued per service day.
func untilMidnight(t time.Time) time.Duration {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
	return midnight.Sub(t)
}

func (c *client) token(ctx context.Context) (string, error) {
	if v, err := c.tokens.Get(tokenKey); err == nil {
		return v.(string), nil
	}

	var resp struct {
		UserToken string `json:"UserToken"`
	}
	fields := map[string]string{"username": c.username, "password": c.password}
	if err := c.send(ctx, c.authPath, fields, &resp); err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	if resp.UserToken == "" {
		return "", ErrNoToken
	}

	now := c.now().In(c.loc)
	if err := c.tokens.SetWithExpire(tokenKey, resp.UserToken, untilMidnight(now)); err != nil {
		return "", err
	}
	slog.Debug("njt token fetched", "path", c.authPath)
	return resp.UserToken, nil
}

// post sends an authenticated multipart form and decodes the JSON reply into
// out. Temporary failures are retried; a 401 drops the cached token first.
func (c *client) post(ctx context.Context, path string, fields map[string]string, out any) error {
	op := func() error {
		tok, err := c.token(ctx)
		if err != nil {
			var httpErr *HTTPError
			// Bad credentials will not fix themselves.
			if errors.As(err, &httpErr) && httpErr.Temporary() && httpErr.StatusCode != http.StatusUnauthorized {
				return err
			}
			return backoff.Permanent(err)
		}

		withToken := make(map[string]string, len(fields)+1)
		for k, v := range fields {
			withToken[k] = v
		}
		withToken["token"] = tok

		err = c.send(ctx, path, withToken, out)
		var httpErr *HTTPError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &httpErr):
			if httpErr.StatusCode == http.StatusUnauthorized {
				c.tokens.Remove(tokenKey)
			}
			if httpErr.Temporary() {
				return err
			}
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		default:
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				return backoff.Permanent(err)
			}
			return err
		}
	}

	b := backoff.WithContext(c.newBackOff(), ctx)
	return backoff.RetryNotify(op, b, func(err error, d time.Duration) {
		slog.Warn("njt request failed, retrying", "path", path, "error", err, "backoff", d)
	})
}

func (c *client) send(ctx context.Context, path string, fields map[string]string, out any) error {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := check(resp); err != nil {
		return err
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
