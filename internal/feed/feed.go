package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/cenkalti/backoff/v4"
	"google.golang.org/protobuf/proto"
)

// NQRW is the MTA GTFS-RT feed for the N, Q, R and W lines
const NQRW = "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-nqrw"

// Fetcher downloads and decodes one GTFS-RT feed
type Fetcher struct {
	url        string
	apiKey     string
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

// Option configures a Fetcher
type Option func(*Fetcher)

func WithHTTPClient(h *http.Client) Option { return func(f *Fetcher) { f.httpClient = h } }

func WithBackOff(b func() backoff.BackOff) Option { return func(f *Fetcher) { f.newBackOff = b } }

// NewFetcher creates a fetcher. apiKey may be empty; the MTA serves the
// feeds without one.
func NewFetcher(url, apiKey string, opts ...Option) *Fetcher {
	f := &Fetcher{
		url:    url,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 15 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the current feed, retrying transient failures
func (f *Fetcher) Fetch(ctx context.Context) (*gtfs.FeedMessage, error) {
	b := backoff.WithContext(f.newBackOff(), ctx)
	data, err := backoff.RetryNotifyWithData(func() ([]byte, error) {
		return f.fetchFeed(ctx)
	}, b, func(err error, d time.Duration) {
		slog.Warn("feed fetch failed, retrying", "url", f.url, "error", err, "backoff", d)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	return Decode(data)
}

// Decode parses a GTFS-RT protobuf payload
func Decode(data []byte) (*gtfs.FeedMessage, error) {
	msg := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return msg, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if f.apiKey != "" {
		req.Header.Set("x-api-key", f.apiKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP %d", resp.StatusCode)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	return io.ReadAll(resp.Body)
}
