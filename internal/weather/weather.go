// Package weather reads current conditions from OpenWeatherMap.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bluele/gcache"

	"github.com/jusunglee/commute-go/internal/models"
)

// Unavailable is the report used when conditions cannot be fetched.
func Unavailable() models.Weather {
	return models.Weather{Description: "Unavailable", Alerts: []string{}}
}

var badConditions = map[string]bool{
	"rain":         true,
	"thunderstorm": true,
	"snow":         true,
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      gcache.Cache
	ttl        time.Duration
}

// New creates a client. Reports are cached per coordinate for ttl; a zero
// ttl disables caching.
func New(baseURL, apiKey string, ttl time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		cache: gcache.New(32).LRU().Build(),
		ttl:   ttl,
	}
}

type response struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
}

// Current returns conditions at lat, lon.
func (c *Client) Current(ctx context.Context, lat, lon float64) (models.Weather, error) {
	key := strconv.FormatFloat(lat, 'f', 4, 64) + "," + strconv.FormatFloat(lon, 'f', 4, 64)
	if v, err := c.cache.Get(key); err == nil {
		return v.(models.Weather), nil
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return models.Weather{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Weather{}, fmt.Errorf("weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Weather{}, fmt.Errorf("weather: HTTP %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Weather{}, fmt.Errorf("weather: decode: %w", err)
	}

	w := models.Weather{
		Description: "Clear",
		TempCelsius: body.Main.Temp,
		Alerts:      []string{},
	}
	if len(body.Weather) > 0 {
		w.Description = body.Weather[0].Description
	}
	for _, cond := range body.Weather {
		if badConditions[strings.ToLower(cond.Main)] {
			w.IsBad = true
		}
	}

	if c.ttl > 0 {
		c.cache.SetWithExpire(key, w, c.ttl)
	}
	return w, nil
}
