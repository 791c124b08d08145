package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantBad  bool
		wantDesc string
		wantTemp string
	}{
		{
			name:     "rain is bad",
			body:     `{"weather":[{"main":"Rain","description":"light rain"}],"main":{"temp":11.3}}`,
			wantBad:  true,
			wantDesc: "light rain",
			wantTemp: "11.3",
		},
		{
			name:     "snow in second condition",
			body:     `{"weather":[{"main":"Clouds","description":"overcast clouds"},{"main":"Snow","description":"snow"}],"main":{"temp":-2}}`,
			wantBad:  true,
			wantDesc: "overcast clouds",
			wantTemp: "-2.0",
		},
		{
			name:     "no conditions",
			body:     `{"weather":[],"main":{}}`,
			wantDesc: "Clear",
			wantTemp: "N/A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/data/2.5/weather", r.URL.Path)
				assert.Equal(t, "key", r.URL.Query().Get("appid"))
				assert.Equal(t, "metric", r.URL.Query().Get("units"))
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := New(srv.URL, "key", 0).Current(context.Background(), 40.64101, -74.3839)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBad, got.IsBad)
			assert.Equal(t, tt.wantDesc, got.Description)
			assert.Equal(t, tt.wantTemp, got.Temp())
			assert.NotNil(t, got.Alerts)
		})
	}
}

func TestCurrentCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"weather":[{"main":"Clear","description":"clear sky"}],"main":{"temp":20}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", time.Minute)
	for i := 0; i < 3; i++ {
		_, err := c.Current(context.Background(), 40.7581, -73.97)
		require.NoError(t, err)
	}
	_, err := c.Current(context.Background(), 40.64101, -74.3839)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCurrentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "bad", time.Minute).Current(context.Background(), 1, 2)
	require.Error(t, err)
	assert.Equal(t, "N/A", Unavailable().Temp())
}
