package njt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jusunglee/commute-go/internal/arrivals"
	"github.com/jusunglee/commute-go/internal/models"
)

var fixedNow = time.Date(2025, 10, 14, 5, 50, 0, 0, arrivals.Eastern)

func testOptions() []Option {
	return []Option{
		WithNow(func() time.Time { return fixedNow }),
		WithBackOff(func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2) }),
	}
}

type fakeNJT struct {
	auths  atomic.Int32
	routes map[string]http.HandlerFunc

	mu       sync.Mutex
	lastForm map[string]string
}

func (f *fakeNJT) form(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastForm[key]
}

func newFakeNJT(t *testing.T, authPath string) (*fakeNJT, *httptest.Server) {
	f := &fakeNJT{routes: map[string]http.HandlerFunc{}}
	f.routes[authPath] = func(w http.ResponseWriter, r *http.Request) {
		f.auths.Add(1)
		if r.FormValue("username") != "rider" || r.FormValue("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"UserToken": "tok-1"})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h, ok := f.routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Path != busAuthPath && r.URL.Path != railAuthPath && r.FormValue("token") != "tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.lastForm = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			f.lastForm[k] = v[0]
		}
		f.mu.Unlock()
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestScheduledTrips(t *testing.T) {
	f, srv := newFakeNJT(t, busAuthPath)
	f.routes[busRouteTripsPath] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []any{
			map[string]any{"public_route": "113", "header": "NEW YORK", "departuretime": "6:05 AM", "remarks": ""},
			map[string]any{"public_route": "113", "header": "NEW YORK", "departuretime": "6:35 AM", "remarks": "Delayed 5 min"},
			map[string]any{"public_route": "113", "header": "NEW YORK", "departuretime": "7:05 AM"},
		})
	}

	bus := NewBusClient(srv.URL+"/", "rider", "secret", testOptions()...)
	sched, err := bus.ScheduledTrips(context.Background(), "28883", "113", 2)
	require.NoError(t, err)
	require.Len(t, sched.Trips, 2)
	assert.True(t, sched.Delayed)
	assert.Equal(t, "28883", f.form("location"))
	assert.Equal(t, "113", f.form("route"))

	got := arrivals.Reconcile(sched.Trips, "28883", arrivals.WithClock(arrivals.Clock{Now: fixedNow}))
	require.Len(t, got, 2)
	assert.Equal(t, "06:05", got[0].ETA.Format("15:04"))
	assert.Equal(t, "NEW YORK", got[0].Destination)

	_, err = bus.ScheduledTrips(context.Background(), "28883", "113", 2)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.auths.Load(), "token should be cached")
}

func TestScheduledTripsStructural(t *testing.T) {
	f, srv := newFakeNJT(t, busAuthPath)
	f.routes[busRouteTripsPath] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"errorMessage": "bad route"})
	}

	bus := NewBusClient(srv.URL, "rider", "secret", testOptions()...)
	_, err := bus.ScheduledTrips(context.Background(), "28883", "113", 3)
	assert.ErrorIs(t, err, arrivals.ErrStructuralInput)
}

func TestLiveTrips(t *testing.T) {
	f, srv := newFakeNJT(t, busAuthPath)
	f.routes[busDVPath] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"DVTrip": []any{
			map[string]any{
				"vehicle_id": "5712", "public_route": "113", "header": "NEW YORK",
				"departuretime": "6:20 AM", "sched_dep_time": "6:15 AM", "passload": "LIGHT",
				"internal_trip_number": "T1", "timing_point_id": "FAN",
			},
			map[string]any{
				"vehicle_id": "EMPTY", "public_route": "113", "header": "NEW YORK",
				"sched_dep_time": "6:45 AM", "internal_trip_number": "T2",
			},
			map[string]any{
				"vehicle_id": "", "public_route": "113", "sched_dep_time": "7:15 AM",
			},
			map[string]any{
				"vehicle_id": "", "public_route": "113", "header": "NEW YORK",
				"departuretime": "6:20 AM", "internal_trip_number": "T9",
			},
		}})
	}
	f.routes[busTripStopsPath] = func(w http.ResponseWriter, r *http.Request) {
		switch r.FormValue("internal_trip_number") {
		case "T1":
			writeJSON(w, []any{
				map[string]any{"StopID": "20001", "ApproxTime": "1:00"},
				map[string]any{"StopID": "28883", "ApproxTime": "7:32", "Status": "Approaching"},
			})
		case "T9":
			// Serves other stops only.
			writeJSON(w, []any{
				map[string]any{"StopID": "20001", "ApproxTime": "2:00"},
				map[string]any{"StopID": "20002", "ApproxTime": "4:00"},
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}

	bus := NewBusClient(srv.URL, "rider", "secret", testOptions()...)
	live, err := bus.LiveTrips(context.Background(), "113", "New York", "28883")
	require.NoError(t, err)
	require.Len(t, live.Trips, 4)
	require.Len(t, live.Vehicles, 4)
	assert.Len(t, live.Trips[3]["stops"], 2, "stop list from getTripStops is passed through as is")

	confirmed := live.Confirmed()
	require.Len(t, confirmed, 1)
	assert.Equal(t, models.Vehicle{
		ID: "5712", Route: "113", Header: "NEW YORK",
		DepartureTime: "6:20 AM", PassengerLoad: "LIGHT",
	}, confirmed[0])

	got := arrivals.Reconcile(live.Trips, "28883", arrivals.WithClock(arrivals.Clock{Now: fixedNow}))
	require.Len(t, got, 3)
	assert.Equal(t, models.ETALive, got[0].ETASource)
	assert.True(t, fixedNow.Add(7*time.Minute+32*time.Second).Equal(got[0].ETA))
	assert.Equal(t, models.ETAScheduled, got[1].ETASource)
	assert.Equal(t, "06:45", got[1].ETA.Format("15:04"))
	assert.Equal(t, "07:15", got[2].ETA.Format("15:04"))
	for _, a := range got {
		assert.NotEqual(t, "06:20", a.ETA.Format("15:04"), "trip not calling at the stop must be dropped")
	}
}

func TestRetriesTemporaryFailures(t *testing.T) {
	f, srv := newFakeNJT(t, busAuthPath)
	var calls atomic.Int32
	f.routes[busDVPath] = func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"DVTrip": []any{}})
	}

	bus := NewBusClient(srv.URL, "rider", "secret", testOptions()...)
	live, err := bus.LiveTrips(context.Background(), "113", "New York", "28883")
	require.NoError(t, err)
	assert.Empty(t, live.Trips)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPermanentFailures(t *testing.T) {
	t.Run("bad credentials", func(t *testing.T) {
		_, srv := newFakeNJT(t, busAuthPath)
		bus := NewBusClient(srv.URL, "rider", "wrong", testOptions()...)
		_, err := bus.LiveTrips(context.Background(), "113", "New York", "28883")

		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		f, srv := newFakeNJT(t, busAuthPath)
		var calls atomic.Int32
		f.routes[busDVPath] = func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}
		bus := NewBusClient(srv.URL, "rider", "secret", testOptions()...)
		_, err := bus.LiveTrips(context.Background(), "113", "New York", "28883")

		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestParseCountdown(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"7:32", 7*time.Minute + 32*time.Second, true},
		{"0:45", 45 * time.Second, true},
		{"12", 12 * time.Minute, true},
		{"", 0, false},
		{"soon", 0, false},
		{"7:75", 0, false},
		{"-1:00", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseCountdown(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestUntilMidnight(t *testing.T) {
	assert.Equal(t, 18*time.Hour+10*time.Minute, untilMidnight(fixedNow))
}

func TestTrainSchedule(t *testing.T) {
	f, srv := newFakeNJT(t, railAuthPath)
	f.routes[railSchedulePath] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ITEMS": []any{
			map[string]any{
				"LINEABBREVIATION": "MOBO", "DESTINATION": "Hackettstown",
				"STOPS": []any{map[string]any{"DEP_TIME": "14-Oct-2025 03:30:00 PM"}},
			},
			map[string]any{
				"LINEABBREVIATION": "nec", "DESTINATION": "Trenton &#9992;", "TRACK": "7", "TRAIN_ID": "3847",
				"STOPS": []any{map[string]any{"DEP_TIME": "14-Oct-2025 03:40:00 PM", "STOP_STATUS": "On Time"}},
			},
			map[string]any{"LINEABBREVIATION": "RARV", "DESTINATION": "Raritan", "STOPS": []any{}},
			map[string]any{
				"LINEABBREVIATION": "RARV", "DESTINATION": "Raritan",
				"STOPS": []any{map[string]any{"DEP_TIME": "garbage", "STOP_STATUS": "delayed 10 min"}},
			},
			map[string]any{
				"LINEABBREVIATION": "NJCL", "DESTINATION": "Bay Head",
				"STOPS": []any{map[string]any{"DEP_TIME": "14-Oct-2025 04:01:00 PM"}},
			},
			map[string]any{
				"LINEABBREVIATION": "NEC", "DESTINATION": "Trenton",
				"STOPS": []any{map[string]any{"DEP_TIME": "14-Oct-2025 04:10:00 PM"}},
			},
		}})
	}

	rail := NewRailClient(srv.URL, "rider", "secret", testOptions()...)
	status, err := rail.TrainSchedule(context.Background(), "NY", 3)
	require.NoError(t, err)
	assert.Equal(t, "NY", f.form("station"))
	assert.True(t, status.Delayed)
	assert.Equal(t, []models.Train{
		{Line: "NEC", TrainID: "3847", Destination: "Trenton ✈", Time: "03:40 PM", Track: "7", Status: "ON TIME"},
		{Line: "RARV", Destination: "Raritan", Time: "N/A", Track: "?", Status: "DELAYED"},
		{Line: "NJCL", Destination: "Bay Head", Time: "04:01 PM", Track: "?", Status: "UNKNOWN"},
	}, status.NextTrains)

	newark, err := rail.TrainSchedule(context.Background(), "NP", 3)
	require.NoError(t, err)
	require.Len(t, newark.NextTrains, 1)
	assert.Equal(t, "RARV", newark.NextTrains[0].Line)
}

func TestStationAlerts(t *testing.T) {
	f, srv := newFakeNJT(t, railAuthPath)
	f.routes[railMessagePath] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []any{
			map[string]any{"MSG_TEXT": "  NEC train 3847 from PSNY is 10 min late  "},
			map[string]any{"MSG_TEXT": ""},
			map[string]any{"MSG_TYPE": "banner"},
		})
	}

	rail := NewRailClient(srv.URL, "rider", "secret", testOptions()...)
	alerts, err := rail.StationAlerts(context.Background(), "NY")
	require.NoError(t, err)
	assert.Equal(t, []string{"NEC train 3847 from PSNY is 10 min late"}, alerts)
	assert.Equal(t, "", f.form("line"))
}
