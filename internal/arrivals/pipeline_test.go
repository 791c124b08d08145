package arrivals

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jusunglee/commute-go/internal/models"
)

func testClock() Clock {
	return Clock{Loc: Eastern, Now: time.Date(2025, 10, 14, 13, 0, 0, 0, Eastern)}
}

func peterPan(live, sched any) RawTrip {
	return RawTrip{
		"route":       "Peter Pan 76",
		"destination": "Port Authority",
		"stops": []any{
			map[string]any{"stop_id": "Newark Penn", "live_time": live, "scheduled_time": sched},
			map[string]any{"stop_id": "Port Authority"},
		},
	}
}

func TestReconcileScenarios(t *testing.T) {
	tests := []struct {
		name       string
		trip       RawTrip
		stop       string
		wantLen    int
		wantETA    string
		wantSource models.ETASource
	}{
		{
			name:       "live preferred over scheduled",
			trip:       peterPan("14:32", "14:30"),
			stop:       "newark penn",
			wantLen:    1,
			wantETA:    "14:32",
			wantSource: models.ETALive,
		},
		{
			name:       "null live falls back to scheduled",
			trip:       peterPan(nil, "14:30"),
			stop:       "newark penn",
			wantLen:    1,
			wantETA:    "14:30",
			wantSource: models.ETAScheduled,
		},
		{
			name:    "no times drops the trip",
			trip:    peterPan(nil, nil),
			stop:    "newark penn",
			wantLen: 0,
		},
		{
			name: "trip not serving the stop",
			trip: RawTrip{
				"route": "Peter Pan 76",
				"stops": []any{map[string]any{"stop_id": "Port Authority", "live_time": "14:32"}},
			},
			stop:    "Newark Penn",
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile([]RawTrip{tt.trip}, tt.stop, WithClock(testClock()))
			require.NotNil(t, got)
			require.Len(t, got, tt.wantLen)
			if tt.wantLen == 0 {
				return
			}
			assert.Equal(t, "Peter Pan 76", got[0].Route)
			assert.Equal(t, tt.wantETA, got[0].ETA.Format("15:04"))
			assert.Equal(t, tt.wantSource, got[0].ETASource)
			assert.Equal(t, "2025-10-14", got[0].ETA.Format("2006-01-02"))
		})
	}
}

func TestReconcileNoFalsePositives(t *testing.T) {
	trips := []RawTrip{
		{"route": "113", "stops": []any{map[string]any{"StopID": "28883", "live_time": "6:05 AM"}}},
		{"route": "114", "stops": []any{map[string]any{"StopID": "28884", "live_time": "6:10 AM"}}},
		{"route": "115", "stops": "28883"},
		{"route": "116"},
		{"route": "117", "stops": []any{"28883", 42, nil}},
		{"route": "118", "stops": []any{map[string]any{"StopID": 28883, "scheduled_time": "6:20 AM"}}},
	}

	got := Reconcile(trips, " 28883 ", WithClock(testClock()))
	require.Len(t, got, 2)
	assert.Equal(t, "113", got[0].Route)
	assert.Equal(t, "118", got[1].Route)
	assert.Equal(t, models.ETAScheduled, got[1].ETASource)
}

func TestReconcileKeepsInputOrder(t *testing.T) {
	stop := func(live string) any {
		return []any{map[string]any{"stop_id": "X1", "live_time": live}}
	}
	trips := []RawTrip{
		{"route": "A", "stops": stop("15:00")},
		{"route": "B", "stops": stop("14:00")},
		{"route": "C", "stops": stop("14:30")},
	}

	got := Reconcile(trips, "x1", WithClock(testClock()))
	require.Len(t, got, 3)
	assert.Equal(t, []string{"A", "B", "C"}, routes(got))

	SortByETA(got)
	assert.Equal(t, []string{"B", "C", "A"}, routes(got))
}

func TestReconcileIdempotent(t *testing.T) {
	trips := []RawTrip{peterPan("14:32", "14:30"), peterPan(nil, "14:30"), peterPan("garbage", nil)}
	first := Reconcile(trips, "Newark Penn", WithClock(testClock()))
	second := Reconcile(trips, "Newark Penn", WithClock(testClock()))
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
}

func TestReconcileDefaults(t *testing.T) {
	trips := []RawTrip{{
		"remarks": nil,
		"stops":   []any{map[string]any{"stop_id": "S", "scheduled_time": "10:00"}},
	}}

	got := Reconcile(trips, "s", WithClock(testClock()))
	require.Len(t, got, 1)
	assert.Equal(t, UnknownRoute, got[0].Route)
	assert.Equal(t, "", got[0].Destination)
	assert.Equal(t, "", got[0].Remarks)
}

func TestReconcileMalformedLiveFallsThrough(t *testing.T) {
	got := Reconcile([]RawTrip{peterPan("soon", "14:30")}, "Newark Penn", WithClock(testClock()))
	require.Len(t, got, 1)
	assert.Equal(t, models.ETAScheduled, got[0].ETASource)
}

func TestReconcileTripLevelTimes(t *testing.T) {
	trips := []RawTrip{{
		"public_route":   "113",
		"header":         " New York ",
		"sched_dep_time": "14-Oct-2025 06:05:00 AM",
		"remarks":        "DELAYED 5 MIN",
		"stops":          []any{map[string]any{"StopID": "28883"}},
	}}

	got := Reconcile(trips, "28883", WithClock(testClock()))
	require.Len(t, got, 1)
	assert.Equal(t, "New York", got[0].Destination)
	assert.Equal(t, "DELAYED 5 MIN", got[0].Remarks)
	assert.Equal(t, models.ETAScheduled, got[0].ETASource)
	assert.True(t, time.Date(2025, 10, 14, 6, 5, 0, 0, Eastern).Equal(got[0].ETA))
}

func TestReconcileStats(t *testing.T) {
	var st Stats
	trips := []RawTrip{peterPan("14:32", nil), peterPan(nil, "14:30"), peterPan(nil, nil), {"route": "x"}}
	Reconcile(trips, "Newark Penn", WithClock(testClock()), WithStats(&st))
	assert.Equal(t, Stats{Seen: 4, Matched: 3, NoETA: 1, Live: 1, Scheduled: 1}, st)
}

func TestReconcileRaw(t *testing.T) {
	t.Run("nil is empty", func(t *testing.T) {
		got, err := ReconcileRaw(nil, "x")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("not a list", func(t *testing.T) {
		_, err := ReconcileRaw(map[string]any{"route": "1"}, "x")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStructuralInput))

		var se *StructuralInputError
		require.True(t, errors.As(err, &se))
		assert.Contains(t, se.Reason, "want a list")
	})

	t.Run("list of scalars", func(t *testing.T) {
		_, err := ReconcileRaw([]any{"a", "b"}, "x")
		assert.ErrorIs(t, err, ErrStructuralInput)
	})

	t.Run("null element is tolerated", func(t *testing.T) {
		raw := []any{nil, map[string]any(peterPan("14:32", nil))}
		got, err := ReconcileRaw(raw, "Newark Penn", WithClock(testClock()))
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestReconcileJSON(t *testing.T) {
	payload := []byte(`[
		{"public_route": "113", "header": "NEW YORK", "remarks": null,
		 "stops": [{"StopID": 28883, "live_time": "2025-10-14T10:05:00Z"}]},
		{"public_route": "114", "stops": null}
	]`)

	got, err := ReconcileJSON(payload, "28883", WithClock(testClock()))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.ETALive, got[0].ETASource)
	assert.Equal(t, "06:05", got[0].ETA.Format("15:04"))
	assert.Equal(t, Eastern, got[0].ETA.Location())

	_, err = ReconcileJSON([]byte(`{"not":"a list"}`), "28883")
	assert.ErrorIs(t, err, ErrStructuralInput)

	_, err = ReconcileJSON([]byte(`[{`), "28883")
	assert.ErrorIs(t, err, ErrStructuralInput)
}

func routes(list []models.Arrival) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Route
	}
	return out
}
