package njt

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jusunglee/commute-go/internal/arrivals"
	"github.com/jusunglee/commute-go/internal/models"
)

const (
	busAuthPath       = "/api/BUSDV2/authenticateUser"
	busRouteTripsPath = "/api/BUSDV2/getRouteTrips"
	busDVPath         = "/api/BUSDV2/getBusDV"
	busTripStopsPath  = "/api/BUSDV2/getTripStops"
)

// BusClient reads scheduled and live bus data from BUSDV2.
type BusClient struct {
	c *client
}

// NewBusClient creates a bus client. The token is fetched lazily.
func NewBusClient(baseURL, username, password string, opts ...Option) *BusClient {
	return &BusClient{c: newClient(strings.TrimRight(baseURL, "/"), username, password, busAuthPath, opts)}
}

// ScheduleSchema reads getRouteTrips rows, where departuretime is the
// timetable time rather than a prediction.
var ScheduleSchema = func() arrivals.Schema {
	s := arrivals.DefaultSchema
	s.Live = nil
	s.Scheduled = append([]string{"departuretime"}, arrivals.DefaultSchema.Scheduled...)
	return s
}()

// Schedule is the scheduled trips departing a location.
type Schedule struct {
	Trips   []arrivals.RawTrip
	Delayed bool
}

// ScheduledTrips returns up to limit trips of route departing location. Each
// trip is tagged with a stops entry for location so the arrivals pipeline
// can match it.
func (b *BusClient) ScheduledTrips(ctx context.Context, location, route string, limit int) (Schedule, error) {
	var raw any
	fields := map[string]string{"location": location, "route": route}
	if err := b.c.post(ctx, busRouteTripsPath, fields, &raw); err != nil {
		return Schedule{}, fmt.Errorf("route trips: %w", err)
	}

	trips, err := arrivals.Trips(raw)
	if err != nil {
		return Schedule{}, fmt.Errorf("route trips: %w", err)
	}
	if limit > 0 && len(trips) > limit {
		trips = trips[:limit]
	}

	var s Schedule
	for _, t := range trips {
		if t == nil {
			continue
		}
		if strings.Contains(strings.ToUpper(arrivals.String(t, "remarks")), "DELAY") {
			s.Delayed = true
		}
		if _, ok := t["stops"]; !ok {
			t["stops"] = []any{map[string]any{"StopID": location}}
		}
		s.Trips = append(s.Trips, t)
	}
	return s, nil
}

// Live is the departure-vision view of one stop.
type Live struct {
	Trips    []arrivals.RawTrip
	Vehicles []models.Vehicle
}

// Confirmed returns the vehicles that are really being tracked.
func (l Live) Confirmed() []models.Vehicle {
	var out []models.Vehicle
	for _, v := range l.Vehicles {
		if v.Confirmed() {
			out = append(out, v)
		}
	}
	return out
}

// LiveTrips returns trips of route heading in direction that will call at
// stop. Each trip's stops list carries live_time, an absolute time derived
// from the GPS countdown, when getTripStops has one for the stop. A trip
// whose stop list omits stop is left for the matcher to drop. Only a trip
// with no lookup (no internal_trip_number, or a failed request) is assumed to
// call at stop, since getBusDV was already filtered by it.
func (b *BusClient) LiveTrips(ctx context.Context, route, direction, stop string) (Live, error) {
	var resp struct {
		DVTrip []map[string]any `json:"DVTrip"`
	}
	fields := map[string]string{"route": route, "direction": direction, "stop": stop}
	if err := b.c.post(ctx, busDVPath, fields, &resp); err != nil {
		return Live{}, fmt.Errorf("bus dv: %w", err)
	}

	var live Live
	now := b.c.now().In(b.c.loc)
	for _, trip := range resp.DVTrip {
		if trip == nil {
			continue
		}
		live.Vehicles = append(live.Vehicles, models.Vehicle{
			ID:            arrivals.String(trip, "vehicle_id"),
			Route:         arrivals.String(trip, "public_route"),
			Header:        arrivals.String(trip, "header"),
			DepartureTime: arrivals.String(trip, "departuretime"),
			Status:        arrivals.String(trip, "departurestatus"),
			PassengerLoad: arrivals.String(trip, "passload"),
		})

		rt := arrivals.RawTrip{}
		for k, v := range trip {
			rt[k] = v
		}
		rt["stops"] = b.tripStops(ctx, trip, stop, now)
		live.Trips = append(live.Trips, rt)
	}
	return live, nil
}

func (b *BusClient) tripStops(ctx context.Context, trip map[string]any, stop string, now time.Time) []any {
	fallback := []any{map[string]any{"StopID": stop}}

	number := arrivals.String(trip, "internal_trip_number")
	if number == "" {
		return fallback
	}

	var raw []map[string]any
	fields := map[string]string{
		"internal_trip_number": number,
		"sched_dep_time":       arrivals.String(trip, "sched_dep_time"),
		"timing_point_id":      arrivals.String(trip, "timing_point_id"),
	}
	if err := b.c.post(ctx, busTripStopsPath, fields, &raw); err != nil {
		slog.Warn("trip stops unavailable", "trip", number, "error", err)
		return fallback
	}

	stops := make([]any, 0, len(raw))
	for _, s := range raw {
		if s == nil {
			continue
		}
		entry := make(map[string]any, len(s)+1)
		for k, v := range s {
			entry[k] = v
		}
		if d, ok := ParseCountdown(arrivals.String(s, "ApproxTime")); ok {
			entry["live_time"] = now.Add(d).Format(time.RFC3339)
		}
		stops = append(stops, entry)
	}
	return stops
}

// ParseCountdown reads a BUSDV2 ApproxTime value, "min:sec" until arrival.
// A bare number is minutes.
func ParseCountdown(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	minPart, secPart, hasSec := strings.Cut(s, ":")
	mins, err := strconv.Atoi(minPart)
	if err != nil || mins < 0 {
		return 0, false
	}
	secs := 0
	if hasSec {
		secs, err = strconv.Atoi(secPart)
		if err != nil || secs < 0 || secs >= 60 {
			return 0, false
		}
	}
	return time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second, true
}
