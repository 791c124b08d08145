// Package subway turns the MTA GTFS-RT feed into upcoming train arrivals.
package subway

import (
	"context"
	"fmt"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/jusunglee/commute-go/internal/arrivals"
	"github.com/jusunglee/commute-go/internal/models"
)

// Trips converts every trip update in msg into a raw trip whose stops carry
// the predicted arrival as live_time.
func Trips(msg *gtfs.FeedMessage) []arrivals.RawTrip {
	var trips []arrivals.RawTrip
	for _, e := range msg.GetEntity() {
		tu := e.GetTripUpdate()
		if tu == nil {
			continue
		}

		stops := make([]any, 0, len(tu.GetStopTimeUpdate()))
		for _, stu := range tu.GetStopTimeUpdate() {
			stop := map[string]any{"stop_id": stu.GetStopId()}
			if ts := stu.GetArrival().GetTime(); ts > 0 {
				stop["live_time"] = time.Unix(ts, 0).UTC().Format(time.RFC3339)
			}
			stops = append(stops, stop)
		}

		trip := arrivals.RawTrip{"stops": stops}
		if r := tu.GetTrip().GetRouteId(); r != "" {
			trip["route"] = r
		}
		if id := tu.GetTrip().GetTripId(); id != "" {
			trip["trip_id"] = id
		}
		trips = append(trips, trip)
	}
	return trips
}

// Upcoming reconciles msg at every stop and returns the soonest limit
// arrivals that are more than buffer away from now.
func Upcoming(msg *gtfs.FeedMessage, stops []string, buffer time.Duration, limit int, now time.Time) []models.Arrival {
	trips := Trips(msg)
	clock := arrivals.Clock{Now: now}

	out := []models.Arrival{}
	cutoff := now.Add(buffer)
	for _, stop := range stops {
		for _, a := range arrivals.Reconcile(trips, stop, arrivals.WithClock(clock)) {
			if a.ETA.After(cutoff) {
				out = append(out, a)
			}
		}
	}

	arrivals.SortByETA(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Lines renders arrivals as "N train at 8:15 AM (7 min)".
func Lines(list []models.Arrival, now time.Time) []string {
	lines := make([]string, 0, len(list))
	for _, a := range list {
		lines = append(lines, fmt.Sprintf("%s train at %s (%d min)",
			a.Route, a.ETA.In(arrivals.Eastern).Format("3:04 PM"), a.MinutesAway(now)))
	}
	return lines
}

// Fetcher is the feed source a Service reads from.
type Fetcher interface {
	Fetch(ctx context.Context) (*gtfs.FeedMessage, error)
}

// Service answers "when are the next trains" for a fixed set of platforms.
type Service struct {
	fetcher Fetcher
	stops   []string
	buffer  time.Duration
	limit   int
	now     func() time.Time
}

func NewService(f Fetcher, stops []string, buffer time.Duration, limit int) *Service {
	return &Service{fetcher: f, stops: stops, buffer: buffer, limit: limit, now: time.Now}
}

// Arrivals fetches the feed and returns the next trains.
func (s *Service) Arrivals(ctx context.Context) ([]models.Arrival, error) {
	msg, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Upcoming(msg, s.stops, s.buffer, s.limit, s.now()), nil
}

// Summary is Arrivals rendered as message lines.
func (s *Service) Summary(ctx context.Context) ([]string, error) {
	list, err := s.Arrivals(ctx)
	if err != nil {
		return nil, err
	}
	return Lines(list, s.now()), nil
}
