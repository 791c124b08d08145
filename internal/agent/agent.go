// Package agent builds and sends commute summaries, on demand or from the
// morning and afternoon schedules.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jusunglee/commute-go/internal/arrivals"
	"github.com/jusunglee/commute-go/internal/config"
	"github.com/jusunglee/commute-go/internal/geo"
	"github.com/jusunglee/commute-go/internal/metrics"
	"github.com/jusunglee/commute-go/internal/models"
	"github.com/jusunglee/commute-go/internal/njt"
	"github.com/jusunglee/commute-go/internal/notify"
	"github.com/jusunglee/commute-go/internal/weather"
)

// Recommendations
const (
	RecommendDefault     = "⚠️ Unable to determine commute recommendation."
	RecommendBadHome     = "⚠️ Bad weather expected in Fanwood. Consider leaving early."
	RecommendBadNYC      = "⚠️ Bad weather expected in NYC. Consider taking precautions."
	RecommendHome        = "🚌 Checking 113X bus from Fanwood..."
	RecommendPenn        = "Proceed to Penn as usual."
	RecommendPATH        = "⚠️ Delay detected. Take PATH."
	RecommendNewark      = "🚉 Checking train schedule from Newark to Fanwood..."
	unrecognizedLocation = "📍 Location not recognized. Cannot trigger agent."
	homeTitle            = "🚌 *113X Bus Departures to Port Authority from Fanwood*"
)

// Location values that mean "work it out from the coordinates"
const (
	LocationFromPhone = "triggered_from_phone"
	LocationUnknown   = "unknown"
)

// ErrNoCoordinates is returned when the zone has to come from coordinates
// and none were given.
var ErrNoCoordinates = errors.New("lat/lon required")

type BusSource interface {
	ScheduledTrips(ctx context.Context, location, route string, limit int) (njt.Schedule, error)
	LiveTrips(ctx context.Context, route, direction, stop string) (njt.Live, error)
}

type RailSource interface {
	TrainSchedule(ctx context.Context, station string, limit int) (models.RailStatus, error)
	StationAlerts(ctx context.Context, station string) ([]string, error)
}

// BoardSource is the DepartureVision scraper, used when TrainData is down
type BoardSource interface {
	Departures(ctx context.Context, limit int) (models.RailStatus, error)
}

type SubwaySource interface {
	Summary(ctx context.Context) ([]string, error)
}

type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (models.Weather, error)
}

type Store interface {
	SaveTrigger(r models.TriggerResult)
}

// Deps are the collaborators an Agent talks to. Board and Metrics may be nil.
type Deps struct {
	Bus     BusSource
	Rail    RailSource
	Board   BoardSource
	Subway  SubwaySource
	Weather WeatherSource
	Sender  notify.Sender
	Store   Store
	Metrics *metrics.Collector
}

// Request asks for a summary. Location is a zone name, or empty,
// LocationFromPhone or LocationUnknown to resolve it from Lat/Lon.
type Request struct {
	Location string   `json:"location"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
}

// Agent gathers transit and weather data for a zone and sends the summary
type Agent struct {
	Deps
	cfg config.Config
	loc *time.Location
	now func() time.Time
}

func New(cfg config.Config, deps Deps) *Agent {
	loc := cfg.Location
	if loc == nil {
		loc = arrivals.Eastern
	}
	return &Agent{Deps: deps, cfg: cfg, loc: loc, now: time.Now}
}

// ResolveZone picks the zone for r. Coordinates outside every zone count
// as home.
func ResolveZone(r Request) (string, error) {
	switch strings.ToLower(strings.TrimSpace(r.Location)) {
	case "", LocationFromPhone, LocationUnknown:
	default:
		return strings.ToLower(strings.TrimSpace(r.Location)), nil
	}
	if r.Lat == nil || r.Lon == nil {
		return "", ErrNoCoordinates
	}
	zone := geo.Zone(*r.Lat, *r.Lon)
	if zone == geo.ZoneUnknown {
		zone = geo.ZoneHome
	}
	return zone, nil
}

// Recommend is the weather-driven advice; home weather wins over the city.
func Recommend(w models.WeatherPair) string {
	switch {
	case w.Home.IsBad:
		return RecommendBadHome
	case w.NYC.IsBad:
		return RecommendBadNYC
	}
	return RecommendDefault
}

func isWarning(rec string) bool {
	return strings.HasPrefix(rec, "⚠️") && rec != RecommendDefault
}

// Trigger runs the agent once: resolve the zone, gather data, format, send
// and record the result. Upstream failures degrade their section of the
// message; only a missing zone is an error.
func (a *Agent) Trigger(ctx context.Context, r Request) (models.TriggerResult, error) {
	start := a.now()
	zone, err := ResolveZone(r)
	if err != nil {
		return models.TriggerResult{}, err
	}
	log := slog.With("zone", zone)
	log.Info("commute agent triggered", "location", r.Location)

	w := a.WeatherPair(ctx)
	rec := Recommend(w)

	var msg string
	switch zone {
	case geo.ZoneHome:
		if !isWarning(rec) {
			rec = RecommendHome
		}
		msg = notify.FormatHome(homeTitle, a.BusStatus(ctx), &w, a.now())

	case geo.ZoneNYC:
		var (
			subway []string
			rail   models.RailStatus
			alerts []string
		)
		var g errgroup.Group
		g.Go(func() error { subway = a.subwayLines(ctx); return nil })
		g.Go(func() error { rail = a.RailStatus(ctx, a.cfg.Rail.NYCStation, a.cfg.Rail.Limit); return nil })
		g.Go(func() error { alerts = a.StationAlerts(ctx, a.cfg.Rail.NYCStation); return nil })
		g.Wait()

		if !isWarning(rec) {
			rec = RecommendPenn
			if rail.Delayed {
				rec = RecommendPATH
			}
		}
		msg = notify.FormatNYC(a.cfg.Subway.Label, subway, rail, alerts, &w)

	case geo.ZoneNewark:
		rec = RecommendNewark
		msg = notify.FormatNewark(a.RailStatus(ctx, a.cfg.Rail.NewarkStation, a.cfg.Rail.Limit), &w)

	default:
		msg = unrecognizedLocation
	}

	if r.Lat != nil && r.Lon != nil {
		msg += notify.Coordinates(*r.Lat, *r.Lon)
	}

	res := models.TriggerResult{
		ID:             uuid.NewString(),
		Status:         "ok",
		Zone:           zone,
		Recommendation: rec,
		Message:        msg,
		SentAt:         a.now(),
	}
	if a.Sender != nil {
		n := notify.Notification{ID: res.ID, Zone: zone, Message: msg, SentAt: res.SentAt}
		if err := a.Sender.Send(ctx, n); err != nil {
			res.Status = "send_failed"
		}
	}
	if a.Store != nil {
		a.Store.SaveTrigger(res)
	}
	a.Metrics.TriggerObserve(zone, a.now().Sub(start))
	log.Info("commute agent finished", "id", res.ID, "status", res.Status, "recommendation", rec)
	return res, nil
}

// WeatherPair fetches home and office conditions in parallel. A failed
// lookup is reported as unavailable.
func (a *Agent) WeatherPair(ctx context.Context) models.WeatherPair {
	var w models.WeatherPair
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.Home = a.weatherAt(gctx, a.cfg.Weather.Home)
		return nil
	})
	g.Go(func() error {
		w.NYC = a.weatherAt(gctx, a.cfg.Weather.Office)
		return nil
	})
	g.Wait()
	return w
}

func (a *Agent) weatherAt(ctx context.Context, c config.Coordinates) models.Weather {
	if a.Weather == nil {
		return weather.Unavailable()
	}
	w, err := a.Weather.Current(ctx, c.Lat, c.Lon)
	if err != nil {
		a.fetchFailed("weather", err)
		return weather.Unavailable()
	}
	return w
}

// BusStatus returns scheduled and live arrivals at the home stop.
func (a *Agent) BusStatus(ctx context.Context) models.BusStatus {
	bc := a.cfg.Bus
	var (
		sched njt.Schedule
		live  njt.Live
	)
	var g errgroup.Group
	g.Go(func() error {
		s, err := a.Bus.ScheduledTrips(ctx, bc.LocationCode, bc.Route, bc.Limit)
		if err != nil {
			a.fetchFailed("njt_bus_schedule", err)
			return nil
		}
		sched = s
		return nil
	})
	g.Go(func() error {
		l, err := a.Bus.LiveTrips(ctx, bc.Route, bc.Direction, bc.Stop)
		if err != nil {
			a.fetchFailed("njt_bus_live", err)
			return nil
		}
		live = l
		return nil
	})
	g.Wait()

	return models.BusStatus{
		Stop:      bc.Stop,
		Scheduled: a.reconcile(sched.Trips, bc.LocationCode, njt.ScheduleSchema),
		Live:      a.reconcile(live.Trips, bc.Stop, arrivals.DefaultSchema),
		Vehicles:  live.Vehicles,
		Delayed:   sched.Delayed,
	}
}

// LiveArrivals reconciles the live board for any route and stop.
func (a *Agent) LiveArrivals(ctx context.Context, route, direction, stop string) ([]models.Arrival, error) {
	live, err := a.Bus.LiveTrips(ctx, route, direction, stop)
	if err != nil {
		a.fetchFailed("njt_bus_live", err)
		return nil, err
	}
	return a.reconcile(live.Trips, stop, arrivals.DefaultSchema), nil
}

func (a *Agent) reconcile(trips []arrivals.RawTrip, stop string, schema arrivals.Schema) []models.Arrival {
	var st arrivals.Stats
	list := arrivals.Reconcile(trips, stop,
		arrivals.WithSchema(schema),
		arrivals.WithClock(arrivals.Clock{Loc: a.loc, Now: a.now()}),
		arrivals.WithStats(&st),
	)
	a.Metrics.ArrivalsAdd(string(models.ETALive), st.Live)
	a.Metrics.ArrivalsAdd(string(models.ETAScheduled), st.Scheduled)
	if st.NoETA > 0 {
		slog.Debug("dropped arrivals without a usable time", "stop", stop, "count", st.NoETA)
	}
	return list
}

// RailStatus returns the next departures from station. For the NY station a
// TrainData failure falls back to the DepartureVision board.
func (a *Agent) RailStatus(ctx context.Context, station string, limit int) models.RailStatus {
	rs, err := a.Rail.TrainSchedule(ctx, station, limit)
	if err == nil {
		return rs
	}
	a.fetchFailed("njt_rail", err)

	if a.Board != nil && station == a.cfg.Rail.NYCStation {
		rs, err = a.Board.Departures(ctx, limit)
		if err == nil {
			return rs
		}
		a.fetchFailed("departurevision", err)
	}
	return models.RailStatus{Station: station, NextTrains: []models.Train{}}
}

// StationAlerts returns alert texts for station, empty on failure.
func (a *Agent) StationAlerts(ctx context.Context, station string) []string {
	alerts, err := a.Rail.StationAlerts(ctx, station)
	if err != nil {
		a.fetchFailed("njt_alerts", err)
		return []string{}
	}
	return alerts
}

func (a *Agent) subwayLines(ctx context.Context) []string {
	if a.Subway == nil {
		return nil
	}
	lines, err := a.Subway.Summary(ctx)
	if err != nil {
		a.fetchFailed("subway", err)
		return nil
	}
	return lines
}

func (a *Agent) fetchFailed(source string, err error) {
	slog.Warn("upstream fetch failed", "source", source, "error", err)
	a.Metrics.FetchError(source)
}
