package commute

import (
	"context"
	"log/slog"
	"time"

	"github.com/jusunglee/commute-go/internal/agent"
	"github.com/jusunglee/commute-go/internal/arrivals"
	"github.com/jusunglee/commute-go/internal/config"
	"github.com/jusunglee/commute-go/internal/departurevision"
	"github.com/jusunglee/commute-go/internal/feed"
	"github.com/jusunglee/commute-go/internal/metrics"
	"github.com/jusunglee/commute-go/internal/models"
	"github.com/jusunglee/commute-go/internal/njt"
	"github.com/jusunglee/commute-go/internal/notify"
	"github.com/jusunglee/commute-go/internal/store"
	"github.com/jusunglee/commute-go/internal/subway"
	"github.com/jusunglee/commute-go/internal/weather"
)

// LocalClient implements the Client interface in process
// Owns the store, the upstream clients and the auto-trigger scheduler
type LocalClient struct {
	cfg       config.Config
	store     *store.Store
	agent     *agent.Agent
	subway    *subway.Service
	scheduler *agent.Scheduler
	nats      *notify.NATSPublisher
}

// NewLocal wires every collaborator from cfg and starts the scheduler when
// enabled. A NATS connection failure is logged and the service runs
// without it.
func NewLocal(cfg config.Config, m *metrics.Collector) (*LocalClient, error) {
	s := store.NewStore()

	var njtOpts []njt.Option
	if cfg.Location != nil {
		njtOpts = append(njtOpts, njt.WithLocation(cfg.Location))
	}
	sec := cfg.Secrets

	c := &LocalClient{
		cfg:    cfg,
		store:  s,
		subway: subway.NewService(feed.NewFetcher(cfg.Subway.FeedURL, sec.MTAAPIKey), cfg.Subway.Stops, cfg.Subway.Buffer, cfg.Subway.Limit),
	}

	senders := []notify.Sender{notify.NewTelegram(cfg.Telegram.BaseURL, sec.TelegramToken, sec.TelegramChatID)}
	if cfg.NATS.URL != "" {
		p, err := notify.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, m)
		if err != nil {
			slog.Warn("NATS unavailable, continuing without it", "url", cfg.NATS.URL, "error", err)
		} else {
			c.nats = p
			senders = append(senders, p)
		}
	}

	deps := agent.Deps{
		Bus:     njt.NewBusClient(sec.NJTBusBaseURL, sec.NJTUsername, sec.NJTPassword, njtOpts...),
		Rail:    njt.NewRailClient(sec.NJTRailBaseURL, sec.NJTUsername, sec.NJTPassword, njtOpts...),
		Subway:  c.subway,
		Weather: weather.New(cfg.Weather.BaseURL, sec.WeatherKey, cfg.Weather.CacheTTL),
		Sender:  notify.NewMulti(m, senders...),
		Store:   s,
		Metrics: m,
	}
	if cfg.Rail.DepartureVisionURL != "" {
		deps.Board = departurevision.New(cfg.Rail.DepartureVisionURL)
	}
	c.agent = agent.New(cfg, deps)

	if cfg.Scheduler.Enabled {
		c.scheduler = agent.NewScheduler(c.agent, cfg.Scheduler.Interval)
		c.scheduler.Start()
		slog.Info("auto-trigger scheduler started", "interval", cfg.Scheduler.Interval)
	}

	return c, nil
}

// Close gracefully shuts down the local client
// Must be called to stop the scheduler goroutine and drain NATS
func (c *LocalClient) Close() {
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	if c.nats != nil {
		c.nats.Close()
	}
}

func (c *LocalClient) UpdateLocation(loc models.Location) models.Location {
	return c.store.SaveLocation(loc)
}

func (c *LocalClient) LastLocation() (models.Location, bool) {
	return c.store.Location()
}

func (c *LocalClient) Trigger(ctx context.Context, req agent.Request) (models.TriggerResult, error) {
	return c.agent.Trigger(ctx, req)
}

func (c *LocalClient) LastTrigger() (models.TriggerResult, bool) {
	return c.store.LastTrigger()
}

func (c *LocalClient) Triggers() []models.TriggerResult {
	return c.store.Triggers()
}

func (c *LocalClient) BusArrivals(ctx context.Context, route, direction, stop string) ([]models.Arrival, error) {
	if route == "" {
		route = c.cfg.Bus.Route
	}
	if direction == "" {
		direction = c.cfg.Bus.Direction
	}
	if stop == "" {
		stop = c.cfg.Bus.Stop
	}
	return c.agent.LiveArrivals(ctx, route, direction, stop)
}

func (c *LocalClient) SubwayArrivals(ctx context.Context) ([]models.Arrival, error) {
	return c.subway.Arrivals(ctx)
}

func (c *LocalClient) Timezone() *time.Location {
	if c.cfg.Location == nil {
		return arrivals.Eastern
	}
	return c.cfg.Location
}

func (c *LocalClient) GetLastUpdate() time.Time {
	return c.store.GetLastUpdate()
}
