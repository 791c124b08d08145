package agent

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jusunglee/commute-go/internal/geo"
	"github.com/jusunglee/commute-go/internal/models"
	"github.com/jusunglee/commute-go/internal/njt"
)

// Window ids
const (
	WindowMorning1  = "morning_05:45-06:05"
	WindowMorning2  = "morning_06:05-06:30"
	WindowAfternoon = "afternoon_13:30-13:50"
)

// clock is minutes after local midnight
type clock int

func hm(h, m int) clock { return clock(h*60 + m) }

func clockOf(t time.Time) clock { return hm(t.Hour(), t.Minute()) }

// MorningWindow returns the bus window containing t. The first window is
// half-open so 06:05 belongs to the second. ok is false outside both
// windows or when the window already fired.
func MorningWindow(t time.Time, triggered map[string]bool) (window string, ok bool) {
	c := clockOf(t)
	switch {
	case c >= hm(5, 45) && c < hm(6, 5):
		window = WindowMorning1
	case c >= hm(6, 5) && c <= hm(6, 30):
		window = WindowMorning2
	default:
		return "", false
	}
	return window, !triggered[window]
}

// IsFallback reports whether t is in the minutes around 05:55 or 06:20 when
// the morning summary goes out even without a tracked bus.
func IsFallback(t time.Time, window string) bool {
	c := clockOf(t)
	switch window {
	case WindowMorning1:
		return c >= hm(5, 53) && c <= hm(5, 57)
	case WindowMorning2:
		return c >= hm(6, 18) && c <= hm(6, 22)
	}
	return false
}

// AfternoonWindow reports whether t is in the 13:30-13:50 rail window and it
// has not fired yet.
func AfternoonWindow(t time.Time, triggered map[string]bool) bool {
	c := clockOf(t)
	return c >= hm(13, 30) && c <= hm(13, 50) && !triggered[WindowAfternoon]
}

// BusCheck is the outcome of looking for a bus worth announcing
type BusCheck struct {
	Notify    bool
	Reason    string
	Confirmed []models.Vehicle
}

// CheckBus decides whether the morning summary should go out: a tracked
// vehicle always qualifies; at fallback time any board does.
func CheckBus(live njt.Live, fallback bool) BusCheck {
	confirmed := live.Confirmed()
	switch {
	case len(confirmed) > 0:
		return BusCheck{Notify: true, Reason: "confirmed_bus_detected", Confirmed: confirmed}
	case fallback:
		return BusCheck{Notify: true, Reason: "fallback_time_trigger"}
	}
	return BusCheck{Reason: "no_confirmed_buses"}
}

var (
	disruptionWords = []string{"DELAY", "CANCEL", "SUSPEND"}
	relevantWords   = []string{
		"DELAY", "CANCEL", "SUSPEND",
		"NEC", "RARV", "NJCL",
		"NEWARK", "FANWOOD", "WESTFIELD",
		"FROM PSNY", "FROM NY",
	}
)

// RailCheck is the outcome of the afternoon delay scan
type RailCheck struct {
	Notify  bool
	Alerts  []string
	Delayed []models.Train
}

// CheckRail looks for disruption alerts and delayed trains out of Penn.
func CheckRail(alerts []string, rail models.RailStatus) RailCheck {
	var rc RailCheck
	for _, a := range alerts {
		up := strings.ToUpper(a)
		if containsAny(up, disruptionWords) && containsAny(up, relevantWords) {
			rc.Alerts = append(rc.Alerts, a)
		}
	}
	for _, t := range rail.NextTrains {
		if strings.Contains(strings.ToUpper(t.Status), "DELAY") {
			rc.Delayed = append(rc.Delayed, t)
		}
	}
	rc.Notify = len(rc.Alerts) > 0 || len(rc.Delayed) > 0
	return rc
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// afternoonTrainLimit is how many Penn departures the delay scan looks at
const afternoonTrainLimit = 10

// Scheduler runs the morning bus and afternoon rail checks on a ticker
type Scheduler struct {
	agent    *Agent
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu        sync.Mutex
	triggered map[string]bool
}

func NewScheduler(a *Agent, interval time.Duration) *Scheduler {
	return &Scheduler{
		agent:     a,
		interval:  interval,
		stopCh:    make(chan struct{}),
		triggered: make(map[string]bool),
	}
}

// Start begins the check loop
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop stops the check loop
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopCh
		cancel()
	}()

	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-s.stopCh:
			return
		}
	}
}

// Tick runs both checks once at the agent's current time
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.agent.now().In(s.agent.loc)
	s.morning(ctx, now)
	s.afternoon(ctx, now)
}

// Triggered returns a copy of the windows that have fired
func (s *Scheduler) Triggered() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.triggered))
	for k, v := range s.triggered {
		out[k] = v
	}
	return out
}

func (s *Scheduler) mark(window string) {
	s.mu.Lock()
	s.triggered[window] = true
	s.mu.Unlock()
}

func (s *Scheduler) morning(ctx context.Context, now time.Time) {
	if clockOf(now) > hm(6, 30) {
		s.mu.Lock()
		delete(s.triggered, WindowMorning1)
		delete(s.triggered, WindowMorning2)
		s.mu.Unlock()
	}

	window, ok := MorningWindow(now, s.Triggered())
	if !ok {
		return
	}

	fallback := IsFallback(now, window)
	bc := s.agent.cfg.Bus
	live, err := s.agent.Bus.LiveTrips(ctx, bc.Route, bc.Direction, bc.Stop)
	if err != nil {
		s.agent.fetchFailed("njt_bus_live", err)
		s.agent.Metrics.SchedulerCheck("morning", "error")
		return
	}

	check := CheckBus(live, fallback)
	if !check.Notify {
		slog.Debug("no morning notification needed", "window", window, "reason", check.Reason)
		s.agent.Metrics.SchedulerCheck("morning", "skipped")
		return
	}

	slog.Info("triggering morning alert", "window", window, "reason", check.Reason, "confirmed", len(check.Confirmed))
	if _, err := s.agent.Trigger(ctx, Request{Location: geo.ZoneHome}); err != nil {
		slog.Error("morning alert failed", "window", window, "error", err)
		s.agent.Metrics.SchedulerCheck("morning", "error")
		return
	}
	s.mark(window)
	s.agent.Metrics.SchedulerCheck("morning", "notified")
}

func (s *Scheduler) afternoon(ctx context.Context, now time.Time) {
	if clockOf(now) > hm(13, 50) {
		s.mu.Lock()
		delete(s.triggered, WindowAfternoon)
		s.mu.Unlock()
	}

	if !AfternoonWindow(now, s.Triggered()) {
		return
	}

	station := s.agent.cfg.Rail.NYCStation
	alerts, err := s.agent.Rail.StationAlerts(ctx, station)
	if err != nil {
		s.agent.fetchFailed("njt_alerts", err)
		s.agent.Metrics.SchedulerCheck("afternoon", "error")
		return
	}
	rail, err := s.agent.Rail.TrainSchedule(ctx, station, afternoonTrainLimit)
	if err != nil {
		s.agent.fetchFailed("njt_rail", err)
		s.agent.Metrics.SchedulerCheck("afternoon", "error")
		return
	}

	check := CheckRail(alerts, rail)
	if !check.Notify {
		slog.Debug("no afternoon notification needed")
		s.agent.Metrics.SchedulerCheck("afternoon", "skipped")
		return
	}

	slog.Info("rail delays detected", "alerts", len(check.Alerts), "delayed_trains", len(check.Delayed))
	if _, err := s.agent.Trigger(ctx, Request{Location: geo.ZoneNewark}); err != nil {
		slog.Error("afternoon alert failed", "error", err)
		s.agent.Metrics.SchedulerCheck("afternoon", "error")
		return
	}
	s.mark(WindowAfternoon)
	s.agent.Metrics.SchedulerCheck("afternoon", "notified")
}
