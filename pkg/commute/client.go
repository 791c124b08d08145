package commute

import (
	"context"
	"time"

	"github.com/jusunglee/commute-go/internal/agent"
	"github.com/jusunglee/commute-go/internal/models"
)

// Client defines the interface the HTTP API uses to reach commute data
// Abstracts the wired service (local) from what the handlers need
type Client interface {
	UpdateLocation(loc models.Location) models.Location
	LastLocation() (models.Location, bool)

	Trigger(ctx context.Context, req agent.Request) (models.TriggerResult, error)
	LastTrigger() (models.TriggerResult, bool)
	// Triggers returns recent agent runs, newest first.
	Triggers() []models.TriggerResult

	// BusArrivals returns reconciled live arrivals. Empty arguments fall
	// back to the configured home stop.
	BusArrivals(ctx context.Context, route, direction, stop string) ([]models.Arrival, error)
	SubwayArrivals(ctx context.Context) ([]models.Arrival, error)

	GetLastUpdate() time.Time
	// Timezone is the zone zone-less upstream times are read in.
	Timezone() *time.Location
}
