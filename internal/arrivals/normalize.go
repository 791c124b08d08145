package arrivals

import (
	"sort"

	"github.com/jusunglee/commute-go/internal/models"
)

// UnknownRoute stands in for a trip that carries no route identifier.
const UnknownRoute = "unknown"

// Normalize builds the arrival record for a matched trip and its ETA.
func Normalize(m Match, eta ETA, s Schema) models.Arrival {
	return models.Arrival{
		Route:       StringOr(m.Trip, UnknownRoute, s.Route...),
		Destination: String(m.Trip, s.Destination...),
		ETA:         eta.Time,
		ETASource:   eta.Source,
		Remarks:     String(m.Trip, s.Remarks...),
	}
}

// SortByETA orders arrivals soonest first, keeping input order for ties.
func SortByETA(list []models.Arrival) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].ETA.Before(list[j].ETA)
	})
}
