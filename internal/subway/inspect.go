package subway

import (
	"sort"
	"strings"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

// StopSummary counts stop time updates for one stop id.
type StopSummary struct {
	StopID string
	Count  int
	Routes []string
}

// InspectedArrival is one predicted arrival at the inspected stop.
type InspectedArrival struct {
	Route       string
	TripID      string
	Arrival     time.Time
	MinutesAway float64
}

// Report describes how a stop id appears in a feed.
type Report struct {
	StopID       string
	Found        bool
	Count        int
	Routes       []string
	Arrivals     []InspectedArrival
	Similar      []StopSummary
	Prefixed     []StopSummary
	Sample       []StopSummary
	UniqueStops  int
	TotalUpdates int
}

// Inspect reports on stopID in msg. When the stop is missing, Similar lists
// ids sharing its first character or containing the rest of it.
func Inspect(msg *gtfs.FeedMessage, stopID string, now time.Time) Report {
	counts := map[string]int{}
	routes := map[string]map[string]bool{}
	r := Report{StopID: stopID}

	for _, e := range msg.GetEntity() {
		tu := e.GetTripUpdate()
		if tu == nil {
			continue
		}
		route := tu.GetTrip().GetRouteId()
		for _, stu := range tu.GetStopTimeUpdate() {
			id := stu.GetStopId()
			counts[id]++
			r.TotalUpdates++
			if routes[id] == nil {
				routes[id] = map[string]bool{}
			}
			routes[id][route] = true

			if id != stopID {
				continue
			}
			if ts := stu.GetArrival().GetTime(); ts > 0 {
				at := time.Unix(ts, 0)
				r.Arrivals = append(r.Arrivals, InspectedArrival{
					Route:       route,
					TripID:      tu.GetTrip().GetTripId(),
					Arrival:     at,
					MinutesAway: at.Sub(now).Minutes(),
				})
			}
		}
	}

	sort.SliceStable(r.Arrivals, func(i, j int) bool {
		return r.Arrivals[i].Arrival.Before(r.Arrivals[j].Arrival)
	})

	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	summary := func(id string) StopSummary {
		return StopSummary{StopID: id, Count: counts[id], Routes: sortedKeys(routes[id])}
	}

	r.UniqueStops = len(ids)
	if n, ok := counts[stopID]; ok {
		r.Found = true
		r.Count = n
		r.Routes = sortedKeys(routes[stopID])
	} else if stopID != "" {
		for _, id := range ids {
			if id[:min(1, len(id))] == stopID[:1] || (len(stopID) > 1 && strings.Contains(id, stopID[1:])) {
				r.Similar = append(r.Similar, summary(id))
				if len(r.Similar) == 20 {
					break
				}
			}
		}
	}

	prefix := stopID[:min(3, len(stopID))]
	for _, id := range ids {
		if prefix != "" && strings.HasPrefix(id, prefix) {
			r.Prefixed = append(r.Prefixed, summary(id))
		}
		if len(r.Sample) < 30 {
			r.Sample = append(r.Sample, summary(id))
		}
	}
	return r
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
