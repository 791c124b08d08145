package arrivals

import "strings"

// Match is a trip that serves the target stop, together with the stop entry
// that matched and the trip's position in the input.
type Match struct {
	Index int
	Trip  RawTrip
	Stop  map[string]any
}

// MatchStop keeps the trips whose stops-served list contains stopID. The
// comparison ignores case and surrounding whitespace. Trips without a usable
// stops list never match.
func MatchStop(trips []RawTrip, stopID string, s Schema) []Match {
	target := strings.TrimSpace(stopID)
	if target == "" {
		return nil
	}

	var matches []Match
	for i, trip := range trips {
		if trip == nil {
			continue
		}
		for _, stop := range entries(trip, s.Stops...) {
			if strings.EqualFold(String(stop, s.StopID...), target) {
				matches = append(matches, Match{Index: i, Trip: trip, Stop: stop})
				break
			}
		}
	}
	return matches
}
