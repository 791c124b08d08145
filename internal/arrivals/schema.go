package arrivals

// Schema names the upstream keys the pipeline reads. Each field lists
// aliases tried in order, since the same concept is spelled differently
// across NJ Transit endpoints and our own feed adapters.
type Schema struct {
	Route       []string
	Destination []string
	Remarks     []string
	Stops       []string
	StopID      []string
	Live        []string
	Scheduled   []string
}

// DefaultSchema covers the NJ Transit BUSDV2 and rail shapes plus the
// snake_case shape produced by the subway adapter.
var DefaultSchema = Schema{
	Route:       []string{"public_route", "route", "route_id", "LINEABBREVIATION"},
	Destination: []string{"header", "destination", "DESTINATION"},
	Remarks:     []string{"remarks", "REMARKS"},
	Stops:       []string{"stops", "STOPS"},
	StopID:      []string{"StopID", "stop_id", "STATION_2CHAR"},
	Live:        []string{"live_time", "realtime_arrival", "departuretime"},
	Scheduled:   []string{"scheduled_time", "SchedTime", "sched_dep_time", "DEP_TIME"},
}
