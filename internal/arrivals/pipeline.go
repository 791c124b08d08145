package arrivals

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jusunglee/commute-go/internal/models"
)

// ErrStructuralInput is matched by every error the pipeline returns.
var ErrStructuralInput = errors.New("input is not a list of trip mappings")

// StructuralInputError describes why a payload could not be read as trips.
type StructuralInputError struct {
	Reason string
}

func (e *StructuralInputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrStructuralInput, e.Reason)
}

func (e *StructuralInputError) Unwrap() error { return ErrStructuralInput }

// Stats counts what happened to each trip in one pipeline run.
type Stats struct {
	Seen      int
	Matched   int
	NoETA     int
	Live      int
	Scheduled int
}

type options struct {
	schema Schema
	clock  Clock
	stats  *Stats
}

// Option tunes a pipeline run.
type Option func(*options)

func WithSchema(s Schema) Option { return func(o *options) { o.schema = s } }

func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

// WithStats makes the run add its counters to st.
func WithStats(st *Stats) Option { return func(o *options) { o.stats = st } }

// Reconcile turns raw trips into arrivals at stopID: stop matching, ETA
// selection and normalization, in input order. Trips that do not serve the
// stop or have no usable time are dropped. The result is never nil.
func Reconcile(trips []RawTrip, stopID string, opts ...Option) []models.Arrival {
	o := options{schema: DefaultSchema}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock.Now.IsZero() {
		// Pin the service day once so every trip in a run shares it.
		o.clock.Now = o.clock.now()
	}

	matches := MatchStop(trips, stopID, o.schema)
	out := make([]models.Arrival, 0, len(matches))
	var st Stats
	st.Seen = len(trips)
	st.Matched = len(matches)
	for _, m := range matches {
		eta, ok := SelectETA(m, o.schema, o.clock)
		if !ok {
			st.NoETA++
			continue
		}
		if eta.Source == models.ETALive {
			st.Live++
		} else {
			st.Scheduled++
		}
		out = append(out, Normalize(m, eta, o.schema))
	}

	if o.stats != nil {
		o.stats.Seen += st.Seen
		o.stats.Matched += st.Matched
		o.stats.NoETA += st.NoETA
		o.stats.Live += st.Live
		o.stats.Scheduled += st.Scheduled
	}
	return out
}

// ReconcileRaw accepts a decoded payload of unknown shape. It fails only
// when raw is not a list of mappings; a nil payload is an empty list.
func ReconcileRaw(raw any, stopID string, opts ...Option) ([]models.Arrival, error) {
	trips, err := Trips(raw)
	if err != nil {
		return nil, err
	}
	return Reconcile(trips, stopID, opts...), nil
}

// ReconcileJSON decodes data and runs ReconcileRaw on it.
func ReconcileJSON(data []byte, stopID string, opts ...Option) ([]models.Arrival, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, &StructuralInputError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return ReconcileRaw(raw, stopID, opts...)
}

// Trips checks that raw is a list of mappings and converts it. Null elements
// become empty trips so that one bad record does not reject the batch.
func Trips(raw any) ([]RawTrip, error) {
	switch v := raw.(type) {
	case nil:
		return []RawTrip{}, nil
	case []RawTrip:
		return v, nil
	case []map[string]any:
		out := make([]RawTrip, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out, nil
	case []any:
		out := make([]RawTrip, len(v))
		for i, e := range v {
			switch m := e.(type) {
			case nil:
				out[i] = RawTrip{}
			case map[string]any:
				out[i] = m
			case RawTrip:
				out[i] = m
			default:
				return nil, &StructuralInputError{Reason: fmt.Sprintf("element %d is %T, not a mapping", i, e)}
			}
		}
		return out, nil
	default:
		return nil, &StructuralInputError{Reason: fmt.Sprintf("got %T, want a list", raw)}
	}
}
