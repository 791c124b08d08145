// Package feedtest builds GTFS-RT feeds for tests.
package feedtest

import (
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// StopArrival is one predicted arrival in a synthetic feed. A zero Arrival
// leaves the stop time update without an arrival event.
type StopArrival struct {
	StopID  string
	Arrival time.Time
}

// TripFixture describes one trip update in a synthetic feed
type TripFixture struct {
	TripID  string
	RouteID string
	Stops   []StopArrival
}

// BuildFeed assembles a feed message from trip fixtures
func BuildFeed(ts time.Time, trips ...TripFixture) *gtfs.FeedMessage {
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(ts.Unix())),
		},
	}

	for _, trip := range trips {
		tu := &gtfs.TripUpdate{
			Trip: &gtfs.TripDescriptor{
				TripId:  proto.String(trip.TripID),
				RouteId: proto.String(trip.RouteID),
			},
		}
		for _, s := range trip.Stops {
			stu := &gtfs.TripUpdate_StopTimeUpdate{StopId: proto.String(s.StopID)}
			if !s.Arrival.IsZero() {
				stu.Arrival = &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(s.Arrival.Unix())}
			}
			tu.StopTimeUpdate = append(tu.StopTimeUpdate, stu)
		}
		msg.Entity = append(msg.Entity, &gtfs.FeedEntity{
			Id:         proto.String(trip.TripID),
			TripUpdate: tu,
		})
	}
	return msg
}

// Encode serializes msg, failing the test on error
func Encode(t testing.TB, msg *gtfs.FeedMessage) []byte {
	t.Helper()
	data, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to encode feed: %v", err)
	}
	return data
}
