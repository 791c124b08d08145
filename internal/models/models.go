package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Location represents a geographic coordinate reported by the phone
type Location struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}

// ETASource tells which upstream signal produced an arrival time
type ETASource string

const (
	ETALive      ETASource = "LIVE"
	ETAScheduled ETASource = "SCHEDULED"
)

// Arrival is the normalized record for one trip's arrival at a stop
type Arrival struct {
	Route       string    `json:"route"`
	Destination string    `json:"destination"`
	ETA         time.Time `json:"eta"`
	ETASource   ETASource `json:"eta_source"`
	Remarks     string    `json:"remarks"`
}

// MinutesAway returns whole minutes until the arrival, rounded up
func (a Arrival) MinutesAway(now time.Time) int {
	d := a.ETA.Sub(now)
	if d <= 0 {
		return 0
	}
	m := int(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}

// Vehicle is a live bus reported by the departure-vision feed
type Vehicle struct {
	ID            string `json:"vehicle_id"`
	Route         string `json:"route"`
	Header        string `json:"header"`
	DepartureTime string `json:"departure_time"`
	Status        string `json:"status"`
	PassengerLoad string `json:"passenger_load,omitempty"`
}

// Confirmed reports whether the vehicle id refers to a real tracked bus
func (v Vehicle) Confirmed() bool {
	return v.ID != "" && !equalFoldTrim(v.ID, "EMPTY")
}

// Train represents a rail departure
type Train struct {
	Line        string `json:"line"`
	TrainID     string `json:"train_id,omitempty"`
	Destination string `json:"destination"`
	Time        string `json:"time"`
	Track       string `json:"track"`
	Status      string `json:"status"`
}

// RailStatus groups the next departures from a station
type RailStatus struct {
	Station    string  `json:"station"`
	NextTrains []Train `json:"next_trains"`
	Delayed    bool    `json:"delayed"`
}

// BusStatus groups scheduled and live bus data for the home stop
type BusStatus struct {
	Stop      string    `json:"stop"`
	Scheduled []Arrival `json:"next_buses"`
	Live      []Arrival `json:"live_arrivals"`
	Vehicles  []Vehicle `json:"live_vehicles"`
	Delayed   bool      `json:"delayed"`
}

// Weather is the current condition at one place
type Weather struct {
	IsBad       bool     `json:"is_bad"`
	Description string   `json:"description"`
	TempCelsius *float64 `json:"temp_celsius"`
	Alerts      []string `json:"alerts"`
}

// Temp renders the temperature or N/A when unavailable
func (w Weather) Temp() string {
	if w.TempCelsius == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", *w.TempCelsius)
}

// WeatherPair holds conditions at home and in the city
type WeatherPair struct {
	Home Weather `json:"home"`
	NYC  Weather `json:"nyc"`
}

// TriggerResult is the outcome of one commute agent run
type TriggerResult struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Zone           string    `json:"zone"`
	Recommendation string    `json:"recommendation"`
	Message        string    `json:"message_sent"`
	SentAt         time.Time `json:"sent_at"`
}

// MarshalJSON keeps ETA in RFC3339 with the arrival's own zone offset
func (a Arrival) MarshalJSON() ([]byte, error) {
	type alias Arrival
	return json.Marshal(struct {
		alias
		ETA string `json:"eta"`
	}{alias: alias(a), ETA: a.ETA.Format(time.RFC3339)})
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), b)
}
