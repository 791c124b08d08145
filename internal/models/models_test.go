package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestMinutesAway(t *testing.T) {
	now := time.Date(2025, 10, 14, 14, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		eta      time.Time
		expected int
	}{
		{"exact minutes", now.Add(5 * time.Minute), 5},
		{"rounds up", now.Add(5*time.Minute + time.Second), 6},
		{"past", now.Add(-time.Minute), 0},
		{"now", now, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Arrival{ETA: tt.eta}.MinutesAway(now)
			if got != tt.expected {
				t.Errorf("Expected %d minutes, got %d", tt.expected, got)
			}
		})
	}
}

func TestVehicleConfirmed(t *testing.T) {
	tests := []struct {
		id       string
		expected bool
	}{
		{"7123", true},
		{"", false},
		{"EMPTY", false},
		{" empty ", false},
	}

	for _, tt := range tests {
		if got := (Vehicle{ID: tt.id}).Confirmed(); got != tt.expected {
			t.Errorf("Vehicle %q: expected confirmed=%v, got %v", tt.id, tt.expected, got)
		}
	}
}

func TestWeatherTemp(t *testing.T) {
	if got := (Weather{}).Temp(); got != "N/A" {
		t.Errorf("Expected N/A, got %s", got)
	}
	temp := 18.44
	if got := (Weather{TempCelsius: &temp}).Temp(); got != "18.4" {
		t.Errorf("Expected 18.4, got %s", got)
	}
}

func TestArrivalMarshalJSON(t *testing.T) {
	eastern := time.FixedZone("EDT", -4*3600)
	a := Arrival{
		Route:       "113",
		Destination: "Port Authority",
		ETA:         time.Date(2025, 10, 14, 14, 32, 0, 0, eastern),
		ETASource:   ETALive,
	}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if decoded["eta"] != "2025-10-14T14:32:00-04:00" {
		t.Errorf("Expected eta 2025-10-14T14:32:00-04:00, got %v", decoded["eta"])
	}
	if decoded["eta_source"] != "LIVE" {
		t.Errorf("Expected eta_source LIVE, got %v", decoded["eta_source"])
	}
	if strings.Count(string(data), `"eta"`) != 1 {
		t.Errorf("Expected a single eta field in %s", data)
	}
}
