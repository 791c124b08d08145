package njt

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jusunglee/commute-go/internal/arrivals"
	"github.com/jusunglee/commute-go/internal/models"
)

const (
	railAuthPath     = "/api/TrainData/getToken"
	railSchedulePath = "/api/TrainData/getTrainSchedule"
	railMessagePath  = "/api/TrainData/getStationMSG"

	// DepartureLayout is the TrainData DEP_TIME format.
	DepartureLayout = "02-Jan-2006 03:04:05 PM"
)

// RailClient reads departures and station messages from TrainData.
type RailClient struct {
	c *client
}

func NewRailClient(baseURL, username, password string, opts ...Option) *RailClient {
	return &RailClient{c: newClient(strings.TrimRight(baseURL, "/"), username, password, railAuthPath, opts)}
}

// Lines returns the rail lines worth reporting for departures from station.
// Penn Station serves the whole commute corridor; elsewhere only the Raritan
// Valley line stops at home.
func Lines(station string) map[string]bool {
	if strings.EqualFold(station, "NY") {
		return map[string]bool{"NEC": true, "RARV": true, "NJCL": true}
	}
	return map[string]bool{"RARV": true}
}

type scheduleItem struct {
	Line        string           `json:"LINEABBREVIATION"`
	TrainID     string           `json:"TRAIN_ID"`
	Destination string           `json:"DESTINATION"`
	Track       string           `json:"TRACK"`
	Stops       []map[string]any `json:"STOPS"`
}

// TrainSchedule returns the next limit departures from station on the
// lines reported by Lines. Delayed is set when any of them is delayed.
func (r *RailClient) TrainSchedule(ctx context.Context, station string, limit int) (models.RailStatus, error) {
	var resp struct {
		Items []scheduleItem `json:"ITEMS"`
	}
	if err := r.c.post(ctx, railSchedulePath, map[string]string{"station": station}, &resp); err != nil {
		return models.RailStatus{}, fmt.Errorf("train schedule %s: %w", station, err)
	}

	allowed := Lines(station)
	status := models.RailStatus{Station: station, NextTrains: []models.Train{}}
	for _, item := range resp.Items {
		line := strings.ToUpper(strings.TrimSpace(item.Line))
		if !allowed[line] || len(item.Stops) == 0 {
			continue
		}
		first := item.Stops[0]

		depTime := "N/A"
		if t, err := time.ParseInLocation(DepartureLayout, arrivals.String(first, "DEP_TIME"), r.c.loc); err == nil {
			depTime = t.Format("03:04 PM")
		}

		train := models.Train{
			Line:        line,
			TrainID:     strings.TrimSpace(item.TrainID),
			Destination: html.UnescapeString(strings.TrimSpace(item.Destination)),
			Time:        depTime,
			Track:       strings.TrimSpace(item.Track),
			Status:      stopStatus(arrivals.String(first, "STOP_STATUS")),
		}
		if train.Destination == "" {
			train.Destination = "N/A"
		}
		if train.Track == "" {
			train.Track = "?"
		}
		if train.Status == "DELAYED" {
			status.Delayed = true
		}
		status.NextTrains = append(status.NextTrains, train)

		if limit > 0 && len(status.NextTrains) >= limit {
			break
		}
	}
	return status, nil
}

func stopStatus(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, "DELAY"):
		return "DELAYED"
	case s == "":
		return "UNKNOWN"
	default:
		return s
	}
}

// StationAlerts returns the non-empty station messages for station.
func (r *RailClient) StationAlerts(ctx context.Context, station string) ([]string, error) {
	var resp []map[string]any
	fields := map[string]string{"station": station, "line": ""}
	if err := r.c.post(ctx, railMessagePath, fields, &resp); err != nil {
		return nil, fmt.Errorf("station messages %s: %w", station, err)
	}

	alerts := []string{}
	for _, msg := range resp {
		if text := arrivals.String(msg, "MSG_TEXT"); text != "" {
			alerts = append(alerts, text)
		}
	}
	return alerts, nil
}
