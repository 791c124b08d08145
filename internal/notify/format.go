package notify

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/jusunglee/commute-go/internal/models"
)

// MaxMessageLen is the longest commute summary sent before truncation
const MaxMessageLen = 1590

const truncatedSuffix = "\n...[truncated]"

// NoBuses is shown when neither the timetable nor the live board has a bus
// for the stop.
const NoBuses = "no buses currently serving this stop"

// Truncate cuts s to max characters and marks the cut.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + truncatedSuffix
}

// FilterNYCAlerts keeps alerts about NEC, NJCL or RARV trains leaving Penn
func FilterNYCAlerts(alerts []string) []string {
	var out []string
	for _, a := range alerts {
		up := strings.ToUpper(a)
		if !strings.Contains(up, "FROM PSNY") {
			continue
		}
		if strings.Contains(up, "NEC") || strings.Contains(up, "NJCL") || strings.Contains(up, "RARV") {
			out = append(out, a)
		}
	}
	return out
}

// FormatWeather renders the home and city weather blocks.
func FormatWeather(w models.WeatherPair) []string {
	return []string{
		weatherBlock("\n🌤️ *Weather (Home):*", "Home", w.Home),
		weatherBlock("\n🏙️ *Weather (NYC):*", "NYC", w.NYC),
	}
}

func weatherBlock(title, place string, w models.Weather) string {
	desc := w.Description
	if desc == "" {
		desc = "Unknown"
	}
	s := fmt.Sprintf("%s %s | %s°C", title, capitalize(desc), w.Temp())
	if len(w.Alerts) > 0 {
		s += fmt.Sprintf("\n🚨 %s Alerts: %s", place, strings.Join(w.Alerts, "; "))
	}
	return s
}

// FormatNYC renders the Manhattan summary: subway, trains out of Penn and
// relevant alerts. The result is truncated to MaxMessageLen.
func FormatNYC(label string, subway []string, rail models.RailStatus, alerts []string, weather *models.WeatherPair) string {
	lines := []string{fmt.Sprintf("🚇 *Next Subway Trains (%s)*", label)}
	if len(subway) == 0 {
		lines = append(lines, "• No subway trains found.")
	}
	for _, s := range subway {
		lines = append(lines, "• "+s)
	}

	lines = append(lines, "\n🚉 *Next NJ Transit Trains to Newark Penn*")
	for _, t := range rail.NextTrains {
		track := "Track unknown"
		if t.Track != "" && t.Track != "?" {
			track = "Track " + t.Track
		}
		lines = append(lines, fmt.Sprintf("• %s → %s (%s, %s)", t.Time, t.Destination, track, t.Status))
	}

	if relevant := FilterNYCAlerts(alerts); len(relevant) > 0 {
		lines = append(lines, "\n🚨 *Relevant Station Alerts*")
		for _, a := range relevant {
			lines = append(lines, "• "+a)
		}
	}

	if weather != nil {
		lines = append(lines, FormatWeather(*weather)...)
	}

	return Truncate(strings.TrimSpace(strings.Join(lines, "\n")), MaxMessageLen)
}

// FormatHome renders scheduled and live departures from the home stop.
func FormatHome(title string, bus models.BusStatus, weather *models.WeatherPair, now time.Time) string {
	lines := []string{title}

	if len(bus.Scheduled) == 0 && len(bus.Live) == 0 {
		lines = append(lines, "• "+capitalize(NoBuses)+".")
	}
	for _, a := range bus.Scheduled {
		status := a.Remarks
		if status == "" {
			status = "On time"
		}
		lines = append(lines, fmt.Sprintf("• %s → %s\n  • Route: %s | Status: %s",
			a.ETA.Format("3:04 PM"), clip(a.Destination, 40), a.Route, status))
	}

	vehicles := confirmed(bus.Vehicles)
	if len(bus.Live) > 0 || len(vehicles) > 0 {
		lines = append(lines, "\n🛰️ *Live Vehicles (Real-Time Tracking)*")
	}
	for _, a := range bus.Live {
		lines = append(lines, fmt.Sprintf("• %s → %s at %s (%s)", a.Route, a.Destination, a.ETA.Format("3:04 PM"), a.ETASource))
		if a.ETASource == models.ETALive {
			lines = append(lines, "  🎯 Arriving in "+minutesText(a.MinutesAway(now)))
		}
	}
	for _, v := range vehicles {
		lines = append(lines, fmt.Sprintf("• Bus #%s → %s at %s (%s)", v.ID, v.Header, v.DepartureTime, v.Status))
		if v.PassengerLoad != "" {
			lines = append(lines, "  👥 Load: "+v.PassengerLoad)
		}
	}

	if weather != nil {
		lines = append(lines, FormatWeather(*weather)...)
	}
	return strings.Join(lines, "\n")
}

// FormatNewark renders trains from Newark Penn toward home.
func FormatNewark(rail models.RailStatus, weather *models.WeatherPair) string {
	lines := []string{"🚉 *Trains from Newark to Fanwood*"}
	for i, t := range rail.NextTrains {
		if i == 3 {
			break
		}
		lines = append(lines, fmt.Sprintf("• %s → %s (%s)", t.Time, t.Destination, t.Status))
	}
	if weather != nil {
		lines = append(lines, FormatWeather(*weather)...)
	}
	return strings.Join(lines, "\n")
}

// Coordinates is the footer appended when the trigger carried a position.
func Coordinates(lat, lon float64) string {
	return fmt.Sprintf("\n📍 *Coordinates:* %.5f, %.5f", lat, lon)
}

func minutesText(m int) string {
	switch {
	case m < 1:
		return "Less than 1 minute"
	case m == 1:
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

func confirmed(list []models.Vehicle) []models.Vehicle {
	var out []models.Vehicle
	for _, v := range list {
		if v.Confirmed() {
			out = append(out, v)
		}
	}
	return out
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return strings.TrimSpace(string(r))
}

// capitalize upper-cases the first letter and lower-cases the rest
func capitalize(s string) string {
	r := []rune(strings.ToLower(s))
	if len(r) > 0 {
		r[0] = unicode.ToUpper(r[0])
	}
	return string(r)
}
