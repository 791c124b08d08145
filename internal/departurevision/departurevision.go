// Package departurevision scrapes the NJ Transit DepartureVision board. It
// is the fallback when the TrainData API is down.
package departurevision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jusunglee/commute-go/internal/models"
)

var trainRe = regexp.MustCompile(`(NEC|NJCL)\s+Train\s+([A-Z0-9]+)`)

// Lines kept from the board.
var Lines = map[string]bool{"NEC": true, "NJCL": true}

type Scraper struct {
	url        string
	httpClient *http.Client
}

func New(url string) *Scraper {
	return &Scraper{
		url: url,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Departures fetches the board and returns up to limit departures.
func (s *Scraper) Departures(ctx context.Context, limit int) (models.RailStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return models.RailStatus{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return models.RailStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.RailStatus{}, fmt.Errorf("departurevision: HTTP %d", resp.StatusCode)
	}

	trains, err := Parse(resp.Body, limit)
	if err != nil {
		return models.RailStatus{}, err
	}

	status := models.RailStatus{Station: "NY", NextTrains: trains}
	for _, t := range trains {
		if t.Status == "DELAYED" {
			status.Delayed = true
		}
	}
	return status, nil
}

// Parse reads departures from board HTML. Rows without a time, destination
// or NEC/NJCL train id are skipped.
func Parse(r io.Reader, limit int) ([]models.Train, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("departurevision: parse: %w", err)
	}

	trains := []models.Train{}
	doc.Find("ol.list-unstyled li").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if t, ok := parseRow(row); ok {
			trains = append(trains, t)
		}
		return limit <= 0 || len(trains) < limit
	})
	return trains, nil
}

func parseRow(row *goquery.Selection) (models.Train, bool) {
	t := models.Train{
		Time:        text(row.Find("strong.h2").First()),
		Destination: text(row.Find("p strong").First()),
		Status:      text(row.Find(".h3 strong").First()),
		Track:       "?",
	}
	if t.Status == "" {
		t.Status = "UNKNOWN"
	}

	row.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		m := trainRe.FindStringSubmatch(p.Text())
		if m == nil {
			return true
		}
		t.Line, t.TrainID = m[1], "Train "+m[2]
		return false
	})

	block := row.Text()
	if i := strings.LastIndex(block, "Track"); i >= 0 {
		rest := strings.TrimSpace(block[i+len("Track"):])
		if line, _, _ := strings.Cut(rest, "\n"); strings.TrimSpace(line) != "" {
			t.Track = strings.TrimSpace(line)
		}
	}

	if t.Time == "" || t.Destination == "" || t.TrainID == "" || !Lines[t.Line] {
		return models.Train{}, false
	}
	return t, true
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
