package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jusunglee/commute-go/internal/arrivals"
	"github.com/jusunglee/commute-go/internal/feed"
	"github.com/jusunglee/commute-go/internal/models"
	"github.com/jusunglee/commute-go/internal/subway"
)

func main() {
	var (
		apiKey  = flag.String("api-key", "", "MTA API key")
		feedURL = flag.String("feed", feed.NQRW, "GTFS-RT feed URL")
		stop    = flag.String("stop", "R15S", "Stop id to inspect")
	)
	flag.Parse()

	// Fallback to environment variable if API key not provided via flag
	_ = godotenv.Load()
	if *apiKey == "" {
		*apiKey = os.Getenv("MTA_API_KEY")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	msg, err := feed.NewFetcher(*feedURL, *apiKey).Fetch(ctx)
	if err != nil {
		slog.Error("Failed to fetch feed", "url", *feedURL, "error", err)
		os.Exit(1)
	}

	now := time.Now()
	report := subway.Inspect(msg, *stop, now)
	list := arrivals.Reconcile(subway.Trips(msg), *stop)
	arrivals.SortByETA(list)
	printReport(os.Stdout, report, list, now)
}

func printReport(w io.Writer, r subway.Report, list []models.Arrival, now time.Time) {
	fmt.Fprintf(w, "Feed has %d stop time updates across %d stops\n", r.TotalUpdates, r.UniqueStops)

	if r.Found {
		fmt.Fprintf(w, "\nStop %s: %d updates, routes %s\n", r.StopID, r.Count, strings.Join(r.Routes, ", "))
		for _, a := range r.Arrivals {
			fmt.Fprintf(w, "  %s  %s  %s (%.1f min)\n", a.Route, a.TripID, a.Arrival.In(arrivals.Eastern).Format("3:04:05 PM"), a.MinutesAway)
		}
	} else {
		fmt.Fprintf(w, "\nStop %s not found in feed\n", r.StopID)
		if len(r.Similar) > 0 {
			fmt.Fprintln(w, "Similar stop ids:")
			printSummaries(w, r.Similar)
		}
	}

	if len(r.Prefixed) > 0 {
		fmt.Fprintf(w, "\nStops starting with %q:\n", r.StopID[:min(3, len(r.StopID))])
		printSummaries(w, r.Prefixed)
	}

	fmt.Fprintln(w, "\nReconciled arrivals:")
	if len(list) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, line := range subway.Lines(list, now) {
		fmt.Fprintf(w, "  %s\n", line)
	}

	if !r.Found {
		fmt.Fprintln(w, "\nSample of stop ids:")
		printSummaries(w, r.Sample)
	}
}

func printSummaries(w io.Writer, list []subway.StopSummary) {
	for _, s := range list {
		fmt.Fprintf(w, "  %-6s %4d  %s\n", s.StopID, s.Count, strings.Join(s.Routes, ","))
	}
}
