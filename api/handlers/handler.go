package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/jusunglee/commute-go/internal/agent"
	"github.com/jusunglee/commute-go/internal/arrivals"
	"github.com/jusunglee/commute-go/internal/models"
	"github.com/jusunglee/commute-go/internal/notify"
	"github.com/jusunglee/commute-go/internal/subway"
	"github.com/jusunglee/commute-go/pkg/commute"
)

// maxBody caps request bodies, raw trip lists included
const maxBody = 1 << 20

// Handler handles HTTP requests
type Handler struct {
	client commute.Client
	now    func() time.Time
}

// NewHandler creates a new HTTP handler
func NewHandler(client commute.Client) *Handler {
	return &Handler{client: client, now: time.Now}
}

// RegisterRoutes registers all routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.handleIndex).Methods("GET")
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/update_location", h.handleUpdateLocation).Methods("POST")
	r.HandleFunc("/trigger", h.handleTrigger).Methods("POST")
	r.HandleFunc("/triggers", h.handleTriggers).Methods("GET")
	r.HandleFunc("/arrivals/bus", h.handleBusArrivals).Methods("GET")
	r.HandleFunc("/arrivals/reconcile", h.handleReconcile).Methods("POST")
	r.HandleFunc("/arrivals/subway", h.handleSubwayArrivals).Methods("GET")
}

// Response wraps API responses
type Response struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
	Updated string      `json:"updated,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports liveness and the most recent agent run
type HealthResponse struct {
	Status      string                `json:"status"`
	Updated     string                `json:"updated,omitempty"`
	LastTrigger *models.TriggerResult `json:"last_trigger"`
}

// SubwayResponse carries arrivals plus their message lines
type SubwayResponse struct {
	Data  []models.Arrival `json:"data"`
	Lines []string         `json:"lines"`
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"title":  "commute-go",
		"readme": "POST /trigger or /update_location from the phone; see /health",
	}
	h.writeJSON(w, response)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if t := h.client.GetLastUpdate(); !t.IsZero() {
		resp.Updated = t.Format(time.RFC3339)
	}
	if last, ok := h.client.LastTrigger(); ok {
		resp.LastTrigger = &last
	}
	h.writeJSON(w, resp)
}

type locationRequest struct {
	Lat       *float64  `json:"lat"`
	Lon       *float64  `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Lat == nil || req.Lon == nil {
		h.writeError(w, "Missing lat/lon", http.StatusBadRequest)
		return
	}
	if *req.Lat < -90 || *req.Lat > 90 || *req.Lon < -180 || *req.Lon > 180 {
		h.writeError(w, "Invalid lat/lon", http.StatusBadRequest)
		return
	}

	loc := h.client.UpdateLocation(models.Location{Lat: *req.Lat, Lon: *req.Lon, Timestamp: req.Timestamp})
	h.writeJSON(w, map[string]interface{}{"status": "ok", "location": loc})
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req agent.Request
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	// A bare trigger from the phone uses its last reported position.
	if req.Location == "" && (req.Lat == nil || req.Lon == nil) {
		if loc, ok := h.client.LastLocation(); ok {
			req = agent.Request{Location: agent.LocationFromPhone, Lat: &loc.Lat, Lon: &loc.Lon}
		}
	}

	res, err := h.client.Trigger(r.Context(), req)
	if errors.Is(err, agent.ErrNoCoordinates) {
		h.writeError(w, "No location given and none stored", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, res)
}

func (h *Handler) handleTriggers(w http.ResponseWriter, r *http.Request) {
	list := h.client.Triggers()
	if list == nil {
		list = []models.TriggerResult{}
	}
	h.writeJSON(w, Response{Data: list, Updated: h.client.GetLastUpdate().Format(time.RFC3339)})
}

func (h *Handler) handleBusArrivals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.client.BusArrivals(r.Context(), q.Get("route"), q.Get("direction"), q.Get("stop"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.writeArrivals(w, list)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	stop := strings.TrimSpace(r.URL.Query().Get("stop"))
	if stop == "" {
		h.writeError(w, "Missing stop parameter", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		h.writeError(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	list, err := arrivals.ReconcileJSON(data, stop, arrivals.WithClock(arrivals.Clock{Loc: h.client.Timezone(), Now: h.now()}))
	if errors.Is(err, arrivals.ErrStructuralInput) {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeArrivals(w, list)
}

func (h *Handler) handleSubwayArrivals(w http.ResponseWriter, r *http.Request) {
	list, err := h.client.SubwayArrivals(r.Context())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	if list == nil {
		list = []models.Arrival{}
	}
	h.writeJSON(w, SubwayResponse{Data: list, Lines: subway.Lines(list, h.now())})
}

func (h *Handler) writeArrivals(w http.ResponseWriter, list []models.Arrival) {
	response := Response{Data: list}
	if len(list) == 0 {
		response.Data = []models.Arrival{}
		response.Message = notify.NoBuses
	}
	h.writeJSON(w, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.writeError(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
