package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Strob0t/TripForge/internal/domain"
	"github.com/Strob0t/TripForge/internal/domain/trip"
	"github.com/Strob0t/TripForge/internal/service"
)

const defaultBodyLimit = 64 << 10

// Planner produces itineraries in buffered or streaming mode.
type Planner interface {
	Plan(ctx context.Context, req trip.Request) (*trip.Itinerary, error)
	PlanStream(ctx context.Context, req trip.Request) (*service.ItineraryStream, error)
}

// Handlers holds the dependencies of the HTTP API.
type Handlers struct {
	Planner   Planner
	Service   string
	BodyLimit int64
	Offline   bool // no provider configured; plans are offline drafts
}

func (h *Handlers) bodyLimit() int64 {
	if h.BodyLimit > 0 {
		return h.BodyLimit
	}
	return defaultBodyLimit
}

type planResponse struct {
	Success bool `json:"success"`
	*trip.Itinerary
}

// PlanTrip handles POST /api/plan-trip.
func (h *Handlers) PlanTrip(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[trip.Request](w, r, h.bodyLimit())
	if !ok {
		return
	}

	it, err := h.Planner.Plan(r.Context(), req)
	if err != nil {
		writePlanError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse{Success: true, Itinerary: it})
}

type chunkEvent struct {
	Text string `json:"text"`
}

type doneEvent struct {
	ID        string             `json:"id"`
	Degraded  bool               `json:"degraded"`
	Provider  string             `json:"provider,omitempty"`
	Model     string             `json:"model,omitempty"`
	Agents    []trip.AgentResult `json:"agents"`
	ToolCalls []trip.ToolCall    `json:"tool_calls"`
}

// PlanTripStream handles POST /api/plan-trip/stream. Validation errors are
// plain JSON responses; once the event stream has started, failures are
// reported as a single error event.
func (h *Handlers) PlanTripStream(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[trip.Request](w, r, h.bodyLimit())
	if !ok {
		return
	}

	// The plan outlives a client disconnect so in-flight provider calls
	// finish; delivery still stops on disconnect.
	stream, err := h.Planner.PlanStream(context.WithoutCancel(r.Context()), req)
	if err != nil {
		writePlanError(w, r, err)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		stream.Close()
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	err = service.Deliver(r.Context(), stream, func(c trip.Chunk) error {
		if c.IsError() {
			return sse.send(eventError, errorResponse{Error: c.Err})
		}
		return sse.send(eventChunk, chunkEvent{Text: c.Text})
	})
	switch {
	case err == nil:
		it := stream.Itinerary()
		_ = sse.send(eventDone, doneEvent{
			ID:        it.ID,
			Degraded:  it.Degraded,
			Provider:  it.Provider,
			Model:     it.Model,
			Agents:    it.Agents,
			ToolCalls: it.ToolCalls,
		})
	case errors.Is(err, domain.ErrSynthesisFailed):
		// already reported as an error event
	default:
		slog.WarnContext(r.Context(), "plan stream delivery stopped", "plan_id", stream.ID(), "error", err)
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Mode    string `json:"mode"`
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	mode := "live"
	if h.Offline {
		mode = "offline"
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Service: h.Service, Mode: mode})
}
