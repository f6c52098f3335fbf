// Package ws streams itineraries over WebSocket connections.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Strob0t/TripForge/internal/domain"
	"github.com/Strob0t/TripForge/internal/domain/trip"
	"github.com/Strob0t/TripForge/internal/service"
)

// Message types exchanged on /ws/plan.
const (
	TypePlan  = "plan"
	TypeChunk = "chunk"
	TypeError = "error"
	TypeDone  = "done"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Planner opens itinerary streams.
type Planner interface {
	PlanStream(ctx context.Context, req trip.Request) (*service.ItineraryStream, error)
}

// Hub serves plan streams and tracks open connections.
type Hub struct {
	planner      Planner
	originAnyone bool

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates a Hub. An allowedOrigin of "*" accepts any origin.
func NewHub(planner Planner, allowedOrigin string) *Hub {
	return &Hub{
		planner:      planner,
		originAnyone: allowedOrigin == "*",
		conns:        make(map[*websocket.Conn]struct{}),
	}
}

// HandlePlan upgrades the connection, reads one plan message, and streams
// the itinerary back as chunk messages followed by done or error. Each
// connection serves plans sequentially until the client closes it.
func (h *Hub) HandlePlan(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.originAnyone,
	})
	if err != nil {
		slog.WarnContext(r.Context(), "websocket accept failed", "error", err)
		return
	}
	h.add(c)
	defer h.remove(c)

	ctx := r.Context()
	for {
		req, err := h.readPlan(ctx, c)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				slog.DebugContext(ctx, "websocket read ended", "error", err)
			}
			_ = c.Close(websocket.StatusNormalClosure, "")
			return
		}
		if err := h.serve(ctx, c, req); err != nil {
			slog.DebugContext(ctx, "websocket plan delivery stopped", "error", err)
			_ = c.Close(websocket.StatusGoingAway, "")
			return
		}
	}
}

func (h *Hub) readPlan(ctx context.Context, c *websocket.Conn) (trip.Request, error) {
	for {
		var msg Message
		if err := wsjson.Read(ctx, c, &msg); err != nil {
			return trip.Request{}, err
		}
		if msg.Type != TypePlan {
			if err := send(ctx, c, TypeError, map[string]string{"error": "unsupported message type"}); err != nil {
				return trip.Request{}, err
			}
			continue
		}
		var req trip.Request
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			if err := send(ctx, c, TypeError, map[string]string{"error": "invalid plan payload"}); err != nil {
				return trip.Request{}, err
			}
			continue
		}
		return req, nil
	}
}

// serve streams one plan. Plan failures are reported to the client and do
// not end the connection; write failures do.
func (h *Hub) serve(ctx context.Context, c *websocket.Conn, req trip.Request) error {
	stream, err := h.planner.PlanStream(context.WithoutCancel(ctx), req)
	if err != nil {
		msg := service.ErrorMessage(err)
		if errors.Is(err, domain.ErrValidation) {
			msg = err.Error()
		}
		return send(ctx, c, TypeError, map[string]string{"error": msg})
	}

	err = service.Deliver(ctx, stream, func(ch trip.Chunk) error {
		if ch.IsError() {
			return send(ctx, c, TypeError, map[string]string{"error": ch.Err})
		}
		return send(ctx, c, TypeChunk, map[string]string{"text": ch.Text})
	})
	switch {
	case err == nil:
		it := stream.Itinerary()
		it.Text = ""
		return send(ctx, c, TypeDone, it)
	case errors.Is(err, domain.ErrSynthesisFailed):
		return nil
	default:
		return err
	}
}

func send(ctx context.Context, c *websocket.Conn, typ string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return wsjson.Write(wctx, c, Message{Type: typ, Payload: data})
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) add(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}
