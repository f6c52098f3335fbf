package ws_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Strob0t/TripForge/internal/adapter/ws"
	"github.com/Strob0t/TripForge/internal/domain/trip"
	"github.com/Strob0t/TripForge/internal/port/llm"
	"github.com/Strob0t/TripForge/internal/service"
)

type echoProvider struct{ text string }

func (p echoProvider) Name() string { return "echo" }

func (p echoProvider) Complete(context.Context, llm.Request) (string, error) { return p.text, nil }

func (p echoProvider) Stream(context.Context, llm.Request) (llm.Stream, error) {
	return &lineStream{lines: strings.SplitAfter(p.text, "\n")}, nil
}

type lineStream struct{ lines []string }

func (s *lineStream) Recv() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l, nil
}

func (s *lineStream) Close() error { return nil }

type okAgent struct{}

func (okAgent) Name() trip.AgentName { return trip.AgentResearch }

func (okAgent) Run(context.Context, trip.AgentTask) trip.AgentResult {
	return trip.AgentResult{Name: trip.AgentResearch, Status: trip.StatusOK, Text: "notes"}
}

func dial(t *testing.T, text string) (*websocket.Conn, *ws.Hub) {
	t.Helper()
	client := service.NewProviderClient([]service.ChainEntry{{Provider: echoProvider{text: text}, Model: "m"}}, nil)
	o := service.NewOrchestrator(service.OrchestratorConfig{}, []service.Agent{okAgent{}}, service.NewSynthesisAgent(client, service.SynthesisConfig{}, nil))
	hub := ws.NewHub(o, "*")

	srv := httptest.NewServer(http.HandlerFunc(hub.HandlePlan))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.CloseNow() })
	return c, hub
}

func sendPlan(t *testing.T, c *websocket.Conn, req any) {
	t.Helper()
	payload, _ := json.Marshal(req)
	if err := wsjson.Write(context.Background(), c, ws.Message{Type: ws.TypePlan, Payload: payload}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readUntilTerminal(t *testing.T, c *websocket.Conn) []ws.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var msgs []ws.Message
	for {
		var m ws.Message
		if err := wsjson.Read(ctx, c, &m); err != nil {
			t.Fatalf("read: %v", err)
		}
		msgs = append(msgs, m)
		if m.Type == ws.TypeDone || m.Type == ws.TypeError {
			return msgs
		}
	}
}

func TestHandlePlanStreamsChunks(t *testing.T) {
	text := "## Day 1\nShibuya\n## Day 2\nNikko\n"
	c, hub := dial(t, text)

	sendPlan(t, c, trip.Request{Destination: "Tokyo", Duration: "2 days", Budget: "low", Interests: "hiking"})
	msgs := readUntilTerminal(t, c)

	var b strings.Builder
	for _, m := range msgs[:len(msgs)-1] {
		if m.Type != ws.TypeChunk {
			t.Fatalf("unexpected message type %q", m.Type)
		}
		var chunk struct{ Text string }
		_ = json.Unmarshal(m.Payload, &chunk)
		b.WriteString(chunk.Text)
	}
	if b.String() != text {
		t.Errorf("reassembled %q, want %q", b.String(), text)
	}
	if last := msgs[len(msgs)-1]; last.Type != ws.TypeDone || !strings.Contains(string(last.Payload), `"id"`) {
		t.Errorf("unexpected terminal message %+v", last)
	}
	if hub.ConnectionCount() != 1 {
		t.Errorf("expected one open connection, got %d", hub.ConnectionCount())
	}
}

func TestHandlePlanValidationKeepsConnection(t *testing.T) {
	c, _ := dial(t, "## Day 1\nok")

	sendPlan(t, c, trip.Request{Destination: "Tokyo"})
	msgs := readUntilTerminal(t, c)
	if len(msgs) != 1 || msgs[0].Type != ws.TypeError || !strings.Contains(string(msgs[0].Payload), "duration is required") {
		t.Fatalf("expected validation error, got %+v", msgs)
	}

	sendPlan(t, c, trip.Request{Destination: "Tokyo", Duration: "1 day", Budget: "low", Interests: "food"})
	msgs = readUntilTerminal(t, c)
	if msgs[len(msgs)-1].Type != ws.TypeDone {
		t.Errorf("expected second plan to complete, got %+v", msgs[len(msgs)-1])
	}
}

func TestHandlePlanRejectsUnknownType(t *testing.T) {
	c, _ := dial(t, "x")

	if err := wsjson.Write(context.Background(), c, ws.Message{Type: "subscribe"}); err != nil {
		t.Fatal(err)
	}
	msgs := readUntilTerminal(t, c)
	if msgs[0].Type != ws.TypeError {
		t.Errorf("expected error for unknown type, got %+v", msgs[0])
	}
}
