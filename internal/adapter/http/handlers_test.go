package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	tfhttp "github.com/Strob0t/TripForge/internal/adapter/http"
	"github.com/Strob0t/TripForge/internal/config"
	"github.com/Strob0t/TripForge/internal/domain/trip"
	"github.com/Strob0t/TripForge/internal/middleware"
	"github.com/Strob0t/TripForge/internal/port/llm"
	"github.com/Strob0t/TripForge/internal/service"
)

const planBody = `{"destination":"Tokyo, Japan","duration":"5 days","budget":"moderate","interests":"food, culture"}`

// scriptedProvider returns fixed text, streamed in small chunks.
type scriptedProvider struct {
	text string
	err  error
}

func (p scriptedProvider) Name() string { return "scripted" }

func (p scriptedProvider) Complete(context.Context, llm.Request) (string, error) {
	return p.text, p.err
}

func (p scriptedProvider) Stream(context.Context, llm.Request) (llm.Stream, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &wordStream{words: strings.SplitAfter(p.text, " ")}, nil
}

type wordStream struct {
	words []string
}

func (s *wordStream) Recv() (string, error) {
	if len(s.words) == 0 {
		return "", io.EOF
	}
	w := s.words[0]
	s.words = s.words[1:]
	return w, nil
}

func (s *wordStream) Close() error { return nil }

type staticAgent struct{ name trip.AgentName }

func (a staticAgent) Name() trip.AgentName { return a.name }

func (a staticAgent) Run(context.Context, trip.AgentTask) trip.AgentResult {
	return trip.AgentResult{Name: a.name, Status: trip.StatusOK, Text: string(a.name) + " notes"}
}

type testServer struct {
	*httptest.Server
	reg *prometheus.Registry
}

func newTestServer(t *testing.T, provider llm.Provider, rate *config.Rate) *testServer {
	t.Helper()
	var chain []service.ChainEntry
	if provider != nil {
		chain = []service.ChainEntry{{Provider: provider, Model: "m"}}
	}
	client := service.NewProviderClient(chain, nil)
	agents := []service.Agent{staticAgent{trip.AgentResearch}, staticAgent{trip.AgentBudget}, staticAgent{trip.AgentLocal}}
	o := service.NewOrchestrator(service.OrchestratorConfig{}, agents, service.NewSynthesisAgent(client, service.SynthesisConfig{}, nil))

	reg := prometheus.NewRegistry()
	metrics := tfhttp.NewMetrics(reg)
	var rl *middleware.RateLimiter
	if rate != nil {
		rl = middleware.NewRateLimiter(*rate)
	}

	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Use(tfhttp.CORS("*"))
	r.Handle("/metrics", metrics.Handler())
	tfhttp.MountRoutes(r, &tfhttp.Handlers{Planner: o, Service: "tripforge", Offline: provider == nil}, rl)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, reg: reg}
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body)) //nolint:noctx // test helper
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

type planBodyResponse struct {
	Success   bool             `json:"success"`
	Error     string           `json:"error"`
	ID        string           `json:"id"`
	Itinerary string           `json:"itinerary"`
	Degraded  bool             `json:"degraded"`
	Agents    []map[string]any `json:"agents"`
	ToolCalls []trip.ToolCall  `json:"tool_calls"`
}

func TestPlanTrip(t *testing.T) {
	srv := newTestServer(t, scriptedProvider{text: "## Day 1\nTokyo"}, nil)

	resp := post(t, srv.URL+"/api/plan-trip", planBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[planBodyResponse](t, resp.Body)
	if !body.Success || body.Itinerary != "## Day 1\nTokyo" || body.ID == "" {
		t.Errorf("unexpected body %+v", body)
	}
	if len(body.Agents) != 3 || body.Agents[0]["status"] != "ok" {
		t.Errorf("unexpected agents %+v", body.Agents)
	}
	if _, leaked := body.Agents[0]["Text"]; leaked {
		t.Error("agent text must not be part of the response")
	}
	if body.ToolCalls == nil {
		t.Error("tool_calls must be an array, not null")
	}
}

func TestPlanTripOffline(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp := post(t, srv.URL+"/api/plan-trip", planBody)
	body := decode[planBodyResponse](t, resp.Body)
	if resp.StatusCode != http.StatusOK || !body.Success || !body.Degraded {
		t.Fatalf("expected degraded success, got %d %+v", resp.StatusCode, body)
	}
	if !strings.Contains(body.Itinerary, "## Day 5") {
		t.Errorf("offline draft should cover every day:\n%s", body.Itinerary)
	}
}

func TestPlanTripErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
		body     string
		status   int
		message  string
	}{
		{"invalid json", scriptedProvider{text: "x"}, `{"destination":`, http.StatusBadRequest, "invalid request body"},
		{"missing field", scriptedProvider{text: "x"}, `{"destination":"Tokyo","duration":"5 days","budget":"low"}`, http.StatusBadRequest, "interests is required"},
		{
			"credit exhausted",
			scriptedProvider{err: llm.Classify("scripted", "m", http.StatusPaymentRequired, errors.New("insufficient credits"))},
			planBody, http.StatusBadGateway, service.MsgCredit,
		},
		{
			"bad key",
			scriptedProvider{err: llm.Classify("scripted", "m", http.StatusUnauthorized, errors.New("invalid api_key"))},
			planBody, http.StatusBadGateway, service.MsgAPIKey,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.provider, nil)
			resp := post(t, srv.URL+"/api/plan-trip", tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			body := decode[planBodyResponse](t, resp.Body)
			if body.Success || body.Error != tt.message {
				t.Errorf("expected error %q, got %+v", tt.message, body)
			}
		})
	}
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, r io.Reader) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "" && cur.name != "":
			events = append(events, cur)
			cur = sseEvent{}
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("read events: %v", err)
	}
	return events
}

func TestPlanTripStream(t *testing.T) {
	text := "## Day 1\nArrive in Tokyo and walk around Shinjuku"
	srv := newTestServer(t, scriptedProvider{text: text}, nil)

	resp := post(t, srv.URL+"/api/plan-trip/stream", planBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}

	events := readEvents(t, resp.Body)
	if len(events) < 2 {
		t.Fatalf("expected chunk and done events, got %+v", events)
	}
	var b strings.Builder
	for _, ev := range events[:len(events)-1] {
		if ev.name != "chunk" {
			t.Fatalf("unexpected event %q before done", ev.name)
		}
		var c struct{ Text string }
		if err := json.Unmarshal([]byte(ev.data), &c); err != nil {
			t.Fatalf("chunk data: %v", err)
		}
		b.WriteString(c.Text)
	}
	if b.String() != text {
		t.Errorf("reassembled stream %q, want %q", b.String(), text)
	}

	last := events[len(events)-1]
	if last.name != "done" {
		t.Fatalf("expected done event last, got %q", last.name)
	}
	var done struct {
		ID     string           `json:"id"`
		Agents []map[string]any `json:"agents"`
	}
	if err := json.Unmarshal([]byte(last.data), &done); err != nil {
		t.Fatalf("done data: %v", err)
	}
	if done.ID == "" || len(done.Agents) != 3 {
		t.Errorf("unexpected done payload %s", last.data)
	}
}

func TestPlanTripStreamFailure(t *testing.T) {
	srv := newTestServer(t, scriptedProvider{err: llm.Classify("scripted", "m", http.StatusTooManyRequests, errors.New("slow down"))}, nil)

	resp := post(t, srv.URL+"/api/plan-trip/stream", planBody)
	events := readEvents(t, resp.Body)
	if len(events) != 1 || events[0].name != "error" {
		t.Fatalf("expected a single error event, got %+v", events)
	}
	if !strings.Contains(events[0].data, "Free tier limit reached") {
		t.Errorf("unexpected error payload %s", events[0].data)
	}
}

func TestPlanTripStreamValidation(t *testing.T) {
	srv := newTestServer(t, scriptedProvider{text: "x"}, nil)

	resp := post(t, srv.URL+"/api/plan-trip/stream", `{"destination":"Tokyo"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 before streaming starts, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp, err := http.Get(srv.URL + "/health") //nolint:noctx // test
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body := decode[map[string]string](t, resp.Body)
	if body["status"] != "healthy" || body["service"] != "tripforge" || body["mode"] != "offline" {
		t.Errorf("unexpected health body %v", body)
	}
}

func TestRateLimitedPlanning(t *testing.T) {
	srv := newTestServer(t, scriptedProvider{text: "plan"}, &config.Rate{RequestsPerSecond: 0.001, Burst: 1})

	if resp := post(t, srv.URL+"/api/plan-trip", planBody); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected first plan to pass, got %d", resp.StatusCode)
	}
	if resp := post(t, srv.URL+"/api/plan-trip", planBody); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	resp, err := http.Get(srv.URL + "/health") //nolint:noctx // test
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health must not be rate limited, got %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/plan-trip", http.NoBody) //nolint:noctx // test
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("unexpected preflight response %d %v", resp.StatusCode, resp.Header)
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, scriptedProvider{text: "plan"}, nil)
	post(t, srv.URL+"/api/plan-trip", planBody)
	post(t, srv.URL+"/api/plan-trip", `{}`)

	n, err := testutil.GatherAndCount(srv.reg, "tripforge_http_requests_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 2 {
		t.Errorf("expected two label sets (200 and 400), got %d", n)
	}

	resp, err := http.Get(srv.URL + "/metrics") //nolint:noctx // test
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	want := `tripforge_http_requests_total{code="200",method="POST",route="/api/plan-trip"} 1`
	if !strings.Contains(string(raw), want) {
		t.Errorf("metrics output missing %q", want)
	}
}
