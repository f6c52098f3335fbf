package mcp

import (
	"context"
	"encoding/json"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/TripForge/internal/domain/trip"
	"github.com/Strob0t/TripForge/internal/service"
)

const (
	defaultGuideK = 3
	maxGuideK     = 10
)

func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.planTripTool(),
		s.localGuidesTool(),
	)
}

func (s *Server) planTripTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("plan_trip",
		mcplib.WithDescription("Plan a day-by-day travel itinerary with research, budget, local and cultural input"),
		mcplib.WithString("destination", mcplib.Required(), mcplib.Description("City or region to visit")),
		mcplib.WithString("duration", mcplib.Required(), mcplib.Description("Trip length, e.g. \"5 days\"")),
		mcplib.WithString("budget", mcplib.Required(), mcplib.Description("Budget, e.g. \"$2000\" or \"mid-range\"")),
		mcplib.WithString("interests", mcplib.Required(), mcplib.Description("Comma-separated interests")),
		mcplib.WithString("travel_style", mcplib.Description("Travel style, defaults to standard")),
		mcplib.WithString("user_input", mcplib.Description("Free-form notes from the traveller")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handlePlanTrip}
}

func (s *Server) localGuidesTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("local_guides",
		mcplib.WithDescription("Search the local guide corpus for passages matching a query"),
		mcplib.WithString("query", mcplib.Required(), mcplib.Description("Destination and interests to match")),
		mcplib.WithNumber("k", mcplib.Description("Maximum passages to return (default 3)")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleLocalGuides}
}

func (s *Server) handlePlanTrip(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Planner == nil {
		return mcplib.NewToolResultError("planner not configured"), nil
	}
	args := req.GetArguments()
	tr := trip.Request{
		Destination: stringArg(args, "destination"),
		Duration:    stringArg(args, "duration"),
		Budget:      stringArg(args, "budget"),
		Interests:   stringArg(args, "interests"),
		TravelStyle: stringArg(args, "travel_style"),
		UserInput:   stringArg(args, "user_input"),
	}
	it, err := s.deps.Planner.Plan(ctx, tr)
	if err != nil {
		return mcplib.NewToolResultError(service.ErrorMessage(err)), nil
	}
	return mcplib.NewToolResultText(it.Text), nil
}

type guideHit struct {
	City      string   `json:"city"`
	Interests []string `json:"interests,omitempty"`
	Text      string   `json:"description"`
	Score     float64  `json:"score"`
}

func (s *Server) handleLocalGuides(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Index == nil || !s.deps.Index.Enabled() {
		return mcplib.NewToolResultError("local guide retrieval is disabled"), nil
	}
	args := req.GetArguments()
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return mcplib.NewToolResultError("query is required"), nil
	}
	k := defaultGuideK
	switch v := args["k"].(type) {
	case float64:
		k = int(v)
	case int:
		k = v
	}
	k = min(max(k, 1), maxGuideK)

	matches := s.deps.Index.Search(ctx, query, k)
	hits := make([]guideHit, len(matches))
	for i, m := range matches {
		hits[i] = guideHit{
			City:      m.Entry.City,
			Interests: m.Entry.Interests,
			Text:      m.Entry.Text,
			Score:     m.Score,
		}
	}
	data, err := json.Marshal(hits)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal guides", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
