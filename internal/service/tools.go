package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Strob0t/TripForge/internal/domain/trip"
)

// DefaultSnippetChars bounds the compacted search text kept per tool.
const DefaultSnippetChars = 200

// Tool is a travel lookup backed by web search.
type Tool struct {
	Name   string
	Prefix func(req trip.Request) string
	Query  func(req trip.Request) string
}

// ToolOutput is the outcome of one tool run.
type ToolOutput struct {
	Tool     string
	Topic    string
	Text     string
	Degraded bool
	Reason   string
}

// ResearchTools are the lookups the research agent performs.
var ResearchTools = []Tool{
	{
		Name:   "essential_info",
		Prefix: func(r trip.Request) string { return r.Destination + " essentials" },
		Query:  func(r trip.Request) string { return r.Destination + " travel essentials top attractions etiquette" },
	},
	{
		Name:   "weather_brief",
		Prefix: func(r trip.Request) string { return r.Destination + " weather" },
		Query:  func(r trip.Request) string { return r.Destination + " weather climate best time to visit" },
	},
	{
		Name:   "visa_brief",
		Prefix: func(r trip.Request) string { return r.Destination + " visa" },
		Query:  func(r trip.Request) string { return r.Destination + " visa entry requirements for tourists" },
	},
}

// LocalTools are the lookups the local agent performs.
var LocalTools = []Tool{
	{
		Name:   "local_flavor",
		Prefix: func(r trip.Request) string { return r.Destination + " local flavor (" + r.Interests + ")" },
		Query:  func(r trip.Request) string { return r.Destination + " authentic local experiences " + r.Interests },
	},
	{
		Name:   "local_customs",
		Prefix: func(r trip.Request) string { return r.Destination + " customs" },
		Query:  func(r trip.Request) string { return r.Destination + " local customs etiquette tips" },
	},
	{
		Name:   "hidden_gems",
		Prefix: func(r trip.Request) string { return r.Destination + " hidden gems" },
		Query:  func(r trip.Request) string { return r.Destination + " hidden gems off the beaten path" },
	},
}

// runTools executes tools sequentially and returns their outputs and the
// matching tool call records.
func runTools(ctx context.Context, ws *WebSearch, agent trip.AgentName, tools []Tool, req trip.Request, snippetChars int) ([]ToolOutput, []trip.ToolCall) {
	if snippetChars < 1 {
		snippetChars = DefaultSnippetChars
	}
	outputs := make([]ToolOutput, 0, len(tools))
	calls := make([]trip.ToolCall, 0, len(tools))
	for _, t := range tools {
		query := t.Query(req)
		calls = append(calls, trip.ToolCall{Agent: agent, Tool: t.Name, Args: map[string]string{"query": query}})

		topic := t.Prefix(req)
		res := ws.Search(ctx, query)
		if res.Degraded {
			outputs = append(outputs, ToolOutput{Tool: t.Name, Topic: topic, Degraded: true, Reason: res.Reason})
			continue
		}
		outputs = append(outputs, ToolOutput{
			Tool:  t.Name,
			Topic: topic,
			Text:  withPrefix(topic, compact(strings.Join(res.Snippets, " "), snippetChars)),
		})
	}
	return outputs, calls
}

// withPrefix renders "prefix: content", or content alone for an empty prefix.
func withPrefix(prefix, content string) string {
	if prefix == "" {
		return content
	}
	return prefix + ": " + content
}

// compact collapses whitespace and truncates text to at most limit runes,
// cutting at the last word boundary when one exists.
func compact(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if limit < 1 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)[:limit]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:")
}
