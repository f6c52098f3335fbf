package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Strob0t/TripForge/internal/domain/trip"
	"github.com/Strob0t/TripForge/internal/port/search"
	"github.com/Strob0t/TripForge/internal/tokenizer"
)

func testRequest() trip.Request {
	return trip.Request{Destination: "Tokyo, Japan", Duration: "5 days", Budget: "moderate", Interests: "food, culture"}
}

func TestCompact(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{"collapses whitespace", "  a\n\tb   c ", 50, "a b c"},
		{"within limit", "short text", 10, "short text"},
		{"word boundary", "the quick brown fox", 12, "the quick"},
		{"trims punctuation", "alpha, beta. gamma", 13, "alpha, beta"},
		{"single long word", "abcdefghij", 4, "abcd"},
		{"runes", "ábcdé fghij", 7, "ábcdé"},
		{"no limit", "a  b", 0, "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compact(tt.text, tt.limit)
			if got != tt.want {
				t.Errorf("compact(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
			}
			if tt.limit > 0 && utf8.RuneCountInString(got) > tt.limit {
				t.Errorf("result exceeds limit: %q", got)
			}
		})
	}
}

func TestWithPrefix(t *testing.T) {
	if got := withPrefix("Tokyo weather", "mild"); got != "Tokyo weather: mild" {
		t.Errorf("got %q", got)
	}
	if got := withPrefix("", "mild"); got != "mild" {
		t.Errorf("empty prefix should return content, got %q", got)
	}
}

type scriptedSearch struct {
	fail string
}

func (s scriptedSearch) Name() string { return "scripted" }

func (s scriptedSearch) Search(_ context.Context, query string, _ int) ([]search.Result, error) {
	if strings.Contains(query, s.fail) {
		return nil, errors.New("upstream 503")
	}
	return []search.Result{{Snippet: "Result   for\n" + query}}, nil
}

func TestRunToolsDegradesIndependently(t *testing.T) {
	ws := NewWebSearch(scriptedSearch{fail: "visa"}, time.Second, 3)
	outputs, calls := runTools(context.Background(), ws, trip.AgentResearch, ResearchTools, testRequest(), 60)

	if len(outputs) != 3 || len(calls) != 3 {
		t.Fatalf("expected 3 outputs and calls, got %d and %d", len(outputs), len(calls))
	}
	for _, c := range calls {
		if c.Agent != trip.AgentResearch || c.Args["query"] == "" {
			t.Errorf("unexpected call %+v", c)
		}
	}
	if outputs[0].Degraded || !strings.HasPrefix(outputs[0].Text, "Tokyo, Japan essentials: Result for") {
		t.Errorf("unexpected essentials output %+v", outputs[0])
	}
	if outputs[2].Degraded != true || outputs[2].Reason != ReasonError || outputs[2].Text != "" {
		t.Errorf("expected visa lookup degraded, got %+v", outputs[2])
	}

	prompt := ResearchInput{Request: testRequest(), Findings: outputs}.Prompt()
	if !strings.Contains(prompt, "Live findings:") || !strings.Contains(prompt, knowledgeOnlyNote) {
		t.Errorf("prompt should carry both live and knowledge-only sections:\n%s", prompt)
	}
	if !strings.Contains(prompt, "- Tokyo, Japan visa (search error)") {
		t.Errorf("prompt should name the degraded topic:\n%s", prompt)
	}
}

func TestRunToolsWithoutCredential(t *testing.T) {
	outputs, _ := runTools(context.Background(), NewWebSearch(nil, 0, 0), trip.AgentLocal, LocalTools, testRequest(), 0)
	for _, o := range outputs {
		if !o.Degraded || o.Reason != ReasonMissingCredential {
			t.Errorf("expected missing credential, got %+v", o)
		}
	}
	prompt := LocalInput{Request: testRequest(), Findings: outputs}.Prompt()
	if strings.Contains(prompt, "Live findings:") {
		t.Error("no live findings expected")
	}
	if !strings.Contains(prompt, "No curated guide notes") {
		t.Error("expected no-guides note")
	}
}

func TestLocalPromptPassages(t *testing.T) {
	prompt := LocalInput{Request: testRequest(), Passages: []string{"City: Tokyo\nGuide: ramen alleys"}}.Prompt()
	if !strings.Contains(prompt, "1. City: Tokyo | Guide: ramen alleys") {
		t.Errorf("passages should be numbered on one line each:\n%s", prompt)
	}
}

func TestBudgetPromptUsesRequestOnly(t *testing.T) {
	req := testRequest()
	prompt := BudgetInput{Request: req, Days: req.Days()}.Prompt()
	if !strings.Contains(prompt, "5 days") || !strings.Contains(prompt, "Budget level: moderate") {
		t.Errorf("unexpected budget prompt:\n%s", prompt)
	}
	if strings.Contains(prompt, "findings") {
		t.Error("budget prompt takes no tool findings")
	}
}

func TestSynthesisPrompt(t *testing.T) {
	req := testRequest()
	req.UserInput = "no seafood"
	in := trip.SynthesisInput{
		Request: req,
		Results: map[trip.AgentName]trip.AgentResult{
			trip.AgentLocal:    {Name: trip.AgentLocal, Status: trip.StatusOK, Text: strings.Repeat("izakaya ", 100)},
			trip.AgentResearch: {Name: trip.AgentResearch, Status: trip.StatusTimedOut},
		},
	}
	p := NewSynthesisPrompt(in, 40)

	if len(p.Excerpts) != 3 {
		t.Fatalf("expected 3 excerpts, got %d", len(p.Excerpts))
	}
	order := []trip.AgentName{p.Excerpts[0].Name, p.Excerpts[1].Name, p.Excerpts[2].Name}
	if order[0] != trip.AgentResearch || order[1] != trip.AgentBudget || order[2] != trip.AgentLocal {
		t.Errorf("unexpected excerpt order %v", order)
	}
	if p.Excerpts[1].Status != trip.StatusFailed {
		t.Errorf("missing budget slot should count as failed, got %s", p.Excerpts[1].Status)
	}
	if n := utf8.RuneCountInString(p.Excerpts[2].Text); n > 40 {
		t.Errorf("excerpt exceeds limit: %d runes", n)
	}
	if p.LimitedContext {
		t.Error("one successful agent is enough context")
	}

	prompt := p.Prompt()
	for _, want := range []string{
		"Research: (unavailable: timed_out)",
		"Budget: (unavailable: failed)",
		"Local: izakaya",
		"User input: no seafood",
		`"## Day 1" through "## Day 5"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestPromptsFollowUnparsedDuration(t *testing.T) {
	req := testRequest()
	req.Duration = "as long as the visa allows"

	p := NewSynthesisPrompt(trip.SynthesisInput{Request: req}, 0)
	if p.Days != 0 {
		t.Fatalf("expected unknown day count, got %d", p.Days)
	}
	prompt := p.Prompt()
	if strings.Contains(prompt, `"## Day 3"`) {
		t.Errorf("prompt should not force a day count:\n%s", prompt)
	}
	if !strings.Contains(prompt, "covering exactly the stated duration (as long as the visa allows)") {
		t.Errorf("prompt should defer to the stated duration:\n%s", prompt)
	}

	budget := BudgetInput{Request: req}.Prompt()
	if !strings.Contains(budget, "for a trip of as long as the visa allows") {
		t.Errorf("unexpected budget prompt:\n%s", budget)
	}

	draft := offlineItinerary(p)
	if !strings.Contains(draft, "## Day 3") || !strings.Contains(draft, "fit as long as the visa allows") {
		t.Errorf("unexpected offline draft:\n%s", draft)
	}
}

func TestSynthesisPromptParsesSpelledDuration(t *testing.T) {
	req := testRequest()
	req.Duration = "a fortnight"
	prompt := NewSynthesisPrompt(trip.SynthesisInput{Request: req}, 0).Prompt()
	if !strings.Contains(prompt, `"## Day 1" through "## Day 14"`) {
		t.Errorf("expected 14 day sections:\n%s", prompt)
	}
}

func TestSynthesisPromptLimitedContext(t *testing.T) {
	p := NewSynthesisPrompt(trip.SynthesisInput{Request: testRequest()}, 0)
	if !p.LimitedContext || !strings.Contains(p.Prompt(), limitedContextNote) {
		t.Error("expected limited context note when every agent failed")
	}
}

func TestOfflineItinerary(t *testing.T) {
	req := testRequest()
	text := offlineItinerary(SynthesisPrompt{Request: req, Days: req.Days()})
	for _, want := range []string{"Tokyo, Japan", "## Day 1", "## Day 5", "offline draft"} {
		if !strings.Contains(text, want) {
			t.Errorf("offline itinerary missing %q", want)
		}
	}
	if strings.Contains(text, "## Day 6") {
		t.Error("offline itinerary has too many days")
	}
}

func TestSynthesisRequestRespectsBudget(t *testing.T) {
	long := strings.Repeat("temple garden market ", 30)
	in := trip.SynthesisInput{
		Request: testRequest(),
		Results: map[trip.AgentName]trip.AgentResult{
			trip.AgentResearch: {Name: trip.AgentResearch, Status: trip.StatusOK, Text: long},
			trip.AgentBudget:   {Name: trip.AgentBudget, Status: trip.StatusOK, Text: long},
			trip.AgentLocal:    {Name: trip.AgentLocal, Status: trip.StatusOK, Text: long},
		},
	}
	var counter *tokenizer.Counter

	unbounded := NewSynthesisAgent(nil, SynthesisConfig{ExcerptChars: 400}, counter).Request(in)
	bounded := NewSynthesisAgent(nil, SynthesisConfig{ExcerptChars: 400, ContextBudget: 120}, counter).Request(in)

	if len(bounded.Prompt) >= len(unbounded.Prompt) {
		t.Errorf("budgeted prompt should shrink: %d >= %d", len(bounded.Prompt), len(unbounded.Prompt))
	}
	if !strings.Contains(bounded.Prompt, "## Day 5") {
		t.Error("instructions must survive excerpt truncation")
	}
	if bounded.System != systemSynthesis || bounded.Offline == "" {
		t.Errorf("unexpected call request %+v", bounded)
	}
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(128)
	vecs, err := e.Embed(context.Background(), []string{"Tokyo ramen", "tokyo RAMEN!", "Paris museums", ""})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got := cosine(vecs[0], vecs[1]); got < 0.999 {
		t.Errorf("case and punctuation should not matter, cosine=%v", got)
	}
	if cosine(vecs[0], vecs[2]) >= cosine(vecs[0], vecs[1]) {
		t.Error("unrelated text should score lower")
	}
	if cosine(vecs[0], vecs[3]) != 0 {
		t.Error("empty text should have zero similarity")
	}
	if cosine(vecs[0], []float64{1}) != 0 {
		t.Error("mismatched lengths should have zero similarity")
	}
}
