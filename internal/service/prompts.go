package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Strob0t/TripForge/internal/domain/trip"
)

// DefaultExcerptChars bounds each specialist excerpt in the synthesis prompt.
const DefaultExcerptChars = 400

const (
	systemResearch  = "You are a travel research assistant. Report practical, current facts concisely."
	systemBudget    = "You are a travel budget analyst. Give realistic cost breakdowns."
	systemLocal     = "You are a local travel expert. Recommend authentic experiences and customs."
	systemSynthesis = "You are a travel planner. Provide concise, practical itineraries."

	knowledgeOnlyNote  = "Topics without live data (elaborate from your own knowledge only; do not invent current prices or dates):"
	limitedContextNote = "Note: limited context. No specialist findings were available; plan from the request details alone and say so briefly."
)

// ResearchInput is the static input of the research prompt.
type ResearchInput struct {
	Request  trip.Request
	Findings []ToolOutput
}

// Prompt renders the research prompt.
func (in ResearchInput) Prompt() string {
	r := in.Request
	var b strings.Builder
	fmt.Fprintf(&b, "Research %s for a %s trip.\n", r.Destination, r.Duration)
	fmt.Fprintf(&b, "Interests: %s\nTravel style: %s\n", r.Interests, r.Style())
	writeFindings(&b, in.Findings)
	b.WriteString("\nSummarize the essentials: weather and best time to visit, entry requirements, top attractions, and etiquette. Keep it under 200 words.")
	return b.String()
}

// BudgetInput is the static input of the budget prompt. It uses request
// fields only.
type BudgetInput struct {
	Request trip.Request
	// Days is zero when the duration could not be parsed.
	Days int
}

// Prompt renders the budget prompt.
func (in BudgetInput) Prompt() string {
	r := in.Request
	var b strings.Builder
	if in.Days > 0 {
		fmt.Fprintf(&b, "Create a budget breakdown for %d days (%s) in %s.\n", in.Days, r.Duration, r.Destination)
	} else {
		fmt.Fprintf(&b, "Create a budget breakdown for a trip of %s in %s.\n", r.Duration, r.Destination)
	}
	fmt.Fprintf(&b, "Budget level: %s\nTravel style: %s\n", r.Budget, r.Style())
	b.WriteString("\nCover lodging, food, local transport, and activities with a daily total in local currency and USD. Flag anything that does not fit the budget.")
	return b.String()
}

// LocalInput is the static input of the local-experience prompt.
type LocalInput struct {
	Request  trip.Request
	Passages []string
	Findings []ToolOutput
}

// Prompt renders the local-experience prompt.
func (in LocalInput) Prompt() string {
	r := in.Request
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest authentic local experiences in %s for travellers interested in %s.\n", r.Destination, r.Interests)
	fmt.Fprintf(&b, "Travel style: %s\n", r.Style())
	if len(in.Passages) > 0 {
		b.WriteString("\nLocal guide notes:\n")
		for i, p := range in.Passages {
			fmt.Fprintf(&b, "%d. %s\n", i+1, strings.ReplaceAll(p, "\n", " | "))
		}
	} else {
		b.WriteString("\nNo curated guide notes are available.\n")
	}
	writeFindings(&b, in.Findings)
	b.WriteString("\nRecommend specific neighbourhoods, food, customs to respect, and hidden gems.")
	return b.String()
}

func writeFindings(b *strings.Builder, findings []ToolOutput) {
	var live, missing []ToolOutput
	for _, f := range findings {
		if f.Degraded {
			missing = append(missing, f)
		} else {
			live = append(live, f)
		}
	}
	if len(live) > 0 {
		b.WriteString("\nLive findings:\n")
		for _, f := range live {
			fmt.Fprintf(b, "- %s\n", f.Text)
		}
	}
	if len(missing) > 0 {
		b.WriteString("\n" + knowledgeOnlyNote + "\n")
		for _, f := range missing {
			fmt.Fprintf(b, "- %s (%s)\n", f.Topic, f.Reason)
		}
	}
}

// AgentExcerpt is one labelled specialist contribution.
type AgentExcerpt struct {
	Name   trip.AgentName
	Status trip.Status
	Text   string
}

// Render returns "Label: text" or "Label: (unavailable: status)".
func (e AgentExcerpt) Render() string {
	if e.Status != trip.StatusOK {
		return e.Name.Label() + ": (unavailable: " + string(e.Status) + ")"
	}
	return e.Name.Label() + ": " + e.Text
}

// SynthesisPrompt is the static input of the synthesis prompt. Days is zero
// when the duration could not be parsed.
type SynthesisPrompt struct {
	Request        trip.Request
	Days           int
	Excerpts       []AgentExcerpt
	LimitedContext bool
}

// NewSynthesisPrompt builds the prompt input from the joined agent results,
// presenting specialists in fixed order with excerpts of at most
// excerptChars characters.
func NewSynthesisPrompt(in trip.SynthesisInput, excerptChars int) SynthesisPrompt {
	if excerptChars < 1 {
		excerptChars = DefaultExcerptChars
	}
	days, _ := in.Request.ParseDays()
	p := SynthesisPrompt{
		Request:        in.Request,
		Days:           days,
		LimitedContext: in.OKCount() == 0,
	}
	for _, name := range trip.SpecialistAgents {
		res, ok := in.Results[name]
		if !ok {
			res = trip.AgentResult{Name: name, Status: trip.StatusFailed}
		}
		ex := AgentExcerpt{Name: name, Status: res.Status}
		if res.OK() {
			ex.Text = compact(res.Text, excerptChars)
		}
		p.Excerpts = append(p.Excerpts, ex)
	}
	return p
}

// Prompt renders the synthesis prompt.
func (p SynthesisPrompt) Prompt() string {
	r := p.Request
	var b strings.Builder
	fmt.Fprintf(&b, "Create a %s trip itinerary for %s.\n", r.Duration, r.Destination)
	fmt.Fprintf(&b, "Budget: %s\nInterests: %s\nTravel style: %s\n", r.Budget, r.Interests, r.Style())
	if r.UserInput != "" {
		fmt.Fprintf(&b, "User input: %s\n", r.UserInput)
	}

	b.WriteString("\nSpecialist findings:\n")
	for _, e := range p.Excerpts {
		b.WriteString(e.Render())
		b.WriteByte('\n')
	}
	if p.LimitedContext {
		b.WriteString("\n" + limitedContextNote + "\n")
	}

	if p.Days > 0 {
		fmt.Fprintf(&b, "\nReconcile the findings into one day-by-day plan with a markdown section per day, \"## Day 1\" through \"## Day %d\". ", p.Days)
	} else {
		fmt.Fprintf(&b, "\nReconcile the findings into one day-by-day plan with a markdown section per day starting at \"## Day 1\", covering exactly the stated duration (%s). ", r.Duration)
	}
	b.WriteString("Include activities, restaurants, and estimated costs. Format with markdown headers and bullet points.")
	return b.String()
}

// Offline texts are deterministic stand-ins served when no provider is
// configured.

func offlineResearch(r trip.Request) string {
	return fmt.Sprintf("Offline research notes for %s: check current entry requirements, seasonal weather, and opening hours of major sights before travelling.", r.Destination)
}

func offlineBudget(r trip.Request) string {
	return fmt.Sprintf("Offline budget outline for %s in %s at a %s budget: split spending across lodging, food, local transport, and activities, and keep a reserve for bookings.", r.Duration, r.Destination, r.Budget)
}

func offlineLocal(r trip.Request, passages []string) string {
	if len(passages) == 0 {
		return fmt.Sprintf("Offline local notes for %s: explore neighbourhood markets and ask locals for their favourite spots related to %s.", r.Destination, r.Interests)
	}
	return "Offline local notes: " + strings.Join(passages, " | ")
}

func offlineItinerary(p SynthesisPrompt) string {
	r := p.Request
	var b strings.Builder
	fmt.Fprintf(&b, "# %s in %s (offline draft)\n\n", r.Duration, r.Destination)
	b.WriteString("> No language model is configured, so this is a generic outline. Configure a provider API key for a tailored plan.\n\n")
	fmt.Fprintf(&b, "- Budget: %s\n- Interests: %s\n- Travel style: %s\n", r.Budget, r.Interests, r.Style())
	days := p.Days
	if days < 1 {
		days = trip.DefaultDays
		fmt.Fprintf(&b, "- Stretch or trim the days below to fit %s.\n", r.Duration)
	}
	for day := 1; day <= days; day++ {
		b.WriteString("\n## Day " + strconv.Itoa(day) + "\n")
		switch day {
		case 1:
			fmt.Fprintf(&b, "- Arrive in %s, settle in, and take an orientation walk.\n", r.Destination)
		case days:
			fmt.Fprintf(&b, "- Revisit a favourite spot in %s and prepare for departure.\n", r.Destination)
		default:
			fmt.Fprintf(&b, "- Spend the day on %s around %s.\n", r.Interests, r.Destination)
		}
	}
	return b.String()
}
