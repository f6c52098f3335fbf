package trip

import (
	"encoding/json"
	"time"
)

// AgentName identifies one agent variant.
type AgentName string

const (
	AgentResearch  AgentName = "research"
	AgentBudget    AgentName = "budget"
	AgentLocal     AgentName = "local"
	AgentSynthesis AgentName = "synthesis"
)

// SpecialistAgents are the agents fanned out in parallel before synthesis,
// in the order their results are presented to the synthesis prompt.
var SpecialistAgents = []AgentName{AgentResearch, AgentBudget, AgentLocal}

// Label returns the capitalized name used in prompts.
func (n AgentName) Label() string {
	switch n {
	case AgentResearch:
		return "Research"
	case AgentBudget:
		return "Budget"
	case AgentLocal:
		return "Local"
	case AgentSynthesis:
		return "Synthesis"
	default:
		return string(n)
	}
}

// Status is the terminal state of an agent task.
type Status string

const (
	StatusOK       Status = "ok"
	StatusTimedOut Status = "timed_out"
	StatusFailed   Status = "failed"
)

// AgentTask is one unit of fan-out work. It is owned by the orchestrator and
// handed to exactly one agent run.
type AgentTask struct {
	Name             AgentName
	Input            Request
	RetrievedContext []string
	StartedAt        time.Time
	Deadline         time.Time
}

// ToolCall records one tool invocation made while preparing an agent prompt.
type ToolCall struct {
	Agent AgentName         `json:"agent"`
	Tool  string            `json:"tool"`
	Args  map[string]string `json:"args"`
}

// AgentResult is the immutable outcome of one agent task. Text is empty
// unless Status is StatusOK.
type AgentResult struct {
	Name        AgentName
	Status      Status
	Text        string
	ErrorDetail string
	Latency     time.Duration
	Provider    string
	Model       string
	Degraded    bool
	ToolCalls   []ToolCall
}

// OK reports whether the agent produced usable text.
func (r AgentResult) OK() bool {
	return r.Status == StatusOK
}

// MarshalJSON renders the summary of a result; agent text stays internal.
func (r AgentResult) MarshalJSON() ([]byte, error) {
	type alias struct {
		Name        AgentName `json:"name"`
		Status      Status    `json:"status"`
		ErrorDetail string    `json:"error,omitempty"`
		LatencyMS   int64     `json:"latency_ms"`
		Provider    string    `json:"provider,omitempty"`
		Model       string    `json:"model,omitempty"`
		Degraded    bool      `json:"degraded,omitempty"`
	}
	return json.Marshal(alias{
		Name:        r.Name,
		Status:      r.Status,
		ErrorDetail: r.ErrorDetail,
		LatencyMS:   r.Latency.Milliseconds(),
		Provider:    r.Provider,
		Model:       r.Model,
		Degraded:    r.Degraded,
	})
}
