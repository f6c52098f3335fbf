package trip

// SynthesisInput is built once after the join barrier and consumed once by
// the synthesis agent. Every specialist agent has a terminal slot.
type SynthesisInput struct {
	Request Request
	Results map[AgentName]AgentResult
}

// OKCount returns the number of specialist agents that succeeded.
func (in SynthesisInput) OKCount() int {
	n := 0
	for _, r := range in.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// Itinerary is the final document of a buffered plan.
type Itinerary struct {
	ID        string        `json:"id"`
	Text      string        `json:"itinerary"`
	Degraded  bool          `json:"degraded"`
	Provider  string        `json:"provider,omitempty"`
	Model     string        `json:"model,omitempty"`
	Agents    []AgentResult `json:"agents"`
	ToolCalls []ToolCall    `json:"tool_calls"`
}

// Chunk is one element of a streamed itinerary. A chunk with a non-empty Err
// is the terminal error marker; no chunk follows it.
type Chunk struct {
	Text string `json:"text,omitempty"`
	Err  string `json:"error,omitempty"`
}

// IsError reports whether the chunk is the terminal error marker.
func (c Chunk) IsError() bool {
	return c.Err != ""
}
