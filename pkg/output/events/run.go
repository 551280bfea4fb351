package events

// StartEvent describes the run about to begin.
type StartEvent struct {
	BaseEvent
	Version    string   `json:"version"`
	Endpoint   string   `json:"endpoint"`
	Site       string   `json:"site"`
	Addresses  []string `json:"addresses"`
	TemplateID string   `json:"template_id"`
	EngineID   int      `json:"engine_id,omitempty"`
}

// PhaseEvent marks a phase transition. DurationMs is set when the phase
// completes or fails.
type PhaseEvent struct {
	BaseEvent
	Phase      Phase      `json:"phase"`
	State      PhaseState `json:"state"`
	Detail     string     `json:"detail,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`
}

// ErrorEvent reports a failure. Fatal errors end the run.
type ErrorEvent struct {
	BaseEvent
	Phase     Phase  `json:"phase"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	Fatal     bool   `json:"fatal"`
}

// CompleteEvent is the last event of a run.
type CompleteEvent struct {
	BaseEvent
	Success    bool   `json:"success"`
	ExitCode   int    `json:"exit_code"`
	Reason     string `json:"reason"`
	DurationMs int64  `json:"duration_ms"`
}
