package domain

// System event types published by the orchestrator.
const (
	EventSystemStart    = "system_start"
	EventSystemShutdown = "system_shutdown"
)

// SystemEvent carries lifecycle notifications (startup, shutdown).
type SystemEvent struct {
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data"`
}

// TaskRequest asks a worker to perform a named task. No core component
// consumes these yet; the type exists so the envelope codec covers the
// full wire vocabulary.
type TaskRequest struct {
	TaskType string         `json:"task_type"`
	TaskData map[string]any `json:"task_data"`
}

// TaskResult reports the outcome of a TaskRequest.
type TaskResult struct {
	TaskType string         `json:"task_type"`
	Success  bool           `json:"success"`
	Result   map[string]any `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}
