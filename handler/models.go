package handler

// RequestPayload represents the expected JSON structure in the request body.
type RequestPayload struct {
	Text string `json:"text" validate:"required"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// Stack is only filled in outside production.
	Stack string `json:"stack,omitempty"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	PromptVersion string `json:"prompt_version"`
}

type ProbeResponse struct {
	Status      string `json:"status"`
	Model       string `json:"model"`
	Reply       string `json:"reply"`
	LatencyMS   int64  `json:"latency_ms"`
	TotalTokens int64  `json:"total_tokens"`
}
