package model

import "time"

type GeneratedImage struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Payload   string    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

type Outcome string

const (
	OutcomeReady  Outcome = "ready"
	OutcomeFailed Outcome = "failed"
)

type HistoryEntry struct {
	ID        string
	Prompt    string
	Outcome   Outcome
	Message   string
	Latency   time.Duration
	Cost      float64
	CreatedAt time.Time
}

// Metrics summarises history the way the dashboard shows it. Cost and latency
// only count successful generations.
type Metrics struct {
	CostPerImage          float64 `json:"costPerImage"`
	TotalCost             float64 `json:"totalCost"`
	AverageLatencySeconds float64 `json:"averageLatencySeconds"`
	Generated             int     `json:"generated"`
	Failed                int     `json:"failed"`
}
