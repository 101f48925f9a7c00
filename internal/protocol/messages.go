package protocol

import "time"

// TurnEvent announces a turn's stage transitions on the bus.
type TurnEvent struct {
	TurnID    string    `json:"turn_id"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnCompleted carries the final result of a turn.
type TurnCompleted struct {
	TurnID     string    `json:"turn_id"`
	Transcript string    `json:"transcript"`
	Answer     string    `json:"answer"`
	AudioPath  string    `json:"audio_path,omitempty"`
	LatencyMS  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	SubjectTurnStage     = "turn.stage"
	SubjectTurnCompleted = "turn.completed"
)
