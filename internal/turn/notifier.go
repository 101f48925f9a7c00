package turn

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/medivoice/medivoice-core/internal/bus"
	"github.com/medivoice/medivoice-core/internal/protocol"
)

// BusNotifier publishes turn lifecycle events on the message bus. Publishing
// is fire-and-forget; a publish failure never affects the turn itself.
type BusNotifier struct {
	bus    *bus.Client
	logger *slog.Logger
}

func NewBusNotifier(busClient *bus.Client, logger *slog.Logger) *BusNotifier {
	return &BusNotifier{
		bus:    busClient,
		logger: logger.With(slog.String("component", "turn-notifier")),
	}
}

func (n *BusNotifier) StageChanged(turnID string, stage Stage, stageErr error) {
	event := protocol.TurnEvent{
		TurnID:    turnID,
		Stage:     string(stage),
		Timestamp: time.Now().UTC(),
	}
	if stageErr != nil {
		event.Error = stageErr.Error()
	}
	n.publish(protocol.SubjectTurnStage, event)
}

func (n *BusNotifier) Completed(turnID string, result Result, latency time.Duration) {
	n.publish(protocol.SubjectTurnCompleted, protocol.TurnCompleted{
		TurnID:     turnID,
		Transcript: result.Transcript,
		Answer:     result.Answer,
		AudioPath:  result.AudioPath,
		LatencyMS:  latency.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
}

func (n *BusNotifier) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warn("failed to marshal turn event", slog.String("error", err.Error()))
		return
	}
	if err := n.bus.Conn().Publish(subject, data); err != nil {
		n.logger.Warn("failed to publish turn event", slog.String("error", err.Error()))
	}
}
