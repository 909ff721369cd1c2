package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes notifications to the log. Used when no Redis is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.logger.Info("notification",
		zap.Stringer("player_id", n.PlayerID),
		zap.String("event", string(n.Event)),
		zap.String("message", n.Message))
	return nil
}
