// Package notify delivers end-of-run summary messages.
package notify

import "go.uber.org/zap"

// LogNotifier emits the run summary through the structured logger. It
// stands in for richer sinks (mail, chat) that are out of scope.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLog wires a Zap logger to the notifier interface.
func NewLog(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the summary message.
func (n *LogNotifier) Notify(message string) {
	n.logger.Info(message)
}
