package email

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes messages to the log instead of delivering them.
// Used outside production and whenever SMTP is not configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender backed by the given logger.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs msg and returns nil.
func (l *LogSender) Send(_ context.Context, msg Message) error {
	l.logger.Info("email not delivered (log sender)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

// New returns an SMTPSender when cfg.Host is set and a LogSender otherwise.
func New(cfg Config, logger *zap.Logger) Sender {
	if cfg.Host == "" {
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg)
}
