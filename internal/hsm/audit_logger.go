package hsm

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AuditLogger writes money-movement events to a dedicated "audit" logger.
type AuditLogger struct {
	logger *zap.Logger
}

func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogger{logger: logger.Named("audit")}
}

// LogTransfer records a balance mutation tied to a transaction.
func (a *AuditLogger) LogTransfer(event string, transactionID, senderID, receiverID int64, amount decimal.Decimal, currency string) {
	a.logger.Info(event,
		zap.Int64("transaction_id", transactionID),
		zap.Int64("sender_id", senderID),
		zap.Int64("receiver_id", receiverID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("currency", currency),
	)
}

func (a *AuditLogger) LogError(event string, transactionID, userID int64, err error) {
	a.logger.Warn(event,
		zap.Int64("transaction_id", transactionID),
		zap.Int64("user_id", userID),
		zap.Error(err),
	)
}

func (a *AuditLogger) LogOperation(event string, userID int64, operation, details string) {
	if event == "" {
		event = operation
	}
	a.logger.Info(event,
		zap.Int64("user_id", userID),
		zap.String("operation", operation),
		zap.String("details", details),
	)
}
