// Package audit records what happened to every replayed record.
package audit

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ruralpay/payments-engine/internal/models"
)

const (
	StatusApplied   = "APPLIED"
	StatusIgnored   = "IGNORED"
	StatusMalformed = "MALFORMED"
)

type AuditEvent struct {
	Timestamp     time.Time
	RunID         string
	EventType     string
	TransactionID models.TxID
	AccountID     models.ClientID
	Amount        string
	Status        string
	Reason        string
}

type AuditLogger struct {
	logger *zap.Logger
}

func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogger{logger: logger.Named("audit")}
}

// LogRecord emits one event for a record the account book has processed.
// Applied records are logged at debug level; anything the book declined is a
// warning when the record itself was malformed and info otherwise.
func (a *AuditLogger) LogRecord(runID string, rec models.Record, outcome string, applied, malformed bool) {
	event := AuditEvent{
		Timestamp:     time.Now(),
		RunID:         runID,
		EventType:     string(rec.Type),
		TransactionID: rec.TxID,
		AccountID:     rec.ClientID,
		Status:        StatusIgnored,
		Reason:        outcome,
	}
	if rec.Type.MovesFunds() {
		event.Amount = models.FormatAmount(rec.Amount)
	}
	switch {
	case applied:
		event.Status = StatusApplied
		event.Reason = ""
		a.log(zap.DebugLevel, event)
	case malformed:
		event.Status = StatusMalformed
		a.log(zap.WarnLevel, event)
	default:
		a.log(zap.InfoLevel, event)
	}
}

// LogRejectedRow emits an event for input that never became a record.
func (a *AuditLogger) LogRejectedRow(runID string, err error) {
	a.log(zap.WarnLevel, AuditEvent{
		Timestamp: time.Now(),
		RunID:     runID,
		EventType: "PARSE",
		Status:    StatusMalformed,
		Reason:    err.Error(),
	})
}

func (a *AuditLogger) log(level zapcore.Level, event AuditEvent) {
	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("run_id", event.RunID),
		zap.String("event_type", event.EventType),
		zap.String("status", event.Status),
	}
	if event.EventType != "PARSE" {
		fields = append(fields,
			zap.Uint32("transaction_id", uint32(event.TransactionID)),
			zap.Uint16("account_id", uint16(event.AccountID)),
		)
	}
	if event.Amount != "" {
		fields = append(fields, zap.String("amount", event.Amount))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	if ce := a.logger.Check(level, "AUDIT"); ce != nil {
		ce.Write(fields...)
	}
}
