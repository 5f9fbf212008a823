package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ruralpay/payments-engine/internal/models"
)

// ErrMalformedRecord is matched by source errors for rows that should be
// skipped without stopping the replay.
var ErrMalformedRecord = errors.New("malformed record")

// RecordSource yields records in input order and io.EOF once exhausted.
type RecordSource interface {
	Next() (models.Record, error)
}

// Auditor receives one call per processed record or rejected row.
type Auditor interface {
	LogRecord(runID string, rec models.Record, outcome string, applied, malformed bool)
	LogRejectedRow(runID string, err error)
}

// RunSummary counts what a replay did. Records counts only rows that reached
// the book; Malformed also includes rows the source rejected.
type RunSummary struct {
	RunID     string         `json:"runId"`
	Records   int            `json:"records"`
	Applied   int            `json:"applied"`
	Ignored   int            `json:"ignored"`
	Malformed int            `json:"malformed"`
	ByOutcome map[string]int `json:"byOutcome"`
	Accounts  int            `json:"accounts"`
}

// Replayer folds a record source into an AccountBook, strictly in input order.
type Replayer struct {
	book   *AccountBook
	audit  Auditor
	logger *zap.Logger
	runID  string
}

func NewReplayer(book *AccountBook, audit Auditor, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	return &Replayer{
		book:   book,
		audit:  audit,
		logger: logger.With(zap.String("run_id", runID)),
		runID:  runID,
	}
}

func (r *Replayer) RunID() string {
	return r.runID
}

func (r *Replayer) Book() *AccountBook {
	return r.book
}

// Run consumes src until it is exhausted. Malformed rows are audited and
// skipped. Any other source error, or cancellation of ctx, stops the replay;
// the book keeps the state accumulated so far and the returned summary
// reflects it.
func (r *Replayer) Run(ctx context.Context, src RecordSource) (RunSummary, error) {
	summary := RunSummary{
		RunID:     r.runID,
		ByOutcome: make(map[string]int),
	}

	for {
		if err := ctx.Err(); err != nil {
			summary.Accounts = r.book.Len()
			return summary, fmt.Errorf("replay interrupted: %w", err)
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrMalformedRecord) {
			summary.Malformed++
			if r.audit != nil {
				r.audit.LogRejectedRow(r.runID, err)
			}
			continue
		}
		if err != nil {
			r.logger.Error("record source failed", zap.Error(err), zap.Int("records", summary.Records))
			summary.Accounts = r.book.Len()
			return summary, fmt.Errorf("reading records: %w", err)
		}

		summary.Records++
		outcome := r.book.Apply(rec)
		summary.ByOutcome[outcome.String()]++
		switch {
		case outcome == OutcomeApplied:
			summary.Applied++
		case outcome.Malformed():
			summary.Malformed++
		default:
			summary.Ignored++
		}
		if r.audit != nil {
			r.audit.LogRecord(r.runID, rec, outcome.String(), outcome == OutcomeApplied, outcome.Malformed())
		}
	}

	summary.Accounts = r.book.Len()
	r.logger.Info("replay finished",
		zap.Int("records", summary.Records),
		zap.Int("applied", summary.Applied),
		zap.Int("ignored", summary.Ignored),
		zap.Int("malformed", summary.Malformed),
		zap.Int("accounts", summary.Accounts),
	)
	return summary, nil
}
