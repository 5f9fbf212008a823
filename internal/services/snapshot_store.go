package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ruralpay/payments-engine/internal/models"
)

// SnapshotStore exports the final state of a replay to Postgres. Nothing is
// ever read back into an AccountBook.
type SnapshotStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db, now: time.Now}
}

// Save writes the run and every account row in one transaction.
func (s *SnapshotStore) Save(ctx context.Context, summary RunSummary, snapshots []models.AccountSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.insertRun(ctx, tx, summary); err != nil {
		return fmt.Errorf("inserting run %s: %w", summary.RunID, err)
	}

	for _, snap := range snapshots {
		if err := s.insertAccount(ctx, tx, summary.RunID, snap); err != nil {
			return fmt.Errorf("inserting account %d: %w", snap.ClientID, err)
		}
	}

	return tx.Commit()
}

func (s *SnapshotStore) insertRun(ctx context.Context, tx *sql.Tx, summary RunSummary) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO replay_runs (run_id, records, applied, ignored, malformed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		summary.RunID, summary.Records, summary.Applied, summary.Ignored, summary.Malformed, s.now())
	return err
}

func (s *SnapshotStore) insertAccount(ctx context.Context, tx *sql.Tx, runID string, snap models.AccountSnapshot) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO account_snapshots (run_id, client_id, available, held, total, locked)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		runID,
		int64(snap.ClientID),
		models.FormatAmount(snap.Available),
		models.FormatAmount(snap.Held),
		models.FormatAmount(snap.Total),
		snap.Locked)
	return err
}
