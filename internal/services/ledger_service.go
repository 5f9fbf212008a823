package services

import (
	"errors"

	"github.com/ruralpay/payments-engine/internal/models"
)

var ErrDuplicateTransaction = errors.New("duplicate transaction id")

// TransactionLedger keeps every deposit and withdrawal that changed a balance,
// keyed by transaction id, so later disputes can find them.
type TransactionLedger struct {
	entries map[models.TxID]*models.LedgerEntry
}

func NewTransactionLedger() *TransactionLedger {
	return &TransactionLedger{
		entries: make(map[models.TxID]*models.LedgerEntry),
	}
}

// Record stores a new entry. The ledger is left untouched when the id is
// already present.
func (l *TransactionLedger) Record(entry models.LedgerEntry) error {
	if _, exists := l.entries[entry.TxID]; exists {
		return ErrDuplicateTransaction
	}
	e := entry
	l.entries[entry.TxID] = &e
	return nil
}

// Contains reports whether id belongs to an applied transaction.
func (l *TransactionLedger) Contains(id models.TxID) bool {
	_, ok := l.entries[id]
	return ok
}

// Lookup returns the entry for id, or nil for unknown and never-applied ids.
// The returned pointer is owned by the ledger; only dispute transitions should
// write through it.
func (l *TransactionLedger) Lookup(id models.TxID) *models.LedgerEntry {
	return l.entries[id]
}

func (l *TransactionLedger) Len() int {
	return len(l.entries)
}
