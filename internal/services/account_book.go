package services

import (
	"fmt"
	"sort"

	"github.com/ruralpay/payments-engine/internal/models"
)

// LockedPolicy decides what happens to records for a client whose account was
// locked by a chargeback.
type LockedPolicy string

const (
	// LockedReject ignores every later record for a locked client.
	LockedReject LockedPolicy = "reject"
	// LockedFlag only reports the lock; records keep being applied.
	LockedFlag LockedPolicy = "flag"
)

// ParseLockedPolicy validates a configured policy name.
func ParseLockedPolicy(s string) (LockedPolicy, error) {
	switch p := LockedPolicy(s); p {
	case LockedReject, LockedFlag:
		return p, nil
	default:
		return "", fmt.Errorf("unknown locked account policy %q", s)
	}
}

// Outcome describes what Apply did with a record. Only OutcomeApplied changed
// any state.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeInsufficientFunds
	OutcomeInvalidAmount
	OutcomeDuplicateTransaction
	OutcomeUnknownTransaction
	OutcomeClientMismatch
	OutcomeInvalidDisputeState
	OutcomeAccountLocked
	OutcomeUnknownType
)

var outcomeNames = map[Outcome]string{
	OutcomeApplied:              "applied",
	OutcomeInsufficientFunds:    "insufficient_funds",
	OutcomeInvalidAmount:        "invalid_amount",
	OutcomeDuplicateTransaction: "duplicate_transaction",
	OutcomeUnknownTransaction:   "unknown_transaction",
	OutcomeClientMismatch:       "client_mismatch",
	OutcomeInvalidDisputeState:  "invalid_dispute_state",
	OutcomeAccountLocked:        "account_locked",
	OutcomeUnknownType:          "unknown_type",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Malformed reports whether the record itself was bad input rather than a
// well-formed record the rules declined.
func (o Outcome) Malformed() bool {
	return o == OutcomeInvalidAmount || o == OutcomeDuplicateTransaction || o == OutcomeUnknownType
}

// AccountBook is the per-client state machine. It is not safe for concurrent
// use; a replay owns exactly one book.
type AccountBook struct {
	accounts map[models.ClientID]*models.Account
	ledger   *TransactionLedger
	policy   LockedPolicy
}

func NewAccountBook(ledger *TransactionLedger, policy LockedPolicy) *AccountBook {
	if ledger == nil {
		ledger = NewTransactionLedger()
	}
	if policy == "" {
		policy = LockedReject
	}
	return &AccountBook{
		accounts: make(map[models.ClientID]*models.Account),
		ledger:   ledger,
		policy:   policy,
	}
}

// Apply feeds one record through the state machine. It never fails: records
// that cannot be applied are absorbed and reported through the Outcome.
func (b *AccountBook) Apply(rec models.Record) Outcome {
	switch rec.Type {
	case models.TypeDeposit:
		return b.deposit(rec)
	case models.TypeWithdrawal:
		return b.withdraw(rec)
	case models.TypeDispute:
		return b.dispute(rec)
	case models.TypeResolve:
		return b.resolve(rec)
	case models.TypeChargeback:
		return b.chargeback(rec)
	default:
		return OutcomeUnknownType
	}
}

// openAccount validates a funds-moving record and returns its account,
// creating it on first reference.
func (b *AccountBook) openAccount(rec models.Record) (*models.Account, Outcome) {
	if !rec.Amount.IsPositive() {
		return nil, OutcomeInvalidAmount
	}
	if b.ledger.Contains(rec.TxID) {
		return nil, OutcomeDuplicateTransaction
	}

	acc, ok := b.accounts[rec.ClientID]
	if !ok {
		acc = &models.Account{ClientID: rec.ClientID}
		b.accounts[rec.ClientID] = acc
	}
	if acc.Locked && b.policy == LockedReject {
		return nil, OutcomeAccountLocked
	}
	return acc, OutcomeApplied
}

func (b *AccountBook) deposit(rec models.Record) Outcome {
	acc, outcome := b.openAccount(rec)
	if outcome != OutcomeApplied {
		return outcome
	}

	acc.Total = acc.Total.Add(rec.Amount)
	b.record(rec, models.EntryDeposit)
	return OutcomeApplied
}

func (b *AccountBook) withdraw(rec models.Record) Outcome {
	acc, outcome := b.openAccount(rec)
	if outcome != OutcomeApplied {
		return outcome
	}

	// An overdraft leaves no ledger entry, so it can never be disputed.
	if acc.Available().LessThan(rec.Amount) {
		return OutcomeInsufficientFunds
	}

	acc.Total = acc.Total.Sub(rec.Amount)
	b.record(rec, models.EntryWithdrawal)
	return OutcomeApplied
}

func (b *AccountBook) record(rec models.Record, kind models.EntryKind) {
	// Contains was checked in openAccount, so Record cannot fail here.
	_ = b.ledger.Record(models.LedgerEntry{
		TxID:     rec.TxID,
		ClientID: rec.ClientID,
		Kind:     kind,
		Amount:   rec.Amount,
		State:    models.DisputeNormal,
	})
}

// disputed resolves the account and ledger entry a dispute-family record
// refers to, checking ownership, lock state and the expected entry state.
func (b *AccountBook) disputed(rec models.Record, want models.DisputeState) (*models.Account, *models.LedgerEntry, Outcome) {
	entry := b.ledger.Lookup(rec.TxID)
	if entry == nil {
		return nil, nil, OutcomeUnknownTransaction
	}
	if entry.ClientID != rec.ClientID {
		return nil, nil, OutcomeClientMismatch
	}

	acc := b.accounts[rec.ClientID]
	if acc.Locked && b.policy == LockedReject {
		return nil, nil, OutcomeAccountLocked
	}
	if entry.State != want {
		return nil, nil, OutcomeInvalidDisputeState
	}
	return acc, entry, OutcomeApplied
}

func (b *AccountBook) dispute(rec models.Record) Outcome {
	acc, entry, outcome := b.disputed(rec, models.DisputeNormal)
	if outcome != OutcomeApplied {
		return outcome
	}

	entry.State = models.DisputeDisputed
	switch entry.Kind {
	case models.EntryDeposit:
		acc.Held = acc.Held.Add(entry.Amount)
	case models.EntryWithdrawal:
		// The withdrawn funds come back but stay frozen.
		acc.Total = acc.Total.Add(entry.Amount)
		acc.Held = acc.Held.Add(entry.Amount)
	}
	return OutcomeApplied
}

func (b *AccountBook) resolve(rec models.Record) Outcome {
	acc, entry, outcome := b.disputed(rec, models.DisputeDisputed)
	if outcome != OutcomeApplied {
		return outcome
	}

	entry.State = models.DisputeResolved
	switch entry.Kind {
	case models.EntryDeposit:
		acc.Total = acc.Total.Sub(entry.Amount)
		acc.Held = acc.Held.Sub(entry.Amount)
	case models.EntryWithdrawal:
		acc.Held = acc.Held.Sub(entry.Amount)
	}
	return OutcomeApplied
}

func (b *AccountBook) chargeback(rec models.Record) Outcome {
	acc, entry, outcome := b.disputed(rec, models.DisputeDisputed)
	if outcome != OutcomeApplied {
		return outcome
	}

	entry.State = models.DisputeChargedBack
	acc.Locked = true
	switch entry.Kind {
	case models.EntryDeposit:
		acc.Held = acc.Held.Sub(entry.Amount)
	case models.EntryWithdrawal:
		acc.Held = acc.Held.Sub(entry.Amount)
		acc.Total = acc.Total.Sub(entry.Amount)
	}
	return OutcomeApplied
}

// Account returns a copy of the client's account.
func (b *AccountBook) Account(client models.ClientID) (models.Account, bool) {
	acc, ok := b.accounts[client]
	if !ok {
		return models.Account{}, false
	}
	return *acc, true
}

// Ledger exposes the book's transaction ledger.
func (b *AccountBook) Ledger() *TransactionLedger {
	return b.ledger
}

func (b *AccountBook) Len() int {
	return len(b.accounts)
}

// Snapshot returns every account the book has touched, ordered by client id.
func (b *AccountBook) Snapshot() []models.AccountSnapshot {
	out := make([]models.AccountSnapshot, 0, len(b.accounts))
	for _, acc := range b.accounts {
		out = append(out, acc.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}
