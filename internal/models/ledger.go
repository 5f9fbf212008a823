package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of fractional digits every amount carries.
const AmountPlaces = 4

// ClientID identifies a client account.
type ClientID uint16

// TxID identifies a transaction across all clients.
type TxID uint32

// EntryKind is the kind of balance movement recorded in the ledger.
type EntryKind int

const (
	EntryDeposit EntryKind = iota
	EntryWithdrawal
)

func (k EntryKind) String() string {
	switch k {
	case EntryDeposit:
		return "deposit"
	case EntryWithdrawal:
		return "withdrawal"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// DisputeState tracks where a ledger entry is in its dispute lifecycle.
//
//	Normal --dispute--> Disputed --resolve--> Resolved
//	                    Disputed --chargeback--> ChargedBack
type DisputeState int

const (
	DisputeNormal DisputeState = iota
	DisputeDisputed
	DisputeResolved
	DisputeChargedBack
)

func (s DisputeState) String() string {
	switch s {
	case DisputeNormal:
		return "normal"
	case DisputeDisputed:
		return "disputed"
	case DisputeResolved:
		return "resolved"
	case DisputeChargedBack:
		return "charged_back"
	default:
		return fmt.Sprintf("DisputeState(%d)", int(s))
	}
}

// Final reports whether no further dispute transition can act on the entry.
func (s DisputeState) Final() bool {
	return s == DisputeResolved || s == DisputeChargedBack
}

// LedgerEntry is a deposit or withdrawal that was actually applied.
type LedgerEntry struct {
	TxID     TxID            `json:"tx_id" db:"tx_id"`
	ClientID ClientID        `json:"client_id" db:"client_id"`
	Kind     EntryKind       `json:"kind" db:"kind"`
	Amount   decimal.Decimal `json:"amount" db:"amount"` // always positive
	State    DisputeState    `json:"dispute_state" db:"dispute_state"`
}

// Account holds the stored balances of a client. Available is derived.
type Account struct {
	ClientID ClientID        `json:"client_id" db:"client_id"`
	Total    decimal.Decimal `json:"total" db:"total"`
	Held     decimal.Decimal `json:"held" db:"held"`
	Locked   bool            `json:"locked" db:"locked"`
}

// Available returns the spendable funds, total minus held.
func (a *Account) Available() decimal.Decimal {
	return a.Total.Sub(a.Held)
}

// Snapshot captures the account with its derived available balance.
func (a *Account) Snapshot() AccountSnapshot {
	return AccountSnapshot{
		ClientID:  a.ClientID,
		Available: a.Available(),
		Held:      a.Held,
		Total:     a.Total,
		Locked:    a.Locked,
	}
}

// AccountSnapshot is the reported state of one account at the end of a run.
type AccountSnapshot struct {
	ClientID  ClientID        `json:"client" db:"client_id"`
	Available decimal.Decimal `json:"available" db:"available"`
	Held      decimal.Decimal `json:"held" db:"held"`
	Total     decimal.Decimal `json:"total" db:"total"`
	Locked    bool            `json:"locked" db:"locked"`
}

// FormatAmount renders an amount with exactly AmountPlaces fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountPlaces)
}

// FitsPrecision reports whether d can be represented without losing digits
// beyond AmountPlaces.
func FitsPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountPlaces))
}
