package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TransactionType is the closed set of record types a replay accepts.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeDispute    TransactionType = "dispute"
	TypeResolve    TransactionType = "resolve"
	TypeChargeback TransactionType = "chargeback"
)

// ParseTransactionType maps the textual type column to a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(s); t {
	case TypeDeposit, TypeWithdrawal, TypeDispute, TypeResolve, TypeChargeback:
		return t, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// MovesFunds reports whether the type carries an amount.
func (t TransactionType) MovesFunds() bool {
	return t == TypeDeposit || t == TypeWithdrawal
}

// Record is one typed input row. Amount is zero for dispute, resolve and
// chargeback records.
type Record struct {
	Type     TransactionType `json:"type"`
	ClientID ClientID        `json:"client"`
	TxID     TxID            `json:"tx"`
	Amount   decimal.Decimal `json:"amount"`
}

func Deposit(client ClientID, tx TxID, amount decimal.Decimal) Record {
	return Record{Type: TypeDeposit, ClientID: client, TxID: tx, Amount: amount}
}

func Withdrawal(client ClientID, tx TxID, amount decimal.Decimal) Record {
	return Record{Type: TypeWithdrawal, ClientID: client, TxID: tx, Amount: amount}
}

func Dispute(client ClientID, tx TxID) Record {
	return Record{Type: TypeDispute, ClientID: client, TxID: tx}
}

func Resolve(client ClientID, tx TxID) Record {
	return Record{Type: TypeResolve, ClientID: client, TxID: tx}
}

func Chargeback(client ClientID, tx TxID) Record {
	return Record{Type: TypeChargeback, ClientID: client, TxID: tx}
}
