// Package ingest turns a CSV transaction file into typed records.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ruralpay/payments-engine/internal/models"
	"github.com/ruralpay/payments-engine/internal/services"
)

var ErrMissingColumn = errors.New("missing required column")

// RowError marks a single unusable row. The reader stays usable after it.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap lets callers match both the cause and services.ErrMalformedRecord.
func (e *RowError) Unwrap() []error {
	return []error{services.ErrMalformedRecord, e.Err}
}

// row is the untyped shape of one CSV line.
type row struct {
	Type   string `validate:"required,oneof=deposit withdrawal dispute resolve chargeback"`
	Client string `validate:"required,numeric"`
	Tx     string `validate:"required,numeric"`
	Amount string `validate:"required_if=Type deposit,required_if=Type withdrawal,excluded_if=Type dispute,excluded_if=Type resolve,excluded_if=Type chargeback"`
}

// CSVSource reads records from a CSV stream with a header line naming the
// type, client, tx and (optionally) amount columns.
type CSVSource struct {
	r         *csv.Reader
	validator *services.ValidationHelper
	columns   map[string]int
	line      int
}

// NewCSVSource reads the header eagerly so a bad file is rejected before any
// record is applied.
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("reading header: %w", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"type", "client", "tx"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	return &CSVSource{
		r:         cr,
		validator: services.NewValidationHelper(),
		columns:   columns,
		line:      1,
	}, nil
}

// Next returns the next record. It returns io.EOF at the end of input, a
// *RowError for a row that should be skipped, and any other error when the
// underlying stream failed.
func (s *CSVSource) Next() (models.Record, error) {
	fields, err := s.r.Read()
	s.line++
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return models.Record{}, &RowError{Line: s.line, Err: err}
		}
		return models.Record{}, err
	}

	raw := row{
		Type:   s.field(fields, "type"),
		Client: s.field(fields, "client"),
		Tx:     s.field(fields, "tx"),
		Amount: s.field(fields, "amount"),
	}
	rec, err := s.parse(raw)
	if err != nil {
		return models.Record{}, &RowError{Line: s.line, Err: err}
	}
	return rec, nil
}

func (s *CSVSource) field(fields []string, name string) string {
	i, ok := s.columns[name]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func (s *CSVSource) parse(raw row) (models.Record, error) {
	if err := s.validator.ValidateStruct(&raw); err != nil {
		return models.Record{}, err
	}

	txType, err := models.ParseTransactionType(raw.Type)
	if err != nil {
		return models.Record{}, err
	}
	client, err := strconv.ParseUint(raw.Client, 10, 16)
	if err != nil {
		return models.Record{}, fmt.Errorf("client %q: %w", raw.Client, err)
	}
	tx, err := strconv.ParseUint(raw.Tx, 10, 32)
	if err != nil {
		return models.Record{}, fmt.Errorf("tx %q: %w", raw.Tx, err)
	}

	rec := models.Record{
		Type:     txType,
		ClientID: models.ClientID(client),
		TxID:     models.TxID(tx),
	}
	if !txType.MovesFunds() {
		return rec, nil
	}

	amount, err := ParseAmount(raw.Amount)
	if err != nil {
		return models.Record{}, err
	}
	rec.Amount = amount
	return rec, nil
}

// ParseAmount parses a positive amount with at most four fractional digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", s, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount %q must be positive", s)
	}
	if !models.FitsPrecision(d) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", s, models.AmountPlaces)
	}
	return d, nil
}
