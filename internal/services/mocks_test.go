package services

import (
	"errors"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/ruralpay/payments-engine/internal/models"
)

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) LogRecord(runID string, rec models.Record, outcome string, applied, malformed bool) {
	m.Called(runID, rec, outcome, applied, malformed)
}

func (m *MockAuditLogger) LogRejectedRow(runID string, err error) {
	m.Called(runID, err)
}

// sliceSource replays a fixed list of records, optionally failing at a given
// position.
type sliceSource struct {
	items []sourceItem
	pos   int
}

type sourceItem struct {
	rec models.Record
	err error
}

func newSliceSource(records ...models.Record) *sliceSource {
	s := &sliceSource{}
	for _, r := range records {
		s.items = append(s.items, sourceItem{rec: r})
	}
	return s
}

func (s *sliceSource) fail(err error) *sliceSource {
	s.items = append(s.items, sourceItem{err: err})
	return s
}

func (s *sliceSource) then(records ...models.Record) *sliceSource {
	for _, r := range records {
		s.items = append(s.items, sourceItem{rec: r})
	}
	return s
}

func (s *sliceSource) Next() (models.Record, error) {
	if s.pos >= len(s.items) {
		return models.Record{}, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item.rec, item.err
}

// rowErr stands in for the ingest package's row error.
type rowErr struct{ msg string }

func (e rowErr) Error() string { return e.msg }

func (e rowErr) Unwrap() error { return ErrMalformedRecord }

var errDiskGone = errors.New("read: input/output error")
