package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruralpay/payments-engine/internal/models"
)

func snapshots() []models.AccountSnapshot {
	return []models.AccountSnapshot{
		{
			ClientID:  1,
			Available: decimal.RequireFromString("1.5"),
			Held:      decimal.Zero,
			Total:     decimal.RequireFromString("1.5"),
		},
		{
			ClientID:  2,
			Available: decimal.RequireFromString("-100"),
			Held:      decimal.RequireFromString("100"),
			Total:     decimal.Zero,
			Locked:    true,
		},
	}
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSVWriter{}.Write(&buf, snapshots()))

	want := "client,available,held,total,locked\n" +
		"1,1.5000,0.0000,1.5000,false\n" +
		"2,-100.0000,100.0000,0.0000,true\n"
	assert.Equal(t, want, buf.String())
}

func TestCSVWriter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSVWriter{}.Write(&buf, nil))
	assert.Equal(t, "client,available,held,total,locked\n", buf.String())
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONWriter{}.Write(&buf, snapshots()))

	var rows []Row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, Row{Client: 2, Available: "-100.0000", Held: "100.0000", Total: "0.0000", Locked: true}, rows[1])
}

func TestNewWriter(t *testing.T) {
	w, err := NewWriter("")
	require.NoError(t, err)
	assert.IsType(t, CSVWriter{}, w)

	w, err = NewWriter(FormatJSON)
	require.NoError(t, err)
	assert.IsType(t, JSONWriter{}, w)

	_, err = NewWriter("xml")
	assert.Error(t, err)
}
