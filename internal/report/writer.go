// Package report renders the final account snapshot.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/ruralpay/payments-engine/internal/models"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Row is one account with amounts already rendered to four decimal places.
type Row struct {
	Client    models.ClientID `json:"client"`
	Available string          `json:"available"`
	Held      string          `json:"held"`
	Total     string          `json:"total"`
	Locked    bool            `json:"locked"`
}

var header = []string{"client", "available", "held", "total", "locked"}

// Rows converts snapshots into report rows, keeping their order.
func Rows(snapshots []models.AccountSnapshot) []Row {
	rows := make([]Row, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, Row{
			Client:    s.ClientID,
			Available: models.FormatAmount(s.Available),
			Held:      models.FormatAmount(s.Held),
			Total:     models.FormatAmount(s.Total),
			Locked:    s.Locked,
		})
	}
	return rows
}

// Writer writes a snapshot in a fixed format.
type Writer interface {
	Write(w io.Writer, snapshots []models.AccountSnapshot) error
}

// NewWriter returns the writer for format.
func NewWriter(format string) (Writer, error) {
	switch format {
	case "", FormatCSV:
		return CSVWriter{}, nil
	case FormatJSON:
		return JSONWriter{Indent: true}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

type CSVWriter struct{}

func (CSVWriter) Write(w io.Writer, snapshots []models.AccountSnapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range Rows(snapshots) {
		record := []string{
			strconv.FormatUint(uint64(r.Client), 10),
			r.Available,
			r.Held,
			r.Total,
			strconv.FormatBool(r.Locked),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type JSONWriter struct {
	Indent bool
}

func (j JSONWriter) Write(w io.Writer, snapshots []models.AccountSnapshot) error {
	enc := json.NewEncoder(w)
	if j.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(Rows(snapshots))
}
