package csvexport

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Row is anything that renders as one CSV record.
type Row interface {
	CSVRow() []string
}

// Filename builds "<name>-<yyyy-mm-dd>.csv".
func Filename(name string, now time.Time) string {
	return fmt.Sprintf("%s-%s.csv", name, now.UTC().Format("2006-01-02"))
}

// Neutralize prefixes a cell that a spreadsheet would evaluate as a formula
// with a single quote. Signed numbers are left as they are.
func Neutralize(cell string) string {
	if cell == "" {
		return cell
	}
	switch cell[0] {
	case '+', '-':
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			return cell
		}
	case '=', '@', '\t', '\r':
	default:
		return cell
	}
	return "'" + cell
}

// Write streams header and rows to w as an attachment download.
func Write[T any, P interface {
	*T
	Row
}](w http.ResponseWriter, name string, now time.Time, header []string, rows []T) error {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", Filename(name, now)))
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range rows {
		rec := P(&rows[i]).CSVRow()
		for j := range rec {
			rec[j] = Neutralize(rec[j])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
