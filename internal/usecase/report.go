package usecase

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/fairyhunter13/bulk-import-service/internal/domain"
)

// BuildErrorsCSV serializes failed rows into the error report: a UTF-8 CSV
// with header row,error,raw. Rows keep detection order — parse-time errors
// first within their file position, flush-time conflicts at their batch
// boundary — so the report is not globally sorted by row number.
func BuildErrorsCSV(rows []domain.ErrorRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"row", "error", "raw"}); err != nil {
		return nil, fmt.Errorf("op=report.build: %w", err)
	}
	for _, r := range rows {
		if err := w.Write([]string{strconv.Itoa(r.Row), r.Error, r.Raw}); err != nil {
			return nil, fmt.Errorf("op=report.build: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("op=report.build: %w", err)
	}
	return buf.Bytes(), nil
}
