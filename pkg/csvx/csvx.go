// Package csvx provides small CSV helpers used across the project.
package csvx

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Sanitize prepares raw upload bytes for parsing: a leading UTF-8 BOM is
// dropped and invalid byte sequences are replaced with U+FFFD, not rejected.
func Sanitize(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return bytes.ToValidUTF8(data, []byte("�"))
}

// Split parses data into a header and body records. The first non-empty
// record is the header; everything after it is the body, 1-indexed by the
// caller. Records with a variable number of fields are accepted. A file with
// no non-empty record yields a nil header and no rows.
func Split(data []byte) (header []string, rows [][]string, err error) {
	r := csv.NewReader(bytes.NewReader(Sanitize(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("op=csvx.Split: %w", err)
	}
	for i, rec := range records {
		if !IsEmpty(rec) {
			return rec, records[i+1:], nil
		}
	}
	return nil, nil, nil
}

// IsEmpty reports whether every cell of the record is blank after trimming.
// encoding/csv already skips fully blank lines, so these records come from
// lines of bare separators such as ",,,".
func IsEmpty(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// JoinRaw re-joins the original cell values for error reporting.
func JoinRaw(rec []string) string { return strings.Join(rec, ",") }

// Cell normalizes one cell: surrounding whitespace is stripped and an empty
// string becomes nil (NULL in the database).
func Cell(rec []string, i int) *string {
	if i >= len(rec) {
		return nil
	}
	s := strings.TrimSpace(rec[i])
	if s == "" {
		return nil
	}
	return &s
}
