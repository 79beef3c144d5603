package usecase_test

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bulk-import-service/internal/domain"
	"github.com/fairyhunter13/bulk-import-service/internal/usecase"
)

func TestBuildErrorsCSV_PreservesDetectionOrder(t *testing.T) {
	t.Parallel()
	rows := []domain.ErrorRow{
		{Row: 7, Error: `row 7: invalid email "x"`, Raw: "x,A"},
		{Row: 2, Error: `row 2: email already exists "a@x.com"`, Raw: "a@x.com,A"},
	}
	out, err := usecase.BuildErrorsCSV(rows)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"row", "error", "raw"}, records[0])
	assert.Equal(t, "7", records[1][0])
	assert.Equal(t, "2", records[2][0])
}

func TestBuildErrorsCSV_QuotesEmbeddedCommas(t *testing.T) {
	t.Parallel()
	out, err := usecase.BuildErrorsCSV([]domain.ErrorRow{
		{Row: 1, Error: "row 1: empty row", Raw: `a,"b,c",d`},
	})
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, `a,"b,c",d`, records[1][2])
}
