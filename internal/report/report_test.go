package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vbonduro/sitecheck/internal/checklist"
	"github.com/vbonduro/sitecheck/internal/domain"
	"github.com/vbonduro/sitecheck/internal/inspection"
)

func TestWriteXLSX(t *testing.T) {
	e := inspection.New(checklist.Default(), "prop-9", nil)
	_, err := e.AddEvaluation("roof_drain_clog", inspection.EvaluationInput{Grade: domain.GradeC, Memo: "leaves"})
	require.NoError(t, err)
	_, err = e.AddEvaluation("structure_schmidt_hammer", inspection.EvaluationInput{Grade: domain.GradeA, Readings: []float64{40, 42}})
	require.NoError(t, err)
	require.True(t, e.SetCategorySurveyStatus("balcony", domain.SurveyStatus{Conducted: false, NotConductedReason: "no access"}))

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, e))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetEvaluations, SheetOutstanding}, f.GetSheetList())

	property, err := f.GetCellValue(SheetSummary, "B1")
	require.NoError(t, err)
	assert.Equal(t, "prop-9", property)

	rows, err := f.GetRows(SheetEvaluations)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Roof drain blockage", rows[1][2])
	assert.Equal(t, "c", rows[1][4])
	assert.Equal(t, "leaves", rows[1][7])
	assert.Equal(t, "34.07 N/mm2", rows[2][6])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	var balcony []string
	for _, r := range summary {
		if len(r) > 1 && r[1] == "Balcony" {
			balcony = r
		}
	}
	require.NotNil(t, balcony)
	assert.Equal(t, "not conducted: no access", balcony[4])

	outstanding, err := f.GetRows(SheetOutstanding)
	require.NoError(t, err)
	assert.Greater(t, len(outstanding), 1)
	assert.Equal(t, "unanswered item", outstanding[1][0])
}
