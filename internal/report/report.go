// Package report renders an inspection as an XLSX workbook with a summary
// sheet, one row per evaluation, and the outstanding completion items.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vbonduro/sitecheck/internal/checklist"
	"github.com/vbonduro/sitecheck/internal/domain"
	"github.com/vbonduro/sitecheck/internal/inspection"
)

const (
	SheetSummary     = "Summary"
	SheetEvaluations = "Evaluations"
	SheetOutstanding = "Outstanding"
)

// WriteXLSX writes the workbook for the engine's current state to w.
func WriteXLSX(w io.Writer, e *inspection.Engine) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	for _, name := range []string{SheetEvaluations, SheetOutstanding} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSummary(f, header, e); err != nil {
		return err
	}
	if err := writeEvaluations(f, header, e); err != nil {
		return err
	}
	if err := writeOutstanding(f, header, e); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, header int, e *inspection.Engine) error {
	total := e.TotalProgress()
	agg := e.Aggregate()
	rows := [][]any{
		{"Property", agg.PropertyID},
		{"Updated", agg.UpdatedAt.Format("2006-01-02 15:04:05 MST")},
		{"Progress", fmt.Sprintf("%d / %d (%d%%)", total.Done, total.Total, total.Percent)},
		{},
		{"No", "Category", "Done", "Total", "Status"},
	}
	headerRow := len(rows)
	for i, cp := range total.Categories {
		st := "conducted"
		if cp.Skipped {
			st = "not conducted"
			if reason := e.CategorySurveyStatus(cp.CategoryID).NotConductedReason; reason != "" {
				st += ": " + reason
			}
		}
		rows = append(rows, []any{i + 1, cp.Name, cp.Done, cp.Total, st})
	}
	if err := setRows(f, SheetSummary, rows); err != nil {
		return err
	}
	if err := styleRow(f, SheetSummary, headerRow, 5, header); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "B", "B", 28)
}

func writeEvaluations(f *excelize.File, header int, e *inspection.Engine) error {
	rows := [][]any{{"No", "Category", "Item", "#", "Value", "Survey methods", "Measurement", "Memo", "Similar", "Photo", "Recorded"}}
	catalog := e.Catalog()
	for _, cat := range catalog.Categories() {
		for _, it := range cat.Items {
			for i, ev := range e.Evaluations(it.ID) {
				rows = append(rows, []any{
					it.No,
					cat.Name,
					it.Name,
					i + 1,
					valueOf(it, ev),
					strings.Join(ev.SurveyMethods, ", "),
					measurementOf(ev),
					ev.Memo,
					yesNo(ev.IsSimilar),
					yesNo(ev.HasPhoto),
					ev.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
		}
	}
	if err := setRows(f, SheetEvaluations, rows); err != nil {
		return err
	}
	if err := styleRow(f, SheetEvaluations, 1, len(rows[0]), header); err != nil {
		return err
	}
	return f.SetColWidth(SheetEvaluations, "C", "C", 32)
}

func writeOutstanding(f *excelize.File, header int, e *inspection.Engine) error {
	report := e.Completion()
	rows := [][]any{{"Type", "Id", "Detail"}}
	for _, m := range report.MissingItems {
		rows = append(rows, []any{"unanswered item", m.ItemID, fmt.Sprintf("No %d %s", m.No, m.Name)})
	}
	for _, id := range report.UnsetMaintenance {
		rows = append(rows, []any{"maintenance", id, "need and condition must both be answered"})
	}
	for _, r := range report.MissingReasons {
		rows = append(rows, []any{"missing reason", r.ID, r.Scope + " marked not conducted without a reason"})
	}
	if report.Complete {
		rows = append(rows, []any{"complete", "", "nothing outstanding"})
	}
	if err := setRows(f, SheetOutstanding, rows); err != nil {
		return err
	}
	return styleRow(f, SheetOutstanding, 1, 3, header)
}

func valueOf(it checklist.Item, ev domain.Evaluation) string {
	switch it.Kind {
	case checklist.KindManagement:
		return string(ev.ManagementGrade)
	case checklist.KindLegal:
		if ev.LegalDetail != "" {
			return string(ev.Legal) + ": " + ev.LegalDetail
		}
		return string(ev.Legal)
	case checklist.KindText:
		return ev.Text
	}
	return string(ev.Grade)
}

func measurementOf(ev domain.Evaluation) string {
	switch {
	case ev.RebarPitch != nil:
		return strconv.FormatFloat(ev.RebarPitch.PitchMM, 'f', -1, 64) + " mm"
	case ev.SchmidtHammer != nil && ev.SchmidtHammer.Result != nil:
		return strconv.FormatFloat(*ev.SchmidtHammer.Result, 'f', 2, 64) + " N/mm2"
	}
	return ""
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func styleRow(f *excelize.File, sheet string, row, cols, style int) error {
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(cols, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}
