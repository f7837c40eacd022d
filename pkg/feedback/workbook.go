package feedback

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

// Sheet names shared by export and import.
const (
	SheetInstructions  = "Instructions"
	SheetMetrics       = "Discovered Metrics"
	SheetRelationships = "Table Relationships"
	SheetAggregations  = "Aggregations"
	SheetFilters       = "Common Filters"
)

const (
	headerColor   = "4472C4"
	editableColor = "FFFF00"
)

var (
	metricHeaders = []string{
		"Importance Score", "Execution Count", "Last Executed", "Procedure", "Metric Name",
		"Formula", "Plain English", "Correct Name", "Notes",
	}
	metricWidths = []float64{15, 15, 20, 35, 25, 50, 40, 25, 30}

	relationshipHeaders = []string{
		"Importance Score", "Procedure", "Left Table", "Right Table", "Join Type",
		"Join Columns", "Is Correct?", "Notes", "Business Interpretation",
	}
	relationshipWidths = []float64{15, 35, 25, 25, 12, 35, 12, 30, 40}

	aggregationHeaders = []string{
		"Importance Score", "Procedure", "Function", "Column", "Alias", "Interpretation", "Your Correction",
	}
	aggregationWidths = []float64{15, 35, 10, 25, 20, 45, 35}

	filterHeaders = []string{
		"Frequency", "Column", "Operator", "Typical Values", "Used In", "Business Meaning", "Suggested Meaning",
	}
	filterWidths = []float64{12, 30, 12, 35, 35, 35, 45}
)

// Editable columns per sheet, 1-based.
var (
	metricEditable       = []int{colMetricCorrectName + 1, colMetricNotes + 1}
	relationshipEditable = []int{colRelIsCorrect + 1, colRelNotes + 1}
	aggregationEditable  = []int{7}
	filterEditable       = []int{colFilterMeaning + 1}
)

type workbookStyles struct {
	header   int
	editable int
	title    int
}

// WriteWorkbook writes data to an .xlsx file at path.
func WriteWorkbook(path string, data ReviewData, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newStyles(f)
	if err != nil {
		return err
	}
	if err := f.SetSheetName("Sheet1", SheetInstructions); err != nil {
		return fmt.Errorf("rename first sheet: %w", err)
	}
	if err := writeInstructions(f, styles, generatedAt); err != nil {
		return err
	}

	metrics := make([][]any, 0, len(data.Metrics))
	for _, m := range data.Metrics {
		metrics = append(metrics, []any{
			m.ImportanceScore, m.ExecutionCount, m.LastExecuted, m.Procedure, m.MetricName,
			m.Formula, m.PlainEnglish, "", "",
		})
	}
	if err := writeSheet(f, styles, SheetMetrics, metricHeaders, metricWidths, metricEditable, metrics); err != nil {
		return err
	}

	joins := make([][]any, 0, len(data.Joins))
	for _, j := range data.Joins {
		joins = append(joins, []any{
			j.ImportanceScore, j.Procedure, j.LeftTable, j.RightTable, j.JoinType,
			j.JoinColumns, "", "", j.Meaning,
		})
	}
	if err := writeSheet(f, styles, SheetRelationships, relationshipHeaders, relationshipWidths, relationshipEditable, joins); err != nil {
		return err
	}
	if len(joins) > 0 {
		if err := addYesNoValidation(f, len(joins)); err != nil {
			return err
		}
	}

	aggs := make([][]any, 0, len(data.Aggregations))
	for _, a := range data.Aggregations {
		aggs = append(aggs, []any{a.ImportanceScore, a.Procedure, a.Function, a.Column, a.Alias, a.Meaning, ""})
	}
	if err := writeSheet(f, styles, SheetAggregations, aggregationHeaders, aggregationWidths, aggregationEditable, aggs); err != nil {
		return err
	}

	filters := make([][]any, 0, len(data.Filters))
	for _, fl := range data.Filters {
		filters = append(filters, []any{fl.Frequency, fl.Column, fl.Operator, fl.Values, fl.UsedIn, "", fl.Meaning})
	}
	if err := writeSheet(f, styles, SheetFilters, filterHeaders, filterWidths, filterEditable, filters); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create review directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func newStyles(f *excelize.File) (workbookStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return workbookStyles{}, fmt.Errorf("create header style: %w", err)
	}
	editable, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{editableColor}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return workbookStyles{}, fmt.Errorf("create editable style: %w", err)
	}
	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return workbookStyles{}, fmt.Errorf("create title style: %w", err)
	}
	return workbookStyles{header: header, editable: editable, title: title}, nil
}

func writeInstructions(f *excelize.File, styles workbookStyles, generatedAt time.Time) error {
	lines := []string{
		"Procedure Analysis Review",
		"",
		"Purpose:",
		"This workbook contains patterns discovered by analyzing SQL stored procedures.",
		"Your feedback helps us understand the business meaning of these patterns.",
		"",
		"Sheets:",
		"- Discovered Metrics: Calculations and formulas found in SQL (ratios, percentages)",
		"- Table Relationships: JOIN patterns between tables",
		"- Aggregations: SUM, COUNT, AVG operations - what's being measured",
		"- Common Filters: WHERE clause patterns (business rules)",
		"",
		"How to Review:",
		"1. Yellow columns are for your input",
		"2. Items are sorted by importance (most-used procedures first)",
		"3. Focus on the top items - those have the most business impact",
		"4. Add corrections or clarifications in the yellow columns",
		"",
		"When Done:",
		"1. Add your name to the filename (e.g., procedure_patterns_2026-01-22_JaneSmith.xlsx)",
		"2. Run: ekaya-catalog review import <file> --reviewer \"Your Name\"",
		"",
		"Generated: " + generatedAt.Format("2006-01-02 15:04"),
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetInstructions, cell, line); err != nil {
			return fmt.Errorf("write instructions: %w", err)
		}
	}
	if err := f.SetCellStyle(SheetInstructions, "A1", "A1", styles.title); err != nil {
		return fmt.Errorf("style instructions: %w", err)
	}
	if err := f.SetColWidth(SheetInstructions, "A", "A", 80); err != nil {
		return fmt.Errorf("size instructions: %w", err)
	}
	return nil
}

// writeSheet adds a sheet with a styled, frozen header row. Editable
// columns are highlighted in the header and in every data row.
func writeSheet(f *excelize.File, styles workbookStyles, name string, headers []string, widths []float64, editable []int, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, i+2, err)
		}
	}

	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", last, styles.header); err != nil {
		return fmt.Errorf("style %s header: %w", name, err)
	}
	for _, col := range editable {
		top, err := excelize.CoordinatesToCellName(col, 1)
		if err != nil {
			return err
		}
		bottom, err := excelize.CoordinatesToCellName(col, len(rows)+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(name, top, bottom, styles.editable); err != nil {
			return fmt.Errorf("style %s editable column: %w", name, err)
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(name, col, col, w); err != nil {
			return fmt.Errorf("size %s column %s: %w", name, col, err)
		}
	}

	if err := f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze %s header: %w", name, err)
	}
	return nil
}

func addYesNoValidation(f *excelize.File, rows int) error {
	col, err := excelize.ColumnNumberToName(colRelIsCorrect + 1)
	if err != nil {
		return err
	}
	dv := excelize.NewDataValidation(true)
	dv.Sqref = fmt.Sprintf("%s2:%s%d", col, col, rows+1)
	if err := dv.SetDropList([]string{"Yes", "No", "Unsure"}); err != nil {
		return fmt.Errorf("build is-correct list: %w", err)
	}
	dv.SetError(excelize.DataValidationErrorStyleStop, "Invalid input", "Please select from dropdown")
	if err := f.AddDataValidation(SheetRelationships, dv); err != nil {
		return fmt.Errorf("add is-correct validation: %w", err)
	}
	return nil
}
