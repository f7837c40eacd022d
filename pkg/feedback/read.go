package feedback

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

// Fixed column positions read back from a reviewed workbook, 0-based.
const (
	colMetricProcedure   = 3 // D
	colMetricFoundName   = 4 // E
	colMetricFormula     = 5 // F
	colMetricCorrectName = 7 // H
	colMetricNotes       = 8 // I
	metricWidth          = 9

	colRelProcedure   = 1 // B
	colRelLeft        = 2 // C
	colRelRight       = 3 // D
	colRelJoinType    = 4 // E
	colRelIsCorrect   = 6 // G
	colRelNotes       = 7 // H
	relationshipWidth = 8

	colFilterColumn   = 1 // B
	colFilterOperator = 2 // C
	colFilterValues   = 3 // D
	colFilterMeaning  = 5 // F
	filterWidth       = 6
)

// ReadWorkbook extracts reviewer input from a workbook. Sheets that are
// missing or narrower than their fixed layout contribute nothing; rows
// without input in the editable columns are skipped.
func ReadWorkbook(path string) (*models.ReviewFeedback, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("review workbook %s: %w", path, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("stat review workbook: %w", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open review workbook %s: %v", apperrors.ErrValidation, path, err)
	}
	defer f.Close()

	fb := &models.ReviewFeedback{
		MetricCorrections: []models.MetricCorrection{},
		RelationshipFlags: []models.RelationshipFlag{},
		FilterMeanings:    []models.FilterMeaning{},
	}

	rows, err := sheetRows(f, SheetMetrics, metricWidth)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		correctName, notes := cell(row, colMetricCorrectName), cell(row, colMetricNotes)
		if correctName == "" && notes == "" {
			continue
		}
		fb.MetricCorrections = append(fb.MetricCorrections, models.MetricCorrection{
			Procedure:     cell(row, colMetricProcedure),
			FoundName:     cell(row, colMetricFoundName),
			CorrectedName: optional(correctName),
			Notes:         optional(notes),
			Formula:       cell(row, colMetricFormula),
		})
	}

	rows, err = sheetRows(f, SheetRelationships, relationshipWidth)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		isCorrect, notes := cell(row, colRelIsCorrect), cell(row, colRelNotes)
		if isCorrect == "" && notes == "" {
			continue
		}
		fb.RelationshipFlags = append(fb.RelationshipFlags, models.RelationshipFlag{
			Procedure:  cell(row, colRelProcedure),
			LeftTable:  cell(row, colRelLeft),
			RightTable: cell(row, colRelRight),
			JoinType:   cell(row, colRelJoinType),
			IsCorrect:  parseIsCorrect(isCorrect),
			Notes:      optional(notes),
		})
	}

	rows, err = sheetRows(f, SheetFilters, filterWidth)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		meaning := cell(row, colFilterMeaning)
		if meaning == "" {
			continue
		}
		fb.FilterMeanings = append(fb.FilterMeanings, models.FilterMeaning{
			Column:          cell(row, colFilterColumn),
			Operator:        cell(row, colFilterOperator),
			Values:          cell(row, colFilterValues),
			BusinessMeaning: meaning,
		})
	}
	return fb, nil
}

// sheetRows returns the data rows of a sheet, or nothing when the sheet is
// absent or its header is narrower than width. Cell reads trim trailing
// blanks, so data rows are not held to the width themselves.
func sheetRows(f *excelize.File, sheet string, width int) ([][]string, error) {
	if !slices.Contains(f.GetSheetList(), sheet) {
		return nil, nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 || len(rows[0]) < width {
		return nil, nil
	}
	return rows[1:], nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parseIsCorrect maps yes/no to true/false; anything else, "unsure"
// included, is nil.
func parseIsCorrect(s string) *bool {
	var v bool
	switch strings.ToLower(s) {
	case "yes":
		v = true
	case "no":
		v = false
	default:
		return nil
	}
	return &v
}
