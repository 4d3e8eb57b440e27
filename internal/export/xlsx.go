package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"dhis2dupes/internal/users"
)

const duplicateFill = "FCE4D6"

// Sheet is one worksheet of an XLSX workbook.
type Sheet struct {
	Name string
	Rows []users.Classified
}

// Sheets returns the standard workbook layout: every user, then duplicates only.
func Sheets(classified []users.Classified, opts Options) []Sheet {
	l := LabelsFor(opts.Language)
	return []Sheet{
		{Name: l.UsersSheet, Rows: classified},
		{Name: l.DuplicatesSheet, Rows: users.FilterDuplicates(classified)},
	}
}

// WriteXLSX writes a workbook with one worksheet per sheet. Each worksheet has
// a bold frozen header row with an autofilter, and duplicate rows are shaded.
func WriteXLSX(w io.Writer, sheets []Sheet, opts Options) error {
	if len(sheets) == 0 {
		return fmt.Errorf("xlsx: at least one sheet required")
	}
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		return fmt.Errorf("xlsx header style: %w", err)
	}
	dupStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{duplicateFill}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("xlsx duplicate style: %w", err)
	}

	l := LabelsFor(opts.Language)
	header := Header(opts)
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				return fmt.Errorf("xlsx rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("xlsx new sheet %q: %w", sheet.Name, err)
		}
		if err := writeSheet(f, sheet, header, lastCol, l, opts, headerStyle, dupStyle); err != nil {
			return fmt.Errorf("xlsx sheet %q: %w", sheet.Name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet Sheet, header []string, lastCol string, l Labels, opts Options, headerStyle, dupStyle int) error {
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet.Name, "A1", &headerRow); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet.Name, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, c := range sheet.Rows {
		rowNum := i + 2
		cells := row(c, opts, l)
		values := make([]any, len(cells))
		for j, v := range cells {
			values[j] = v
		}
		start, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet.Name, start, &values); err != nil {
			return err
		}
		if c.Duplicate.Bool() {
			end := fmt.Sprintf("%s%d", lastCol, rowNum)
			if err := f.SetCellStyle(sheet.Name, start, end, dupStyle); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(sheet.Name, "A", lastCol, 24); err != nil {
		return err
	}
	if err := f.SetPanes(sheet.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	return f.AutoFilter(sheet.Name, fmt.Sprintf("A1:%s%d", lastCol, len(sheet.Rows)+1), nil)
}
