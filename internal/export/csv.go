package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"dhis2dupes/internal/users"
)

// WriteCSV writes a header row followed by one row per record. With
// ByteOrderMark set the output starts with a UTF-8 BOM so spreadsheet tools
// detect the encoding.
func WriteCSV(w io.Writer, rows []users.Classified, opts Options) error {
	var bom *transform.Writer
	if opts.ByteOrderMark {
		bom = transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
		w = bom
	}

	l := LabelsFor(opts.Language)
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(opts)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range rows {
		if err := cw.Write(neutralizeFormulas(row(c, opts, l))); err != nil {
			return fmt.Errorf("write csv row %s: %w", c.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if bom != nil {
		if err := bom.Close(); err != nil {
			return fmt.Errorf("flush csv encoder: %w", err)
		}
	}
	return nil
}

// neutralizeFormulas prefixes cells that a spreadsheet would evaluate as a
// formula with a single quote. Names and emails come from DHIS2 users.
func neutralizeFormulas(cells []string) []string {
	for i, cell := range cells {
		if cell == "" {
			continue
		}
		switch cell[0] {
		case '=', '+', '-', '@', '\t', '\r':
			cells[i] = "'" + cell
		}
	}
	return cells
}
