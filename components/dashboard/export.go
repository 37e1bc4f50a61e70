package dashboard

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/gosimple/slug"
)

// ExportCSV writes rows as CSV honouring visible column order. The header row holds the
// visible labels; UI-only columns never reach the file. It returns the number of data rows written.
func ExportCSV(w io.Writer, rows []Row, columns ColumnSet) (int, error) {
	if len(rows) == 0 {
		return 0, ErrNothingToExport
	}
	visible := columns.Visible()
	cw := csv.NewWriter(w)
	header := make([]string, len(visible))
	for i, col := range visible {
		header[i] = col.Label
	}
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("dashboard: write csv header: %w", err)
	}
	record := make([]string, len(visible))
	for n, row := range rows {
		for i, col := range visible {
			record[i] = row.Fields.Resolve(col).String()
		}
		if err := cw.Write(record); err != nil {
			return n, fmt.Errorf("dashboard: write csv row %d: %w", n, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return len(rows), fmt.Errorf("dashboard: flush csv: %w", err)
	}
	return len(rows), nil
}

// ExportFileName returns the date-stamped download name for an entity export.
func ExportFileName(entityName string, now time.Time) string {
	base := slug.Make(entityName)
	if base == "" {
		base = "export"
	}
	return fmt.Sprintf("%s-%s.csv", base, now.Format(time.DateOnly))
}
