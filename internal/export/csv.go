package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

func writeCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(t.cells(row)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
