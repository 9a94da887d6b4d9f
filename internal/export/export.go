// Package export renders a flat row set as Excel, CSV, PDF or Word documents.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

type Format string

const (
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
	FormatPDF   Format = "pdf"
	FormatWord  Format = "word"
)

var (
	ErrEmptyTable    = errors.New("nothing to export: no columns")
	ErrUnknownFormat = errors.New("unknown export format")
)

// Table is the row set handed over by the dashboard. Columns fixes the order
// in which row values are rendered.
type Table struct {
	Title   string
	Columns []string
	Rows    []map[string]any
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "excel", "xlsx":
		return FormatExcel, nil
	case "csv":
		return FormatCSV, nil
	case "pdf":
		return FormatPDF, nil
	case "word", "docx":
		return FormatWord, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func (f Format) Extension() string {
	switch f {
	case FormatExcel:
		return ".xlsx"
	case FormatCSV:
		return ".csv"
	case FormatPDF:
		return ".pdf"
	case FormatWord:
		return ".docx"
	default:
		return ""
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	case FormatWord:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// Write renders t to w in the given format.
func Write(w io.Writer, format Format, t Table) error {
	if len(t.Columns) == 0 {
		return ErrEmptyTable
	}
	if t.Title == "" {
		t.Title = "Production Data"
	}
	switch format {
	case FormatExcel:
		return writeExcel(w, t)
	case FormatCSV:
		return writeCSV(w, t)
	case FormatPDF:
		return writePDF(w, t)
	case FormatWord:
		return writeWord(w, t)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func (t Table) cells(row map[string]any) []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = cellText(row[col])
	}
	return out
}

func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
