package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

const (
	pdfPageWidth = 277.0 // A4 landscape minus 10mm margins
	pdfRowHeight = 7.0
)

func writePDF(w io.Writer, t Table) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	colWidth := pdfPageWidth / float64(len(t.Columns))

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(68, 114, 196)
		pdf.SetTextColor(255, 255, 255)
		for _, col := range t.Columns {
			pdf.CellFormat(colWidth, pdfRowHeight, tr(fit(pdf, col, colWidth)), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(t.Title), "", 1, "L", false, 0, "")
	header()
	for _, row := range t.Rows {
		for _, text := range t.cells(row) {
			pdf.CellFormat(colWidth, pdfRowHeight, tr(fit(pdf, text, colWidth)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, pdfRowHeight, fmt.Sprintf("%d rows", len(t.Rows)), "", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// fit truncates text to the cell width with a trailing "..".
func fit(pdf *fpdf.Fpdf, text string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(text) <= limit {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"..") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + ".."
}
