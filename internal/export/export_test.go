package export

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() Table {
	return Table{
		Title:   "BathData",
		Columns: []string{"ID", "DateAndTime", "Machine", "Result"},
		Rows: []map[string]any{
			{"ID": int64(1), "DateAndTime": time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), "Machine": "M1", "Result": "PASS"},
			{"ID": int64(2), "DateAndTime": "2024-01-01 15:30:00", "Machine": "M<2>", "Result": nil},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"xlsx": FormatExcel, "CSV": FormatCSV, "pdf": FormatPDF, "docx": FormatWord} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("odt")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteRejectsTableWithoutColumns(t *testing.T) {
	for _, f := range []Format{FormatExcel, FormatCSV, FormatPDF, FormatWord} {
		err := Write(io.Discard, f, Table{})
		assert.ErrorIs(t, err, ErrEmptyTable, string(f))
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleTable()))
	want := "ID,DateAndTime,Machine,Result\n1,2024-01-01 09:00:00,M1,PASS\n2,2024-01-01 15:30:00,M<2>,\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteExcel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatExcel, sampleTable()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "DateAndTime", "Machine", "Result"}, rows[0])
	assert.Equal(t, []string{"1", "2024-01-01 09:00:00", "M1", "PASS"}, rows[1])
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatPDF, sampleTable()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWriteWord(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatWord, sampleTable()))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var doc []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		doc, err = io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
	}
	require.NotEmpty(t, doc)
	assert.Contains(t, string(doc), "M&lt;2&gt;")
	assert.Contains(t, string(doc), "2024-01-01 09:00:00")
}
