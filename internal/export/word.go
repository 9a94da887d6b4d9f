package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// writeWord emits a minimal WordprocessingML package: a title paragraph and
// one bordered table.
func writeWord(w io.Writer, t Table) error {
	var doc bytes.Buffer
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	doc.WriteString(`<w:p><w:r><w:rPr><w:b/><w:sz w:val="32"/></w:rPr><w:t>`)
	xml.EscapeText(&doc, []byte(t.Title))
	doc.WriteString(`</w:t></w:r></w:p>`)
	doc.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/><w:tblW w:w="0" w:type="auto"/><w:tblBorders>`)
	for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		fmt.Fprintf(&doc, `<w:%s w:val="single" w:sz="4" w:space="0" w:color="auto"/>`, side)
	}
	doc.WriteString(`</w:tblBorders></w:tblPr>`)
	writeWordRow(&doc, t.Columns, true)
	for _, row := range t.Rows {
		writeWordRow(&doc, t.cells(row), false)
	}
	doc.WriteString(`</w:tbl><w:sectPr><w:pgSz w:w="16838" w:h="11906" w:orient="landscape"/></w:sectPr></w:body></w:document>`)

	zw := zip.NewWriter(w)
	parts := []struct {
		name string
		body []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(relsXML)},
		{"word/document.xml", doc.Bytes()},
	}
	for _, p := range parts {
		fw, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", p.name, err)
		}
		if _, err := fw.Write(p.body); err != nil {
			return fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to write Word file: %w", err)
	}
	return nil
}

func writeWordRow(buf *bytes.Buffer, cells []string, bold bool) {
	buf.WriteString(`<w:tr>`)
	for _, c := range cells {
		buf.WriteString(`<w:tc><w:p><w:r>`)
		if bold {
			buf.WriteString(`<w:rPr><w:b/></w:rPr>`)
		}
		buf.WriteString(`<w:t xml:space="preserve">`)
		xml.EscapeText(buf, []byte(c))
		buf.WriteString(`</w:t></w:r></w:p></w:tc>`)
	}
	buf.WriteString(`</w:tr>`)
}
