// Package fixtures builds minimal binary documents for tests: one text run per page, slide, or sheet.
package fixtures

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// MinimalPDF returns a valid PDF with one page per entry in pages, each page showing its text
// with a single Tj operator in the standard Helvetica font. No pages yields a zero-page document.
// Text must be ASCII.
func MinimalPDF(pages ...string) []byte {
	var objects []string
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", escapePDFString(text))
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefOffset)
	return buf.Bytes()
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// MinimalDocx returns a .docx containing a single paragraph.
func MinimalDocx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

// MinimalPptx returns a .pptx with one slide per entry in slides.
func MinimalPptx(slides ...string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for i, text := range slides {
		fw, _ := w.Create(fmt.Sprintf("ppt/slides/slide%d.xml", i+1))
		_, _ = fw.Write([]byte(`<p:sld xmlns:p="a" xmlns:a="b"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`))
	}
	_ = w.Close()
	return buf.Bytes()
}

// MinimalXlsx returns a .xlsx with one sheet per entry in sheets, each holding its text in A1.
func MinimalXlsx(sheets ...string) []byte {
	f := excelize.NewFile()
	defer f.Close()
	for i, text := range sheets {
		name := fmt.Sprintf("Sheet%d", i+1)
		if i > 0 {
			_, _ = f.NewSheet(name)
		}
		_ = f.SetCellValue(name, "A1", text)
	}
	var buf bytes.Buffer
	_, _ = f.WriteTo(&buf)
	return buf.Bytes()
}

// MinimalODP returns an .odp with one page per entry in pages.
func MinimalODP(pages ...string) []byte {
	var body strings.Builder
	for _, text := range pages {
		body.WriteString(`<draw:page><draw:text-box><text:p>` + text + `</text:p></draw:text-box></draw:page>`)
	}
	return odfPackage(body.String())
}

// MinimalODS returns an .ods with one table per entry in sheets.
func MinimalODS(sheets ...string) []byte {
	var body strings.Builder
	for _, text := range sheets {
		body.WriteString(`<table:table><table:table-row><table:table-cell><text:p>` + text + `</text:p></table:table-cell></table:table-row></table:table>`)
	}
	return odfPackage(body.String())
}

func odfPackage(body string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("content.xml")
	_, _ = fw.Write([]byte(`<office:document><office:body>` + body + `</office:body></office:document>`))
	_ = w.Close()
	return buf.Bytes()
}

// Formats lists the extensions Build can produce.
var Formats = []string{".pdf", ".docx", ".pptx", ".xlsx", ".odp", ".ods", ".txt", ".md"}

// Build returns a single-page document of the format named by ext holding text.
// Unknown extensions yield the raw text.
func Build(ext, text string) []byte {
	switch ext {
	case ".pdf":
		return MinimalPDF(text)
	case ".docx":
		return MinimalDocx(text)
	case ".pptx":
		return MinimalPptx(text)
	case ".xlsx":
		return MinimalXlsx(text)
	case ".odp":
		return MinimalODP(text)
	case ".ods":
		return MinimalODS(text)
	default:
		return []byte(text)
	}
}
