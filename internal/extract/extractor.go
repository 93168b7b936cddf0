// Package extract turns binary documents into plain text, page by page.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ExtractError reports a document that could not be parsed. It is never worth retrying.
type ExtractError struct {
	Name   string
	Format string
	Err    error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Name, e.Format, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// pageReader returns the text of each page of a document in order.
type pageReader func(content []byte) ([]string, error)

var readers = map[string]pageReader{
	".pdf":  pdfPages,
	".docx": docxPages,
	".pptx": pptxPages,
	".xlsx": xlsxPages,
	".odt":  odtPages,
	".odp":  odpPages,
	".ods":  odsPages,
	".txt":  plainPages,
	".md":   plainPages,
	".rst":  plainPages,
}

// Extractor extracts plain text from document bytes.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text of content, selecting the format from the extension of name.
// Names without a known extension are read as PDF. Pages are joined with a single "\n";
// a document with no pages yields "".
func (e *Extractor) Extract(content []byte, name string) (text string, err error) {
	format := Format(name)
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractError{Name: name, Format: format, Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	pages, err := readers[format](content)
	if err != nil {
		return "", &ExtractError{Name: name, Format: format, Err: err}
	}
	return strings.Join(pages, "\n"), nil
}

// Format returns the reader extension used for name, ".pdf" when unknown.
func Format(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := readers[ext]; ok {
		return ext
	}
	return ".pdf"
}

// Supported reports whether name has an extension with a dedicated reader.
func Supported(name string) bool {
	_, ok := readers[strings.ToLower(filepath.Ext(name))]
	return ok
}
