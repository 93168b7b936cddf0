package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfPages returns the plain text of every page. Pages without content come back empty so page
// numbering stays aligned with the document.
func pdfPages(content []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	total := r.NumPage()
	pages := make([]string, total)
	fonts := make(map[string]*pdf.Font)
	for n := 1; n <= total; n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", n, err)
		}
		// The reader starts every text object with a line break, including the first one.
		pages[n-1] = strings.TrimPrefix(text, "\n")
	}
	return pages, nil
}
