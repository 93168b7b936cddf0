package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// plainPages returns a text or markdown file as one page. A leading byte order mark is dropped
// and invalid UTF-8 sequences become U+FFFD.
func plainPages(content []byte) ([]string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	text := string(content)
	if !utf8.Valid(content) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}
	return []string{text}, nil
}
