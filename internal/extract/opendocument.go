package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const odfContentPath = "content.xml"

// odfText matches paragraph, heading, and span elements in OpenDocument content.
var odfText = regexp.MustCompile(`<text:(?:p|h|span)[^>]*>([^<]*)</text:(?:p|h|span)>`)

func odfContent(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	data, err := readZipEntry(zr, odfContentPath)
	if err != nil {
		return "", err
	}
	if data == nil {
		return "", fmt.Errorf("%s not found", odfContentPath)
	}
	return string(data), nil
}

// splitElements returns the inner markup of each top-level <tag ...>...</tag> in s.
func splitElements(s, tag string) []string {
	open, closing := "<"+tag, "</"+tag+">"
	var parts []string
	for {
		start := strings.Index(s, open)
		if start < 0 {
			return parts
		}
		rest := s[start+len(open):]
		// Skip longer tag names sharing the prefix, e.g. draw:page-thumbnail.
		if len(rest) > 0 && rest[0] != ' ' && rest[0] != '>' && rest[0] != '/' {
			s = rest
			continue
		}
		end := strings.Index(rest, closing)
		if end < 0 {
			return append(parts, rest)
		}
		parts = append(parts, rest[:end])
		s = rest[end+len(closing):]
	}
}

func odfPagesBy(content []byte, tag string) ([]string, error) {
	doc, err := odfContent(content)
	if err != nil {
		return nil, err
	}
	elems := splitElements(doc, tag)
	pages := make([]string, len(elems))
	for i, el := range elems {
		pages[i] = joinRuns(odfText, el)
	}
	return pages, nil
}

// odpPages returns one page per presentation slide.
func odpPages(content []byte) ([]string, error) { return odfPagesBy(content, "draw:page") }

// odsPages returns one page per spreadsheet table.
func odsPages(content []byte) ([]string, error) { return odfPagesBy(content, "table:table") }

// odtPages returns the text document as a single page.
func odtPages(content []byte) ([]string, error) {
	doc, err := odfContent(content)
	if err != nil {
		return nil, err
	}
	return []string{joinRuns(odfText, doc)}, nil
}
