package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slidePath matches ppt/slides/slideN.xml and captures N.
var slidePath = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// atTag matches <a:t>text</a:t> with any attributes.
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// pptxPages returns one page per slide in slide-number order.
func pptxPages(content []byte) ([]string, error) {
	zr, err := openZip(content)
	if err != nil {
		return nil, err
	}

	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePath.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		slides = append(slides, slide{num: num, text: joinRuns(atTag, string(data))})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	pages := make([]string, len(slides))
	for i, s := range slides {
		pages[i] = s.text
	}
	return pages, nil
}

// joinRuns concatenates the first capture group of every match of re in s with single spaces.
func joinRuns(re *regexp.Regexp, s string) string {
	parts := re.FindAllStringSubmatch(s, -1)
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p[1]); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, " ")
}
