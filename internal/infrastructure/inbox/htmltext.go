package inbox

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceExpr = regexp.MustCompile(`[ \t]+`)

// HTMLToText strips markup from an HTML e-mail body, drops style and script
// blocks, and collapses the remaining text into readable lines. On parse
// failure the input is returned unchanged; a lightly garbled classification
// input beats losing the message.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("style, script, head").Remove()
	doc.Find("br, p, div, li, tr, h1, h2, h3, h4").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	text := doc.Text()
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(whitespaceExpr.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
