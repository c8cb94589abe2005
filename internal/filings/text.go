package filings

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractText returns the visible text of an HTML document with whitespace
// collapsed.
func ExtractText(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, head").Remove()

	var sb strings.Builder
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(s.Text())
		sb.WriteByte(' ')
	})
	if sb.Len() == 0 {
		sb.WriteString(doc.Text())
	}
	return strings.Join(strings.Fields(sb.String()), " "), nil
}
