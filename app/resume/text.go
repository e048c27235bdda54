package resume

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TextContent returns the text of an html fragment, as a browser reports textContent of an
// editable region. Markup is dropped and entities are decoded.
func TextContent(fragment string) (string, error) {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("failed to parse html fragment: %w", err)
	}
	return doc.Find("body").Text(), nil
}
