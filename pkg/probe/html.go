package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// HTTPPage is a PageReader that fetches server-rendered HTML and walks it
// without executing scripts.
type HTTPPage struct {
	Client *http.Client
}

// TextAfterLabel implements PageReader.
func (p HTTPPage) TextAfterLabel(ctx context.Context, url, label string) (string, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", url, err)
	}
	return FindTextAfterLabel(doc, label)
}

// FindTextAfterLabel finds the first element whose trimmed text is exactly
// label and returns the text of its next element sibling.
func FindTextAfterLabel(doc *html.Node, label string) (string, error) {
	el := findElementWithText(doc, label)
	if el == nil {
		return "", fmt.Errorf("%w: %q", ErrLabelNotFound, label)
	}
	for sib := el.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.ElementNode {
			return strings.TrimSpace(textContent(sib)), nil
		}
	}
	return "", fmt.Errorf("%w: %q has no following element", ErrLabelNotFound, label)
}

// findElementWithText returns the deepest first element whose text equals
// label, so <div><b>Nix Version</b></div> yields the <b>.
func findElementWithText(n *html.Node, label string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElementWithText(c, label); found != nil {
			return found
		}
	}
	if n.Type == html.ElementNode && strings.TrimSpace(textContent(n)) == label {
		return n
	}
	return nil
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
