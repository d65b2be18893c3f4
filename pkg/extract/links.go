package extract

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// skippedSchemes are href prefixes that never yield a crawlable link.
var skippedSchemes = []string{"#", "javascript:", "mailto:", "tel:"}

// Links returns every hyperlink in the document, resolved against baseURL,
// restricted to HTTP(S), with fragments dropped and trailing slashes
// trimmed, deduplicated in first-seen order. A <base href> element, when
// present, overrides baseURL for resolution. Same-host filtering is left
// to the caller.
func Links(body io.Reader, baseURL string) ([]string, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	if newBaseStr := findBase(doc); newBaseStr != "" {
		if newBase, err := base.Parse(newBaseStr); err == nil {
			base = newBase
		}
	}

	seen := make(map[string]bool)
	var links []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if resolved := resolve(attr.Val, base); resolved != "" && !seen[resolved] {
					seen[resolved] = true
					links = append(links, resolved)
				}
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

func findBase(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "base" {
		for _, attr := range n.Attr {
			if attr.Key == "href" {
				return attr.Val
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findBase(c); res != "" {
			return res
		}
	}
	return ""
}

func resolve(ref string, base *url.URL) string {
	val := strings.TrimSpace(ref)
	if val == "" {
		return ""
	}
	for _, prefix := range skippedSchemes {
		if strings.HasPrefix(val, prefix) {
			return ""
		}
	}

	u, err := url.Parse(val)
	if err != nil {
		return ""
	}

	abs := base.ResolveReference(u)

	scheme := strings.ToLower(abs.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}

	abs.Fragment = ""
	return strings.TrimRight(abs.String(), "/")
}
