package extract

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Segment is one unit of visible text tied to a single HTML element.
// Offset is the position of the text within the page's reconstructed
// content, modelled as every segment's text joined by single spaces in
// document order.
type Segment struct {
	Text   string
	Tag    string
	Offset int
}

// allowedTags are the elements that emit a text segment. Only the outermost
// allowed element along any branch emits; nested allowed elements contribute
// their text to that ancestor's segment instead.
var allowedTags = map[string]bool{
	// Block-level content
	"p": true, "pre": true, "blockquote": true,
	// Headings
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	// Lists
	"li": true, "dt": true, "dd": true,
	// Table cells
	"td": true, "th": true, "caption": true,
	// Generic containers that hold leaf-level text directly
	"article": true, "section": true, "main": true,
	// Inline - collected when they are the outermost allowed parent
	"a": true, "span": true, "strong": true, "em": true, "b": true,
	"i": true, "u": true, "label": true, "div": true,
	// Misc
	"q": true, "figcaption": true,
}

// excludedContainers are structural elements whose entire subtree is
// invisible to segmentation, even when it contains allowed tags.
var excludedContainers = map[string]bool{
	"nav": true, "header": true, "footer": true, "aside": true,
	"script": true, "style": true, "noscript": true, "template": true,
}

// Segments parses an HTML document and returns one Segment per outermost
// allowed element, in document order. Elements whose text is empty after
// whitespace collapsing are dropped and consume no offset space.
func Segments(body io.Reader) ([]Segment, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	var segments []Segment
	offset := 0

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if excludedContainers[n.Data] {
				return
			}
			if allowedTags[n.Data] {
				text := visibleText(n)
				if text != "" {
					segments = append(segments, Segment{
						Text:   text,
						Tag:    n.Data,
						Offset: offset,
					})
					offset += len(text) + 1 // +1 for the inter-segment space
				}
				// Descendants are part of this segment already.
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return segments, nil
}

// visibleText collects the text nodes under n, skipping excluded subtrees,
// with whitespace runs collapsed to single spaces.
func visibleText(n *html.Node) string {
	var sb strings.Builder
	collectText(n, &sb)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && excludedContainers[n.Data] {
		return
	}

	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
