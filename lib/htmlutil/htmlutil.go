package htmlutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("depradar.lib.htmlutil")

// GetText collects the text content beneath a node.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getTextRecursive(child, buffer)
	}
}

// Anchor is one <a> element: its cleaned-up text, its href and the
// rest of its attributes.
type Anchor struct {
	Name  string
	Href  string
	Attrs map[string]string
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func cleanText(s string) string {
	var out strings.Builder
	for _, c := range s {
		if unicode.IsPrint(c) {
			out.WriteRune(c)
		}
	}
	cleaned := strings.TrimSpace(out.String())
	return innerWhitespace.ReplaceAllString(cleaned, " ")
}

// GetAnchors extracts every anchor in the selection.
func GetAnchors(ctx context.Context, sel *goquery.Selection) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	var anchors []Anchor
	for _, node := range sel.Nodes {
		anchor := Anchor{
			Name:  cleanText(GetText(node)),
			Attrs: make(map[string]string),
		}
		for _, attr := range node.Attr {
			if attr.Key == "href" {
				anchor.Href = attr.Val
				continue
			}
			anchor.Attrs[attr.Key] = attr.Val
		}
		anchors = append(anchors, anchor)
	}
	return anchors
}
