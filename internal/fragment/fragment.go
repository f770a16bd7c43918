// Package fragment extracts pre-rendered section markup returned by the cart
// platform.
package fragment

import (
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// DefaultSelector is used when a section declares no selector.
const DefaultSelector = ".shopify-section"

var compiled sync.Map // selector string -> cascadia.Selector

// Compile returns a cached compiled selector.
func Compile(selector string) (cascadia.Selector, error) {
	if v, ok := compiled.Load(selector); ok {
		return v.(cascadia.Selector), nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, err
	}
	compiled.Store(selector, sel)
	return sel, nil
}

// Extract parses markup as a full document and returns the inner HTML of the
// first element matching selector. Unparseable markup, an invalid selector
// and a missing element all report false.
func Extract(markup, selector string) (string, bool) {
	n := Find(markup, selector)
	if n == nil {
		return "", false
	}
	inner, err := InnerHTML(n)
	if err != nil {
		return "", false
	}
	return inner, true
}

// Find returns the first element of markup matching selector, or nil.
func Find(markup, selector string) *html.Node {
	if selector == "" {
		selector = DefaultSelector
	}
	sel, err := Compile(selector)
	if err != nil {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	return sel.MatchFirst(doc)
}

// InnerHTML serialises the children of n.
func InnerHTML(n *html.Node) (string, error) {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// OuterHTML serialises n itself.
func OuterHTML(n *html.Node) (string, error) {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return "", err
	}
	return b.String(), nil
}

// ParseInto parses markup as the children of context, the way assigning
// innerHTML does. The returned nodes are detached.
func ParseInto(context *html.Node, markup string) ([]*html.Node, error) {
	return html.ParseFragment(strings.NewReader(markup), context)
}
