package dom

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/fjod/go_cart/cart-drawer/internal/fragment"
)

// Element is a handle on a node of a Document. Handles stay valid after the
// node is detached; Connected reports whether it is still on the page.
type Element struct {
	doc  *Document
	node *html.Node
}

func (e *Element) Node() *html.Node {
	return e.node
}

func (e *Element) Document() *Document {
	return e.doc
}

// Is reports whether both handles point at the same node.
func (e *Element) Is(other *Element) bool {
	if e == nil || other == nil {
		return e == nil && other == nil
	}
	return e.node == other.node
}

func (e *Element) Tag() string {
	return e.node.Data
}

func (e *Element) ID() string {
	v, _ := e.Attr("id")
	return v
}

func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return attr(e.node, name)
}

func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// Data reads a data-* attribute.
func (e *Element) Data(name string) string {
	v, _ := e.Attr("data-" + name)
	return v
}

func (e *Element) SetAttr(name, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setAttr(e.node, name, value)
}

func (e *Element) RemoveAttr(name string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	removeAttr(e.node, name)
}

func (e *Element) Disabled() bool {
	return e.HasAttr("disabled")
}

func (e *Element) Disable() {
	e.SetAttr("disabled", "")
}

func (e *Element) Enable() {
	e.RemoveAttr("disabled")
}

func (e *Element) HasClass(class string) bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for _, c := range classes(e.node) {
		if c == class {
			return true
		}
	}
	return false
}

func (e *Element) AddClass(names ...string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	current := classes(e.node)
	for _, name := range names {
		if !hasString(current, name) {
			current = append(current, name)
		}
	}
	setAttr(e.node, "class", strings.Join(current, " "))
}

func (e *Element) RemoveClass(names ...string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	current := classes(e.node)
	kept := current[:0]
	for _, c := range current {
		if !hasString(names, c) {
			kept = append(kept, c)
		}
	}
	setAttr(e.node, "class", strings.Join(kept, " "))
}

// ToggleClass adds class when on is true and removes it otherwise.
func (e *Element) ToggleClass(class string, on bool) {
	if on {
		e.AddClass(class)
		return
	}
	e.RemoveClass(class)
}

func (e *Element) Query(selector string) *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.doc.wrap(queryFirst(e.node, selector))
}

func (e *Element) QueryAll(selector string) []*Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.doc.wrapAll(queryAll(e.node, selector))
}

// Matches reports whether the element itself matches selector.
func (e *Element) Matches(selector string) bool {
	sel := compile(selector)
	if sel == nil {
		return false
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return sel.Match(e.node)
}

// Closest returns the nearest ancestor, starting with e, matching selector.
func (e *Element) Closest(selector string) *Element {
	sel := compile(selector)
	if sel == nil {
		return nil
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for n := e.node; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && sel.Match(n) {
			return e.doc.wrap(n)
		}
	}
	return nil
}

func (e *Element) Parent() *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if e.node.Parent == nil || e.node.Parent.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(e.node.Parent)
}

// NextSibling returns the next element sibling, or nil.
func (e *Element) NextSibling() *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for n := e.node.NextSibling; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode {
			return e.doc.wrap(n)
		}
	}
	return nil
}

// Contains reports whether other is e or one of its descendants.
func (e *Element) Contains(other *Element) bool {
	if other == nil {
		return false
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return contains(e.node, other.node)
}

// Connected reports whether the element is still attached to the document.
func (e *Element) Connected() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return connected(e.doc.root, e.node)
}

func (e *Element) InnerHTML() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	s, _ := fragment.InnerHTML(e.node)
	return s
}

// SetInnerHTML replaces the children of e with markup parsed in e's context.
// State held for the replaced nodes (values, listeners, focus) is dropped.
func (e *Element) SetInnerHTML(markup string) error {
	nodes, err := fragment.ParseInto(e.node, markup)
	if err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.clearChildren()
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
	return nil
}

// AppendHTML parses markup in e's context and appends it after e's children.
func (e *Element) AppendHTML(markup string) error {
	nodes, err := fragment.ParseInto(e.node, markup)
	if err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
	return nil
}

func (e *Element) Text() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var b strings.Builder
	collectText(&b, e.node)
	return b.String()
}

func (e *Element) SetText(text string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.clearChildren()
	if text != "" {
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

// Value returns the live value of a form control: the last value set on it,
// or its value attribute.
func (e *Element) Value() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if v, ok := e.doc.values[e.node]; ok {
		return v
	}
	v, _ := attr(e.node, "value")
	return v
}

func (e *Element) SetValue(v string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.doc.values[e.node] = v
}

// ResetValue drops the live value so the control shows its value attribute
// again.
func (e *Element) ResetValue() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	delete(e.doc.values, e.node)
}

// Remove detaches e from its parent.
func (e *Element) Remove() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.node.Parent == nil {
		return
	}
	e.node.Parent.RemoveChild(e.node)
	e.doc.forget(e.node)
}

// Focus moves focus to e unless a trap is active that does not contain it.
func (e *Element) Focus() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !connected(e.doc.root, e.node) {
		return false
	}
	if e.doc.trap != nil && !contains(e.doc.trap, e.node) {
		return false
	}
	e.doc.focused = e.node
	return true
}

// Blur drops focus if e holds it.
func (e *Element) Blur() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.doc.focused == e.node {
		e.doc.focused = nil
	}
}

// clearChildren detaches every child. Callers hold the write lock.
func (e *Element) clearChildren() {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		e.doc.forget(c)
		c = next
	}
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

func classes(n *html.Node) []string {
	v, _ := attr(n, "class")
	return strings.Fields(v)
}

func hasString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}
