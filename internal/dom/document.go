// Package dom is the live page model the cart engine reads and patches. It
// wraps an x/net/html tree with the handful of browser behaviours the drawer
// relies on: id and selector lookup, innerHTML writes, input values that can
// diverge from their value attribute, focus with an optional trap, and named
// event listeners that replace rather than stack.
package dom

import (
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/fjod/go_cart/cart-drawer/internal/fragment"
)

// Listener handles an event dispatched at target.
type Listener func(target *Element)

type Document struct {
	mu        sync.RWMutex
	root      *html.Node
	values    map[*html.Node]string
	listeners map[*html.Node]map[string]Listener
	focused   *html.Node
	trap      *html.Node
}

func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{
		root:      root,
		values:    make(map[*html.Node]string),
		listeners: make(map[*html.Node]map[string]Listener),
	}, nil
}

func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// HTML serialises the whole document.
func (d *Document) HTML() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, _ := fragment.OuterHTML(d.root)
	return s
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	return &Element{doc: d, node: n}
}

func (d *Document) Body() *Element {
	return d.Query("body")
}

// ByID returns the element with the given id attribute, or nil.
func (d *Document) ByID(id string) *Element {
	if id == "" {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wrap(findByID(d.root, id))
}

// Query returns the first element matching selector, or nil. Invalid
// selectors match nothing.
func (d *Document) Query(selector string) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wrap(queryFirst(d.root, selector))
}

func (d *Document) QueryAll(selector string) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wrapAll(queryAll(d.root, selector))
}

func (d *Document) wrapAll(nodes []*html.Node) []*Element {
	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrap(n))
	}
	return out
}

// Focused returns the element holding focus, or nil.
func (d *Document) Focused() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wrap(d.focused)
}

// FocusTrap returns the container focus is currently confined to, or nil.
func (d *Document) FocusTrap() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wrap(d.trap)
}

// TrapFocus confines focus to container and focuses target, or the container
// itself when target is nil or outside it.
func (d *Document) TrapFocus(container, target *Element) {
	if container == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trap = container.node
	if target != nil && contains(container.node, target.node) {
		d.focused = target.node
		return
	}
	d.focused = container.node
}

// ReleaseFocus lifts the trap and moves focus to restore when given.
func (d *Document) ReleaseFocus(restore *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trap = nil
	if restore != nil && connected(d.root, restore.node) {
		d.focused = restore.node
	}
}

// On binds fn for event on el under name. Binding the same name again
// replaces the previous listener.
func (d *Document) On(el *Element, event, name string, fn Listener) {
	if el == nil || fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	bound := d.listeners[el.node]
	if bound == nil {
		bound = make(map[string]Listener)
		d.listeners[el.node] = bound
	}
	bound[event+"/"+name] = fn
}

func (d *Document) Off(el *Element, event, name string) {
	if el == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.listeners[el.node], event+"/"+name)
}

// ListenerCount reports how many listeners are bound on el.
func (d *Document) ListenerCount(el *Element) int {
	if el == nil {
		return 0
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[el.node])
}

// Dispatch fires event at target and lets it bubble to the root. Listeners
// run outside the document lock so they may mutate the page.
func (d *Document) Dispatch(target *Element, event string) {
	if target == nil {
		return
	}
	d.mu.RLock()
	var chain []Listener
	prefix := event + "/"
	for n := target.node; n != nil; n = n.Parent {
		bound := d.listeners[n]
		keys := make([]string, 0, len(bound))
		for k := range bound {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			chain = append(chain, bound[k])
		}
	}
	d.mu.RUnlock()

	for _, fn := range chain {
		fn(target)
	}
}

// forget drops per-node state for a subtree leaving the document. Callers
// hold the write lock.
func (d *Document) forget(n *html.Node) {
	delete(d.values, n)
	delete(d.listeners, n)
	if d.focused == n {
		d.focused = nil
	}
	if d.trap == n {
		d.trap = nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.forget(c)
	}
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Namespace == "" && a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := findByID(c, id); m != nil {
			return m
		}
	}
	return nil
}

func compile(selector string) cascadia.Selector {
	sel, err := fragment.Compile(selector)
	if err != nil {
		return nil
	}
	return sel
}

// queryFirst searches the descendants of n, never n itself.
func queryFirst(n *html.Node, selector string) *html.Node {
	sel := compile(selector)
	if sel == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := sel.MatchFirst(c); m != nil {
			return m
		}
	}
	return nil
}

func queryAll(n *html.Node, selector string) []*html.Node {
	sel := compile(selector)
	if sel == nil {
		return nil
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, sel.MatchAll(c)...)
	}
	return out
}

func contains(ancestor, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}

func connected(root, n *html.Node) bool {
	return contains(root, n)
}
