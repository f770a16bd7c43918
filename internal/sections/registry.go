// Package sections declares which page regions a cart mutation refreshes and
// patches them from the fragments the platform returns.
package sections

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-drawer/internal/dom"
	"github.com/fjod/go_cart/cart-drawer/internal/fragment"
)

const (
	DrawerSection     = "cart-drawer"
	IconBubbleSection = "cart-icon-bubble"
	DrawerID          = "CartDrawer"
	IconBubbleID      = "cart-icon-bubble"
)

// Descriptor maps one section of the platform response onto the page. The
// fragment is looked up by Section, its Selector subtree is extracted, and the
// result replaces the children of the Selector match under the ID element
// (or of the ID element itself when nothing under it matches).
type Descriptor struct {
	ID       string
	Section  string
	Selector string
}

// Warning records a section that was skipped during reconciliation.
type Warning struct {
	Descriptor
	Reason string
}

func (w Warning) Error() string {
	return fmt.Sprintf("section %q (#%s %s): %s", w.Section, w.ID, w.Selector, w.Reason)
}

type Registry struct {
	descriptors []Descriptor
}

func NewRegistry(descriptors ...Descriptor) *Registry {
	return &Registry{descriptors: descriptors}
}

func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Keys lists the section keys to request, in declaration order.
func (r *Registry) Keys() []string {
	seen := make(map[string]bool, len(r.descriptors))
	keys := make([]string, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		if seen[d.Section] {
			continue
		}
		seen[d.Section] = true
		keys = append(keys, d.Section)
	}
	return keys
}

// DrawerSectionID reads the drawer's section key from #CartDrawer[data-id].
func DrawerSectionID(doc *dom.Document) string {
	if el := doc.ByID(DrawerID); el != nil {
		if id := el.Data("id"); id != "" {
			return id
		}
	}
	return DrawerSection
}

// ForDrawerItems is the registry used by line-level mutations and the
// auxiliary controls: the drawer body and the header bubble.
func ForDrawerItems(doc *dom.Document) *Registry {
	return NewRegistry(
		Descriptor{ID: DrawerID, Section: DrawerSectionID(doc), Selector: ".drawer__inner"},
		Descriptor{ID: IconBubbleID, Section: IconBubbleSection, Selector: fragment.DefaultSelector},
	)
}

// ForDrawer is the registry used when the drawer is repopulated wholesale.
func ForDrawer(doc *dom.Document) *Registry {
	return NewRegistry(
		Descriptor{ID: DrawerID, Section: DrawerSectionID(doc), Selector: "#" + DrawerID},
		Descriptor{ID: IconBubbleID, Section: IconBubbleSection, Selector: fragment.DefaultSelector},
	)
}

// Reconcile writes every declared section into doc. A missing fragment,
// destination or selector match skips that section only; the skips are
// logged and returned.
func (r *Registry) Reconcile(doc *dom.Document, fragments map[string]string, logger *zap.Logger) []Warning {
	if logger == nil {
		logger = zap.NewNop()
	}
	var warnings []Warning
	skip := func(d Descriptor, reason string) {
		w := Warning{Descriptor: d, Reason: reason}
		logger.Warn("section skipped",
			zap.String("section", d.Section),
			zap.String("id", d.ID),
			zap.String("selector", d.Selector),
			zap.String("reason", reason),
		)
		warnings = append(warnings, w)
	}

	for _, d := range r.descriptors {
		markup := fragments[d.Section]
		if markup == "" {
			skip(d, "fragment missing from response")
			continue
		}
		host := doc.ByID(d.ID)
		if host == nil {
			skip(d, "destination not found")
			continue
		}
		target := host
		if d.Selector != "" {
			if inner := host.Query(d.Selector); inner != nil {
				target = inner
			}
		}
		inner, ok := fragment.Extract(markup, d.Selector)
		if !ok {
			skip(d, "selector not found in fragment")
			continue
		}
		if err := target.SetInnerHTML(inner); err != nil {
			skip(d, err.Error())
		}
	}
	return warnings
}
