package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fjod/go_cart/cart-drawer/internal/engine"
)

// writeReport prints what the shopper sees: the drawer state, each line with
// its quantity and error, the live region and the header count.
func writeReport(w io.Writer, e *engine.Engine, withHTML bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "drawer: %s\n", e.Drawer.State())

	items := e.Doc.QueryAll("#CartDrawer .cart-item")
	if len(items) == 0 {
		b.WriteString("cart is empty\n")
	}
	for i, item := range items {
		name := ""
		if el := item.Query(".cart-item__name"); el != nil {
			name = strings.TrimSpace(el.Text())
		}
		qty := "-"
		if input := item.Query(`input[name="updates[]"]`); input != nil {
			qty = input.Value()
		}
		fmt.Fprintf(&b, "  %d. %s x%s", i+1, name, qty)
		if slot := item.Query(".cart-item__error-text"); slot != nil {
			if msg := strings.TrimSpace(slot.Text()); msg != "" {
				fmt.Fprintf(&b, "  (%s)", msg)
			}
		}
		b.WriteString("\n")
	}

	if text := e.Announce.Text(); text != "" {
		fmt.Fprintf(&b, "announced: %s\n", text)
	}
	if text := e.Announce.CartErrorText(); text != "" {
		fmt.Fprintf(&b, "cart error: %s\n", text)
	}
	fmt.Fprintf(&b, "header count: %d\n", e.Header.PageCount())
	fmt.Fprintf(&b, "session: %s\n", e.Gateway.Session())

	if withHTML {
		if drawer := e.Doc.ByID("CartDrawer"); drawer != nil {
			b.WriteString(drawer.InnerHTML())
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
