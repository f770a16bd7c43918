package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_cart/cart-drawer/internal/announce"
	"github.com/fjod/go_cart/cart-drawer/internal/config"
	"github.com/fjod/go_cart/cart-drawer/internal/domain"
	"github.com/fjod/go_cart/cart-drawer/internal/dom"
	"github.com/fjod/go_cart/cart-drawer/internal/sections"
)

type line struct {
	key      string
	quantity int
	price    int64
	sample   bool
}

func itemMarkup(n int, l line) string {
	return fmt.Sprintf(`<div class="cart-item" id="CartDrawer-Item-%[1]d">`+
		`<a class="cart-item__name" href="/products/%[2]s">%[2]s</a>`+
		`<input id="Drawer-quantity-%[1]d" name="updates[]" value="%[3]d">`+
		`<button name="minus" type="button">-</button>`+
		`<button name="plus" type="button">+</button>`+
		`<cart-remove-button id="CartDrawer-Remove-%[1]d" data-index="%[1]d"><button type="button" name="remove">Remove</button></cart-remove-button>`+
		`<div class="loading__spinner hidden"></div>`+
		`<div id="CartDrawer-LineItemError-%[1]d"><span class="cart-item__error-text"></span></div>`+
		`</div>`, n, l.key, l.quantity)
}

func innerMarkup(lines []line) string {
	var b strings.Builder
	if len(lines) == 0 {
		b.WriteString(`<div class="drawer__inner-empty"><a href="/collections/all">Continue shopping</a></div>`)
	}
	b.WriteString(`<cart-drawer-items><div id="CartDrawer-CartItems">`)
	for i, l := range lines {
		b.WriteString(itemMarkup(i+1, l))
	}
	b.WriteString(`</div></cart-drawer-items>`)
	return b.String()
}

func pageMarkup(lines []line, threshold string) string {
	attr := ""
	if threshold != "" {
		attr = fmt.Sprintf(` data-threshold="%s"`, threshold)
	}
	return `<html><body>` +
		`<div id="cart-icon-bubble"><div class="shopify-section"><span class="count">` + fmt.Sprint(len(lines)) + `</span></div></div>` +
		`<cart-drawer class="drawer"` + attr + `><div id="CartDrawer" data-id="cart-drawer">` +
		`<div class="drawer__inner">` + innerMarkup(lines) + `</div>` +
		`</div>` +
		`<p id="CartDrawer-LiveRegionText" role="status"></p>` +
		`<div id="CartDrawer-CartErrors"></div>` +
		`</cart-drawer></body></html>`
}

// snapshotOf builds the platform response for lines, with both drawer
// sections rendered.
func snapshotOf(lines []line) *domain.CartSnapshot {
	s := &domain.CartSnapshot{Sections: map[string]string{
		sections.DrawerSection: `<div class="shopify-section"><div id="CartDrawer"><div class="drawer__inner">` +
			innerMarkup(lines) + `</div></div></div>`,
		sections.IconBubbleSection: `<div class="shopify-section"><span class="count">` +
			fmt.Sprint(len(lines)) + `</span></div>`,
	}}
	for _, l := range lines {
		item := domain.CartLine{Key: l.key, Quantity: l.quantity, Title: l.key, Price: l.price, LinePrice: l.price * int64(l.quantity)}
		if l.sample {
			item.ProductType = domain.SampleProductType
		}
		s.Items = append(s.Items, item)
		s.ItemCount += l.quantity
		s.TotalPrice += item.LinePrice
	}
	return s
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []domain.MutationRequest
	respond  func(req domain.MutationRequest) (*domain.CartSnapshot, error)
}

func (f *fakeGateway) Submit(_ context.Context, req domain.MutationRequest) (*domain.CartSnapshot, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()
	return respond(req)
}

func (f *fakeGateway) Requests() []domain.MutationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.MutationRequest(nil), f.requests...)
}

func (f *fakeGateway) bulk() []domain.MutationRequest {
	var out []domain.MutationRequest
	for _, r := range f.Requests() {
		if r.Kind == domain.MutationBulkUpdate {
			out = append(out, r)
		}
	}
	return out
}

type harness struct {
	doc     *dom.Document
	gateway *fakeGateway
	channel *announce.Channel
	orch    *Orchestrator
	strings config.Strings
}

func setupHarness(t *testing.T, lines []line, opts ...Option) *harness {
	t.Helper()
	return newHarness(t, pageMarkup(lines, ""), lines, opts...)
}

func newHarness(t *testing.T, page string, lines []line, opts ...Option) *harness {
	t.Helper()
	h, err := buildHarness(page, lines, opts...)
	require.NoError(t, err)
	t.Cleanup(h.channel.Close)
	return h
}

func buildHarness(page string, lines []line, opts ...Option) (*harness, error) {
	doc, err := dom.ParseString(page)
	if err != nil {
		return nil, err
	}

	strs := config.Default().Engine.Strings
	ch := announce.New(doc, strs, 0, nil)

	gw := &fakeGateway{respond: func(domain.MutationRequest) (*domain.CartSnapshot, error) {
		return snapshotOf(lines), nil
	}}
	opts = append([]Option{WithThreshold(decimal.Zero)}, opts...)
	return &harness{
		doc:     doc,
		gateway: gw,
		channel: ch,
		orch:    New(doc, gw, ch, opts...),
		strings: strs,
	}, nil
}

func (h *harness) lineErrorText(n int) string {
	el := h.doc.Query(fmt.Sprintf("#CartDrawer-LineItemError-%d .cart-item__error-text", n))
	if el == nil {
		return ""
	}
	return el.Text()
}

func (h *harness) quantity(n int) string {
	el := h.doc.ByID(fmt.Sprintf("Drawer-quantity-%d", n))
	if el == nil {
		return ""
	}
	return el.Value()
}
