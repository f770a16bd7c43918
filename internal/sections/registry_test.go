package sections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fjod/go_cart/cart-drawer/internal/dom"
)

const page = `<html><body>
<div id="cart-icon-bubble"><div class="shopify-section"><span>2</span></div></div>
<cart-drawer><div id="CartDrawer" data-id="sections--drawer">
<div class="drawer__inner"><p class="cart-item">old</p></div>
</div></cart-drawer>
</body></html>`

func setupPage(t *testing.T) *dom.Document {
	doc, err := dom.ParseString(page)
	require.NoError(t, err)
	return doc
}

func TestForDrawerItems_UsesDrawerDataID(t *testing.T) {
	doc := setupPage(t)

	reg := ForDrawerItems(doc)

	assert.Equal(t, []string{"sections--drawer", IconBubbleSection}, reg.Keys())
}

func TestDrawerSectionID_Fallback(t *testing.T) {
	doc, err := dom.ParseString(`<div id="CartDrawer" data-id=""></div>`)
	require.NoError(t, err)

	assert.Equal(t, DrawerSection, DrawerSectionID(doc))
}

func TestKeys_Dedup(t *testing.T) {
	reg := NewRegistry(
		Descriptor{ID: "a", Section: "s"},
		Descriptor{ID: "b", Section: "s"},
		Descriptor{ID: "c", Section: "t"},
	)

	assert.Equal(t, []string{"s", "t"}, reg.Keys())
}

func TestReconcile_ReplacesSections(t *testing.T) {
	doc := setupPage(t)
	reg := ForDrawerItems(doc)

	warnings := reg.Reconcile(doc, map[string]string{
		"sections--drawer": `<div class="shopify-section"><div id="CartDrawer"><div class="drawer__inner"><p class="cart-item">3</p></div></div></div>`,
		IconBubbleSection:  `<div class="shopify-section"><span>3</span></div>`,
	}, nil)

	assert.Empty(t, warnings)
	assert.Equal(t, `<p class="cart-item">3</p>`, doc.Query(".drawer__inner").InnerHTML())
	assert.Equal(t, `<span>3</span>`, doc.Query("#cart-icon-bubble .shopify-section").InnerHTML())
}

func TestReconcile_SkipsMissingAndKeepsGoing(t *testing.T) {
	doc := setupPage(t)
	core, logs := observer.New(zapcore.WarnLevel)
	reg := NewRegistry(
		Descriptor{ID: "CartDrawer", Section: "absent", Selector: ".drawer__inner"},
		Descriptor{ID: "nowhere", Section: IconBubbleSection, Selector: ".shopify-section"},
		Descriptor{ID: "CartDrawer", Section: "drawer", Selector: ".missing"},
		Descriptor{ID: IconBubbleID, Section: IconBubbleSection, Selector: ".shopify-section"},
	)

	warnings := reg.Reconcile(doc, map[string]string{
		IconBubbleSection: `<div class="shopify-section"><span>9</span></div>`,
		"drawer":          `<div class="drawer__inner">x</div>`,
	}, zap.New(core))

	require.Len(t, warnings, 3)
	assert.Equal(t, "fragment missing from response", warnings[0].Reason)
	assert.Equal(t, "destination not found", warnings[1].Reason)
	assert.Equal(t, "selector not found in fragment", warnings[2].Reason)
	assert.Equal(t, 3, logs.FilterMessage("section skipped").Len())

	assert.Equal(t, `<p class="cart-item">old</p>`, doc.Query(".drawer__inner").InnerHTML())
	assert.Equal(t, `<span>9</span>`, doc.Query("#cart-icon-bubble .shopify-section").InnerHTML())
}

func TestForDrawer_WritesWholeDrawer(t *testing.T) {
	doc := setupPage(t)

	warnings := ForDrawer(doc).Reconcile(doc, map[string]string{
		"sections--drawer": `<div class="shopify-section"><div id="CartDrawer"><div class="drawer__inner is-empty">empty</div></div></div>`,
	}, nil)

	require.Len(t, warnings, 1)
	assert.Equal(t, IconBubbleSection, warnings[0].Section)
	assert.Equal(t, `<div class="drawer__inner is-empty">empty</div>`, doc.ByID("CartDrawer").InnerHTML())
}
