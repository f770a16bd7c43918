package announce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_cart/cart-drawer/internal/config"
	"github.com/fjod/go_cart/cart-drawer/internal/dom"
)

const page = `<html><body>
<p id="CartDrawer-LiveRegionText" class="visually-hidden" role="status"></p>
<div id="CartDrawer-CartErrors" role="alert"></div>
<div id="CartDrawer-LineItemError-2"><span class="cart-item__error-text"></span></div>
</body></html>`

func setupChannel(t *testing.T, ttl time.Duration) (*Channel, *dom.Document) {
	doc, err := dom.ParseString(page)
	require.NoError(t, err)
	ch := New(doc, config.Default().Engine.Strings, ttl, nil)
	t.Cleanup(ch.Close)
	return ch, doc
}

func TestAnnounce_WritesAndClears(t *testing.T) {
	ch, doc := setupChannel(t, 0)

	ch.Announce("Only 2 left")
	assert.Equal(t, "Only 2 left", ch.Text())
	hidden, _ := doc.ByID(LiveRegionID).Attr("aria-hidden")
	assert.Equal(t, "false", hidden)

	ch.Announce("")
	assert.Empty(t, ch.Text())
}

func TestQuantityMessage(t *testing.T) {
	ch, _ := setupChannel(t, 0)

	assert.Equal(t, "You can only add 4 of this item to your cart.", ch.QuantityMessage(4))
}

func TestLineError(t *testing.T) {
	ch, doc := setupChannel(t, 0)

	ch.LineError(2, "Not enough stock")
	ch.LineError(7, "ignored")

	assert.Equal(t, "Not enough stock", doc.Query(".cart-item__error-text").Text())
}

func TestCartError_ClearsAfterTTL(t *testing.T) {
	ch, _ := setupChannel(t, 20*time.Millisecond)

	ch.CartError("This product is currently unavailable.")
	assert.Equal(t, "This product is currently unavailable.", ch.CartErrorText())

	assert.Eventually(t, func() bool { return ch.CartErrorText() == "" }, time.Second, 5*time.Millisecond)
}

func TestAnnounce_NoRegionIsTolerated(t *testing.T) {
	doc, err := dom.ParseString(`<p>nothing here</p>`)
	require.NoError(t, err)
	ch := New(doc, config.Strings{}, 0, nil)

	ch.Announce("x")
	ch.CartError("y")
	ch.LineError(1, "z")

	assert.Empty(t, ch.Text())
}
