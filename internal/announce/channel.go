// Package announce writes user-facing cart status to the page: the drawer's
// live region, per-line error slots, and the transient cart error banner.
package announce

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-drawer/internal/config"
	"github.com/fjod/go_cart/cart-drawer/internal/dom"
)

const (
	LiveRegionID     = "CartDrawer-LiveRegionText"
	PageLiveRegionID = "cart-live-region-text"
	CartErrorsID     = "CartDrawer-CartErrors"
	PageCartErrorsID = "cart-errors"

	quantityPlaceholder = "[quantity]"
)

type Channel struct {
	doc     *dom.Document
	strings config.Strings
	ttl     time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	clear *time.Timer
}

// New builds a channel for doc. Cart errors are cleared after ttl; zero keeps
// them until the next write.
func New(doc *dom.Document, strs config.Strings, ttl time.Duration, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{doc: doc, strings: strs, ttl: ttl, logger: logger}
}

func (c *Channel) Strings() config.Strings {
	return c.strings
}

// QuantityMessage fills the clamp template with the quantity the platform
// accepted.
func (c *Channel) QuantityMessage(quantity int) string {
	return strings.ReplaceAll(c.strings.QuantityError, quantityPlaceholder, strconv.Itoa(quantity))
}

func (c *Channel) region() *dom.Element {
	if el := c.doc.ByID(LiveRegionID); el != nil {
		return el
	}
	return c.doc.ByID(PageLiveRegionID)
}

// Announce replaces the live region text. The empty string clears it.
func (c *Channel) Announce(text string) {
	region := c.region()
	if region == nil {
		c.logger.Debug("no live region on page", zap.String("text", text))
		return
	}
	region.SetText(text)
	region.SetAttr("aria-hidden", strconv.FormatBool(text == ""))
}

// Text returns what the live region currently says.
func (c *Channel) Text() string {
	region := c.region()
	if region == nil {
		return ""
	}
	return region.Text()
}

// LineError writes message into the error slot of a 1-based line.
func (c *Channel) LineError(line int, message string) {
	slot := c.doc.ByID(fmt.Sprintf("Line-item-error-%d", line))
	if slot == nil {
		slot = c.doc.ByID(fmt.Sprintf("CartDrawer-LineItemError-%d", line))
	}
	if slot == nil {
		return
	}
	if text := slot.Query(".cart-item__error-text"); text != nil {
		text.SetText(message)
		return
	}
	slot.SetText(message)
}

// CartError shows message in the cart error banner and schedules it to clear.
func (c *Channel) CartError(message string) {
	banner := c.doc.ByID(CartErrorsID)
	if banner == nil {
		banner = c.doc.ByID(PageCartErrorsID)
	}
	if banner == nil {
		c.logger.Warn("cart error banner missing", zap.String("message", message))
		return
	}
	banner.SetText(message)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clear != nil {
		c.clear.Stop()
		c.clear = nil
	}
	if c.ttl > 0 && message != "" {
		c.clear = time.AfterFunc(c.ttl, func() {
			if banner.Text() == message {
				banner.SetText("")
			}
		})
	}
}

// CartErrorText returns the banner text.
func (c *Channel) CartErrorText() string {
	banner := c.doc.ByID(CartErrorsID)
	if banner == nil {
		banner = c.doc.ByID(PageCartErrorsID)
	}
	if banner == nil {
		return ""
	}
	return banner.Text()
}

// Close stops a pending banner clear.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clear != nil {
		c.clear.Stop()
		c.clear = nil
	}
}
