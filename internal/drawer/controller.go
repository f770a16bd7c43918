// Package drawer owns the cart drawer's open/close lifecycle, focus
// containment and the bindings that must be re-established whenever the
// drawer markup is replaced.
package drawer

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-drawer/internal/domain"
	"github.com/fjod/go_cart/cart-drawer/internal/dom"
	"github.com/fjod/go_cart/cart-drawer/internal/sections"
)

const (
	HostSelector = "cart-drawer"
	OverlayID    = "CartDrawer-Overlay"

	listenerOpen     = "cart-drawer-open"
	listenerClose    = "cart-drawer-close"
	listenerGiftNote = "gift-note"
)

// CartFetcher reads the current cart without mutating it.
type CartFetcher interface {
	Cart(ctx context.Context) (*domain.CartSnapshot, error)
}

// Carousel is the recommendations slider. Mount is only called while the
// drawer is open so slide geometry can be measured.
type Carousel interface {
	Destroy(el *dom.Element)
	Mount(el *dom.Element, slides int) error
}

type Controller struct {
	doc      *dom.Document
	host     *dom.Element
	cart     CartFetcher
	carousel Carousel
	timeout  time.Duration
	logger   *zap.Logger

	transition chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup

	mu           sync.Mutex
	state        domain.DrawerState
	trigger      *dom.Element
	opened       chan struct{}
	closed       chan struct{}
	queuedOpen   bool
	queuedClose  bool
	rendering    bool
	initializing bool
	stopped      bool
}

type Option func(*Controller)

func WithCart(f CartFetcher) Option {
	return func(c *Controller) { c.cart = f }
}

func WithCarousel(cr Carousel) Option {
	return func(c *Controller) { c.carousel = cr }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New binds a controller to the page's cart-drawer element. transition
// bounds how long Opening and Closing wait for TransitionEnd.
func New(doc *dom.Document, transition time.Duration, opts ...Option) *Controller {
	c := &Controller{
		doc:        doc,
		host:       doc.Query(HostSelector),
		timeout:    transition,
		logger:     zap.NewNop(),
		transition: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.host == nil {
		c.logger.Warn("cart drawer element not found on page")
		return c
	}
	c.bindOverlay()
	c.bindHeaderIcon()
	return c
}

func (c *Controller) State() domain.DrawerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsEmpty reports the drawer's empty display state.
func (c *Controller) IsEmpty() bool {
	return c.host != nil && c.host.HasClass("is-empty")
}

// TransitionEnd signals that the current open or close animation finished.
func (c *Controller) TransitionEnd() {
	select {
	case c.transition <- struct{}{}:
	default:
	}
}

// Open starts opening the drawer and returns a channel closed once it is Open.
// trigger, when given, receives focus again on Close. Opening an open drawer
// resolves immediately; opening a closing drawer is applied once Closed.
func (c *Controller) Open(trigger *dom.Element) <-chan struct{} {
	if trigger != nil {
		c.mu.Lock()
		c.trigger = trigger
		c.mu.Unlock()
	}
	c.InitGiftNoteToggle()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.host == nil || c.stopped {
		return resolved()
	}
	switch c.state {
	case domain.DrawerOpen:
		return resolved()
	case domain.DrawerOpening:
		return c.opened
	case domain.DrawerClosing:
		c.queuedOpen = true
		if c.opened == nil {
			c.opened = make(chan struct{})
		}
		return c.opened
	default:
		return c.startOpening()
	}
}

// Close starts closing the drawer and returns a channel closed once it is
// Closed. A close requested while Opening is applied once Open is reached.
func (c *Controller) Close() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.host == nil || c.stopped {
		return resolved()
	}
	switch c.state {
	case domain.DrawerOpening:
		c.queuedClose = true
		if c.closed == nil {
			c.closed = make(chan struct{})
		}
		return c.closed
	case domain.DrawerOpen:
		return c.startClosing()
	case domain.DrawerClosing:
		return c.closed
	default:
		return resolved()
	}
}

// HandleKey routes a key press on target. Escape inside the drawer closes it;
// Space on the header cart icon opens it.
func (c *Controller) HandleKey(target *dom.Element, code string) {
	if c.host == nil || target == nil {
		return
	}
	switch code {
	case "Escape":
		if c.host.Contains(target) {
			c.Close()
		}
	case "Space":
		if target.ID() == sections.IconBubbleID {
			c.Open(target)
		}
	}
}

// Stop abandons pending transitions and waits for their goroutines. Waiters
// on an abandoned Open or Close are released.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	close(c.done)
	c.mu.Unlock()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened != nil {
		close(c.opened)
		c.opened = nil
	}
	if c.closed != nil {
		close(c.closed)
		c.closed = nil
	}
	c.queuedOpen, c.queuedClose = false, false
}

func (c *Controller) startOpening() chan struct{} {
	c.state = domain.DrawerOpening
	if c.opened == nil {
		c.opened = make(chan struct{})
	}
	c.host.AddClass("animate", "active")
	if body := c.doc.Body(); body != nil {
		body.AddClass("overflow-hidden")
	}
	c.await(c.finishOpening)
	return c.opened
}

func (c *Controller) startClosing() chan struct{} {
	c.state = domain.DrawerClosing
	if c.closed == nil {
		c.closed = make(chan struct{})
	}
	c.host.RemoveClass("active")
	c.doc.ReleaseFocus(c.trigger)
	if body := c.doc.Body(); body != nil {
		body.RemoveClass("overflow-hidden")
	}
	c.await(c.finishClosing)
	return c.closed
}

// await runs next once the transition signal arrives or the timeout passes.
// Callers hold c.mu.
func (c *Controller) await(next func()) {
	select {
	case <-c.transition:
	default:
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		select {
		case <-c.transition:
		case <-timer.C:
			c.logger.Debug("drawer transition timed out", zap.Duration("timeout", c.timeout))
		case <-c.done:
			return
		}
		next()
	}()
}

func (c *Controller) finishOpening() {
	c.mu.Lock()
	c.state = domain.DrawerOpen
	container := c.doc.ByID(sections.DrawerID)
	if c.host.HasClass("is-empty") {
		container = c.host.Query(".drawer__inner-empty")
	}
	focus := c.host.Query(".drawer__inner")
	if focus == nil {
		focus = c.host.Query(".drawer__close")
	}
	c.doc.TrapFocus(container, focus)

	close(c.opened)
	c.opened = nil
	rendering := c.rendering
	if c.queuedClose {
		c.queuedClose = false
		c.startClosing()
	}
	c.mu.Unlock()

	if !rendering {
		c.InitRecommendationsSwiper()
	}
}

func (c *Controller) finishClosing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = domain.DrawerClosed
	close(c.closed)
	c.closed = nil
	if c.queuedOpen {
		c.queuedOpen = false
		c.startOpening()
	}
}

func (c *Controller) bindOverlay() {
	overlay := c.host.Query("#" + OverlayID)
	if overlay == nil {
		return
	}
	c.doc.On(overlay, "click", listenerClose, func(*dom.Element) { c.Close() })
}

func (c *Controller) bindHeaderIcon() {
	icon := c.doc.ByID(sections.IconBubbleID)
	if icon == nil {
		return
	}
	icon.SetAttr("role", "button")
	icon.SetAttr("aria-haspopup", "dialog")
	c.doc.On(icon, "click", listenerOpen, func(*dom.Element) { c.Open(icon) })
}

// InitGiftNoteToggle binds the gift note toggle in the current markup.
// Binding again replaces the previous handler.
func (c *Controller) InitGiftNoteToggle() {
	if c.host == nil {
		return
	}
	toggle := c.host.Query(".gift-note-toggle")
	section := c.host.Query("#gift-note-section")
	if toggle == nil || section == nil {
		return
	}
	c.doc.On(toggle, "click", listenerGiftNote, func(*dom.Element) {
		label := toggle.Query("span")
		if v, _ := toggle.Attr("aria-expanded"); v == "true" {
			toggle.SetAttr("aria-expanded", "false")
			section.SetAttr("hidden", "")
			if label != nil {
				label.SetText("Add Gift Note")
			}
			return
		}
		toggle.SetAttr("aria-expanded", "true")
		section.RemoveAttr("hidden")
		if label != nil {
			label.SetText("Close")
		}
		if textarea := section.Query("textarea"); textarea != nil {
			textarea.Focus()
		}
	})
}

// InitRecommendationsSwiper remounts the recommendations carousel. It does
// nothing while the drawer is not open or while RenderContents is running,
// which mounts it itself once the drawer has opened.
func (c *Controller) InitRecommendationsSwiper() {
	c.mu.Lock()
	if c.state != domain.DrawerOpen || c.rendering {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.mountCarousel()
}

func (c *Controller) mountCarousel() {
	c.mu.Lock()
	if c.initializing {
		c.mu.Unlock()
		c.logger.Debug("carousel initialization already in progress")
		return
	}
	c.initializing = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.initializing = false
		c.mu.Unlock()
	}()

	if c.host == nil {
		return
	}
	swiper := c.host.Query(".recommendations-swiper")
	if swiper == nil {
		return
	}
	slides := swiper.QueryAll(".swiper-slide")
	if len(slides) == 0 {
		return
	}
	if c.carousel == nil {
		c.logger.Debug("no carousel configured", zap.Int("slides", len(slides)))
		return
	}
	c.carousel.Destroy(swiper)
	swiper.RemoveClass("swiper-initialized", "swiper-container-initialized")
	if err := c.carousel.Mount(swiper, len(slides)); err != nil {
		c.logger.Warn("carousel mount failed", zap.Error(err))
		return
	}
	swiper.AddClass("swiper-initialized")
}

// RenderContents fills the drawer from snapshot and opens it: the drawer and
// icon bubble sections are reconciled, the item count is refreshed from the
// cart, and the carousel is mounted after the drawer is open.
func (c *Controller) RenderContents(ctx context.Context, snapshot *domain.CartSnapshot) error {
	c.mu.Lock()
	if c.rendering {
		c.mu.Unlock()
		return ErrRenderInProgress
	}
	c.rendering = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.rendering = false
		c.mu.Unlock()
	}()

	if c.host == nil {
		return nil
	}
	if inner := c.host.Query(".drawer__inner"); inner != nil {
		inner.RemoveClass("is-empty")
	}
	sections.ForDrawer(c.doc).Reconcile(c.doc, snapshot.Sections, c.logger)

	if c.cart != nil {
		cart, err := c.cart.Cart(ctx)
		if err != nil {
			c.logger.Error("cart count refresh failed", zap.Error(err))
		} else {
			c.updateCartCount(cart.ItemCount)
		}
	}

	c.bindOverlay()
	c.InitGiftNoteToggle()
	select {
	case <-c.Open(nil):
	case <-ctx.Done():
		return ctx.Err()
	}
	c.mountCarousel()
	return nil
}

func (c *Controller) updateCartCount(count int) {
	el := c.host.Query("[data-cart-count]")
	if el == nil {
		el = c.doc.Query(".cart-drawer__item-count[data-cart-count]")
	}
	if el == nil {
		if inner := c.doc.ByID(sections.DrawerID); inner != nil {
			el = inner.Query("[data-cart-count]")
		}
	}
	if el != nil {
		el.SetText(strconv.Itoa(count))
	}
}

func resolved() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
