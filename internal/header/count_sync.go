// Package header keeps the site header's cart indicator in step with the
// cart after every mutation.
package header

import (
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-drawer/internal/dom"
	"github.com/fjod/go_cart/cart-drawer/internal/gateway"
)

const (
	IndicatorSelector = ".cm-header__cart-indicator"
	CountClass        = "cm-header__cart-count"
	HasItemsClass     = "cm-header__cart-indicator--has-items"
)

// CountSync mirrors the cart item count into the header indicator.
type CountSync struct {
	doc    *dom.Document
	bus    *gateway.Bus
	logger *zap.Logger

	mu          sync.Mutex
	unsubscribe func()
}

func NewCountSync(doc *dom.Document, bus *gateway.Bus, logger *zap.Logger) *CountSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CountSync{doc: doc, bus: bus, logger: logger}
}

// Start syncs from the page once and then follows gateway events.
func (s *CountSync) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		return
	}
	s.Sync(s.PageCount())
	s.unsubscribe = s.bus.Subscribe(s.handle)
}

func (s *CountSync) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *CountSync) handle(e gateway.Event) {
	if e.Err != nil || e.Snapshot == nil {
		return
	}
	s.Sync(e.Snapshot.ItemCount)
}

// PageCount reads the count currently rendered by the cart icon bubble, or by
// the drawer when the bubble has none.
func (s *CountSync) PageCount() int {
	if bubble := s.doc.Query(`#cart-icon-bubble .cart-count-bubble span[aria-hidden="true"]`); bubble != nil {
		n, _ := strconv.Atoi(strings.TrimSpace(bubble.Text()))
		return n
	}
	if el := s.doc.Query("[data-cart-count]"); el != nil {
		n, _ := strconv.Atoi(strings.TrimSpace(el.Text()))
		return n
	}
	return 0
}

// Sync writes count into the header indicator.
func (s *CountSync) Sync(count int) {
	indicator := s.doc.Query(IndicatorSelector)
	if indicator == nil {
		return
	}
	counter := indicator.Query("." + CountClass)
	if count <= 0 {
		indicator.RemoveClass(HasItemsClass)
		if counter != nil {
			counter.Remove()
		}
		return
	}
	indicator.AddClass(HasItemsClass)
	if counter != nil {
		counter.SetText(strconv.Itoa(count))
		return
	}
	markup := `<span class="` + CountClass + `">` + strconv.Itoa(count) + `</span>`
	if err := indicator.AppendHTML(markup); err != nil {
		s.logger.Warn("header count not written", zap.Error(err))
	}
}
