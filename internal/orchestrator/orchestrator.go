// Package orchestrator runs line-level cart mutations for one drawer: it
// allows a single in-flight request per line, removes free samples when the
// cart falls below the eligibility threshold, patches the page from the
// returned sections and publishes the outcome to the announcement channel.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-drawer/internal/announce"
	"github.com/fjod/go_cart/cart-drawer/internal/domain"
	"github.com/fjod/go_cart/cart-drawer/internal/dom"
	"github.com/fjod/go_cart/cart-drawer/internal/gateway"
	"github.com/fjod/go_cart/cart-drawer/internal/sections"
)

// Gateway submits cart mutations.
type Gateway interface {
	Submit(ctx context.Context, req domain.MutationRequest) (*domain.CartSnapshot, error)
}

// Change is a user-requested quantity for a 1-based line. Name is the form
// name of the control that triggered it, used to restore focus.
type Change struct {
	Line     int
	Quantity int
	Name     string
}

type Orchestrator struct {
	doc       *dom.Document
	gateway   Gateway
	announce  *announce.Channel
	registry  *sections.Registry
	hooks     *sections.Hooks
	threshold decimal.Decimal
	logger    *zap.Logger

	mu    sync.Mutex
	lines map[int]domain.LineState
}

type Option func(*Orchestrator)

func WithRegistry(r *sections.Registry) Option {
	return func(o *Orchestrator) { o.registry = r }
}

func WithHooks(h *sections.Hooks) Option {
	return func(o *Orchestrator) { o.hooks = h }
}

// WithThreshold sets the sample eligibility threshold. A data-threshold
// attribute on the cart-drawer element takes precedence.
func WithThreshold(t decimal.Decimal) Option {
	return func(o *Orchestrator) { o.threshold = t }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func New(doc *dom.Document, gw Gateway, ch *announce.Channel, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		doc:      doc,
		gateway:  gw,
		announce: ch,
		logger:   zap.NewNop(),
		lines:    make(map[int]domain.LineState),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = sections.ForDrawerItems(doc)
	}
	if o.hooks == nil {
		o.hooks = sections.NewHooks()
	}
	return o
}

func (o *Orchestrator) Hooks() *sections.Hooks {
	return o.hooks
}

// State reports where a line is in its update cycle.
func (o *Orchestrator) State(line int) domain.LineState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lines[line]
}

func (o *Orchestrator) acquire(line int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lines[line] != domain.LineIdle {
		return false
	}
	o.lines[line] = domain.LinePending
	return true
}

func (o *Orchestrator) setState(line int, s domain.LineState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines[line] = s
}

// release returns the line to Idle and reports whether other lines are
// still busy.
func (o *Orchestrator) release(line int) (othersBusy bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.lines, line)
	return len(o.lines) > 0
}

// ChangeQuantity sets a line's quantity. A line that already has a request in
// flight rejects the call with ErrLineBusy before anything is sent. Failures
// are announced on the page and returned; controls are re-enabled on every
// path.
func (o *Orchestrator) ChangeQuantity(ctx context.Context, c Change) error {
	if !o.acquire(c.Line) {
		o.logger.Debug("line busy, change ignored", zap.Int("line", c.Line), zap.Int("quantity", c.Quantity))
		return ErrLineBusy
	}
	log := o.logger.With(zap.Int("line", c.Line), zap.Int("quantity", c.Quantity))
	o.enableLoading(c.Line)
	defer func() {
		o.disableLoading(c.Line, o.release(c.Line))
	}()

	input := o.quantityInput(c.Line)
	if input != nil {
		input.SetValue(strconv.Itoa(c.Quantity))
	}

	req := domain.ChangeLine(c.Line, c.Quantity)
	req.Sections = o.registry.Keys()
	snapshot, err := o.gateway.Submit(ctx, req)
	if err == nil && snapshot.HasErrors() {
		err = &gateway.Error{Kind: domain.ValidationError, Message: snapshot.ErrorMessage()}
	}
	if err != nil {
		log.Info("quantity change failed", zap.Error(err))
		o.fail(c.Line, input, err)
		return err
	}

	snapshot = o.enforceSampleThreshold(ctx, snapshot, log)

	o.setState(c.Line, domain.LineReconciling)
	o.reconcile(c, snapshot)
	return nil
}

// Remove drops a line from the cart.
func (o *Orchestrator) Remove(ctx context.Context, line int) error {
	return o.ChangeQuantity(ctx, Change{Line: line, Quantity: 0})
}

// Step moves a line's quantity by delta from what its input shows. Stepping
// down from one removes the line.
func (o *Orchestrator) Step(ctx context.Context, line, delta int, name string) error {
	input := o.quantityInput(line)
	if input == nil {
		return fmt.Errorf("line %d has no quantity input", line)
	}
	current, err := strconv.Atoi(input.Value())
	if err != nil {
		return fmt.Errorf("line %d quantity %q: %w", line, input.Value(), err)
	}
	next := current + delta
	if delta < 0 && current <= 1 {
		next = 0
	}
	if next < 0 {
		next = 0
	}
	return o.ChangeQuantity(ctx, Change{Line: line, Quantity: next, Name: name})
}

// enforceSampleThreshold removes every free sample when the cart total falls
// below the threshold. The removal is best effort: if it fails the original
// snapshot is used.
func (o *Orchestrator) enforceSampleThreshold(ctx context.Context, snapshot *domain.CartSnapshot, log *zap.Logger) *domain.CartSnapshot {
	threshold := o.currentThreshold()
	if !threshold.IsPositive() || !decimal.NewFromInt(snapshot.TotalPrice).LessThan(threshold) {
		return snapshot
	}
	samples := snapshot.Samples()
	if len(samples) == 0 {
		return snapshot
	}

	log.Info("cart below sample threshold, removing samples",
		zap.Int64("total_price", snapshot.TotalPrice),
		zap.String("threshold", threshold.String()),
		zap.Int("samples", len(samples)),
	)
	req := domain.RemoveSamples(samples)
	req.Sections = o.registry.Keys()
	updated, err := o.gateway.Submit(ctx, req)
	if err == nil && updated.HasErrors() {
		err = fmt.Errorf("sample removal rejected: %s", updated.ErrorMessage())
	}
	if err != nil {
		log.Warn("sample removal failed, keeping original cart view", zap.Error(err))
		return snapshot
	}
	return updated
}

func (o *Orchestrator) currentThreshold() decimal.Decimal {
	if drawer := o.doc.Query("cart-drawer"); drawer != nil {
		if raw := drawer.Data("threshold"); raw != "" {
			if t, err := decimal.NewFromString(raw); err == nil {
				return t
			}
			o.logger.Debug("ignoring invalid data-threshold", zap.String("value", raw))
		}
	}
	return o.threshold
}

func (o *Orchestrator) reconcile(c Change, snapshot *domain.CartSnapshot) {
	renderedItems := len(o.doc.QueryAll(".cart-item"))
	empty := snapshot.IsEmpty()

	o.toggleEmpty(empty)
	o.registry.Reconcile(o.doc, snapshot.Sections, o.logger)
	o.hooks.All()

	var message string
	if renderedItems == len(snapshot.Items) {
		line, ok := snapshot.Line(c.Line)
		switch {
		case !ok:
			message = o.announce.Strings().Error
		case line.Quantity != c.Quantity:
			message = o.announce.QuantityMessage(line.Quantity)
		}
	}
	o.announce.LineError(c.Line, message)
	o.announce.Announce(message)

	o.refocus(c, empty)
}

func (o *Orchestrator) fail(line int, input *dom.Element, err error) {
	if input != nil && input.Connected() {
		input.ResetValue()
	}
	strs := o.announce.Strings()
	kind, _ := gateway.KindOf(err)
	switch kind {
	case domain.ValidationError, domain.UnavailableError:
		message := gateway.MessageOf(err)
		if message == "" {
			message = strs.Error
		}
		o.announce.LineError(line, message)
	default:
		o.announce.CartError(strs.Error)
	}
	o.announce.Announce(strs.Error)
}

func (o *Orchestrator) toggleEmpty(empty bool) {
	for _, sel := range []string{"cart-drawer-items", "cart-drawer", "#main-cart-footer"} {
		if el := o.doc.Query(sel); el != nil {
			el.ToggleClass("is-empty", empty)
		}
	}
}

func (o *Orchestrator) refocus(c Change, empty bool) {
	drawer := o.doc.Query("cart-drawer")
	if item := o.lineItem(c.Line); item != nil && c.Name != "" {
		if control := item.Query(fmt.Sprintf("[name=%q]", c.Name)); control != nil {
			if drawer != nil {
				o.doc.TrapFocus(drawer, control)
			} else {
				control.Focus()
			}
			return
		}
	}
	if drawer == nil {
		return
	}
	if empty {
		o.doc.TrapFocus(drawer.Query(".drawer__inner-empty"), drawer.Query("a"))
		return
	}
	if o.doc.Query(".cart-item") != nil {
		o.doc.TrapFocus(drawer, o.doc.Query(".cart-item__name"))
	}
}

func (o *Orchestrator) lineItem(line int) *dom.Element {
	if el := o.doc.ByID(fmt.Sprintf("CartItem-%d", line)); el != nil {
		return el
	}
	return o.doc.ByID(fmt.Sprintf("CartDrawer-Item-%d", line))
}

func (o *Orchestrator) quantityInput(line int) *dom.Element {
	if el := o.doc.ByID(fmt.Sprintf("Quantity-%d", line)); el != nil {
		return el
	}
	return o.doc.ByID(fmt.Sprintf("Drawer-quantity-%d", line))
}

func (o *Orchestrator) itemsContainer() *dom.Element {
	if el := o.doc.ByID("main-cart-items"); el != nil {
		return el
	}
	return o.doc.ByID("CartDrawer-CartItems")
}

func (o *Orchestrator) enableLoading(line int) {
	if items := o.itemsContainer(); items != nil {
		items.AddClass("cart__items--disabled")
	}
	if item := o.lineItem(line); item != nil {
		for _, spinner := range item.QueryAll(".loading__spinner") {
			spinner.RemoveClass("hidden")
		}
		for _, control := range item.QueryAll("input, button") {
			control.Disable()
		}
	}
	if focused := o.doc.Focused(); focused != nil {
		focused.Blur()
	}
}

func (o *Orchestrator) disableLoading(line int, othersBusy bool) {
	if items := o.itemsContainer(); items != nil && !othersBusy {
		items.RemoveClass("cart__items--disabled")
	}
	if item := o.lineItem(line); item != nil {
		for _, spinner := range item.QueryAll(".loading__spinner") {
			spinner.AddClass("hidden")
		}
		for _, control := range item.QueryAll("input, button") {
			control.Enable()
		}
	}
}
