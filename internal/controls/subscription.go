package controls

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-drawer/internal/announce"
	"github.com/fjod/go_cart/cart-drawer/internal/domain"
	"github.com/fjod/go_cart/cart-drawer/internal/dom"
	"github.com/fjod/go_cart/cart-drawer/internal/gateway"
	"github.com/fjod/go_cart/cart-drawer/internal/sections"
)

const (
	tooltipSelector = ".subscription-info-tooltip-cart"
	infoIconClass   = ".subscription-info-icon-cart"
	toggleButton    = ".subscription-toggle-btn"
	toggleWrapper   = ".subscription-cart-item-wrapper.subscription-toggle"

	updatingLabel = "Updating..."
	toggleName    = "subscription-toggle"
)

// SubscriptionToggle switches existing lines between one-time purchase and a
// selling plan, and manages the info tooltips next to the toggle.
type SubscriptionToggle struct {
	doc      *dom.Document
	gateway  Gateway
	announce *announce.Channel
	registry *sections.Registry
	hooks    *sections.Hooks
	logger   *zap.Logger
}

func NewSubscriptionToggle(doc *dom.Document, gw Gateway, ch *announce.Channel, opts ...Option) *SubscriptionToggle {
	o := buildOptions(doc, opts)
	return &SubscriptionToggle{
		doc:      doc,
		gateway:  gw,
		announce: ch,
		registry: o.registry,
		hooks:    o.hooks,
		logger:   o.logger,
	}
}

func (s *SubscriptionToggle) Bind(ctx context.Context) {
	body := s.doc.Body()
	if body == nil {
		return
	}
	s.doc.On(body, "click", toggleName, func(target *dom.Element) {
		if _, err := s.HandleClick(ctx, target); err != nil {
			s.logger.Debug("subscription click failed", zap.Error(err))
		}
	})
}

// HandleClick handles a click anywhere on the page. The info icon toggles its
// tooltip, a click elsewhere closes open tooltips, and the toggle button
// switches the line's plan.
func (s *SubscriptionToggle) HandleClick(ctx context.Context, target *dom.Element) (bool, error) {
	if target == nil {
		return false, nil
	}
	if icon := target.Closest(infoIconClass); icon != nil {
		if wrapper := icon.Closest(".subscription-cart-item-wrapper"); wrapper != nil {
			if tooltip := wrapper.NextSibling(); tooltip != nil && tooltip.Matches(tooltipSelector) {
				tooltip.ToggleClass("active", !tooltip.HasClass("active"))
			}
		}
		return true, nil
	}
	if target.Closest(tooltipSelector) == nil {
		s.Reinitialize()
	}

	button := target.Closest(toggleButton)
	if button == nil {
		return false, nil
	}
	wrapper := button.Closest(toggleWrapper)
	if wrapper == nil {
		return false, nil
	}
	line, err := strconv.Atoi(wrapper.Data("line"))
	if err != nil {
		return true, fmt.Errorf("subscription toggle line %q: %w", wrapper.Data("line"), err)
	}
	return true, s.Toggle(ctx, line, wrapper.Data("selling-plan-id"), button)
}

// Reinitialize closes every open tooltip.
func (s *SubscriptionToggle) Reinitialize() {
	for _, tooltip := range s.doc.QueryAll(tooltipSelector + ".active") {
		tooltip.RemoveClass("active")
	}
}

// Toggle moves a 1-based line onto sellingPlan; the empty plan means a
// one-time purchase.
func (s *SubscriptionToggle) Toggle(ctx context.Context, line int, sellingPlan string, button *dom.Element) error {
	if button != nil && button.Disabled() {
		return ErrDisabled
	}
	log := s.logger.With(zap.Int("line", line), zap.String("selling_plan", sellingPlan))

	var label *dom.Element
	var original string
	if button != nil {
		button.Disable()
		button.AddClass("loading")
		if label = button.Query("span"); label != nil {
			original = label.Text()
			label.SetText(updatingLabel)
		}
	}
	restore := func() {
		if button == nil {
			return
		}
		button.Enable()
		button.RemoveClass("loading")
		if label != nil {
			label.SetText(original)
		}
	}

	req := domain.MutationRequest{Kind: domain.MutationChange, Line: line, SellingPlan: sellingPlan}
	req.Sections = s.registry.Keys()
	snapshot, err := s.gateway.Submit(ctx, req)
	if err == nil && snapshot.HasErrors() {
		err = &gateway.Error{Kind: domain.ValidationError, Message: snapshot.ErrorMessage()}
	}
	if err != nil {
		log.Error("subscription toggle failed", zap.Error(err))
		restore()
		s.announce.CartError(s.announce.Strings().SubscribeFail)
		return err
	}

	s.registry.Reconcile(s.doc, snapshot.Sections, s.logger)
	restore()
	s.hooks.GiftNote()
	s.hooks.Recommendations()
	log.Debug("subscription toggled")
	return nil
}
