// Package controls implements the drawer's one-shot mutation controls:
// sample add/remove, recommendation add, subscription add and the
// subscription toggle on existing lines.
package controls

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-drawer/internal/announce"
	"github.com/fjod/go_cart/cart-drawer/internal/domain"
	"github.com/fjod/go_cart/cart-drawer/internal/dom"
	"github.com/fjod/go_cart/cart-drawer/internal/gateway"
	"github.com/fjod/go_cart/cart-drawer/internal/sections"
)

// Tags of the control elements handled by Controls.
const (
	AddSampleTag         = "cart-drawer-add-sample"
	RemoveSampleTag      = "cart-drawer-remove-sample"
	AddRecommendationTag = "cart-drawer-add-recommendation"
	AddSubscriptionTag   = "cart-drawer-add-subscription"

	listenerName = "cart-controls"
)

type Gateway interface {
	Submit(ctx context.Context, req domain.MutationRequest) (*domain.CartSnapshot, error)
}

type Controls struct {
	doc      *dom.Document
	gateway  Gateway
	announce *announce.Channel
	registry *sections.Registry
	hooks    *sections.Hooks
	logger   *zap.Logger
}

type Option func(*options)

type options struct {
	registry *sections.Registry
	hooks    *sections.Hooks
	logger   *zap.Logger
}

func WithRegistry(r *sections.Registry) Option {
	return func(o *options) { o.registry = r }
}

func WithHooks(h *sections.Hooks) Option {
	return func(o *options) { o.hooks = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(doc *dom.Document, opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = sections.ForDrawerItems(doc)
	}
	return o
}

func New(doc *dom.Document, gw Gateway, ch *announce.Channel, opts ...Option) *Controls {
	o := buildOptions(doc, opts)
	return &Controls{
		doc:      doc,
		gateway:  gw,
		announce: ch,
		registry: o.registry,
		hooks:    o.hooks,
		logger:   o.logger,
	}
}

// Bind routes clicks anywhere in the body to the control they land in.
func (c *Controls) Bind(ctx context.Context) {
	body := c.doc.Body()
	if body == nil {
		return
	}
	c.doc.On(body, "click", listenerName, func(target *dom.Element) {
		if _, err := c.HandleClick(ctx, target); err != nil {
			c.logger.Debug("control click failed", zap.Error(err))
		}
	})
}

// HandleClick runs the control containing target, if any.
func (c *Controls) HandleClick(ctx context.Context, target *dom.Element) (bool, error) {
	if target == nil {
		return false, nil
	}
	if el := target.Closest(AddSampleTag); el != nil {
		return true, c.AddSample(ctx, el)
	}
	if el := target.Closest(RemoveSampleTag); el != nil {
		return true, c.RemoveSample(ctx, el)
	}
	if el := target.Closest(AddRecommendationTag); el != nil {
		return true, c.AddRecommendation(ctx, el)
	}
	if el := target.Closest(AddSubscriptionTag); el != nil {
		return true, c.AddSubscription(ctx, el)
	}
	return false, nil
}

// AddSample adds one unit of the sample in data-sample-id.
func (c *Controls) AddSample(ctx context.Context, el *dom.Element) error {
	id := el.Data("sample-id")
	req := domain.MutationRequest{Kind: domain.MutationAdd, Items: []domain.AddItem{{ID: id, Quantity: 1}}}
	return c.run(ctx, el, id, req, "")
}

// RemoveSample sets the sample line in data-sample-id to zero.
func (c *Controls) RemoveSample(ctx context.Context, el *dom.Element) error {
	id := el.Data("sample-id")
	req := domain.MutationRequest{Kind: domain.MutationChange, ID: id, Quantity: domain.Qty(0)}
	return c.run(ctx, el, id, req, "")
}

// AddRecommendation adds one unit of the variant in data-variant-id as a
// one-time purchase.
func (c *Controls) AddRecommendation(ctx context.Context, el *dom.Element) error {
	id := el.Data("variant-id")
	req := domain.MutationRequest{Kind: domain.MutationAdd, Items: []domain.AddItem{{ID: id, Quantity: 1}}}
	return c.run(ctx, el, id, req, c.announce.Strings().AddFailed)
}

// AddSubscription adds one unit of data-variant-id on the selling plan in
// data-selling-plan-id.
func (c *Controls) AddSubscription(ctx context.Context, el *dom.Element) error {
	id := el.Data("variant-id")
	req := domain.MutationRequest{Kind: domain.MutationAdd, Items: []domain.AddItem{{
		ID:          id,
		Quantity:    1,
		SellingPlan: el.Data("selling-plan-id"),
	}}}
	return c.run(ctx, el, id, req, c.announce.Strings().SubscribeFail)
}

// run submits req on behalf of el. An unavailable item removes the control
// from its collection: the enclosing carousel slide, or el itself. Any other
// failure is announced and shown in the cart error banner, as failure when
// set and the generic error otherwise; a platform validation message takes
// the banner instead. el is re-enabled on every path.
func (c *Controls) run(ctx context.Context, el *dom.Element, id string, req domain.MutationRequest, failure string) error {
	if el.Disabled() {
		return ErrDisabled
	}
	if id == "" {
		return fmt.Errorf("%s: %w", el.Tag(), ErrMissingTarget)
	}
	log := c.logger.With(zap.String("control", el.Tag()), zap.String("id", id))

	button := el.Query(".recommendation-card__button")
	el.Disable()
	el.AddClass("loading")
	if button != nil {
		button.Disable()
	}
	defer func() {
		el.RemoveClass("loading")
		el.Enable()
		if button != nil {
			button.Enable()
		}
	}()

	req.Sections = c.registry.Keys()
	snapshot, err := c.gateway.Submit(ctx, req)
	if err == nil && snapshot.HasErrors() {
		err = &gateway.Error{Kind: domain.ValidationError, Message: snapshot.ErrorMessage()}
	}
	switch {
	case gateway.IsUnavailable(err):
		message := gateway.MessageOf(err)
		if message == "" {
			message = c.announce.Strings().Unavailable
		}
		log.Warn("item unavailable", zap.String("message", message))
		c.announce.CartError(message)
		c.announce.Announce(message)
		if slide := el.Closest(".swiper-slide"); slide != nil {
			slide.Remove()
		} else {
			el.Remove()
		}
		return err
	case err != nil:
		log.Error("cart control failed", zap.Error(err))
		if failure == "" {
			failure = c.announce.Strings().Error
		}
		banner := failure
		if kind, _ := gateway.KindOf(err); kind == domain.ValidationError {
			if message := gateway.MessageOf(err); message != "" {
				banner = message
			}
		}
		c.announce.CartError(banner)
		c.announce.Announce(failure)
		return err
	}

	c.registry.Reconcile(c.doc, snapshot.Sections, c.logger)
	c.hooks.Recommendations()
	return nil
}
