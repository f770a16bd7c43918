// Package engine assembles the cart drawer components around one live page:
// gateway, announcement channel, orchestrator, drawer controller, auxiliary
// controls and the header count.
package engine

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-drawer/internal/announce"
	"github.com/fjod/go_cart/cart-drawer/internal/config"
	"github.com/fjod/go_cart/cart-drawer/internal/controls"
	"github.com/fjod/go_cart/cart-drawer/internal/dom"
	"github.com/fjod/go_cart/cart-drawer/internal/drawer"
	"github.com/fjod/go_cart/cart-drawer/internal/gateway"
	"github.com/fjod/go_cart/cart-drawer/internal/header"
	"github.com/fjod/go_cart/cart-drawer/internal/orchestrator"
	"github.com/fjod/go_cart/cart-drawer/internal/sections"
)

type Engine struct {
	Doc           *dom.Document
	Gateway       *gateway.Client
	Announce      *announce.Channel
	Orchestrator  *orchestrator.Orchestrator
	Drawer        *drawer.Controller
	Controls      *controls.Controls
	Subscriptions *controls.SubscriptionToggle
	Header        *header.CountSync
	Carousel      *SlideCarousel

	logger *zap.Logger
}

// Load fetches the storefront page and wires an engine onto it.
func Load(ctx context.Context, cfg config.Engine, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gw, err := gateway.New(cfg, gateway.WithLogger(logger.Named("gateway")))
	if err != nil {
		return nil, fmt.Errorf("create gateway: %w", err)
	}
	page, err := gw.FetchPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	doc, err := dom.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return New(doc, gw, cfg, logger)
}

// New wires the components onto doc. The drawer controller and the
// subscription toggle are registered as re-initialisation hooks, so every
// reconciliation rebinds the gift note, remounts the carousel and closes
// tooltips.
func New(doc *dom.Document, gw *gateway.Client, cfg config.Engine, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold, err := cfg.Threshold()
	if err != nil {
		return nil, err
	}

	ch := announce.New(doc, cfg.Strings, cfg.CartErrorTTL, logger.Named("announce"))
	hooks := sections.NewHooks()
	carousel := NewSlideCarousel()
	ctl := drawer.New(doc, cfg.TransitionTimeout,
		drawer.WithCart(gw),
		drawer.WithCarousel(carousel),
		drawer.WithLogger(logger.Named("drawer")),
	)
	hooks.Add(ctl)

	orch := orchestrator.New(doc, gw, ch,
		orchestrator.WithHooks(hooks),
		orchestrator.WithThreshold(threshold),
		orchestrator.WithLogger(logger.Named("orchestrator")),
	)
	ctrls := controls.New(doc, gw, ch, controls.WithHooks(hooks), controls.WithLogger(logger.Named("controls")))
	subs := controls.NewSubscriptionToggle(doc, gw, ch, controls.WithHooks(hooks), controls.WithLogger(logger.Named("subscriptions")))
	hooks.Add(subs)

	return &Engine{
		Doc:           doc,
		Gateway:       gw,
		Announce:      ch,
		Orchestrator:  orch,
		Drawer:        ctl,
		Controls:      ctrls,
		Subscriptions: subs,
		Header:        header.NewCountSync(doc, gw.Events(), logger.Named("header")),
		Carousel:      carousel,
		logger:        logger,
	}, nil
}

// Start binds the page's delegated click handlers and starts the header
// count sync. ctx scopes the mutations those handlers issue.
func (e *Engine) Start(ctx context.Context) {
	e.Orchestrator.Bind(ctx)
	e.Controls.Bind(ctx)
	e.Subscriptions.Bind(ctx)
	e.Drawer.InitGiftNoteToggle()
	e.Header.Start()
	e.logger.Debug("engine started")
}

// Close stops every background goroutine the engine owns.
func (e *Engine) Close() {
	e.Header.Stop()
	e.Drawer.Stop()
	e.Announce.Close()
}
