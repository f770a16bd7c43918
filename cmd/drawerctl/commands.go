package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fjod/go_cart/cart-drawer/internal/dom"
	"github.com/fjod/go_cart/cart-drawer/internal/engine"
	"github.com/fjod/go_cart/cart-drawer/internal/orchestrator"
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Print the current cart as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			snapshot, err := e.Gateway.Cart(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snapshot)
		}, false)
	},
}

var changeCmd = &cobra.Command{
	Use:   "change <line> <quantity>",
	Short: "Set a line's quantity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := parsePositive(args[0], "line")
		if err != nil {
			return err
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil || qty < 0 {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return e.Orchestrator.ChangeQuantity(ctx, orchestrator.Change{Line: line, Quantity: qty})
		}, true)
	},
}

var plusCmd = &cobra.Command{
	Use:   "plus <line>",
	Short: "Press a line's plus button",
	Args:  cobra.ExactArgs(1),
	RunE:  stepper(1, "plus"),
}

var minusCmd = &cobra.Command{
	Use:   "minus <line>",
	Short: "Press a line's minus button; at one this removes the line",
	Args:  cobra.ExactArgs(1),
	RunE:  stepper(-1, "minus"),
}

var removeCmd = &cobra.Command{
	Use:   "remove <line>",
	Short: "Remove a line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := parsePositive(args[0], "line")
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return e.Orchestrator.Remove(ctx, line)
		}, true)
	},
}

var addSampleCmd = &cobra.Command{
	Use:   "add-sample <variant-id>",
	Short: "Add a free sample",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			el, err := find(e.Doc, fmt.Sprintf(`cart-drawer-add-sample[data-sample-id=%q]`, args[0]))
			if err != nil {
				return err
			}
			return e.Controls.AddSample(ctx, el)
		}, true)
	},
}

var removeSampleCmd = &cobra.Command{
	Use:   "remove-sample <line-key>",
	Short: "Remove a free sample line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			el, err := find(e.Doc, fmt.Sprintf(`cart-drawer-remove-sample[data-sample-id=%q]`, args[0]))
			if err != nil {
				return err
			}
			return e.Controls.RemoveSample(ctx, el)
		}, true)
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <variant-id>",
	Short: "Add a recommended product from the carousel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			el, err := find(e.Doc, fmt.Sprintf(`cart-drawer-add-recommendation[data-variant-id=%q]`, args[0]))
			if err != nil {
				return err
			}
			return e.Controls.AddRecommendation(ctx, el)
		}, true)
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <variant-id>",
	Short: "Add a recommended product on its subscription plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			el, err := find(e.Doc, fmt.Sprintf(`cart-drawer-add-subscription[data-variant-id=%q]`, args[0]))
			if err != nil {
				return err
			}
			return e.Controls.AddSubscription(ctx, el)
		}, true)
	},
}

var togglePlanCmd = &cobra.Command{
	Use:   "toggle-plan <line>",
	Short: "Switch a line between one-time purchase and its subscription plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := parsePositive(args[0], "line"); err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			button, err := find(e.Doc, fmt.Sprintf(`.subscription-toggle[data-line=%q] .subscription-toggle-btn`, args[0]))
			if err != nil {
				return err
			}
			_, err = e.Subscriptions.HandleClick(ctx, button)
			return err
		}, true)
	},
}

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the drawer from the header cart icon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			select {
			case <-e.Drawer.Open(e.Doc.ByID("cart-icon-bubble")):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}, true)
	},
}

func init() {
	rootCmd.AddCommand(cartCmd, changeCmd, plusCmd, minusCmd, removeCmd,
		addSampleCmd, removeSampleCmd, recommendCmd, subscribeCmd, togglePlanCmd, openCmd)
}

func stepper(delta int, name string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		line, err := parsePositive(args[0], "line")
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			return e.Orchestrator.Step(ctx, line, delta, name)
		}, true)
	}
}

// withEngine loads the page, runs fn and, when report is set, prints the
// page state even if fn failed.
func withEngine(cmd *cobra.Command, fn func(context.Context, *engine.Engine) error, report bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.Load(ctx, cfg.Engine, logger)
	if err != nil {
		return err
	}
	defer e.Close()
	e.Start(ctx)

	runErr := fn(ctx, e)
	if report {
		if err := writeReport(cmd.OutOrStdout(), e, showHTML); err != nil {
			return err
		}
	}
	return runErr
}

func find(doc *dom.Document, selector string) (*dom.Element, error) {
	el := doc.Query(selector)
	if el == nil {
		return nil, fmt.Errorf("no element matches %s on the page", selector)
	}
	return el, nil
}

func parsePositive(raw, what string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive number", what, raw)
	}
	return n, nil
}
