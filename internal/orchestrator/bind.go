package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-drawer/internal/dom"
)

const listenerName = "cart-quantity"

// Bind routes the page's quantity controls to the orchestrator: plus and
// minus buttons step their line, remove buttons drop it and a changed
// quantity input sets it. Handlers run on the dispatching goroutine.
func (o *Orchestrator) Bind(ctx context.Context) {
	body := o.doc.Body()
	if body == nil {
		return
	}
	o.doc.On(body, "click", listenerName, func(target *dom.Element) {
		if _, err := o.HandleClick(ctx, target); err != nil {
			o.logger.Debug("quantity click failed", zap.Error(err))
		}
	})
	o.doc.On(body, "change", listenerName, func(target *dom.Element) {
		if _, err := o.HandleChange(ctx, target); err != nil {
			o.logger.Debug("quantity change failed", zap.Error(err))
		}
	})
}

// HandleClick runs the remove or stepper button containing target, if any.
func (o *Orchestrator) HandleClick(ctx context.Context, target *dom.Element) (bool, error) {
	if target == nil {
		return false, nil
	}
	if rm := target.Closest("cart-remove-button"); rm != nil {
		line, err := lineOf(rm)
		if err != nil {
			return true, err
		}
		return true, o.Remove(ctx, line)
	}
	button := target.Closest("button")
	if button == nil {
		return false, nil
	}
	name, _ := button.Attr("name")
	var delta int
	switch name {
	case "plus":
		delta = 1
	case "minus":
		delta = -1
	default:
		return false, nil
	}
	line, err := lineOf(button)
	if err != nil {
		return true, err
	}
	return true, o.Step(ctx, line, delta, name)
}

// HandleChange submits the value of a line's quantity input.
func (o *Orchestrator) HandleChange(ctx context.Context, target *dom.Element) (bool, error) {
	if target == nil || target.Tag() != "input" {
		return false, nil
	}
	line, err := lineOf(target)
	if err != nil {
		return false, nil
	}
	input := o.quantityInput(line)
	if input == nil || !input.Is(target) {
		return false, nil
	}
	raw := target.Value()
	quantity, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || quantity < 0 {
		target.ResetValue()
		return true, fmt.Errorf("line %d quantity %q: invalid", line, raw)
	}
	name, _ := target.Attr("name")
	return true, o.ChangeQuantity(ctx, Change{Line: line, Quantity: quantity, Name: name})
}

// lineOf finds the 1-based line a control belongs to: its own data-index,
// the data-index of its quantity-input sibling, or the suffix of the
// enclosing cart item id.
func lineOf(el *dom.Element) (int, error) {
	if v := el.Data("index"); v != "" {
		return strconv.Atoi(v)
	}
	if group := el.Closest("quantity-input"); group != nil {
		if input := group.Query("[data-index]"); input != nil {
			return strconv.Atoi(input.Data("index"))
		}
	}
	if item := el.Closest(".cart-item"); item != nil {
		id := item.ID()
		if i := strings.LastIndex(id, "-"); i >= 0 {
			return strconv.Atoi(id[i+1:])
		}
	}
	return 0, fmt.Errorf("%s: no cart line", el.Tag())
}
