package storefront

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/go_cart/cart-drawer/internal/domain"
)

// ChangeInput addresses one line by 1-based index or by id, which is a line
// key or a variant id. A nil Quantity only moves the line to SellingPlan.
type ChangeInput struct {
	Line        int
	ID          string
	Quantity    *int
	SellingPlan string
}

// Service applies cart mutations for session carts. Mutations are
// serialised; reads of the same cart are collapsed.
type Service struct {
	store   Store
	catalog *Catalog
	logger  *zap.Logger
	sfg     singleflight.Group
	mu      sync.Mutex
}

func NewService(store Store, catalog *Catalog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		catalog: catalog,
		logger:  logger,
	}
}

func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Cart returns the session cart. A token with no stored cart yields an empty
// one, which is not persisted until the first mutation.
func (s *Service) Cart(ctx context.Context, token string) (*Cart, error) {
	if token == "" {
		return nil, errors.New("cart token is required")
	}
	v, err, shared := s.sfg.Do(token, func() (interface{}, error) {
		return s.load(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("cart load shared", zap.String("token", token))
	}
	// Callers get their own copy; the shared result must not be mutated.
	return cloneCart(v.(*Cart)), nil
}

func (s *Service) load(ctx context.Context, token string) (*Cart, error) {
	cart, err := s.store.Load(ctx, token)
	if errors.Is(err, ErrCartNotFound) {
		return newCart(token), nil
	}
	if err != nil {
		s.logger.Error("cart store load failed", zap.String("token", token), zap.Error(err))
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return cart, nil
}

// Change sets one line's quantity, removing it at zero, or its selling plan.
func (s *Service) Change(ctx context.Context, token string, in ChangeInput) (*Cart, error) {
	return s.mutate(ctx, token, func(cart *Cart) error {
		i := cart.indexOf(in.Line, in.ID)
		if i < 0 {
			return ErrUnknownLine
		}
		if in.Quantity == nil {
			cart.Lines[i].SellingPlan = in.SellingPlan
			return nil
		}
		q := *in.Quantity
		if q < 0 {
			return ErrInvalidQuantity
		}
		if q == 0 {
			cart.remove(i)
			return nil
		}
		cart.Lines[i].Quantity = s.clamp(cart.Lines[i].VariantID, q)
		if in.SellingPlan != "" {
			cart.Lines[i].SellingPlan = in.SellingPlan
		}
		return nil
	})
}

// Add appends items, merging into an existing line of the same variant and
// plan. Quantities are clamped to stock; a sold-out variant fails the whole
// request.
func (s *Service) Add(ctx context.Context, token string, items []domain.AddItem) (*Cart, error) {
	if len(items) == 0 {
		return nil, ErrEmptyMutation
	}
	return s.mutate(ctx, token, func(cart *Cart) error {
		for _, item := range items {
			id, err := strconv.ParseInt(item.ID, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: %q", ErrUnknownVariant, item.ID)
			}
			variant, ok := s.catalog.Variant(id)
			if !ok {
				return fmt.Errorf("%w: %d", ErrUnknownVariant, id)
			}
			if variant.Stock == 0 {
				return &SoldOutError{Title: variant.Title}
			}
			qty := item.Quantity
			if qty <= 0 {
				qty = 1
			}
			if i := cart.lineFor(id, item.SellingPlan); i >= 0 {
				cart.Lines[i].Quantity = s.clamp(id, cart.Lines[i].Quantity+qty)
				continue
			}
			line := Line{
				Key:         lineKey(id),
				VariantID:   id,
				Quantity:    s.clamp(id, qty),
				SellingPlan: item.SellingPlan,
			}
			if variant.IsSample() {
				line.Properties = map[string]any{domain.SampleProperty: true}
			}
			cart.Lines = append(cart.Lines, line)
		}
		return nil
	})
}

// Update applies key -> quantity pairs. Ids that match no line are ignored.
func (s *Service) Update(ctx context.Context, token string, updates map[string]int) (*Cart, error) {
	if len(updates) == 0 {
		return nil, ErrEmptyMutation
	}
	return s.mutate(ctx, token, func(cart *Cart) error {
		for _, q := range updates {
			if q < 0 {
				return ErrInvalidQuantity
			}
		}
		kept := cart.Lines[:0]
		for _, l := range cart.Lines {
			q, ok := updates[l.Key]
			if !ok {
				q, ok = updates[formatID(l.VariantID)]
			}
			switch {
			case !ok:
				kept = append(kept, l)
			case q > 0:
				l.Quantity = s.clamp(l.VariantID, q)
				kept = append(kept, l)
			}
		}
		cart.Lines = kept
		return nil
	})
}

// Clear empties the session cart.
func (s *Service) Clear(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.sfg.Forget(token)
	if err := s.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, token string, apply func(*Cart) error) (*Cart, error) {
	if token == "" {
		return nil, errors.New("cart token is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := apply(cart); err != nil {
		return nil, err
	}
	cart.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, cart); err != nil {
		s.logger.Error("cart store save failed", zap.String("token", token), zap.Error(err))
		return nil, fmt.Errorf("save cart: %w", err)
	}
	s.sfg.Forget(token)
	return cart, nil
}

// clamp caps q at the variant's stock.
func (s *Service) clamp(variantID int64, q int) int {
	if v, ok := s.catalog.Variant(variantID); ok && q > v.Stock {
		return v.Stock
	}
	return q
}

func (c *Cart) lineFor(variantID int64, plan string) int {
	for i, l := range c.Lines {
		if l.VariantID == variantID && l.SellingPlan == plan {
			return i
		}
	}
	return -1
}

func cloneCart(c *Cart) *Cart {
	out := *c
	out.Lines = make([]Line, len(c.Lines))
	copy(out.Lines, c.Lines)
	return &out
}

func lineKey(variantID int64) string {
	return formatID(variantID) + ":" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
