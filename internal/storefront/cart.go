package storefront

import (
	"time"

	"github.com/fjod/go_cart/cart-drawer/internal/domain"
)

type Line struct {
	Key         string         `json:"key"`
	VariantID   int64          `json:"variant_id"`
	Quantity    int            `json:"quantity"`
	SellingPlan string         `json:"selling_plan,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// Cart is the session cart kept by a Store.
type Cart struct {
	Token     string    `json:"token"`
	Lines     []Line    `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newCart(token string) *Cart {
	now := time.Now()
	return &Cart{Token: token, CreatedAt: now, UpdatedAt: now}
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Snapshot prices the cart against catalog.
func (c *Cart) Snapshot(catalog *Catalog) domain.CartSnapshot {
	s := domain.CartSnapshot{Items: make([]domain.CartLine, 0, len(c.Lines))}
	for _, l := range c.Lines {
		v, _ := catalog.Variant(l.VariantID)
		line := domain.CartLine{
			Key:         l.Key,
			VariantID:   l.VariantID,
			Quantity:    l.Quantity,
			Title:       v.Title,
			Price:       v.Price,
			LinePrice:   v.Price * int64(l.Quantity),
			ProductType: v.ProductType,
			SellingPlan: l.SellingPlan,
			Properties:  l.Properties,
		}
		s.Items = append(s.Items, line)
		s.ItemCount += l.Quantity
		s.TotalPrice += line.LinePrice
	}
	return s
}

func (c *Cart) indexOf(line int, id string) int {
	if line > 0 {
		if line <= len(c.Lines) {
			return line - 1
		}
		return -1
	}
	return c.find(id)
}

// find locates a line by key, or by variant id as the first line holding it.
func (c *Cart) find(id string) int {
	if id == "" {
		return -1
	}
	for i, l := range c.Lines {
		if l.Key == id {
			return i
		}
	}
	for i, l := range c.Lines {
		if formatID(l.VariantID) == id {
			return i
		}
	}
	return -1
}

func (c *Cart) remove(i int) {
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
}
