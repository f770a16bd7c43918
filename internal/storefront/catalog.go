package storefront

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fjod/go_cart/cart-drawer/internal/domain"
)

// Variant is one purchasable item of the catalog. Stock is the number of
// units a cart may hold; zero means sold out.
type Variant struct {
	ID          int64  `yaml:"id"`
	Title       string `yaml:"title"`
	Handle      string `yaml:"handle"`
	Price       int64  `yaml:"price"`
	ProductType string `yaml:"product_type"`
	Stock       int    `yaml:"stock"`
	SellingPlan string `yaml:"selling_plan"`
	Recommended bool   `yaml:"recommended"`
}

func (v Variant) IsSample() bool {
	return v.ProductType == domain.SampleProductType
}

type Catalog struct {
	variants []Variant
	byID     map[int64]Variant
}

func NewCatalog(variants []Variant) (*Catalog, error) {
	c := &Catalog{byID: make(map[int64]Variant, len(variants))}
	for _, v := range variants {
		if v.ID <= 0 {
			return nil, fmt.Errorf("variant %q: id must be positive", v.Title)
		}
		if _, dup := c.byID[v.ID]; dup {
			return nil, fmt.Errorf("variant %d declared twice", v.ID)
		}
		if v.Stock < 0 || v.Price < 0 {
			return nil, fmt.Errorf("variant %d: stock and price must not be negative", v.ID)
		}
		c.byID[v.ID] = v
		c.variants = append(c.variants, v)
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog. The empty path yields DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file struct {
		Variants []Variant `yaml:"variants"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(file.Variants) == 0 {
		return nil, errors.New("catalog has no variants")
	}
	return NewCatalog(file.Variants)
}

// DefaultCatalog is a small fragrance shop used when no catalog file is
// configured.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]Variant{
		{ID: 1001, Title: "Rose Eau de Parfum", Handle: "rose-edp", Price: 4500, ProductType: "Fragrance", Stock: 10, SellingPlan: "monthly"},
		{ID: 1002, Title: "Cedar Candle", Handle: "cedar-candle", Price: 2200, ProductType: "Candle", Stock: 3},
		{ID: 1003, Title: "Amber Body Oil", Handle: "amber-oil", Price: 3100, ProductType: "Body", Stock: 5, Recommended: true},
		{ID: 1004, Title: "Fig Hand Cream", Handle: "fig-cream", Price: 1800, ProductType: "Body", Stock: 0, Recommended: true},
		{ID: 1005, Title: "Vetiver Refill", Handle: "vetiver-refill", Price: 3900, ProductType: "Fragrance", Stock: 8, SellingPlan: "quarterly", Recommended: true},
		{ID: 2001, Title: "Rose Sample", Handle: "rose-sample", ProductType: domain.SampleProductType, Stock: 1},
		{ID: 2002, Title: "Oud Sample", Handle: "oud-sample", ProductType: domain.SampleProductType, Stock: 1},
	})
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Variant(id int64) (Variant, bool) {
	v, ok := c.byID[id]
	return v, ok
}

func (c *Catalog) Variants() []Variant {
	return append([]Variant(nil), c.variants...)
}

func (c *Catalog) Samples() []Variant {
	var out []Variant
	for _, v := range c.variants {
		if v.IsSample() {
			out = append(out, v)
		}
	}
	return out
}

func (c *Catalog) Recommendations() []Variant {
	var out []Variant
	for _, v := range c.variants {
		if v.Recommended {
			out = append(out, v)
		}
	}
	return out
}
