package storefront

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"
)

// Section names the storefront can render into mutation responses.
const (
	DrawerSection     = "cart-drawer"
	IconBubbleSection = "cart-icon-bubble"
)

//go:embed templates/*.html
var templateFS embed.FS

type lineView struct {
	Index      int
	Key        string
	VariantID  int64
	Title      string
	Handle     string
	Quantity   int
	LinePrice  string
	Sample     bool
	Plan       string
	NextPlan   string
	Subscribed bool
}

type offerView struct {
	ID    int64
	Title string
	Price string
	Plan  string
}

type cartView struct {
	ItemCount       int
	Empty           bool
	Total           string
	Threshold       int64
	Eligible        bool
	Lines           []lineView
	Samples         []offerView
	Recommendations []offerView
}

// Renderer renders the storefront's sections and the full cart page.
type Renderer struct {
	tmpl      *template.Template
	catalog   *Catalog
	threshold int64
}

func NewRenderer(catalog *Catalog, threshold int64) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, catalog: catalog, threshold: threshold}, nil
}

func (r *Renderer) view(cart *Cart) cartView {
	snapshot := cart.Snapshot(r.catalog)
	v := cartView{
		ItemCount: snapshot.ItemCount,
		Empty:     snapshot.IsEmpty(),
		Total:     formatMoney(snapshot.TotalPrice),
		Threshold: r.threshold,
		Eligible:  r.threshold <= 0 || snapshot.TotalPrice >= r.threshold,
	}
	inCart := make(map[int64]bool, len(cart.Lines))
	for i, item := range snapshot.Items {
		variant, _ := r.catalog.Variant(item.VariantID)
		inCart[item.VariantID] = true
		lv := lineView{
			Index:      i + 1,
			Key:        item.Key,
			VariantID:  item.VariantID,
			Title:      item.Title,
			Handle:     variant.Handle,
			Quantity:   item.Quantity,
			LinePrice:  formatMoney(item.LinePrice),
			Sample:     item.IsSample(),
			Plan:       variant.SellingPlan,
			Subscribed: item.SellingPlan != "",
		}
		if !lv.Subscribed {
			lv.NextPlan = variant.SellingPlan
		}
		v.Lines = append(v.Lines, lv)
	}
	for _, s := range r.catalog.Samples() {
		if !inCart[s.ID] {
			v.Samples = append(v.Samples, offerView{ID: s.ID, Title: s.Title})
		}
	}
	for _, rec := range r.catalog.Recommendations() {
		if !inCart[rec.ID] {
			v.Recommendations = append(v.Recommendations, offerView{
				ID: rec.ID, Title: rec.Title, Price: formatMoney(rec.Price), Plan: rec.SellingPlan,
			})
		}
	}
	return v
}

// Sections renders the requested sections for cart. Unknown names are
// omitted from the result, as the platform does.
func (r *Renderer) Sections(cart *Cart, names []string) (map[string]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	v := r.view(cart)
	out := make(map[string]string, len(names))
	for _, name := range names {
		var tmpl string
		switch name {
		case DrawerSection:
			tmpl = "cart-drawer"
		case IconBubbleSection:
			tmpl = "icon-bubble"
		default:
			continue
		}
		html, err := r.execute(tmpl, v)
		if err != nil {
			return nil, err
		}
		out[name] = html
	}
	return out, nil
}

func (r *Renderer) Page(cart *Cart) (string, error) {
	return r.execute("page", r.view(cart))
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// formatMoney renders minor units as dollars.
func formatMoney(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}
