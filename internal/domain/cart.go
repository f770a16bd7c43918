package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// SampleProductType marks free sample variants in the catalog.
const SampleProductType = "Sample"

// SampleProperty is the line property key that tags a line as a free sample.
const SampleProperty = "_sample"

type CartLine struct {
	Key         string         `json:"key"`
	VariantID   int64          `json:"id"`
	Quantity    int            `json:"quantity"`
	Title       string         `json:"title,omitempty"`
	Price       int64          `json:"price,omitempty"`
	LinePrice   int64          `json:"final_line_price,omitempty"`
	ProductType string         `json:"product_type"`
	SellingPlan string         `json:"selling_plan,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// IsSample reports whether the line is a free sample, either by product type
// or by a `_sample` property set to true (boolean or the string "true").
func (l CartLine) IsSample() bool {
	if l.ProductType == SampleProductType {
		return true
	}
	switch v := l.Properties[SampleProperty].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// CartSnapshot is the authoritative cart state returned after a mutation.
type CartSnapshot struct {
	ItemCount  int               `json:"item_count"`
	TotalPrice int64             `json:"total_price"`
	Items      []CartLine        `json:"items"`
	Sections   map[string]string `json:"sections,omitempty"`
	Errors     json.RawMessage   `json:"errors,omitempty"`
}

// HasErrors reports whether the platform attached an errors payload.
func (s *CartSnapshot) HasErrors() bool {
	v := strings.TrimSpace(string(s.Errors))
	return v != "" && v != "null" && v != `""` && v != "{}" && v != "[]"
}

// ErrorMessage flattens the errors payload into display text. The platform
// sends either a plain string, a list of strings or a field->messages map.
func (s *CartSnapshot) ErrorMessage() string {
	if !s.HasErrors() {
		return ""
	}
	return FlattenErrors(s.Errors)
}

// FlattenErrors renders a raw errors payload as a single message.
func FlattenErrors(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, FlattenErrors(fields[k]))
		}
		return strings.Join(parts, "; ")
	}
	return string(raw)
}

// Samples returns the sample lines in cart order.
func (s *CartSnapshot) Samples() []CartLine {
	var out []CartLine
	for _, item := range s.Items {
		if item.IsSample() {
			out = append(out, item)
		}
	}
	return out
}

// Line returns the 1-based line, if present.
func (s *CartSnapshot) Line(line int) (CartLine, bool) {
	if line < 1 || line > len(s.Items) {
		return CartLine{}, false
	}
	return s.Items[line-1], true
}

// IsEmpty is true when the cart holds no units.
func (s *CartSnapshot) IsEmpty() bool {
	return s.ItemCount == 0
}
