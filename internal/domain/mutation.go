package domain

import "strconv"

type MutationKind int

const (
	MutationChange MutationKind = iota + 1
	MutationAdd
	MutationBulkUpdate
)

func (k MutationKind) String() string {
	switch k {
	case MutationChange:
		return "change"
	case MutationAdd:
		return "add"
	case MutationBulkUpdate:
		return "update"
	default:
		return "unknown"
	}
}

type AddItem struct {
	ID          string `json:"id"`
	Quantity    int    `json:"quantity"`
	SellingPlan string `json:"selling_plan,omitempty"`
}

// MutationRequest describes one cart mutation. Line is 1-based; ID addresses a
// line by key or variant id instead. Quantity is nil when only the selling
// plan changes.
type MutationRequest struct {
	Kind        MutationKind
	Line        int
	ID          string
	Quantity    *int
	SellingPlan string
	Items       []AddItem
	Updates     map[string]int
	Sections    []string
}

// Qty returns a pointer to n for MutationRequest.Quantity.
func Qty(n int) *int {
	return &n
}

// ChangeLine builds a change request for a 1-based line.
func ChangeLine(line, quantity int) MutationRequest {
	return MutationRequest{Kind: MutationChange, Line: line, Quantity: Qty(quantity)}
}

// RemoveSamples builds the bulk update zeroing every given line, addressed by
// key or, for lines without one, by variant id.
func RemoveSamples(lines []CartLine) MutationRequest {
	updates := make(map[string]int, len(lines))
	for _, l := range lines {
		key := l.Key
		if key == "" {
			key = strconv.FormatInt(l.VariantID, 10)
		}
		updates[key] = 0
	}
	return MutationRequest{Kind: MutationBulkUpdate, Updates: updates}
}
