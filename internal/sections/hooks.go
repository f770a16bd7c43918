package sections

import "sync"

// Optional capabilities a collaborator may expose. Each is an idempotent
// re-binding call made after sections are rewritten; a collaborator offering
// none of them is simply skipped.
type (
	GiftNoteBinder interface {
		InitGiftNoteToggle()
	}
	RecommendationsBinder interface {
		InitRecommendationsSwiper()
	}
	TooltipReinitializer interface {
		Reinitialize()
	}
)

// Hooks holds the collaborators to re-initialise after reconciliation.
type Hooks struct {
	mu            sync.RWMutex
	collaborators []any
}

func NewHooks(collaborators ...any) *Hooks {
	h := &Hooks{}
	for _, c := range collaborators {
		h.Add(c)
	}
	return h
}

// Add registers a collaborator. Collaborators can be added after
// construction, which lets two components refer to each other.
func (h *Hooks) Add(c any) {
	if c == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.collaborators = append(h.collaborators, c)
}

func (h *Hooks) snapshot() []any {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]any, len(h.collaborators))
	copy(out, h.collaborators)
	return out
}

func (h *Hooks) GiftNote() {
	for _, c := range h.snapshot() {
		if b, ok := c.(GiftNoteBinder); ok {
			b.InitGiftNoteToggle()
		}
	}
}

func (h *Hooks) Recommendations() {
	for _, c := range h.snapshot() {
		if b, ok := c.(RecommendationsBinder); ok {
			b.InitRecommendationsSwiper()
		}
	}
}

func (h *Hooks) Tooltips() {
	for _, c := range h.snapshot() {
		if r, ok := c.(TooltipReinitializer); ok {
			r.Reinitialize()
		}
	}
}

// All runs every hook in the order the drawer expects: gift note, carousel,
// tooltips.
func (h *Hooks) All() {
	h.GiftNote()
	h.Recommendations()
	h.Tooltips()
}
