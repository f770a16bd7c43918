package storefront

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-drawer/internal/domain"
)

// maxBodySize bounds mutation request bodies.
const maxBodySize = 1 << 20

type Handler struct {
	service  *Service
	renderer *Renderer
	logger   *zap.Logger
}

func NewHandler(service *Service, renderer *Renderer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:  service,
		renderer: renderer,
		logger:   logger,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// cartError is the platform's error body for rejected mutations.
type cartError struct {
	Status      any    `json:"status"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
	Errors      string `json:"errors,omitempty"`
}

// cartResponse is the snapshot returned after a mutation, plus the rendered
// sections that were asked for.
type cartResponse struct {
	Token string `json:"token"`
	domain.CartSnapshot
}

// flexID accepts a JSON string or number.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type addItemDTO struct {
	ID          flexID `json:"id"`
	Quantity    int    `json:"quantity"`
	SellingPlan string `json:"selling_plan"`
}

type mutationDTO struct {
	Line        int            `json:"line"`
	ID          flexID         `json:"id"`
	Quantity    *int           `json:"quantity"`
	SellingPlan string         `json:"selling_plan"`
	Items       []addItemDTO   `json:"items"`
	Updates     map[string]int `json:"updates"`
	Sections    []string       `json:"sections"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (mutationDTO, bool) {
	var req mutationDTO
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return req, false
	}
	return req, true
}

// Change handles POST /cart/change.js.
func (h *Handler) Change(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if req.Line <= 0 && req.ID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "line or id is required")
		return
	}
	cart, err := h.service.Change(r.Context(), getSession(r.Context()), ChangeInput{
		Line:        req.Line,
		ID:          string(req.ID),
		Quantity:    req.Quantity,
		SellingPlan: req.SellingPlan,
	})
	h.respondCart(w, r, "change", cart, req.Sections, err)
}

// Add handles POST /cart/add.js. A single item may be sent at the top level.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	items := make([]domain.AddItem, 0, len(req.Items)+1)
	for _, it := range req.Items {
		items = append(items, domain.AddItem{ID: string(it.ID), Quantity: it.Quantity, SellingPlan: it.SellingPlan})
	}
	if len(items) == 0 && req.ID != "" {
		qty := 1
		if req.Quantity != nil {
			qty = *req.Quantity
		}
		items = append(items, domain.AddItem{ID: string(req.ID), Quantity: qty, SellingPlan: req.SellingPlan})
	}
	cart, err := h.service.Add(r.Context(), getSession(r.Context()), items)
	h.respondCart(w, r, "add", cart, req.Sections, err)
}

// Update handles POST /cart/update.js.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	cart, err := h.service.Update(r.Context(), getSession(r.Context()), req.Updates)
	h.respondCart(w, r, "update", cart, req.Sections, err)
}

// ChangeLink handles GET /cart/change?line=N&quantity=Q, the link form used
// without scripts, and redirects back to the page.
func (h *Handler) ChangeLink(w http.ResponseWriter, r *http.Request) {
	line, err := parseLine(r.URL.Query().Get("line"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_line", err.Error())
		return
	}
	qty, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be a number")
		return
	}
	if _, err := h.service.Change(r.Context(), getSession(r.Context()), ChangeInput{Line: line, Quantity: &qty}); err != nil {
		h.respondMutationError(w, h.logger, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Clear handles POST /cart/clear.js.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	token := getSession(r.Context())
	if err := h.service.Clear(r.Context(), token); err != nil {
		h.respondCart(w, r, "clear", nil, nil, err)
		return
	}
	h.respondCart(w, r, "clear", newCart(token), nil, nil)
}

// Cart handles GET /cart.js.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.Cart(r.Context(), getSession(r.Context()))
	h.respondCart(w, r, "cart", cart, nil, err)
}

// Page renders the storefront page with the drawer, at GET /.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.Cart(r.Context(), getSession(r.Context()))
	if err != nil {
		h.logger.Error("load cart for page failed", zap.String("request_id", getRequestID(r.Context())), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "could not load cart")
		return
	}
	page, err := h.renderer.Page(cart)
	if err != nil {
		h.logger.Error("render page failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "could not render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, verb string, cart *Cart, sections []string, err error) {
	log := h.logger.With(zap.String("verb", verb), zap.String("request_id", getRequestID(r.Context())))
	if err != nil {
		h.respondMutationError(w, log, err)
		return
	}
	resp := cartResponse{Token: cart.Token, CartSnapshot: cart.Snapshot(h.service.Catalog())}
	rendered, err := h.renderer.Sections(cart, sections)
	if err != nil {
		log.Error("render sections failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "could not render sections")
		return
	}
	resp.Sections = rendered
	log.Debug("cart mutation applied", zap.Int("item_count", resp.ItemCount), zap.Int64("total_price", resp.TotalPrice))
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) respondMutationError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, ErrSoldOut):
		log.Info("variant sold out", zap.Error(err))
		respondJSON(w, http.StatusUnprocessableEntity, cartError{
			Status: http.StatusUnprocessableEntity, Message: "Cart Error", Description: err.Error(),
		})
	case errors.Is(err, ErrUnknownVariant):
		respondJSON(w, http.StatusNotFound, cartError{
			Status: http.StatusNotFound, Message: "Cart Error", Description: "Cannot find variant",
		})
	case errors.Is(err, ErrUnknownLine), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrEmptyMutation):
		respondJSON(w, http.StatusBadRequest, cartError{
			Status: http.StatusBadRequest, Message: "Cart Error", Errors: errorText(err),
		})
	default:
		log.Error("cart mutation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "cart is temporarily unavailable")
	}
}

func errorText(err error) string {
	switch {
	case errors.Is(err, ErrUnknownLine):
		return "The line item you tried to change is no longer in your cart."
	case errors.Is(err, ErrInvalidQuantity):
		return "Quantity must be 0 or more."
	}
	return "Nothing to update."
}

// Health reports liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// parseLine reads a 1-based line index from a query value.
func parseLine(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid line %q", raw)
	}
	return n, nil
}
