package handler

import (
	"net/http"
)

type cartItemReq struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

func currentUserID(r *http.Request) string {
	s, _ := sessionFrom(r.Context())
	return s.UserID
}

// GetCart handles GET /api/cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCart(r.Context(), currentUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// AddToCart handles POST /api/cart
// body: { "productId": "...", "quantity": 2 }; quantity defaults to 1.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if !decode(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		writeErr(w, http.StatusBadRequest, "productId is required")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	c, err := h.svc.AddToCart(r.Context(), currentUserID(r), req.ProductID, qty)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "item added to cart", "cart": c})
}

// UpdateCartItem handles PUT /api/cart/{productId}
// body: { "quantity": 3 }; 0 removes the item.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	var req cartItemReq
	if !decode(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		writeErr(w, http.StatusBadRequest, "quantity is required")
		return
	}
	c, err := h.svc.UpdateCartItem(r.Context(), currentUserID(r), id, *req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "cart updated", "cart": c})
}

// RemoveFromCart handles DELETE /api/cart/{productId}
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	c, err := h.svc.RemoveFromCart(r.Context(), currentUserID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "item removed from cart", "cart": c})
}

// ClearCart handles DELETE /api/cart
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearCart(r.Context(), currentUserID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
}
