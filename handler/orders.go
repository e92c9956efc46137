package handler

import (
	"net/http"

	"el-store/service"
)

// CreateOrder handles POST /api/orders: checkout of the current cart.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.CreateOrder(r.Context(), currentUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "order created", "order": o})
}

// ListOrders handles GET /api/orders?page=1&limit=10&status=PAID
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page := service.NewPage(queryInt(r, "page"), queryInt(r, "limit"), 10)
	list, err := h.svc.ListOrders(r.Context(), currentUserID(r), page, r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	o, err := h.svc.GetOrder(r.Context(), currentUserID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": o})
}

// UpdateOrder handles PUT /api/orders/{orderId}
// body: { "deliveryInfo": {...}, "paymentInfo": {...}, "items": [...] }
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	var req service.OrderUpdate
	if !decode(w, r, &req) {
		return
	}
	o, err := h.svc.UpdateOrder(r.Context(), currentUserID(r), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "order updated", "order": o})
}

// PayOrder handles POST /api/orders/{orderId}/pay
// body: { "cardNumber": "...", "cvc": "...", "expirationDate": "MM/YY" }
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	var req service.PaymentInput
	if !decode(w, r, &req) {
		return
	}
	o, err := h.svc.PayOrder(r.Context(), currentUserID(r), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "payment successful", "order": o})
}

func statusReply(msg string, o service.OrderView) map[string]interface{} {
	return map[string]interface{}{"message": msg, "orderId": o.ID, "status": o.Status}
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	o, err := h.svc.CancelOrder(r.Context(), currentUserID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusReply("order cancelled", o))
}

func (h *Handler) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	o, err := h.svc.DeliverOrder(r.Context(), currentUserID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusReply("order delivered", o))
}
