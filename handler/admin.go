package handler

import (
	"net/http"

	"el-store/model"
	"el-store/service"
)

// ListUsers handles GET /api/admin/users?page=1&limit=10&search=...
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := service.NewPage(queryInt(r, "page"), queryInt(r, "limit"), 10)
	list, err := h.svc.ListUsers(r.Context(), page, r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdateUserRole handles PATCH /api/admin/users/{userId}/role
// body: { "role": "ADMIN" }
func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.UpdateUserRole(r.Context(), currentUserID(r), id, req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "user role updated", "user": u})
}

// ListAllOrders handles GET /api/admin/orders?page&limit&status&userId
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if uid := q.Get("userId"); uid != "" && !model.ValidID(uid) {
		writeErr(w, http.StatusBadRequest, "invalid user id")
		return
	}
	page := service.NewPage(queryInt(r, "page"), queryInt(r, "limit"), 20)
	list, err := h.svc.ListAllOrders(r.Context(), page, q.Get("status"), q.Get("userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetOrderAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	o, err := h.svc.GetOrderAdmin(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": o})
}

// UpdateOrderStatus handles PUT /api/admin/orders/{orderId}/status
// body: { "status": "PAID" }
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	o, err := h.svc.UpdateOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "order status updated", "order": o})
}

func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	o, err := h.svc.MarkDelivered(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusReply("order delivered", o))
}
