package handler

import (
	"encoding/json"
	"net/http"

	"el-store/model"
	"el-store/service"
)

// ListProducts handles GET /api/product/all
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": ps})
}

// SearchProducts handles GET /api/product/search?q=...&categories=a,b
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	cats := queryList(r, "categories")
	for _, id := range cats {
		if !model.ValidID(id) {
			writeErr(w, http.StatusBadRequest, "invalid category id")
			return
		}
	}
	ps, err := h.svc.SearchProducts(r.Context(), r.URL.Query().Get("q"), cats)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": ps, "total": len(ps)})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	p, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"product": p})
}

// CreateProduct handles POST /api/admin/products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req service.ProductInput
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "product created", "productId": p.ID})
}

// UpdateProduct handles PUT /api/admin/products/{productId}. Omitted fields
// keep their values.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	var req service.ProductPatch
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.UpdateProduct(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "product updated", "product": p})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted", "deletedProductId": id})
}

// Categories

// CategoryTree handles GET /api/admin/categories/tree. It is public: the
// storefront builds its catalog menu from it.
func (h *Handler) CategoryTree(w http.ResponseWriter, r *http.Request) {
	tree, total, err := h.svc.CategoryTree(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": tree, "total": total})
}

// nullableID tells an omitted field from an explicit null.
type nullableID struct {
	Set   bool
	Value *string
}

func (n *nullableID) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

type categoryReq struct {
	Name           string     `json:"name"`
	ParentCategory nullableID `json:"parentCategory"`
}

func (c categoryReq) input() service.CategoryInput {
	return service.CategoryInput{Name: c.Name, ParentSet: c.ParentCategory.Set, ParentID: c.ParentCategory.Value}
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryReq
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.CreateCategory(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "category created", "category": c})
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "categoryId")
	if !ok {
		return
	}
	var req categoryReq
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.UpdateCategory(r.Context(), id, req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "category updated", "category": c})
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "categoryId")
	if !ok {
		return
	}
	c, err := h.svc.DeleteCategory(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":         "category deleted",
		"deletedCategory": map[string]string{"id": c.ID, "name": c.Name},
	})
}
