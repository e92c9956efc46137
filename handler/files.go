package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"el-store/service"
)

const multipartMemory = 8 << 20

// UploadImages handles POST /api/files/products/{productId}/upload with a
// multipart form carrying the files in the "images" field.
func (h *Handler) UploadImages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	limit := h.opts.MaxUploadSize*int64(h.opts.MaxUploadFiles) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("file size exceeds %dMB", h.opts.MaxUploadSize>>20))
			return
		}
		writeErr(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["images"]
	if len(headers) > h.opts.MaxUploadFiles {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("too many files (max %d)", h.opts.MaxUploadFiles))
		return
	}
	uploads := make([]service.Upload, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.fail(w, r, fmt.Errorf("open upload: %w", err))
			return
		}
		opened = append(opened, f)
		uploads = append(uploads, service.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	res, err := h.svc.UploadImages(r.Context(), id, uploads)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": fmt.Sprintf("images uploaded (%d)", len(res.Files)),
		"files":   res.Files,
		"product": res.Product,
	})
}

// ListImages handles GET /api/files/products/{productId}
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	images, err := h.svc.ListImages(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"productId": id, "images": images, "total": len(images)})
}

func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	p, err := h.svc.DeleteImage(r.Context(), id, muxVar(r, "filename"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "image deleted", "product": p})
}

func (h *Handler) DeleteAllImages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	p, err := h.svc.DeleteAllImages(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "all images deleted", "product": p})
}
