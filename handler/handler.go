package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"el-store/model"
	"el-store/service"
	"el-store/store"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Options carries the HTTP-level settings of the API.
type Options struct {
	CookieName     string
	SessionTTL     time.Duration
	SecureCookies  bool
	AllowedOrigin  string
	UploadsDir     string
	StaticDir      string // empty disables serving the client build
	MaxUploadSize  int64
	MaxUploadFiles int
}

func (o Options) withDefaults() Options {
	if o.CookieName == "" {
		o.CookieName = "sessionId"
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 24 * time.Hour
	}
	if o.MaxUploadSize <= 0 {
		o.MaxUploadSize = 5 << 20
	}
	if o.MaxUploadFiles <= 0 {
		o.MaxUploadFiles = 10
	}
	return o
}

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc  service.ServiceInterface
	log  *zap.Logger
	opts Options
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, log *zap.Logger, opts Options) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: s, log: log, opts: opts.withDefaults()}
}

// --- helpers ---

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// pathID returns the path variable name when it is a well-formed id.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := mux.Vars(r)[name]
	if !model.ValidID(id) {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return id, true
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// queryList collects comma separated and repeated values of key.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// fail maps an error from the service layer to a response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stockErr  *service.StockError
		issuesErr *service.StockIssuesError
		validErr  *service.ValidationError
	)
	switch {
	case errors.As(err, &stockErr):
		body := map[string]interface{}{"error": stockErr.Msg, "available": stockErr.Available}
		if stockErr.CurrentInCart != nil {
			body["currentInCart"] = *stockErr.CurrentInCart
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &issuesErr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "some products are not available in the requested quantity",
			"issues": issuesErr.Issues,
		})
	case errors.As(err, &validErr):
		writeErr(w, http.StatusBadRequest, validErr.Msg)
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		writeErr(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeErr(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrStatusConflict):
		writeErr(w, http.StatusConflict, "order status has changed, reload and try again")
	case errors.Is(err, store.ErrDuplicate):
		writeErr(w, http.StatusBadRequest, "already exists")
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeErr(w, http.StatusNotFound, "route not found")
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
}

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
