package handler

import (
	"context"
	"errors"
	"net/http"

	"el-store/model"
	"el-store/service"

	"github.com/felixge/httpsnoop"
	"go.uber.org/zap"
)

type ctxKey int

const sessionKey ctxKey = iota

func withSession(ctx context.Context, s model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// sessionFrom returns the session attached by attachSession.
func sessionFrom(ctx context.Context) (model.Session, bool) {
	s, ok := ctx.Value(sessionKey).(model.Session)
	return s, ok
}

// attachSession resolves the session cookie, if any, into the request context.
func (h *Handler) attachSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(h.opts.CookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		sess, err := h.svc.Session(r.Context(), c.Value)
		switch {
		case err == nil:
			r = r.WithContext(withSession(r.Context(), sess))
		case !errors.Is(err, service.ErrUnauthorized):
			h.log.Warn("load session", zap.Error(err))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessionFrom(r.Context()); !ok {
			writeErr(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFrom(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !sess.IsAdmin() {
			writeErr(w, http.StatusForbidden, service.ErrForbidden.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) admin(fn http.HandlerFunc) http.Handler {
	return h.requireAdmin(fn)
}

// logRequests writes one line per request.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		lvl := zap.DebugLevel
		if m.Code >= http.StatusInternalServerError {
			lvl = zap.WarnLevel
		}
		if ce := h.log.Check(lvl, "http request"); ce != nil {
			ce.Write(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", m.Code),
				zap.Int64("bytes", m.Written),
				zap.Duration("duration", m.Duration),
			)
		}
	})
}
