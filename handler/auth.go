package handler

import (
	"net/http"
	"time"

	"el-store/model"
	"el-store/service"

	"go.uber.org/zap"
)

func (h *Handler) setSessionCookie(w http.ResponseWriter, s model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(h.opts.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// Register handles POST /api/auth/register
// body: { "login": "...", "displayName": "...", "email": "...", "password": "..." }
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "user registered", "user": u})
}

// Login handles POST /api/auth/login
// body: { "login": "...", "password": "..." }; login may be the email.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// a new login replaces whatever session the browser had
	if old, ok := sessionFrom(r.Context()); ok {
		if err := h.svc.Logout(r.Context(), old.ID); err != nil {
			h.log.Warn("drop previous session", zap.Error(err))
		}
	}
	sess, err := h.svc.StartSession(r.Context(), u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "logged in", "user": u})
}

// Logout handles POST /api/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	if err := h.svc.Logout(r.Context(), sess.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/auth/me. Anonymous callers get {"user": null}.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": nil})
		return
	}
	u, err := h.svc.CurrentUser(r.Context(), sess.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if u == nil {
		h.clearSessionCookie(w)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": u})
}
