package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vitrina-app/vitrina/internal/domain/guard"
	"github.com/vitrina-app/vitrina/internal/domain/session"
)

// maxFormSize caps login and register form bodies.
const maxFormSize = 64 << 10

// AuthFlows is the login/register/logout coordinator the form endpoints call.
type AuthFlows interface {
	Login(ctx context.Context, username, password, next string) (string, error)
	Register(ctx context.Context, username, email, password, next string) (string, error)
	Logout() string
}

// FormError is the JSON body of a failed form submission. Message is the
// backend text, unchanged.
type FormError struct {
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// FormHandler serves POST /login, /register and /logout.
type FormHandler struct {
	flows AuthFlows
}

// NewFormHandler creates a FormHandler.
func NewFormHandler(flows AuthFlows) *FormHandler {
	return &FormHandler{flows: flows}
}

// Register mounts the form endpoints on mux. Cross-site posts are refused.
func (h *FormHandler) Register(mux *http.ServeMux, loginPath string) {
	sameOrigin := SameOriginMiddleware()
	mux.Handle("POST "+loginPath, sameOrigin(http.HandlerFunc(h.login)))
	mux.Handle("POST /register", sameOrigin(http.HandlerFunc(h.register)))
	mux.Handle("POST /logout", sameOrigin(http.HandlerFunc(h.logout)))
}

func (h *FormHandler) login(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	dest, err := h.flows.Login(r.Context(),
		strings.TrimSpace(r.PostFormValue("username")),
		r.PostFormValue("password"),
		nextOf(r),
	)
	if err != nil {
		writeFlowError(w, r, err, http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func (h *FormHandler) register(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	dest, err := h.flows.Register(r.Context(),
		strings.TrimSpace(r.PostFormValue("username")),
		strings.TrimSpace(r.PostFormValue("email")),
		r.PostFormValue("password"),
		nextOf(r),
	)
	if err != nil {
		writeFlowError(w, r, err, http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func (h *FormHandler) logout(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.flows.Logout(), http.StatusSeeOther)
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, FormError{Message: "invalid form"})
		return false
	}
	return true
}

// nextOf reads the return path from the form, then from the query string of
// the login page the form was posted from.
func nextOf(r *http.Request) string {
	if next := r.PostFormValue(guard.NextParam); next != "" {
		return next
	}
	return r.URL.Query().Get(guard.NextParam)
}

// writeFlowError answers rejections with status, validation failures with
// 400, and anything else (backend unreachable, bad gateway) with 502.
func writeFlowError(w http.ResponseWriter, r *http.Request, err error, status int) {
	var vErr *session.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, FormError{Message: vErr.Error(), Fields: vErr.Fields})
	case errors.Is(err, session.ErrAuth):
		writeJSON(w, status, FormError{Message: err.Error()})
	default:
		LoggerFromContext(r.Context()).Error("auth flow failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, FormError{Message: "backend unavailable"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
