package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskmaster/internal/auth"
	"github.com/BuzzLyutic/taskmaster/pkg/respond"
)

type AuthHandler struct {
	gateway *auth.Gateway
	logger  *zap.Logger
}

func NewAuthHandler(gw *auth.Gateway, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		gateway: gw,
		logger:  logger,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	user, err := h.gateway.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	session, err := h.gateway.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, session)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respond.Error(w, r, http.StatusBadRequest, "refresh_token required")
		return
	}

	session, err := h.gateway.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, session)
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respond.Error(w, r, http.StatusBadRequest, "refresh_token required")
		return
	}

	if err := h.gateway.SignOut(r.Context(), req.RefreshToken); err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	user, err := h.gateway.CurrentUser(r.Context(), p.UserID)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, user)
}

func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, map[string][]string{"providers": h.gateway.Providers()})
}

func (h *AuthHandler) StartOAuth(w http.ResponseWriter, r *http.Request) {
	url, err := h.gateway.BeginOAuth(r.Context(), chi.URLParam(r, "provider"))
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		respond.Error(w, r, http.StatusBadRequest, "provider error: "+e)
		return
	}

	session, err := h.gateway.CompleteOAuth(r.Context(), chi.URLParam(r, "provider"), q.Get("state"), q.Get("code"))
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, session)
}
