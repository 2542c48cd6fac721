package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskmaster/internal/auth"
	"github.com/BuzzLyutic/taskmaster/internal/model"
	"github.com/BuzzLyutic/taskmaster/internal/repo"
	"github.com/BuzzLyutic/taskmaster/internal/service"
	"github.com/BuzzLyutic/taskmaster/pkg/respond"
)

func handleErrors(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrorConflict):
		respond.Error(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, repo.ErrorInvalid),
		errors.Is(err, model.ErrInvalidStatus):
		respond.Error(w, r, http.StatusBadRequest, "validation error")
	case errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, auth.ErrInvalidState):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUserExists):
		respond.Error(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		respond.Error(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrUnknownProvider):
		respond.Error(w, r, http.StatusNotFound, err.Error())
	default:
		logger.Error("internal error", zap.String("path", r.URL.Path), zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
