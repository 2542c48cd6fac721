package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskmaster/internal/auth"
	"github.com/BuzzLyutic/taskmaster/internal/feed"
	"github.com/BuzzLyutic/taskmaster/internal/model"
	"github.com/BuzzLyutic/taskmaster/internal/repo"
	"github.com/BuzzLyutic/taskmaster/internal/service"
	"github.com/BuzzLyutic/taskmaster/pkg/respond"
)

type TaskHandler struct {
	service   *service.TaskService
	broker    *feed.Broker
	logger    *zap.Logger
	keepAlive time.Duration
}

func NewTaskHandler(srv *service.TaskService, broker *feed.Broker, logger *zap.Logger, keepAlive time.Duration) *TaskHandler {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return &TaskHandler{
		service:   srv,
		broker:    broker,
		logger:    logger,
		keepAlive: keepAlive,
	}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return
	}

	var req service.NewTask
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	task, err := h.service.Create(r.Context(), p.UserID, req)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	w.Header().Set("Location", "/api/tasks/"+task.ID)
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	id, ok := taskID(r)
	if !ok {
		handleErrors(h.logger, w, r, repo.ErrorNotFound)
		return
	}

	task, err := h.service.Get(r.Context(), p.UserID, id)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

// List returns the caller's tasks, newest first. A user_id filter naming anyone
// else matches nothing, like a row policy would.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	filter, err := model.ParseFilter(r.URL.Query().Get("status"))
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid status filter")
		return
	}

	if owner := r.URL.Query().Get("user_id"); owner != "" && owner != p.UserID {
		respond.JSON(w, r, http.StatusOK, []model.Task{})
		return
	}

	tasks, err := h.service.List(r.Context(), p.UserID, filter)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, tasks)
}

// Update replaces title, description and status of the addressed task.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	id, ok := taskID(r)
	if !ok {
		handleErrors(h.logger, w, r, repo.ErrorNotFound)
		return
	}

	var req model.Task
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	req.ID = id

	task, err := h.service.Update(r.Context(), p.UserID, req)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

type taskPatch struct {
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	Status      *model.Status `json:"status"`
}

// Patch changes only the fields present in the body, e.g. {"status":"completed"}.
func (h *TaskHandler) Patch(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	id, ok := taskID(r)
	if !ok {
		handleErrors(h.logger, w, r, repo.ErrorNotFound)
		return
	}

	var req taskPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := h.service.Get(r.Context(), p.UserID, id)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		task.Status = *req.Status
	}

	task, err = h.service.Update(r.Context(), p.UserID, task)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	id, ok := taskID(r)
	if !ok {
		handleErrors(h.logger, w, r, repo.ErrorNotFound)
		return
	}

	if err := h.service.Delete(r.Context(), p.UserID, id); err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Changes streams the caller's change events as server-sent events until the
// client goes away or the server shuts down.
func (h *TaskHandler) Changes(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	// the stream outlives the server's write timeout
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("cannot clear write deadline", zap.Error(err))
	}

	events, cancel := h.broker.Subscribe(p.UserID)
	defer cancel()

	flusher, err := respond.StartStream(w)
	if err != nil {
		h.logger.Error("stream unsupported", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h.logger.Debug("change stream opened", zap.String("user_id", p.UserID))
	defer h.logger.Debug("change stream closed", zap.String("user_id", p.UserID))

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := respond.Event(w, flusher, "change", ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := respond.KeepAlive(w, flusher); err != nil {
				return
			}
		}
	}
}

func taskID(r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}
