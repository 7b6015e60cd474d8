package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/service/task"
)

type TaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	AssignedTo  string     `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date"`
}

func taskActor(r *http.Request) task.Actor {
	u := actor(r)
	return task.Actor{ID: u.ID, CompanyID: u.CompanyID, Role: u.Role}
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) error {
	list, err := h.Tasks.List(r.Context(), taskActor(r))
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": list})
	return nil
}

func (h *handler) createTask(w http.ResponseWriter, r *http.Request) error {
	var req TaskRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	t, err := h.Tasks.Create(r.Context(), taskActor(r), task.Input{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
	})
	if err != nil {
		return err
	}
	h.Log.InfoContext(r.Context(), "task assigned", "company_id", t.CompanyID, "task_id", t.ID, "assigned_to", t.AssignedTo)
	writeJSON(w, http.StatusCreated, t)
	return nil
}

func (h *handler) setTaskStatus(w http.ResponseWriter, r *http.Request) error {
	var req StatusRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	t, err := h.Tasks.SetStatus(r.Context(), taskActor(r), chi.URLParam(r, "taskID"), models.TaskStatus(req.Status))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, t)
	return nil
}

func (h *handler) deleteTask(w http.ResponseWriter, r *http.Request) error {
	if err := h.Tasks.Delete(r.Context(), taskActor(r), chi.URLParam(r, "taskID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
