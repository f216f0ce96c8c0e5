package httpx

import (
	"net/http"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/db/tasks"
)

type addTaskRequest struct {
	Title string `json:"title"`
}

func (s *Server) addTask(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		writeError(w, apperr.AuthRequired())
		return
	}
	var req addTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, apperr.New(apperr.KindValidation, "title is required"))
		return
	}
	task, err := s.tasks.Add(r.Context(), userID, req.Title)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindUnexpected, "add task", err))
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		writeError(w, apperr.AuthRequired())
		return
	}
	list, err := s.tasks.ListForOwner(r.Context(), userID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindUnexpected, "list tasks", err))
		return
	}
	if list == nil {
		list = []tasksdb.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": list})
}
