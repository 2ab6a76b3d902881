package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/olympusx/crm/internal/task"
)

var taskStatuses = map[task.Status]bool{
	task.StatusTodo:       true,
	task.StatusInProgress: true,
	task.StatusDone:       true,
}

type taskPayload struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	DueDate     *string `json:"due_date"`
	AssignedTo  *string `json:"assigned_to"`
	LinkedToID  *string `json:"linked_to_id"`
}

func (p taskPayload) toInput() (task.CreateInput, error) {
	input := task.CreateInput{
		Title:       strings.TrimSpace(p.Title),
		Description: p.Description,
		Status:      task.StatusTodo,
	}
	if input.Title == "" {
		return input, errors.New("title é obrigatório")
	}
	if p.Status != "" {
		status := task.Status(p.Status)
		if !taskStatuses[status] {
			return input, fmt.Errorf("status inválido: %s", p.Status)
		}
		input.Status = status
	}
	if p.DueDate != nil && *p.DueDate != "" {
		parsed, err := parseISODate(*p.DueDate)
		if err != nil {
			return input, errors.New("due_date inválida")
		}
		input.DueDate = &parsed
	}
	if p.AssignedTo != nil && *p.AssignedTo != "" {
		parsed, err := uuid.Parse(*p.AssignedTo)
		if err != nil {
			return input, errors.New("assigned_to inválido")
		}
		input.AssignedTo = uuid.NullUUID{UUID: parsed, Valid: true}
	}
	if p.LinkedToID != nil && *p.LinkedToID != "" {
		parsed, err := uuid.Parse(*p.LinkedToID)
		if err != nil {
			return input, errors.New("linked_to_id inválido")
		}
		input.LinkedToID = uuid.NullUUID{UUID: parsed, Valid: true}
	}
	return input, nil
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar tarefas", nil)
		return
	}
	WriteJSON(w, http.StatusOK, tasks)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	input, err := payload.toInput()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	created, err := h.tasks.Create(r.Context(), input)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível criar tarefa", nil)
		return
	}

	WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	input, err := payload.toInput()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	updated, err := h.tasks.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível atualizar tarefa", nil)
		return
	}

	WriteJSON(w, http.StatusOK, updated)
}

// MoveTask muda a coluna do cartão no quadro.
func (h *Handler) MoveTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	status := task.Status(payload.Status)
	if !taskStatuses[status] {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "status inválido", nil)
		return
	}

	if err := h.tasks.UpdateStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível mover tarefa", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": payload.Status})
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	if err := h.tasks.Delete(r.Context(), id); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível remover tarefa", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
