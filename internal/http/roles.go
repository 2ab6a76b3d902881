package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/olympusx/crm/internal/perm"
	"github.com/olympusx/crm/internal/role"
)

type rolePayload struct {
	Name        string       `json:"name"`
	Permissions perm.RuleSet `json:"permissions"`
}

func (p rolePayload) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name é obrigatório")
	}
	return nil
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar papéis", nil)
		return
	}
	WriteJSON(w, http.StatusOK, roles)
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var payload rolePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	if err := payload.validate(); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	created, err := h.roles.Create(r.Context(), role.CreateInput{
		Name:  strings.TrimSpace(payload.Name),
		Rules: payload.Permissions,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível criar papel", nil)
		return
	}

	WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload rolePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	if err := payload.validate(); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	updated, err := h.roles.Update(r.Context(), id, role.CreateInput{
		Name:  strings.TrimSpace(payload.Name),
		Rules: payload.Permissions,
	})
	if err != nil {
		if errors.Is(err, role.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível atualizar papel", nil)
		return
	}

	WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	if err := h.roles.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, role.ErrNotFound):
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		case errors.Is(err, role.ErrInUse):
			WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
		default:
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível remover papel", nil)
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
