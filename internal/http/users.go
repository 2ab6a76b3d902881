package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/olympusx/crm/internal/perm"
	"github.com/olympusx/crm/internal/repo"
)

type userView struct {
	ID        string       `json:"id"`
	Nome      string       `json:"nome"`
	Email     string       `json:"email"`
	RoleID    *string      `json:"role_id"`
	Overrides perm.RuleSet `json:"permission_overrides,omitempty"`
	Ativo     bool         `json:"ativo"`
}

func toUserView(u repo.Usuario) userView {
	view := userView{
		ID:        u.ID.String(),
		Nome:      u.Nome,
		Email:     u.Email,
		Overrides: u.Overrides,
		Ativo:     u.Ativo,
	}
	if u.RoleID.Valid {
		id := u.RoleID.UUID.String()
		view.RoleID = &id
	}
	return view
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.usuarios.ListUsuarios(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar usuários", nil)
		return
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	WriteJSON(w, http.StatusOK, views)
}

// UpdateUserAccess altera o papel e os overrides individuais de um usuário.
func (h *Handler) UpdateUserAccess(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload struct {
		RoleID    *string      `json:"role_id"`
		Overrides perm.RuleSet `json:"permission_overrides"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	var roleID uuid.NullUUID
	if payload.RoleID != nil && *payload.RoleID != "" {
		parsed, err := uuid.Parse(*payload.RoleID)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "role_id inválido", nil)
			return
		}
		roleID = uuid.NullUUID{UUID: parsed, Valid: true}
	}

	if err := h.usuarios.UpdateUsuarioAcesso(r.Context(), id, roleID, payload.Overrides); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível atualizar acesso", nil)
		return
	}

	user, err := h.usuarios.GetUsuarioByID(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível carregar usuário", nil)
		return
	}

	WriteJSON(w, http.StatusOK, toUserView(user))
}
