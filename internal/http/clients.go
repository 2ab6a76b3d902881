package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olympusx/crm/internal/client"
	"github.com/olympusx/crm/internal/perm"
	"github.com/olympusx/crm/internal/service"
	"github.com/olympusx/crm/internal/storage"
)

func (h *Handler) handleAccessError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrForbidden) {
		WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
		return
	}
	WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível resolver permissões", nil)
}

var clientStatuses = map[string]bool{
	client.StatusLead:     true,
	client.StatusProposta: true,
	client.StatusAtivo:    true,
	client.StatusPerdido:  true,
}

type clientPayload struct {
	Name   string  `json:"name"`
	Email  *string `json:"email"`
	Phone  *string `json:"phone"`
	Status string  `json:"status"`
	Owner  string  `json:"owner_id"`
}

func (p clientPayload) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name é obrigatório")
	}
	if p.Status != "" && !clientStatuses[p.Status] {
		return fmt.Errorf("status inválido: %s", p.Status)
	}
	return nil
}

// ListClients lista clientes respeitando o escopo efetivo do usuário.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	sub, effective, err := h.access.Require(r.Context(), subject, "clients", "view")
	if err != nil {
		h.handleAccessError(w, err)
		return
	}

	scope, allowed := perm.EffectiveScope(sub, effective, "clients", "view")
	clients, err := h.clients.ListVisible(r.Context(), scope, subject, allowed)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar clientes", nil)
		return
	}

	WriteJSON(w, http.StatusOK, clients)
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	c, err := h.clients.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível carregar cliente", nil)
		return
	}

	WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	var payload clientPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	if err := payload.validate(); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	owner := subject
	if payload.Owner != "" {
		parsed, err := uuid.Parse(payload.Owner)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "owner_id inválido", nil)
			return
		}
		owner = parsed
	}

	status := payload.Status
	if status == "" {
		status = client.StatusLead
	}

	created, err := h.clients.Create(r.Context(), client.CreateInput{
		Name:    strings.TrimSpace(payload.Name),
		Email:   payload.Email,
		Phone:   payload.Phone,
		Status:  status,
		OwnerID: owner,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível criar cliente", nil)
		return
	}

	WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	current, err := h.clients.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível carregar cliente", nil)
		return
	}

	var payload clientPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	if err := payload.validate(); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	owner := current.OwnerID
	if payload.Owner != "" {
		parsed, err := uuid.Parse(payload.Owner)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "owner_id inválido", nil)
			return
		}
		owner = parsed
	}

	status := payload.Status
	if status == "" {
		status = current.Status
	}

	updated, err := h.clients.Update(r.Context(), id, client.CreateInput{
		Name:    strings.TrimSpace(payload.Name),
		Email:   payload.Email,
		Phone:   payload.Phone,
		Status:  status,
		OwnerID: owner,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível atualizar cliente", nil)
		return
	}

	WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	if err := h.clients.Delete(r.Context(), id); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível remover cliente", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type contractPayload struct {
	Operator          string  `json:"operator"`
	PolicyNumber      string  `json:"policy_number"`
	Value             float64 `json:"value"`
	BoletoSentDate    *string `json:"boleto_sent_date"`
	BoletoResponsible *string `json:"boleto_responsible_id"`
}

func (p contractPayload) toInput() (client.ContractInput, error) {
	input := client.ContractInput{
		Operator:     strings.TrimSpace(p.Operator),
		PolicyNumber: strings.TrimSpace(p.PolicyNumber),
		Value:        p.Value,
	}
	if input.Operator == "" {
		return input, errors.New("operator é obrigatório")
	}

	if p.BoletoSentDate != nil && *p.BoletoSentDate != "" {
		parsed, err := parseISODate(*p.BoletoSentDate)
		if err != nil {
			return input, errors.New("boleto_sent_date inválida")
		}
		input.BoletoSentDate = &parsed
	}
	if p.BoletoResponsible != nil && *p.BoletoResponsible != "" {
		parsed, err := uuid.Parse(*p.BoletoResponsible)
		if err != nil {
			return input, errors.New("boleto_responsible_id inválido")
		}
		input.BoletoResponsibleID = uuid.NullUUID{UUID: parsed, Valid: true}
	}
	return input, nil
}

func (h *Handler) AddContract(w http.ResponseWriter, r *http.Request) {
	clientID, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload contractPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	input, err := payload.toInput()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	contract, err := h.clients.AddContract(r.Context(), clientID, input)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível criar contrato", nil)
		return
	}

	WriteJSON(w, http.StatusCreated, contract)
}

func (h *Handler) UpdateContract(w http.ResponseWriter, r *http.Request) {
	clientID, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}
	contractID, err := parseUUIDParam(r, "contractId")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "contractId inválido", nil)
		return
	}

	var payload contractPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	input, err := payload.toInput()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	contract, err := h.clients.UpdateContract(r.Context(), clientID, contractID, input)
	if err != nil {
		if errors.Is(err, client.ErrContractNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível atualizar contrato", nil)
		return
	}

	WriteJSON(w, http.StatusOK, contract)
}

// ActivateContract ativa um contrato e desativa os demais do mesmo cliente.
func (h *Handler) ActivateContract(w http.ResponseWriter, r *http.Request) {
	clientID, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}
	contractID, err := parseUUIDParam(r, "contractId")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "contractId inválido", nil)
		return
	}

	if err := h.clients.ActivateContract(r.Context(), clientID, contractID); err != nil {
		if errors.Is(err, client.ErrContractNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível ativar contrato", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

func (h *Handler) DeactivateContract(w http.ResponseWriter, r *http.Request) {
	clientID, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}
	contractID, err := parseUUIDParam(r, "contractId")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "contractId inválido", nil)
		return
	}

	if err := h.clients.DeactivateContract(r.Context(), clientID, contractID); err != nil {
		if errors.Is(err, client.ErrContractNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível desativar contrato", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "inactive"})
}

const maxDocumentSize = 15 << 20 // 15 MiB

// UploadContractDocument anexa a apólice (PDF) ao contrato.
func (h *Handler) UploadContractDocument(w http.ResponseWriter, r *http.Request) {
	clientID, err := parseUUIDParam(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}
	contractID, err := parseUUIDParam(r, "contractId")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "contractId inválido", nil)
		return
	}

	if err := r.ParseMultipartForm(maxDocumentSize); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "arquivo inválido ou grande demais", nil)
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "campo document ausente", nil)
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, maxDocumentSize))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível ler o arquivo", nil)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("contracts/%s/%s/%d%s",
		clientID, contractID, time.Now().UnixNano(), path.Ext(header.Filename))

	result, err := h.storage.Upload(r.Context(), storage.UploadInput{
		Key:         key,
		Body:        body,
		ContentType: contentType,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível armazenar o documento", nil)
		return
	}

	if err := h.clients.SetContractDocument(r.Context(), clientID, contractID, result.URL); err != nil {
		if errors.Is(err, client.ErrContractNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível vincular o documento", nil)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{"url": result.URL})
}
