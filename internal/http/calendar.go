package http

import (
	"errors"
	"net/http"

	"github.com/olympusx/crm/internal/boleto"
)

// CalendarEvents projeta a agenda: ocorrências recorrentes de boleto dos
// contratos ativos mais as tarefas com vencimento.
func (h *Handler) CalendarEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.agenda.Events(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível montar a agenda", nil)
		return
	}

	WriteJSON(w, http.StatusOK, events)
}

// TriggerBoletoSync dispara uma execução imediata da sincronização.
func (h *Handler) TriggerBoletoSync(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.RunOnce(r.Context()); err != nil {
		if errors.Is(err, boleto.ErrAlreadyRunning) {
			WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "sincronização falhou", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}
