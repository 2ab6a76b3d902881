package middleware

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/olympusx/crm/internal/perm"
	"github.com/olympusx/crm/internal/service"
)

// RequirePermission garante que o usuário alcance a ação no módulo antes de
// entrar no handler. A filtragem de quais registros são visíveis fica nos
// handlers, via escopo resolvido.
func RequirePermission(access *service.AccessService, module, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := GetSubject(r.Context())
			subjectID, err := uuid.Parse(subject)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "subject inválido")
				return
			}

			// Papéis de bypass não precisam de ida ao banco: o papel vem
			// assinado no token de acesso.
			if perm.IsBypassRole(GetRole(r.Context())) {
				next.ServeHTTP(w, r)
				return
			}

			if _, _, err := access.Require(r.Context(), subjectID, module, action); err != nil {
				if errors.Is(err, service.ErrForbidden) {
					writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso negado")
					return
				}
				writeError(w, http.StatusInternalServerError, "INTERNAL", "falha ao resolver permissões")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
