package role

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/olympusx/crm/internal/perm"
)

var (
	ErrNotFound = errors.New("papel não encontrado")
	ErrInUse    = errors.New("papel em uso por usuários")
)

// Role é um conjunto nomeado de permissões padrão (ex.: Corretor, Supervisor).
type Role struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Rules     perm.RuleSet `json:"permissions"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CreateInput contém os campos de criação de um papel.
type CreateInput struct {
	Name  string
	Rules perm.RuleSet
}

// Grants converte papéis para o formato consumido pelo resolvedor.
func Grants(roles []Role) []perm.Grants {
	out := make([]perm.Grants, 0, len(roles))
	for _, r := range roles {
		out = append(out, perm.Grants{
			RoleID:   r.ID.String(),
			RoleName: r.Name,
			Rules:    r.Rules,
		})
	}
	return out
}
