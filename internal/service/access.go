package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/olympusx/crm/internal/perm"
	"github.com/olympusx/crm/internal/repo"
	"github.com/olympusx/crm/internal/role"
)

var (
	// ErrForbidden indica ausência de permissão.
	ErrForbidden = errors.New("acesso negado")
)

type accessRepository interface {
	GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
}

type roleLister interface {
	List(ctx context.Context) ([]role.Role, error)
}

// AccessService resolve as permissões efetivas de um usuário: regras do
// papel mescladas com os overrides individuais, com precedência por folha.
type AccessService struct {
	usuarios accessRepository
	roles    roleLister
}

// NewAccessService cria nova instância.
func NewAccessService(usuarios accessRepository, roles roleLister) *AccessService {
	return &AccessService{usuarios: usuarios, roles: roles}
}

// Resolve carrega usuário e papéis e computa o conjunto efetivo.
func (s *AccessService) Resolve(ctx context.Context, usuarioID uuid.UUID) (*perm.Subject, perm.RuleSet, error) {
	user, err := s.usuarios.GetUsuarioByID(ctx, usuarioID)
	if err != nil {
		return nil, nil, err
	}

	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	sub := &perm.Subject{
		ID:        user.ID.String(),
		Overrides: user.Overrides,
	}
	if user.RoleID.Valid {
		sub.RoleID = user.RoleID.UUID.String()
		for _, r := range roles {
			if r.ID == user.RoleID.UUID {
				sub.RoleName = r.Name
				break
			}
		}
	}

	return sub, perm.Resolve(sub, role.Grants(roles)), nil
}

// Require falha com ErrForbidden quando o usuário não alcança a ação.
func (s *AccessService) Require(ctx context.Context, usuarioID uuid.UUID, module, action string) (*perm.Subject, perm.RuleSet, error) {
	sub, effective, err := s.Resolve(ctx, usuarioID)
	if err != nil {
		return nil, nil, err
	}
	if !perm.Can(sub, effective, module, action) {
		return nil, nil, ErrForbidden
	}
	return sub, effective, nil
}
