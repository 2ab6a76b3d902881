package repo

import (
	"time"

	"github.com/google/uuid"

	"github.com/olympusx/crm/internal/perm"
)

// Usuario representa um colaborador da corretora (corretor, supervisor, etc.).
type Usuario struct {
	ID        uuid.UUID
	Nome      string
	Email     string
	SenhaHash string
	RoleID    uuid.NullUUID
	// Overrides são permissões individuais que substituem, folha a folha,
	// as regras padrão do papel.
	Overrides perm.RuleSet
	Ativo     bool
	CriadoEm  time.Time
}

// TokenRefresh modela a tabela de refresh tokens.
type TokenRefresh struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
	Revogado  bool
}

// InsertRefreshTokenParams agrupa os campos de criação de refresh token.
type InsertRefreshTokenParams struct {
	Subject   uuid.UUID
	TokenHash string
	Expiracao time.Time
}

// PasskeyCredential guarda uma credencial WebAuthn registrada pelo usuário.
type PasskeyCredential struct {
	ID           uuid.UUID
	UsuarioID    uuid.UUID
	CredentialID []byte
	PublicKey    []byte
	SignCount    uint32
	Transports   []string
	AAGUID       []byte
	Apelido      *string
	Cloned       bool
	CriadoEm     time.Time
	AtualizadoEm *time.Time
}
