package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/olympusx/crm/internal/auth"
	"github.com/olympusx/crm/internal/repo"
	"github.com/olympusx/crm/internal/role"
	"github.com/olympusx/crm/internal/util"
)

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrAccountDisabled indica conta desativada.
	ErrAccountDisabled = errors.New("conta desativada")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
)

type authRepository interface {
	GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error)
	GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
	InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, keepHash string) error
	ListPasskeys(ctx context.Context, usuarioID uuid.UUID) ([]repo.PasskeyCredential, error)
	GetPasskeyByCredentialID(ctx context.Context, credentialID []byte) (repo.PasskeyCredential, error)
	InsertPasskey(ctx context.Context, c repo.PasskeyCredential) (repo.PasskeyCredential, error)
	UpdatePasskeyCounter(ctx context.Context, id uuid.UUID, signCount uint32, cloned bool) error
}

type roleSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (role.Role, error)
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService concentra regras de autenticação e sessões.
type AuthService struct {
	repo       authRepository
	roles      roleSource
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
}

// NewAuthService cria novo serviço.
func NewAuthService(r authRepository, roles roleSource, redisClient redisCommander, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{repo: r, roles: roles, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	Subject       uuid.UUID
	RoleName      string
	Profile       Profile
	RefreshExpiry time.Time
}

// Profile descreve o usuário autenticado.
type Profile struct {
	ID    string `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Login autentica por e-mail e senha.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.GetUsuarioByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login: usuário não encontrado")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.Verify(password, user.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verificação de senha falhou")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Msg("login: senha inválida")
		return nil, ErrInvalidCredentials
	}

	return s.loginFromUser(ctx, user)
}

// LoginWithUser emite sessão para um usuário já autenticado (passkey).
func (s *AuthService) LoginWithUser(ctx context.Context, user repo.Usuario) (*LoginResult, error) {
	return s.loginFromUser(ctx, user)
}

func (s *AuthService) loginFromUser(ctx context.Context, user repo.Usuario) (*LoginResult, error) {
	if !user.Ativo {
		return nil, ErrAccountDisabled
	}

	roleName, err := s.roleName(ctx, user)
	if err != nil {
		return nil, err
	}

	token, _, err := s.jwt.GenerateAccessToken(user.ID.String(), roleName)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expires := util.Now().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, user.ID, refreshHash, expires); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:   token,
		RefreshToken:  rawRefresh,
		Subject:       user.ID,
		RoleName:      roleName,
		RefreshExpiry: expires,
		Profile: Profile{
			ID:    user.ID.String(),
			Nome:  user.Nome,
			Email: user.Email,
			Role:  roleName,
		},
	}, nil
}

// Refresh rotaciona a sessão a partir do refresh token.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	hash := auth.HashRefreshToken(rawToken)

	stored, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	if stored.Revogado || util.Now().After(stored.Expiracao) {
		return nil, ErrRefreshInvalid
	}

	// O espelho no Redis expira junto com o token; ausência invalida a sessão
	// mesmo que a linha ainda exista.
	if s.redis != nil {
		if err := s.redis.Get(ctx, auth.RefreshRedisKey(hash)).Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrRefreshInvalid
			}
			return nil, err
		}
	}

	user, err := s.repo.GetUsuarioByID(ctx, stored.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	if err := s.revokeRefresh(ctx, hash); err != nil {
		return nil, err
	}

	return s.loginFromUser(ctx, user)
}

// Logout revoga o refresh token informado.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	hash := auth.HashRefreshToken(rawToken)
	return s.revokeRefresh(ctx, hash)
}

// GetUsuarioByID expõe a busca de usuário para o fluxo de passkeys.
func (s *AuthService) GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error) {
	return s.repo.GetUsuarioByID(ctx, id)
}

// GetUsuarioByEmail expõe a busca por e-mail para o fluxo de passkeys.
func (s *AuthService) GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error) {
	return s.repo.GetUsuarioByEmail(ctx, email)
}

// GetMe devolve o perfil do usuário autenticado.
func (s *AuthService) GetMe(ctx context.Context, id uuid.UUID) (Profile, error) {
	user, err := s.repo.GetUsuarioByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	roleName, err := s.roleName(ctx, user)
	if err != nil {
		return Profile{}, err
	}
	return Profile{ID: user.ID.String(), Nome: user.Nome, Email: user.Email, Role: roleName}, nil
}

// ListPasskeys devolve as credenciais do usuário.
func (s *AuthService) ListPasskeys(ctx context.Context, usuarioID uuid.UUID) ([]repo.PasskeyCredential, error) {
	return s.repo.ListPasskeys(ctx, usuarioID)
}

// CreatePasskey registra uma credencial recém-atestada.
func (s *AuthService) CreatePasskey(ctx context.Context, c repo.PasskeyCredential) (repo.PasskeyCredential, error) {
	return s.repo.InsertPasskey(ctx, c)
}

// GetPasskeyByCredentialID localiza credencial para validação de login.
func (s *AuthService) GetPasskeyByCredentialID(ctx context.Context, credentialID []byte) (repo.PasskeyCredential, error) {
	return s.repo.GetPasskeyByCredentialID(ctx, credentialID)
}

// UpdatePasskeyCounter atualiza contador pós-login.
func (s *AuthService) UpdatePasskeyCounter(ctx context.Context, id uuid.UUID, signCount uint32, cloned bool) error {
	return s.repo.UpdatePasskeyCounter(ctx, id, signCount, cloned)
}

func (s *AuthService) roleName(ctx context.Context, user repo.Usuario) (string, error) {
	if !user.RoleID.Valid {
		return "", nil
	}
	r, err := s.roles.GetByID(ctx, user.RoleID.UUID)
	if err != nil {
		if errors.Is(err, role.ErrNotFound) {
			// Papel removido: usuário segue sem regras base (fail-closed).
			return "", nil
		}
		return "", err
	}
	return r.Name, nil
}

func (s *AuthService) persistRefresh(ctx context.Context, subject uuid.UUID, hash string, expires time.Time) error {
	_, err := s.repo.InsertRefreshToken(ctx, repo.InsertRefreshTokenParams{
		Subject:   subject,
		TokenHash: hash,
		Expiracao: expires,
	})
	if err != nil {
		return err
	}

	// Sessão única por emissão: qualquer refresh anterior do mesmo usuário
	// deixa de valer quando um novo token é gravado.
	if err := s.repo.InvalidateOtherRefreshTokens(ctx, subject, hash); err != nil {
		return err
	}

	if s.redis != nil {
		ttl := time.Until(expires)
		if ttl > 0 {
			if err := s.redis.Set(ctx, auth.RefreshRedisKey(hash), subject.String(), ttl).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *AuthService) revokeRefresh(ctx context.Context, hash string) error {
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.Del(ctx, auth.RefreshRedisKey(hash)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
	}
	return nil
}
