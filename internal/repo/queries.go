package repo

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olympusx/crm/internal/perm"
)

// Queries provê acesso às tabelas compartilhadas (usuários e sessões).
type Queries struct {
	pool *pgxpool.Pool
}

// New cria o conjunto de queries sobre o pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const usuarioColumns = `id, nome, email, senha_hash, role_id, overrides, ativo, criado_em`

func scanUsuario(row pgx.Row) (Usuario, error) {
	var (
		u   Usuario
		raw []byte
	)
	if err := row.Scan(&u.ID, &u.Nome, &u.Email, &u.SenhaHash, &u.RoleID, &raw, &u.Ativo, &u.CriadoEm); err != nil {
		return Usuario{}, err
	}
	if len(raw) > 0 {
		// Overrides malformados são descartados: o usuário cai nas regras
		// do papel, nunca em erro.
		_ = json.Unmarshal(raw, &u.Overrides)
	}
	return u, nil
}

// GetUsuarioByEmail busca usuário pelo e-mail normalizado.
func (q *Queries) GetUsuarioByEmail(ctx context.Context, email string) (Usuario, error) {
	row := q.pool.QueryRow(ctx,
		`SELECT `+usuarioColumns+` FROM usuarios WHERE lower(email) = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUsuario(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return u, nil
}

// GetUsuarioByID busca usuário pelo identificador.
func (q *Queries) GetUsuarioByID(ctx context.Context, id uuid.UUID) (Usuario, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE id = $1`, id)
	u, err := scanUsuario(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return u, nil
}

// ListUsuarios devolve todos os usuários ordenados por nome.
func (q *Queries) ListUsuarios(ctx context.Context) ([]Usuario, error) {
	rows, err := q.pool.Query(ctx, `SELECT `+usuarioColumns+` FROM usuarios ORDER BY nome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usuarios []Usuario
	for rows.Next() {
		u, err := scanUsuario(rows)
		if err != nil {
			return nil, err
		}
		usuarios = append(usuarios, u)
	}
	return usuarios, rows.Err()
}

// UpdateUsuarioAcesso ajusta papel e overrides de permissão.
func (q *Queries) UpdateUsuarioAcesso(ctx context.Context, id uuid.UUID, roleID uuid.NullUUID, overrides perm.RuleSet) error {
	raw, err := json.Marshal(overrides)
	if err != nil {
		return err
	}
	tag, err := q.pool.Exec(ctx,
		`UPDATE usuarios SET role_id = $2, overrides = $3 WHERE id = $1`,
		id, roleID, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertRefreshToken registra um novo refresh token.
func (q *Queries) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (TokenRefresh, error) {
	row := q.pool.QueryRow(ctx, `
        INSERT INTO refresh_tokens (id, subject, token_hash, expiracao, revogado)
        VALUES ($1, $2, $3, $4, false)
        RETURNING id, subject, token_hash, expiracao, criado_em, revogado`,
		uuid.New(), arg.Subject, arg.TokenHash, arg.Expiracao)

	var t TokenRefresh
	if err := row.Scan(&t.ID, &t.Subject, &t.TokenHash, &t.Expiracao, &t.CriadoEm, &t.Revogado); err != nil {
		return TokenRefresh{}, err
	}
	return t, nil
}

// GetRefreshTokenByHash localiza refresh token pelo hash.
func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (TokenRefresh, error) {
	row := q.pool.QueryRow(ctx, `
        SELECT id, subject, token_hash, expiracao, criado_em, revogado
        FROM refresh_tokens WHERE token_hash = $1`, tokenHash)

	var t TokenRefresh
	if err := row.Scan(&t.ID, &t.Subject, &t.TokenHash, &t.Expiracao, &t.CriadoEm, &t.Revogado); err != nil {
		if err == pgx.ErrNoRows {
			return TokenRefresh{}, ErrNotFound
		}
		return TokenRefresh{}, err
	}
	return t, nil
}

// RevokeRefreshToken revoga um refresh token específico.
func (q *Queries) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revogado = true WHERE token_hash = $1`, tokenHash)
	return err
}

// InvalidateOtherRefreshTokens revoga sessões antigas do mesmo sujeito.
func (q *Queries) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, keepHash string) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revogado = true WHERE subject = $1 AND token_hash <> $2`,
		subject, keepHash)
	return err
}

// ListPasskeys devolve as credenciais WebAuthn do usuário.
func (q *Queries) ListPasskeys(ctx context.Context, usuarioID uuid.UUID) ([]PasskeyCredential, error) {
	rows, err := q.pool.Query(ctx, `
        SELECT id, usuario_id, credential_id, public_key, sign_count, transports, aaguid, apelido, cloned, criado_em, atualizado_em
        FROM passkey_credentials WHERE usuario_id = $1 ORDER BY criado_em`, usuarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []PasskeyCredential
	for rows.Next() {
		var c PasskeyCredential
		if err := rows.Scan(&c.ID, &c.UsuarioID, &c.CredentialID, &c.PublicKey, &c.SignCount,
			&c.Transports, &c.AAGUID, &c.Apelido, &c.Cloned, &c.CriadoEm, &c.AtualizadoEm); err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// GetPasskeyByCredentialID localiza credencial pelo identificador WebAuthn.
func (q *Queries) GetPasskeyByCredentialID(ctx context.Context, credentialID []byte) (PasskeyCredential, error) {
	row := q.pool.QueryRow(ctx, `
        SELECT id, usuario_id, credential_id, public_key, sign_count, transports, aaguid, apelido, cloned, criado_em, atualizado_em
        FROM passkey_credentials WHERE credential_id = $1`, credentialID)

	var c PasskeyCredential
	if err := row.Scan(&c.ID, &c.UsuarioID, &c.CredentialID, &c.PublicKey, &c.SignCount,
		&c.Transports, &c.AAGUID, &c.Apelido, &c.Cloned, &c.CriadoEm, &c.AtualizadoEm); err != nil {
		if err == pgx.ErrNoRows {
			return PasskeyCredential{}, ErrNotFound
		}
		return PasskeyCredential{}, err
	}
	return c, nil
}

// InsertPasskey registra uma nova credencial.
func (q *Queries) InsertPasskey(ctx context.Context, c PasskeyCredential) (PasskeyCredential, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	row := q.pool.QueryRow(ctx, `
        INSERT INTO passkey_credentials (id, usuario_id, credential_id, public_key, sign_count, transports, aaguid, apelido, cloned)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING criado_em`,
		c.ID, c.UsuarioID, c.CredentialID, c.PublicKey, c.SignCount, c.Transports, c.AAGUID, c.Apelido, c.Cloned)
	if err := row.Scan(&c.CriadoEm); err != nil {
		return PasskeyCredential{}, err
	}
	return c, nil
}

// UpdatePasskeyCounter atualiza o contador de assinaturas após um login.
func (q *Queries) UpdatePasskeyCounter(ctx context.Context, id uuid.UUID, signCount uint32, cloned bool) error {
	_, err := q.pool.Exec(ctx, `
        UPDATE passkey_credentials
        SET sign_count = $2, cloned = $3, atualizado_em = now()
        WHERE id = $1`, id, signCount, cloned)
	return err
}
