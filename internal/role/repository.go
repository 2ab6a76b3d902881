package role

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provê acesso ao armazenamento de papéis.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório de papéis.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, name, permissions, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var (
		r   Role
		raw []byte
	)
	if err := row.Scan(&r.ID, &r.Name, &raw, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Role{}, err
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &r.Rules)
	}
	return r, nil
}

// List devolve todos os papéis ordenados por nome.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetByID busca papel pelo identificador.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// Create registra um novo papel.
func (r *Repository) Create(ctx context.Context, input CreateInput) (Role, error) {
	raw, err := json.Marshal(input.Rules)
	if err != nil {
		return Role{}, err
	}
	row := r.pool.QueryRow(ctx, `
        INSERT INTO roles (id, name, permissions)
        VALUES ($1, $2, $3)
        RETURNING `+columns, uuid.New(), input.Name, raw)
	return scanRole(row)
}

// Update substitui nome e regras do papel.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, input CreateInput) (Role, error) {
	raw, err := json.Marshal(input.Rules)
	if err != nil {
		return Role{}, err
	}
	row := r.pool.QueryRow(ctx, `
        UPDATE roles SET name = $2, permissions = $3, updated_at = now()
        WHERE id = $1
        RETURNING `+columns, id, input.Name, raw)
	role, err := scanRole(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// Delete remove um papel sem usuários vinculados.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	var count int
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM usuarios WHERE role_id = $1`, id).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return ErrInUse
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
