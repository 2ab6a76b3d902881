package client

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olympusx/crm/internal/db"
	"github.com/olympusx/crm/internal/perm"
)

// Repository provê acesso ao armazenamento de clientes e contratos.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório de clientes.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, name, email, phone, status, owner_id, created_at, updated_at`
const contractColumns = `id, client_id, status, operator, policy_number, value, boleto_sent_date, boleto_responsible_id, document_url, created_at, updated_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Status, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanContract(row pgx.Row) (Contract, error) {
	var ct Contract
	err := row.Scan(&ct.ID, &ct.ClientID, &ct.Status, &ct.Operator, &ct.PolicyNumber, &ct.Value,
		&ct.BoletoSentDate, &ct.BoletoResponsibleID, &ct.DocumentURL, &ct.CreatedAt, &ct.UpdatedAt)
	return ct, err
}

// ListVisible devolve os clientes alcançáveis pelo escopo resolvido do
// usuário. Escopo "none" devolve lista vazia sem consultar o banco.
func (r *Repository) ListVisible(ctx context.Context, scope perm.Scope, viewerID uuid.UUID, allowedOwnerIDs []string) ([]Client, error) {
	var (
		query = `SELECT ` + clientColumns + ` FROM clients`
		args  []any
	)

	switch scope {
	case perm.ScopeAll:
		query += ` ORDER BY name`
	case perm.ScopeOwn:
		query += ` WHERE owner_id = $1 ORDER BY name`
		args = append(args, viewerID)
	case perm.ScopeSpecificUsers:
		if len(allowedOwnerIDs) == 0 {
			return []Client{}, nil
		}
		owners := make([]uuid.UUID, 0, len(allowedOwnerIDs))
		for _, raw := range allowedOwnerIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				continue
			}
			owners = append(owners, id)
		}
		query += ` WHERE owner_id = ANY($1) ORDER BY name`
		args = append(args, owners)
	default:
		return []Client{}, nil
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// ListWithContracts devolve todos os clientes com contratos embutidos,
// insumo do projetor de eventos recorrentes.
func (r *Repository) ListWithContracts(ctx context.Context) ([]Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []Client
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		index[c.ID] = len(clients)
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	contractRows, err := r.pool.Query(ctx, `SELECT `+contractColumns+` FROM contracts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer contractRows.Close()

	for contractRows.Next() {
		ct, err := scanContract(contractRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[ct.ClientID]; ok {
			clients[i].Contracts = append(clients[i].Contracts, ct)
		}
	}
	return clients, contractRows.Err()
}

// GetByID busca cliente com contratos.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Client{}, ErrNotFound
		}
		return Client{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE client_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return Client{}, err
	}
	defer rows.Close()

	for rows.Next() {
		ct, err := scanContract(rows)
		if err != nil {
			return Client{}, err
		}
		c.Contracts = append(c.Contracts, ct)
	}
	return c, rows.Err()
}

// Create registra um novo cliente.
func (r *Repository) Create(ctx context.Context, input CreateInput) (Client, error) {
	status := input.Status
	if status == "" {
		status = StatusLead
	}
	row := r.pool.QueryRow(ctx, `
        INSERT INTO clients (id, name, email, phone, status, owner_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+clientColumns,
		uuid.New(), input.Name, input.Email, input.Phone, status, input.OwnerID)
	return scanClient(row)
}

// Update substitui os dados cadastrais do cliente.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, input CreateInput) (Client, error) {
	row := r.pool.QueryRow(ctx, `
        UPDATE clients
        SET name = $2, email = $3, phone = $4, status = $5, updated_at = now()
        WHERE id = $1
        RETURNING `+clientColumns,
		id, input.Name, input.Email, input.Phone, input.Status)
	c, err := scanClient(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Client{}, ErrNotFound
		}
		return Client{}, err
	}
	return c, nil
}

// Delete remove cliente e contratos (cascata na tabela).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddContract cria contrato inativo para o cliente. Ativação é operação
// separada para manter o invariante de contrato único ativo.
func (r *Repository) AddContract(ctx context.Context, clientID uuid.UUID, input ContractInput) (Contract, error) {
	row := r.pool.QueryRow(ctx, `
        INSERT INTO contracts (id, client_id, status, operator, policy_number, value, boleto_sent_date, boleto_responsible_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING `+contractColumns,
		uuid.New(), clientID, ContractInactive, input.Operator, input.PolicyNumber,
		input.Value, input.BoletoSentDate, input.BoletoResponsibleID)
	ct, err := scanContract(row)
	if err != nil {
		return Contract{}, err
	}
	return ct, nil
}

// UpdateContract substitui os dados do contrato, sem tocar no status.
func (r *Repository) UpdateContract(ctx context.Context, clientID, contractID uuid.UUID, input ContractInput) (Contract, error) {
	row := r.pool.QueryRow(ctx, `
        UPDATE contracts
        SET operator = $3, policy_number = $4, value = $5, boleto_sent_date = $6, boleto_responsible_id = $7, updated_at = now()
        WHERE id = $2 AND client_id = $1
        RETURNING `+contractColumns,
		clientID, contractID, input.Operator, input.PolicyNumber, input.Value,
		input.BoletoSentDate, input.BoletoResponsibleID)
	ct, err := scanContract(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Contract{}, ErrContractNotFound
		}
		return Contract{}, err
	}
	return ct, nil
}

// SetContractDocument guarda a URL do documento anexado ao contrato.
func (r *Repository) SetContractDocument(ctx context.Context, clientID, contractID uuid.UUID, url string) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE contracts SET document_url = $3, updated_at = now()
        WHERE id = $2 AND client_id = $1`, clientID, contractID, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContractNotFound
	}
	return nil
}

// ActivateContract ativa o contrato e desativa os irmãos na mesma transação,
// garantindo no máximo um contrato ativo por cliente.
func (r *Repository) ActivateContract(ctx context.Context, clientID, contractID uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE contracts SET status = $3, updated_at = now()
            WHERE id = $2 AND client_id = $1`, clientID, contractID, ContractActive)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrContractNotFound
		}

		_, err = tx.Exec(ctx, `
            UPDATE contracts SET status = $3, updated_at = now()
            WHERE client_id = $1 AND id <> $2 AND status = $4`,
			clientID, contractID, ContractInactive, ContractActive)
		return err
	})
}

// DeactivateContract inativa um contrato específico.
func (r *Repository) DeactivateContract(ctx context.Context, clientID, contractID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE contracts SET status = $3, updated_at = now()
        WHERE id = $2 AND client_id = $1`, clientID, contractID, ContractInactive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContractNotFound
	}
	return nil
}
