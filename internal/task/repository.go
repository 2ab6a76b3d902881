package task

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provê acesso ao armazenamento de tarefas.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório de tarefas.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, title, description, status, due_date, assigned_to, linked_to_id, is_boleto_task, boleto_cycle, created_at, updated_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.DueDate, &t.AssignedTo,
		&t.LinkedToID, &t.IsBoletoTask, &t.BoletoCycle, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// List devolve todas as tarefas do quadro.
func (r *Repository) List(ctx context.Context) ([]Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM tasks ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListOpen devolve tarefas fora da coluna "done", insumo do calendário.
func (r *Repository) ListOpen(ctx context.Context) ([]Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+columns+` FROM tasks WHERE status <> $1 ORDER BY created_at`, StatusDone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetByID busca tarefa pelo identificador.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return t, nil
}

// Create registra uma nova tarefa.
func (r *Repository) Create(ctx context.Context, input CreateInput) (Task, error) {
	status := input.Status
	if status == "" {
		status = StatusTodo
	}
	row := r.pool.QueryRow(ctx, `
        INSERT INTO tasks (id, title, description, status, due_date, assigned_to, linked_to_id, is_boleto_task, boleto_cycle)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING `+columns,
		uuid.New(), input.Title, input.Description, status, input.DueDate,
		input.AssignedTo, input.LinkedToID, input.IsBoletoTask, input.BoletoCycle)
	return scanTask(row)
}

// Update substitui os campos editáveis da tarefa.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, input CreateInput) (Task, error) {
	row := r.pool.QueryRow(ctx, `
        UPDATE tasks
        SET title = $2, description = $3, status = $4, due_date = $5, assigned_to = $6, linked_to_id = $7, updated_at = now()
        WHERE id = $1
        RETURNING `+columns,
		id, input.Title, input.Description, input.Status, input.DueDate,
		input.AssignedTo, input.LinkedToID)
	t, err := scanTask(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return t, nil
}

// UpdateStatus move a tarefa entre colunas do quadro.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete remove uma tarefa.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExistsBoletoTask verifica se já há lembrete para o ciclo do cliente.
// É a checagem de existência que mantém no máximo uma tarefa por
// (cliente, ciclo de cobrança).
func (r *Repository) ExistsBoletoTask(ctx context.Context, clientID uuid.UUID, cycle string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
        SELECT EXISTS(
            SELECT 1 FROM tasks
            WHERE is_boleto_task = true AND linked_to_id = $1 AND boleto_cycle = $2
        )`, clientID, cycle).Scan(&exists)
	return exists, err
}
