package task

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("tarefa não encontrada")
)

// Status é a coluna do quadro kanban.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Task é um cartão do quadro. Tarefas de boleto carregam IsBoletoTask e o
// BoletoCycle (data YYYY-MM-DD do contrato) que identificam o ciclo de
// cobrança, impedindo lembretes duplicados.
type Task struct {
	ID           uuid.UUID     `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Status       Status        `json:"status"`
	DueDate      *time.Time    `json:"due_date"`
	AssignedTo   uuid.NullUUID `json:"assigned_to"`
	LinkedToID   uuid.NullUUID `json:"linked_to_id"`
	IsBoletoTask bool          `json:"is_boleto_task"`
	BoletoCycle  string        `json:"boleto_cycle,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// CreateInput contém os campos de criação de tarefa.
type CreateInput struct {
	Title        string
	Description  string
	Status       Status
	DueDate      *time.Time
	AssignedTo   uuid.NullUUID
	LinkedToID   uuid.NullUUID
	IsBoletoTask bool
	BoletoCycle  string
}
