package client

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("cliente não encontrado")
	ErrContractNotFound = errors.New("contrato não encontrado")
)

// Status do funil comercial.
const (
	StatusLead     = "lead"
	StatusProposta = "proposta"
	StatusAtivo    = "ativo"
	StatusPerdido  = "perdido"
)

// Status possíveis de um contrato.
const (
	ContractActive   = "active"
	ContractInactive = "inactive"
)

// Client representa um lead ou cliente da corretora, com seus contratos.
type Client struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     *string    `json:"email"`
	Phone     *string    `json:"phone"`
	Status    string     `json:"status"`
	OwnerID   uuid.UUID  `json:"owner_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Contracts []Contract `json:"contracts,omitempty"`
}

// Contract é uma apólice vinculada a um cliente. BoletoSentDate define o dia
// do mês do ciclo de cobrança recorrente; BoletoResponsibleID indica quem
// recebe a tarefa de envio.
type Contract struct {
	ID                  uuid.UUID     `json:"id"`
	ClientID            uuid.UUID     `json:"client_id"`
	Status              string        `json:"status"`
	Operator            string        `json:"operator"`
	PolicyNumber        string        `json:"policy_number"`
	Value               float64       `json:"value"`
	BoletoSentDate      *time.Time    `json:"boleto_sent_date"`
	BoletoResponsibleID uuid.NullUUID `json:"boleto_responsible_id"`
	DocumentURL         *string       `json:"document_url"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// CreateInput contém os campos de criação de cliente.
type CreateInput struct {
	Name    string
	Email   *string
	Phone   *string
	Status  string
	OwnerID uuid.UUID
}

// ContractInput contém os campos de criação/edição de contrato.
type ContractInput struct {
	Operator            string
	PolicyNumber        string
	Value               float64
	BoletoSentDate      *time.Time
	BoletoResponsibleID uuid.NullUUID
}
