package agenda

import (
	"fmt"
	"time"

	"github.com/olympusx/crm/internal/client"
	"github.com/olympusx/crm/internal/task"
)

// EventType discrimina a origem do evento de calendário.
type EventType string

const (
	// TypeBoletoSend é um lembrete projetado de envio de boleto.
	TypeBoletoSend EventType = "boletoSend"
	// TypeTask é uma tarefa aberta com data de vencimento.
	TypeTask EventType = "task"
)

// Janela de projeção em meses ao redor de hoje.
const (
	monthsBack    = 2
	monthsForward = 12
)

// Event é uma projeção efêmera para o calendário; nunca é persistido.
// O ID é determinístico e serve de chave de deduplicação na sincronização
// de tarefas de boleto.
type Event struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
	Type  EventType `json:"type"`

	Client   *client.Client   `json:"-"`
	Contract *client.Contract `json:"-"`
	Task     *task.Task       `json:"-"`
}

// Project deriva os eventos acionáveis a partir de clientes e tarefas.
//
// Para cada contrato ativo com data de boleto, projeta uma ocorrência por mês
// de -2 a +12 meses em torno de today, no dia do mês da data do contrato.
// A construção da data usa a normalização nativa do calendário: dia 31 num
// mês de 30 dias transborda para o mês seguinte. Os IDs derivam dessas
// datas, portanto o transbordo faz parte do contrato.
//
// Tarefas com vencimento e fora de "done" entram em seguida. A ordem de
// saída é a ordem de emissão; quem precisar de ordenação por data ordena no
// consumo. Mesma entrada (incluindo today) produz sempre a mesma saída.
func Project(clients []client.Client, tasks []task.Task, today time.Time) []Event {
	var events []Event

	for ci := range clients {
		cl := &clients[ci]
		for xi := range cl.Contracts {
			ct := &cl.Contracts[xi]
			if ct.Status != client.ContractActive || ct.BoletoSentDate == nil {
				continue
			}

			sendDay := ct.BoletoSentDate.Day()
			for offset := -monthsBack; offset <= monthsForward; offset++ {
				date := time.Date(today.Year(), today.Month()+time.Month(offset), sendDay,
					0, 0, 0, 0, time.UTC)
				events = append(events, Event{
					// Mês em índice zero; consumidores dependem desse formato.
					ID: fmt.Sprintf("boleto-%s-%s-%d-%d",
						cl.ID, ct.ID, date.Year(), int(date.Month())-1),
					Title:    "Enviar boleto - " + cl.Name,
					Date:     date,
					Type:     TypeBoletoSend,
					Client:   cl,
					Contract: ct,
				})
			}
		}
	}

	for ti := range tasks {
		t := &tasks[ti]
		if t.DueDate == nil || t.Status == task.StatusDone {
			continue
		}
		events = append(events, Event{
			ID:    "task-" + t.ID.String(),
			Title: t.Title,
			Date:  *t.DueDate,
			Type:  TypeTask,
			Task:  t,
		})
	}

	return events
}
