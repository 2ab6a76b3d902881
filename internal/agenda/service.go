package agenda

import (
	"context"
	"sort"
	"time"

	"github.com/olympusx/crm/internal/client"
	"github.com/olympusx/crm/internal/task"
	"github.com/olympusx/crm/internal/util"
)

// ClientSource fornece clientes com contratos embutidos.
type ClientSource interface {
	ListWithContracts(ctx context.Context) ([]client.Client, error)
}

// TaskSource fornece as tarefas abertas do quadro.
type TaskSource interface {
	ListOpen(ctx context.Context) ([]task.Task, error)
}

// Service monta a visão de calendário a partir das coleções persistidas.
type Service struct {
	clients ClientSource
	tasks   TaskSource
	now     func() time.Time
}

// NewService cria o serviço de calendário.
func NewService(clients ClientSource, tasks TaskSource) *Service {
	return &Service{clients: clients, tasks: tasks, now: util.Now}
}

// WithClock troca o relógio, para testes determinísticos.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Events devolve a projeção ordenada por data para exibição no calendário.
func (s *Service) Events(ctx context.Context) ([]Event, error) {
	clients, err := s.clients.ListWithContracts(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	events := Project(clients, tasks, s.now())
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date.Equal(events[j].Date) {
			return events[i].ID < events[j].ID
		}
		return events[i].Date.Before(events[j].Date)
	})
	return events, nil
}
