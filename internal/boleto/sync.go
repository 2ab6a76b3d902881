package boleto

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/olympusx/crm/internal/agenda"
	"github.com/olympusx/crm/internal/client"
	"github.com/olympusx/crm/internal/metrics"
	"github.com/olympusx/crm/internal/task"
	"github.com/olympusx/crm/internal/util"
)

var (
	// ErrAlreadyRunning indica disparo descartado por passada em andamento.
	ErrAlreadyRunning = errors.New("sincronização de boletos já em andamento")
)

// cycleKeyFormat é a data do contrato como gravada (YYYY-MM-DD).
const cycleKeyFormat = "2006-01-02"

// ClientSource fornece clientes com contratos embutidos.
type ClientSource interface {
	ListWithContracts(ctx context.Context) ([]client.Client, error)
}

// TaskStore cobre a checagem de existência e a criação de tarefas de boleto.
type TaskStore interface {
	ExistsBoletoTask(ctx context.Context, clientID uuid.UUID, cycle string) (bool, error)
	Create(ctx context.Context, input task.CreateInput) (task.Task, error)
}

// Config parametriza o loop periódico.
type Config struct {
	Enabled      bool
	Interval     time.Duration
	StartupDelay time.Duration
}

// Service garante que todo evento de boleto vencido tenha exatamente uma
// tarefa de lembrete. Uma única passada roda por vez no processo: o guarda
// de reentrância é um compare-and-set atômico e disparos sobrepostos são
// descartados, não enfileirados. Não há trava entre instâncias; em
// implantação multi-instância tarefas duplicadas são possíveis.
type Service struct {
	clients ClientSource
	tasks   TaskStore
	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	running atomic.Bool
	once    sync.Once
	cancel  context.CancelFunc
}

// NewService cria o sincronizador.
func NewService(clients ClientSource, tasks TaskStore, cfg Config, logger zerolog.Logger, m *metrics.Metrics) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StartupDelay < 0 {
		cfg.StartupDelay = 0
	}
	return &Service{
		clients: clients,
		tasks:   tasks,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     util.Now,
	}
}

// WithClock troca o relógio, para testes determinísticos.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Start inicia o loop periódico. Seguro para chamar mais de uma vez.
func (s *Service) Start(parent context.Context) {
	if !s.cfg.Enabled {
		return
	}
	s.once.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		s.cancel = cancel
		go s.runLoop(ctx)
	})
}

// Stop encerra o loop periódico.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Service) runLoop(ctx context.Context) {
	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("boleto: sincronização agendada")

	// Primeira passada pouco depois do startup, para não competir com a
	// subida do processo.
	if s.cfg.StartupDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.StartupDelay):
		}
	}
	if err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		s.logger.Error().Err(err).Msg("boleto: primeira passada falhou")
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("boleto: sincronização encerrada")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				s.logger.Error().Err(err).Msg("boleto: passada periódica falhou")
			}
		}
	}
}

// RunOnce executa uma passada completa de sincronização. Retorna
// ErrAlreadyRunning quando outra passada ainda não terminou.
func (s *Service) RunOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		if s.metrics != nil {
			s.metrics.SyncDropped.Inc()
		}
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	today := s.now()

	clients, err := s.clients.ListWithContracts(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.SyncRuns.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("listar clientes: %w", err)
	}

	due := collectDue(agenda.Project(clients, nil, today), today)

	created := 0
	for _, ev := range due {
		ok, err := s.syncEvent(ctx, ev)
		if err != nil {
			// Falha individual não aborta o restante da passada.
			s.logger.Warn().Err(err).Str("event", ev.ID).Msg("boleto: evento não sincronizado")
			if s.metrics != nil {
				s.metrics.EventErrors.Inc()
			}
			continue
		}
		if ok {
			created++
		}
	}

	if s.metrics != nil {
		s.metrics.SyncRuns.WithLabelValues("ok").Inc()
		s.metrics.TasksCreated.Add(float64(created))
	}
	if created > 0 {
		s.logger.Info().Int("created", created).Msg("boleto: tarefas de lembrete criadas")
	}
	return nil
}

// collectDue filtra os eventos de boleto vencidos e reduz a um evento por
// ciclo de cobrança: o de data mais recente, que vira o prazo da tarefa.
// Um evento é vencido quando seu mês já começou (eventos do mês corrente
// contam) e não está a mais de um ano no passado.
func collectDue(events []agenda.Event, today time.Time) []agenda.Event {
	var (
		order  []string
		byCycl = map[string]agenda.Event{}
	)
	for _, ev := range events {
		if ev.Type != agenda.TypeBoletoSend || ev.Contract == nil || ev.Contract.BoletoSentDate == nil {
			continue
		}
		if !cycleDue(ev.Date, today) || ev.Date.Year() < today.Year()-1 {
			continue
		}

		key := ev.Client.ID.String() + "|" + ev.Contract.BoletoSentDate.Format(cycleKeyFormat)
		prev, seen := byCycl[key]
		if !seen {
			order = append(order, key)
			byCycl[key] = ev
			continue
		}
		if ev.Date.After(prev.Date) {
			byCycl[key] = ev
		}
	}

	out := make([]agenda.Event, 0, len(order))
	for _, key := range order {
		out = append(out, byCycl[key])
	}
	return out
}

func cycleDue(date, today time.Time) bool {
	if date.Year() != today.Year() {
		return date.Year() < today.Year()
	}
	return date.Month() <= today.Month()
}

// syncEvent cria a tarefa do ciclo se ainda não existir. Devolve true quando
// uma tarefa foi criada.
func (s *Service) syncEvent(ctx context.Context, ev agenda.Event) (bool, error) {
	cycle := ev.Contract.BoletoSentDate.Format(cycleKeyFormat)

	exists, err := s.tasks.ExistsBoletoTask(ctx, ev.Client.ID, cycle)
	if err != nil {
		return false, fmt.Errorf("checar ciclo %s: %w", cycle, err)
	}
	if exists {
		return false, nil
	}

	dueDate := ev.Date
	input := task.CreateInput{
		Title: fmt.Sprintf("Enviar boleto: %s", ev.Client.Name),
		Description: fmt.Sprintf("Enviar o boleto do contrato %s (%s) para %s.",
			ev.Contract.PolicyNumber, ev.Contract.Operator, ev.Client.Name),
		Status:       task.StatusTodo,
		DueDate:      &dueDate,
		AssignedTo:   ev.Contract.BoletoResponsibleID,
		LinkedToID:   uuid.NullUUID{UUID: ev.Client.ID, Valid: true},
		IsBoletoTask: true,
		BoletoCycle:  cycle,
	}
	if _, err := s.tasks.Create(ctx, input); err != nil {
		return false, fmt.Errorf("criar tarefa do ciclo %s: %w", cycle, err)
	}
	return true, nil
}
