package boleto

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/olympusx/crm/internal/client"
	"github.com/olympusx/crm/internal/task"
)

type stubClients struct {
	clients []client.Client
	err     error
	release chan struct{} // quando não-nulo, bloqueia até fechar
	calls   int
}

func (s *stubClients) ListWithContracts(ctx context.Context) ([]client.Client, error) {
	s.calls++
	if s.release != nil {
		<-s.release
	}
	return s.clients, s.err
}

type stubTasks struct {
	created   []task.CreateInput
	failFor   uuid.UUID
	existsErr error
}

func (s *stubTasks) ExistsBoletoTask(ctx context.Context, clientID uuid.UUID, cycle string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	for _, input := range s.created {
		if input.LinkedToID.UUID == clientID && input.BoletoCycle == cycle {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubTasks) Create(ctx context.Context, input task.CreateInput) (task.Task, error) {
	if s.failFor != uuid.Nil && input.LinkedToID.UUID == s.failFor {
		return task.Task{}, errors.New("falha de escrita")
	}
	s.created = append(s.created, input)
	return task.Task{ID: uuid.New()}, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(clients ClientSource, tasks TaskStore, today time.Time) *Service {
	svc := NewService(clients, tasks, Config{Enabled: true}, zerolog.Nop(), nil)
	return svc.WithClock(fixedClock(today))
}

func clientWithContract(sent time.Time, responsible uuid.UUID) client.Client {
	id := uuid.New()
	return client.Client{
		ID:   id,
		Name: "Maria Souza",
		Contracts: []client.Contract{{
			ID:                  uuid.New(),
			ClientID:            id,
			Status:              client.ContractActive,
			Operator:            "Amil",
			PolicyNumber:        "AP-1042",
			BoletoSentDate:      &sent,
			BoletoResponsibleID: uuid.NullUUID{UUID: responsible, Valid: true},
		}},
	}
}

func TestRunOnceCreatesTaskForDueCycle(t *testing.T) {
	sent := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	responsible := uuid.New()
	cl := clientWithContract(sent, responsible)

	tasks := &stubTasks{}
	svc := newTestService(&stubClients{clients: []client.Client{cl}}, tasks, today)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(tasks.created) != 1 {
		t.Fatalf("deveria criar exatamente uma tarefa, criou %d", len(tasks.created))
	}
	got := tasks.created[0]
	if !got.IsBoletoTask {
		t.Fatal("tarefa deveria ser marcada como boleto")
	}
	if got.BoletoCycle != "2024-03-15" {
		t.Fatalf("ciclo deveria ser a data do contrato como gravada: %s", got.BoletoCycle)
	}
	if got.LinkedToID.UUID != cl.ID {
		t.Fatal("tarefa deveria referenciar o cliente")
	}
	if got.AssignedTo.UUID != responsible {
		t.Fatal("responsável deveria vir do contrato")
	}
	// Prazo é a ocorrência do ciclo corrente (junho), não a data original.
	want := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	if got.DueDate == nil || !got.DueDate.Equal(want) {
		t.Fatalf("prazo deveria ser %s, veio %v", want, got.DueDate)
	}
}

func TestRunOnceIsIdempotent(t *testing.T) {
	sent := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	cl := clientWithContract(sent, uuid.New())

	tasks := &stubTasks{}
	svc := newTestService(&stubClients{clients: []client.Client{cl}}, tasks, today)

	for i := 0; i < 2; i++ {
		if err := svc.RunOnce(context.Background()); err != nil {
			t.Fatalf("passada %d: %v", i, err)
		}
	}

	if len(tasks.created) != 1 {
		t.Fatalf("segunda passada não deveria criar tarefa extra: %d", len(tasks.created))
	}
}

func TestRunOnceDropsOverlappingInvocation(t *testing.T) {
	sent := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	cl := clientWithContract(sent, uuid.New())

	source := &stubClients{clients: []client.Client{cl}, release: make(chan struct{})}
	tasks := &stubTasks{}
	svc := newTestService(source, tasks, today)

	done := make(chan error, 1)
	go func() {
		done <- svc.RunOnce(context.Background())
	}()

	// Espera a primeira passada prender no repositório.
	deadline := time.After(2 * time.Second)
	for source.calls == 0 {
		select {
		case <-deadline:
			t.Fatal("primeira passada não iniciou")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := svc.RunOnce(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("disparo sobreposto deveria ser descartado: %v", err)
	}

	close(source.release)
	if err := <-done; err != nil {
		t.Fatalf("primeira passada: %v", err)
	}

	// Guarda liberado: nova passada volta a funcionar.
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("passada após liberação: %v", err)
	}
}

func TestRunOnceContinuesAfterEventFailure(t *testing.T) {
	sent := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	broken := clientWithContract(sent, uuid.New())
	healthy := clientWithContract(sent, uuid.New())

	tasks := &stubTasks{failFor: broken.ID}
	svc := newTestService(&stubClients{clients: []client.Client{broken, healthy}}, tasks, today)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("falha individual não deveria abortar a passada: %v", err)
	}

	if len(tasks.created) != 1 {
		t.Fatalf("cliente saudável deveria ter tarefa criada: %d", len(tasks.created))
	}
	if tasks.created[0].LinkedToID.UUID != healthy.ID {
		t.Fatal("tarefa criada deveria ser do cliente saudável")
	}
}

func TestRunOnceReleasesGuardOnError(t *testing.T) {
	source := &stubClients{err: errors.New("banco indisponível")}
	svc := newTestService(source, &stubTasks{}, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC))

	if err := svc.RunOnce(context.Background()); err == nil {
		t.Fatal("falha de listagem deveria propagar erro")
	}
	if err := svc.RunOnce(context.Background()); errors.Is(err, ErrAlreadyRunning) {
		t.Fatal("guarda deveria ser liberado mesmo após erro")
	}
}

func TestRunOnceOneTaskPerCycleAcrossOccurrences(t *testing.T) {
	// Várias ocorrências vencidas (abril, maio e junho) compartilham o mesmo
	// ciclo: deve sair um único lembrete, com prazo na ocorrência corrente.
	sent := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	cl := clientWithContract(sent, uuid.New())

	tasks := &stubTasks{}
	svc := newTestService(&stubClients{clients: []client.Client{cl}}, tasks, today)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(tasks.created) != 1 {
		t.Fatalf("ocorrências do mesmo ciclo geram um único lembrete: %d", len(tasks.created))
	}
	if tasks.created[0].BoletoCycle != "2024-01-15" {
		t.Fatalf("ciclo inesperado: %s", tasks.created[0].BoletoCycle)
	}
}
