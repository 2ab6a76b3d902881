package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrega os contadores expostos em /metrics.
type Metrics struct {
	registry *prometheus.Registry

	SyncRuns     *prometheus.CounterVec
	SyncDropped  prometheus.Counter
	EventErrors  prometheus.Counter
	TasksCreated prometheus.Counter
}

// New cria registro próprio com os coletores da aplicação.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		SyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "olympus_boleto_sync_runs_total",
			Help: "Execuções da sincronização de boletos, por resultado.",
		}, []string{"result"}),
		SyncDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "olympus_boleto_sync_dropped_total",
			Help: "Disparos descartados por execução já em andamento.",
		}),
		EventErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "olympus_boleto_event_errors_total",
			Help: "Eventos de boleto com falha individual de processamento.",
		}),
		TasksCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "olympus_boleto_tasks_created_total",
			Help: "Tarefas de boleto criadas pela sincronização.",
		}),
	}
}

// Handler expõe o endpoint Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
