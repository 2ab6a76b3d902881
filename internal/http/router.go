package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"

	"github.com/olympusx/crm/internal/agenda"
	"github.com/olympusx/crm/internal/boleto"
	"github.com/olympusx/crm/internal/client"
	"github.com/olympusx/crm/internal/config"
	httpmiddleware "github.com/olympusx/crm/internal/http/middleware"
	"github.com/olympusx/crm/internal/metrics"
	"github.com/olympusx/crm/internal/repo"
	"github.com/olympusx/crm/internal/role"
	"github.com/olympusx/crm/internal/service"
	"github.com/olympusx/crm/internal/storage"
	"github.com/olympusx/crm/internal/task"
)

// Deps agrupa as dependências do roteador.
type Deps struct {
	Cfg      *config.Config
	Redis    *redis.Client
	Auth     *service.AuthService
	Access   *service.AccessService
	Usuarios *repo.Queries
	Clients  *client.Repository
	Tasks    *task.Repository
	Roles    *role.Repository
	Agenda   *agenda.Service
	Sync     *boleto.Service
	Metrics  *metrics.Metrics
	Storage  storage.Uploader
}

// Handler concentra os handlers HTTP da API.
type Handler struct {
	cfg        *config.Config
	redis      *redis.Client
	auth       *service.AuthService
	access     *service.AccessService
	usuarios   *repo.Queries
	clients    *client.Repository
	tasks      *task.Repository
	roles      *role.Repository
	agenda     *agenda.Service
	sync       *boleto.Service
	storage    storage.Uploader
	webauthn   *webauthn.WebAuthn
	devCookies bool
}

const (
	passkeyRegisterSessionPrefix = "webauthn:register:"
	passkeyLoginSessionPrefix    = "webauthn:login:"
	passkeySessionTTL            = 5 * time.Minute
)

// NewRouter devolve roteador configurado.
func NewRouter(d Deps) (http.Handler, error) {
	devCookies := false
	for _, origin := range d.Cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: d.Cfg.WebAuthnRPName,
		RPID:          d.Cfg.WebAuthnRPID,
		RPOrigins:     []string{d.Cfg.WebAuthnRPOrigin},
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn: %w", err)
	}

	uploader := d.Storage
	if uploader == nil {
		uploader = storage.NoopUploader{}
	}

	h := &Handler{
		cfg:        d.Cfg,
		redis:      d.Redis,
		auth:       d.Auth,
		access:     d.Access,
		usuarios:   d.Usuarios,
		clients:    d.Clients,
		tasks:      d.Tasks,
		roles:      d.Roles,
		agenda:     d.Agenda,
		sync:       d.Sync,
		storage:    uploader,
		webauthn:   wa,
		devCookies: devCookies,
	}

	publicLimiter := httpmiddleware.NewRateLimiter(d.Cfg.RateLimitPublic.RequestsPerSecond, d.Cfg.RateLimitPublic.Burst)
	authLimiter := httpmiddleware.NewRateLimiter(d.Cfg.RateLimitAuth.RequestsPerSecond, d.Cfg.RateLimitAuth.Burst)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.CORS(d.Cfg.AllowOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/auth", func(auth chi.Router) {
		auth.Use(publicLimiter.Middleware)
		auth.Post("/login", h.Login)
		auth.Post("/refresh", h.Refresh)
		auth.Post("/logout", h.Logout)
		auth.Post("/passkey/login/start", h.PasskeyLoginStart)
		auth.Post("/passkey/login/finish", h.PasskeyLoginFinish)
	})

	r.Group(func(private chi.Router) {
		private.Use(authLimiter.Middleware)
		private.Use(httpmiddleware.Auth(d.Auth.JWT()))

		private.Get("/auth/me", h.Me)
		private.Route("/auth/passkey/register", func(pr chi.Router) {
			pr.Post("/start", h.PasskeyRegisterStart)
			pr.Post("/finish", h.PasskeyRegisterFinish)
		})

		private.Route("/clients", func(cr chi.Router) {
			// A listagem resolve o escopo dentro do handler para filtrar
			// registros visíveis; as demais rotas usam o guard padrão.
			cr.Get("/", h.ListClients)
			cr.With(httpmiddleware.RequirePermission(d.Access, "clients", "create")).Post("/", h.CreateClient)
			cr.Route("/{id}", func(one chi.Router) {
				one.With(httpmiddleware.RequirePermission(d.Access, "clients", "view")).Get("/", h.GetClient)
				one.With(httpmiddleware.RequirePermission(d.Access, "clients", "edit")).Put("/", h.UpdateClient)
				one.With(httpmiddleware.RequirePermission(d.Access, "clients", "delete")).Delete("/", h.DeleteClient)

				one.Route("/contracts", func(ct chi.Router) {
					ct.Use(httpmiddleware.RequirePermission(d.Access, "clients", "edit"))
					ct.Post("/", h.AddContract)
					ct.Put("/{contractId}", h.UpdateContract)
					ct.Put("/{contractId}/activate", h.ActivateContract)
					ct.Put("/{contractId}/deactivate", h.DeactivateContract)
					ct.Post("/{contractId}/document", h.UploadContractDocument)
				})
			})
		})

		private.Route("/tasks", func(tr chi.Router) {
			tr.With(httpmiddleware.RequirePermission(d.Access, "tasks", "view")).Get("/", h.ListTasks)
			tr.With(httpmiddleware.RequirePermission(d.Access, "tasks", "create")).Post("/", h.CreateTask)
			tr.Route("/{id}", func(one chi.Router) {
				one.With(httpmiddleware.RequirePermission(d.Access, "tasks", "edit")).Put("/", h.UpdateTask)
				one.With(httpmiddleware.RequirePermission(d.Access, "tasks", "edit")).Patch("/status", h.MoveTask)
				one.With(httpmiddleware.RequirePermission(d.Access, "tasks", "delete")).Delete("/", h.DeleteTask)
			})
		})

		private.Route("/roles", func(rr chi.Router) {
			rr.With(httpmiddleware.RequirePermission(d.Access, "roles", "view")).Get("/", h.ListRoles)
			rr.With(httpmiddleware.RequirePermission(d.Access, "roles", "create")).Post("/", h.CreateRole)
			rr.With(httpmiddleware.RequirePermission(d.Access, "roles", "edit")).Put("/{id}", h.UpdateRole)
			rr.With(httpmiddleware.RequirePermission(d.Access, "roles", "delete")).Delete("/{id}", h.DeleteRole)
		})

		private.Route("/users", func(ur chi.Router) {
			ur.With(httpmiddleware.RequirePermission(d.Access, "users", "view")).Get("/", h.ListUsers)
			ur.With(httpmiddleware.RequirePermission(d.Access, "users", "edit")).Put("/{id}/access", h.UpdateUserAccess)
		})

		private.With(httpmiddleware.RequirePermission(d.Access, "calendar", "view")).
			Get("/calendar/events", h.CalendarEvents)

		private.With(httpmiddleware.RequirePermission(d.Access, "tasks", "create")).
			Post("/sync/boletos", h.TriggerBoletoSync)
	})

	return r, nil
}
