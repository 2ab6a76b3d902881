package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/olympusx/crm/internal/agenda"
	"github.com/olympusx/crm/internal/auth"
	"github.com/olympusx/crm/internal/boleto"
	"github.com/olympusx/crm/internal/client"
	"github.com/olympusx/crm/internal/metrics"
	"github.com/olympusx/crm/internal/repo"
	"github.com/olympusx/crm/internal/role"
	"github.com/olympusx/crm/internal/service"
	"github.com/olympusx/crm/internal/task"
)

type stubAuthRepo struct {
	users    map[string]repo.Usuario
	inserted []repo.InsertRefreshTokenParams
}

func (s *stubAuthRepo) GetUsuarioByEmail(_ context.Context, email string) (repo.Usuario, error) {
	u, ok := s.users[email]
	if !ok {
		return repo.Usuario{}, repo.ErrNotFound
	}
	return u, nil
}

func (s *stubAuthRepo) GetUsuarioByID(_ context.Context, id uuid.UUID) (repo.Usuario, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (s *stubAuthRepo) InsertRefreshToken(_ context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error) {
	s.inserted = append(s.inserted, arg)
	return repo.TokenRefresh{ID: uuid.New(), Subject: arg.Subject, TokenHash: arg.TokenHash, Expiracao: arg.Expiracao}, nil
}

func (s *stubAuthRepo) GetRefreshTokenByHash(_ context.Context, _ string) (repo.TokenRefresh, error) {
	return repo.TokenRefresh{}, repo.ErrNotFound
}

func (s *stubAuthRepo) RevokeRefreshToken(_ context.Context, _ string) error { return nil }

func (s *stubAuthRepo) InvalidateOtherRefreshTokens(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func (s *stubAuthRepo) ListPasskeys(_ context.Context, _ uuid.UUID) ([]repo.PasskeyCredential, error) {
	return nil, nil
}

func (s *stubAuthRepo) GetPasskeyByCredentialID(_ context.Context, _ []byte) (repo.PasskeyCredential, error) {
	return repo.PasskeyCredential{}, repo.ErrNotFound
}

func (s *stubAuthRepo) InsertPasskey(_ context.Context, c repo.PasskeyCredential) (repo.PasskeyCredential, error) {
	return c, nil
}

func (s *stubAuthRepo) UpdatePasskeyCounter(_ context.Context, _ uuid.UUID, _ uint32, _ bool) error {
	return nil
}

type stubRoleSource struct {
	roles map[uuid.UUID]role.Role
}

func (s *stubRoleSource) GetByID(_ context.Context, id uuid.UUID) (role.Role, error) {
	r, ok := s.roles[id]
	if !ok {
		return role.Role{}, role.ErrNotFound
	}
	return r, nil
}

type stubClientSource struct {
	clients []client.Client
}

func (s *stubClientSource) ListWithContracts(_ context.Context) ([]client.Client, error) {
	return s.clients, nil
}

type stubTaskStore struct {
	open    []task.Task
	created []task.Task
}

func (s *stubTaskStore) ListOpen(_ context.Context) ([]task.Task, error) {
	return s.open, nil
}

func (s *stubTaskStore) ExistsBoletoTask(_ context.Context, clientID uuid.UUID, cycle string) (bool, error) {
	for _, t := range s.created {
		if t.LinkedToID.UUID == clientID && t.BoletoCycle == cycle {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubTaskStore) Create(_ context.Context, input task.CreateInput) (task.Task, error) {
	created := task.Task{
		ID:           uuid.New(),
		Title:        input.Title,
		Status:       input.Status,
		DueDate:      input.DueDate,
		AssignedTo:   input.AssignedTo,
		LinkedToID:   input.LinkedToID,
		IsBoletoTask: input.IsBoletoTask,
		BoletoCycle:  input.BoletoCycle,
	}
	s.created = append(s.created, created)
	return created, nil
}

func newTestHandler(t *testing.T) (*Handler, *stubAuthRepo, uuid.UUID) {
	t.Helper()

	hash, err := auth.Hash("senha-forte-123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	roleID := uuid.New()
	userID := uuid.New()
	repoStub := &stubAuthRepo{users: map[string]repo.Usuario{
		"corretor@olympus.test": {
			ID:        userID,
			Nome:      "Corretor Teste",
			Email:     "corretor@olympus.test",
			SenhaHash: hash,
			RoleID:    uuid.NullUUID{UUID: roleID, Valid: true},
			Ativo:     true,
		},
	}}
	roles := &stubRoleSource{roles: map[uuid.UUID]role.Role{
		roleID: {ID: roleID, Name: "Broker"},
	}}

	jwtMgr := auth.NewJWTManager("uma-chave-de-teste-com-32-bytes!!", 15*time.Minute)
	authSvc := service.NewAuthService(repoStub, roles, nil, jwtMgr, 24*time.Hour)

	return &Handler{auth: authSvc, devCookies: true}, repoStub, userID
}

func TestLoginSetsRefreshCookie(t *testing.T) {
	h, repoStub, _ := newTestHandler(t)

	body := bytes.NewBufferString(`{"email":"corretor@olympus.test","senha":"senha-forte-123"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	res := httptest.NewRecorder()

	h.Login(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", res.Code, res.Body.String())
	}

	var payload struct {
		Data struct {
			AccessToken string          `json:"access_token"`
			User        service.Profile `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Data.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	if payload.Data.User.Role != "Broker" {
		t.Fatalf("expected role Broker, got %q", payload.Data.User.Role)
	}

	var refreshCookie *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == refreshCookieName {
			refreshCookie = c
		}
	}
	if refreshCookie == nil || refreshCookie.Value == "" {
		t.Fatalf("expected refresh cookie")
	}
	if len(repoStub.inserted) != 1 {
		t.Fatalf("expected 1 refresh token persisted, got %d", len(repoStub.inserted))
	}
}

func TestLoginRejectsMalformedEmail(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body := bytes.NewBufferString(`{"email":"nao-e-email","senha":"senha-forte-123"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	res := httptest.NewRecorder()

	h.Login(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", res.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body := bytes.NewBufferString(`{"email":"corretor@olympus.test","senha":"errada"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	res := httptest.NewRecorder()

	h.Login(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", res.Code)
	}
}

func TestCalendarEventsProjectsContracts(t *testing.T) {
	sent := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	clientID := uuid.New()
	contracts := &stubClientSource{clients: []client.Client{{
		ID:   clientID,
		Name: "Seguradora Atlas",
		Contracts: []client.Contract{{
			ID:             uuid.New(),
			ClientID:       clientID,
			Status:         client.ContractActive,
			BoletoSentDate: &sent,
		}},
	}}}
	tasks := &stubTaskStore{}

	agendaSvc := agenda.NewService(contracts, tasks).WithClock(func() time.Time {
		return time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	})
	h := &Handler{agenda: agendaSvc}

	req := httptest.NewRequest(http.MethodGet, "/calendar/events", nil)
	res := httptest.NewRecorder()

	h.CalendarEvents(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}

	var payload struct {
		Data []agenda.Event `json:"data"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(payload.Data) == 0 {
		t.Fatalf("expected projected events")
	}
	for _, ev := range payload.Data {
		if ev.Type != agenda.TypeBoletoSend {
			t.Fatalf("expected only boleto events, got %s", ev.Type)
		}
	}
}

func TestTriggerBoletoSyncCreatesTasks(t *testing.T) {
	sent := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	clientID := uuid.New()
	contracts := &stubClientSource{clients: []client.Client{{
		ID:   clientID,
		Name: "Seguradora Atlas",
		Contracts: []client.Contract{{
			ID:             uuid.New(),
			ClientID:       clientID,
			Status:         client.ContractActive,
			BoletoSentDate: &sent,
		}},
	}}}
	tasks := &stubTaskStore{}

	syncSvc := boleto.NewService(contracts, tasks, boleto.Config{Enabled: true}, zerolog.Nop(), metrics.New()).
		WithClock(func() time.Time {
			return time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
		})
	h := &Handler{sync: syncSvc}

	req := httptest.NewRequest(http.MethodPost, "/sync/boletos", nil)
	res := httptest.NewRecorder()

	h.TriggerBoletoSync(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(tasks.created) != 1 {
		t.Fatalf("expected 1 boleto task, got %d", len(tasks.created))
	}
	if tasks.created[0].BoletoCycle != "2024-03-15" {
		t.Fatalf("unexpected cycle %q", tasks.created[0].BoletoCycle)
	}
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestMoveTaskRejectsUnknownStatus(t *testing.T) {
	h := &Handler{}

	body := bytes.NewBufferString(`{"status":"archived"}`)
	req := httptest.NewRequest(http.MethodPatch, "/tasks/"+uuid.NewString()+"/status", body)
	req = withURLParam(req, "id", uuid.NewString())
	res := httptest.NewRecorder()

	h.MoveTask(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", res.Code)
	}
}
