package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-toy-backend/internal/domain"
	"github.com/tbourn/go-toy-backend/internal/http/middleware"
	"github.com/tbourn/go-toy-backend/internal/services"
)

// ---------- service stubs ----------

type stubAuthSvc struct {
	signup    func(context.Context, services.SignupInput) (*domain.Parent, error)
	login     func(context.Context, string, string, string) (*services.TokenPair, error)
	refresh   func(context.Context, string, string) (*services.TokenPair, error)
	logout    func(context.Context, string) error
	createKey func(context.Context, string) (string, *domain.APIKey, error)
	revokeKey func(context.Context, string) (*domain.APIKey, error)
}

func (s stubAuthSvc) Signup(ctx context.Context, in services.SignupInput) (*domain.Parent, error) {
	return s.signup(ctx, in)
}

func (s stubAuthSvc) Login(ctx context.Context, e, p, ua string) (*services.TokenPair, error) {
	return s.login(ctx, e, p, ua)
}

func (s stubAuthSvc) Refresh(ctx context.Context, raw, ua string) (*services.TokenPair, error) {
	return s.refresh(ctx, raw, ua)
}

func (s stubAuthSvc) Logout(ctx context.Context, id string) error { return s.logout(ctx, id) }

func (s stubAuthSvc) CreateAPIKey(ctx context.Context, owner string) (string, *domain.APIKey, error) {
	return s.createKey(ctx, owner)
}

func (s stubAuthSvc) RevokeAPIKey(ctx context.Context, id string) (*domain.APIKey, error) {
	return s.revokeKey(ctx, id)
}

type stubParentSvc struct {
	list        func(context.Context, string) ([]domain.Child, error)
	create      func(context.Context, string, string, int) (*domain.Child, error)
	del         func(context.Context, string, string) error
	analytics   func(context.Context, string, string) (*domain.ChildAnalytics, error)
	summary     func(context.Context, string, string) (*domain.WeeklySummary, error)
	toyStatus   func(context.Context, string, string) (*services.ToyStatus, error)
	activeChild func(context.Context, string, string) (*services.ActiveChild, error)
}

func (s stubParentSvc) ListChildren(ctx context.Context, pid string) ([]domain.Child, error) {
	return s.list(ctx, pid)
}

func (s stubParentSvc) CreateChild(ctx context.Context, pid, name string, age int) (*domain.Child, error) {
	return s.create(ctx, pid, name, age)
}

func (s stubParentSvc) DeleteChild(ctx context.Context, pid, cid string) error {
	return s.del(ctx, pid, cid)
}

func (s stubParentSvc) Analytics(ctx context.Context, pid, cid string) (*domain.ChildAnalytics, error) {
	return s.analytics(ctx, pid, cid)
}

func (s stubParentSvc) WeeklySummary(ctx context.Context, pid, cid string) (*domain.WeeklySummary, error) {
	return s.summary(ctx, pid, cid)
}

func (s stubParentSvc) ToyStatus(ctx context.Context, pid, toy string) (*services.ToyStatus, error) {
	return s.toyStatus(ctx, pid, toy)
}

func (s stubParentSvc) ActiveChild(ctx context.Context, pid, toy string) (*services.ActiveChild, error) {
	return s.activeChild(ctx, pid, toy)
}

type stubToySvc struct {
	pair      func(context.Context, string, string, string) (string, error)
	setActive func(context.Context, string, string, string) error
	heartbeat func(context.Context, string) error
	ask       func(context.Context, services.AskInput) (*services.AskResult, error)
	register  func(context.Context, string, string, string) (*domain.Toy, error)
}

func (s stubToySvc) Pair(ctx context.Context, pid, toy, cid string) (string, error) {
	return s.pair(ctx, pid, toy, cid)
}

func (s stubToySvc) SetActiveChild(ctx context.Context, pid, toy, cid string) error {
	return s.setActive(ctx, pid, toy, cid)
}

func (s stubToySvc) Heartbeat(ctx context.Context, toy string) error { return s.heartbeat(ctx, toy) }

func (s stubToySvc) Ask(ctx context.Context, in services.AskInput) (*services.AskResult, error) {
	return s.ask(ctx, in)
}

func (s stubToySvc) RegisterToy(ctx context.Context, toy, model, fw string) (*domain.Toy, error) {
	return s.register(ctx, toy, model, fw)
}

type stubAdminSvc struct {
	messages      func(context.Context, int, int) (*services.AuditPage, error)
	childMessages func(context.Context, string, int, int) (*services.AuditPage, error)
	toyMessages   func(context.Context, string, int, int) (*services.AuditPage, error)
	deactivate    func(context.Context, string) error
}

func (s stubAdminSvc) Messages(ctx context.Context, l, o int) (*services.AuditPage, error) {
	return s.messages(ctx, l, o)
}

func (s stubAdminSvc) ChildMessages(ctx context.Context, id string, l, o int) (*services.AuditPage, error) {
	return s.childMessages(ctx, id, l, o)
}

func (s stubAdminSvc) ToyMessages(ctx context.Context, toy string, l, o int) (*services.AuditPage, error) {
	return s.toyMessages(ctx, toy, l, o)
}

func (s stubAdminSvc) DeactivateParent(ctx context.Context, id string) error {
	return s.deactivate(ctx, id)
}

// ---------- principals ----------

const (
	testParentID = "0b9d7c1e-3f5a-4c57-9a43-2f6f7d0e8b21"
	testChildID  = "2c1f7a8e-5d0b-4f7a-9c61-0d9a1e2b3c4d"
	testToyUUID  = "9f6c1c2e-1d44-4a7a-b6a8-6f0e0f9b6a10"
)

// fixedParent resolves every bearer token to the same parent.
type fixedParent struct{ p *domain.Parent }

func (f fixedParent) ResolveParent(context.Context, string) (*domain.Parent, error) {
	return f.p, nil
}

type fixedKey struct{}

func (fixedKey) ResolveAPIKey(context.Context, string) (*domain.APIKey, error) {
	return &domain.APIKey{ID: "key-1", Owner: "fleet"}, nil
}

func asParent() gin.HandlerFunc {
	return middleware.RequireParent(fixedParent{&domain.Parent{ID: testParentID, Role: domain.RoleParent, IsActive: true}}, WriteAuthError)
}

func asToy() gin.HandlerFunc { return middleware.RequireAPIKey(fixedKey{}, WriteError) }

// ---------- request helpers ----------

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		c.Next()
	})
	return r
}

func do(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return er
}

func wantErr(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status=%d want %d body=%s", w.Code, status, w.Body.String())
	}
	if er := decodeErr(t, w); er.Code != code || er.RequestID != "rid-test" {
		t.Fatalf("unexpected envelope: %+v", er)
	}
}
