package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newJWTService(t *testing.T, seeds []Seed) *Service {
	t.Helper()
	store, err := NewMemoryStore(nil)
	if err != nil {
		t.Fatalf("创建内存存储失败: %v", err)
	}
	svc, err := NewService(context.Background(), Config{
		Mode: ModeJWT,
		JWT: JWTOptions{
			Secret:   "unit-test-secret",
			Issuer:   "querymind",
			Audience: []string{"querymind-api"},
		},
		Seeds: seeds,
	}, store)
	if err != nil {
		t.Fatalf("创建认证服务失败: %v", err)
	}
	return svc
}

func TestAuthenticatePasswordGrant(t *testing.T) {
	svc := newJWTService(t, []Seed{{
		Username:    "analyst",
		Password:    "s3cret",
		Roles:       []string{"analyst"},
		Permissions: []string{"queries:submit", "queries:read"},
	}})

	pair, err := svc.Authenticate(context.Background(), TokenRequest{
		GrantType: "password",
		Username:  "analyst",
		Password:  "s3cret",
	})
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("令牌对不完整: %+v", pair)
	}
	if pair.TokenType != "Bearer" {
		t.Fatalf("token_type 应为 Bearer, 实际 %s", pair.TokenType)
	}

	subject, err := svc.AuthenticateRequest(context.Background(), "Bearer "+pair.AccessToken)
	if err != nil {
		t.Fatalf("校验访问令牌失败: %v", err)
	}
	if subject.Username != "analyst" {
		t.Fatalf("主体用户名不符: %s", subject.Username)
	}
	if err := subject.Authorize("queries:submit"); err != nil {
		t.Fatalf("应持有 queries:submit 权限: %v", err)
	}
	if err := subject.Authorize("admin:write"); err == nil {
		t.Fatal("不应持有 admin:write 权限")
	}
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	svc := newJWTService(t, []Seed{{Username: "analyst", Password: "s3cret"}})

	if _, err := svc.Authenticate(context.Background(), TokenRequest{
		Username: "analyst",
		Password: "guess",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("期望 ErrInvalidCredentials, 实际 %v", err)
	}
}

func TestAuthenticateRejectsUnsupportedGrant(t *testing.T) {
	svc := newJWTService(t, []Seed{{Username: "analyst", Password: "s3cret"}})

	if _, err := svc.Authenticate(context.Background(), TokenRequest{
		GrantType: "client_credentials",
		Username:  "analyst",
		Password:  "s3cret",
	}); !errors.Is(err, ErrUnsupportedGrant) {
		t.Fatalf("期望 ErrUnsupportedGrant, 实际 %v", err)
	}
}

func TestAuthenticateRejectsDisabledUser(t *testing.T) {
	svc := newJWTService(t, []Seed{{Username: "ghost", Password: "s3cret", Disabled: true}})

	if _, err := svc.Authenticate(context.Background(), TokenRequest{
		Username: "ghost",
		Password: "s3cret",
	}); !errors.Is(err, ErrSubjectRevoked) {
		t.Fatalf("期望 ErrSubjectRevoked, 实际 %v", err)
	}
}

func TestAuthenticateRequestRejectsForgedToken(t *testing.T) {
	svc := newJWTService(t, []Seed{{Username: "analyst", Password: "s3cret"}})

	if _, err := svc.AuthenticateRequest(context.Background(), "Bearer not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("期望 ErrInvalidToken, 实际 %v", err)
	}
	if _, err := svc.AuthenticateRequest(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("期望 ErrMissingToken, 实际 %v", err)
	}
}

func TestRefreshTokenCannotAccessAPI(t *testing.T) {
	svc := newJWTService(t, []Seed{{Username: "analyst", Password: "s3cret"}})

	pair, err := svc.Authenticate(context.Background(), TokenRequest{Username: "analyst", Password: "s3cret"})
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}
	if _, err := svc.AuthenticateRequest(context.Background(), "Bearer "+pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("刷新令牌不应通过访问校验, 实际 %v", err)
	}
}

func TestMiddlewareEnforcesPermissions(t *testing.T) {
	svc := newJWTService(t, []Seed{
		{Username: "reader", Password: "s3cret", Permissions: []string{"queries:read"}},
	})

	pair, err := svc.Authenticate(context.Background(), TokenRequest{Username: "reader", Password: "s3cret"})
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	var seen *Subject
	handler := svc.Middleware(MiddlewareConfig{
		RequiredPermissions: map[string][]string{
			http.MethodGet:  {"queries:read"},
			http.MethodPost: {"queries:submit"},
		},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// 无令牌直接拒绝。
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/queries", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("缺少令牌应返回 401, 实际 %d", rec.Code)
	}

	// 读权限允许 GET。
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queries", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("持读权限的 GET 应放行, 实际 %d", rec.Code)
	}
	if seen == nil || seen.Username != "reader" {
		t.Fatalf("处理函数应能取到主体, 实际 %+v", seen)
	}

	// 缺少提交权限时 POST 被拒。
	req = httptest.NewRequest(http.MethodPost, "/api/v1/queries", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("缺少提交权限的 POST 应返回 403, 实际 %d", rec.Code)
	}
}
