package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type testJWTConfig struct{ secret string }

func (c testJWTConfig) GetJWTAccessSecret() string { return c.secret }

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func accessClaims(userID, companyID uuid.UUID) jwt.MapClaims {
	return jwt.MapClaims{
		"type":       "access",
		"sub":        userID.String(),
		"company_id": companyID.String(),
		"roles":      []string{"manager"},
		"exp":        time.Now().Add(time.Hour).Unix(),
	}
}

func authTestRouter(cfg testJWTConfig, capture *Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", AuthRequired(cfg), func(c *gin.Context) {
		id := MustGetIdentity(c)
		if id == nil {
			return
		}
		*capture = id
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuthRequiredAcceptsValidToken(t *testing.T) {
	cfg := testJWTConfig{secret: "test-secret"}
	userID := uuid.New()
	companyID := uuid.New()

	var id Identity
	r := authTestRouter(cfg, &id)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, cfg.secret, accessClaims(userID, companyID)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if id.UserID() != userID || id.CompanyID() != companyID {
		t.Fatal("identity must carry the token's user and tenant")
	}
	if !id.HasRole("manager") || id.HasRole("admin") {
		t.Fatalf("unexpected roles %v", id.Roles())
	}
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	var id Identity
	r := authTestRouter(testJWTConfig{secret: "test-secret"}, &id)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequiredRejectsWrongSecret(t *testing.T) {
	var id Identity
	r := authTestRouter(testJWTConfig{secret: "test-secret"}, &id)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", accessClaims(uuid.New(), uuid.New())))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequiredRejectsRefreshTokens(t *testing.T) {
	cfg := testJWTConfig{secret: "test-secret"}
	claims := accessClaims(uuid.New(), uuid.New())
	claims["type"] = "refresh"

	var id Identity
	r := authTestRouter(cfg, &id)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, cfg.secret, claims))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequiredRejectsTokenWithoutTenant(t *testing.T) {
	cfg := testJWTConfig{secret: "test-secret"}
	claims := accessClaims(uuid.New(), uuid.New())
	delete(claims, "company_id")

	var id Identity
	r := authTestRouter(cfg, &id)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, cfg.secret, claims))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("tokens without a tenant must be rejected, got %d", w.Code)
	}
}

func TestRequireRoleBlocksMissingRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", func(c *gin.Context) {
		c.Set(ContextRolesKey, []string{"viewer"})
	}, RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestMustGetIdentityAbortsWhenUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if id := MustGetIdentity(c); id != nil {
		t.Fatal("expected nil identity without auth context")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
