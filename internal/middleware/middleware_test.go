package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-repo-api/internal/models"
	"github.com/noah-isme/academic-repo-api/internal/service"
	appErrors "github.com/noah-isme/academic-repo-api/pkg/errors"
	"github.com/noah-isme/academic-repo-api/pkg/logger"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*models.JWTClaims, error) {
	return s.claims, s.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	r := gin.New()
	r.GET("/", JWT(stubValidator{}), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTRejectsInvalidToken(t *testing.T) {
	r := gin.New()
	r.GET("/", JWT(stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "expired")}), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTSetsClaimsAndUserID(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u-1", Role: models.RoleStudent}
	r := gin.New()
	var seenUser string
	r.GET("/", JWT(stubValidator{claims: claims}), func(c *gin.Context) {
		seenUser = c.GetString(logger.UserIDKey)
		value, ok := c.Get(ContextUserKey)
		require.True(t, ok)
		assert.Same(t, claims, value)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", seenUser)
}

func withClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func TestRBAC(t *testing.T) {
	tests := []struct {
		name   string
		claims *models.JWTClaims
		path   string
		want   int
	}{
		{name: "admin allowed", claims: &models.JWTClaims{UserID: "a", Role: models.RoleAdmin}, path: "/users/x", want: http.StatusOK},
		{name: "self allowed", claims: &models.JWTClaims{UserID: "x", Role: models.RoleStudent}, path: "/users/x", want: http.StatusOK},
		{name: "other forbidden", claims: &models.JWTClaims{UserID: "y", Role: models.RoleStudent}, path: "/users/x", want: http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/users/:id", withClaims(tc.claims), RBAC(string(models.RoleAdmin), SelfAccess), func(c *gin.Context) { c.Status(http.StatusOK) })
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRBACWithoutClaims(t *testing.T) {
	r := gin.New()
	r.GET("/", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsMiddlewareObservesRoute(t *testing.T) {
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/resources/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resources/42", nil))
	assert.EqualValues(t, 1, metrics.Snapshot().RequestsTotal)
}

func TestResponseMetaRecordsCacheHit(t *testing.T) {
	r := gin.New()
	var meta map[string]interface{}
	r.GET("/", WithResponseMeta(), func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		time.Sleep(time.Millisecond)
		c.Status(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
}

func TestMetricsSkipsOpsRoutesAndLabelsUnmatched(t *testing.T) {
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics, "/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.EqualValues(t, 0, metrics.Snapshot().RequestsTotal)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	assert.EqualValues(t, 1, metrics.Snapshot().RequestsTotal)
}

func TestResponseMetaAddsProcessingTime(t *testing.T) {
	r := gin.New()
	var meta map[string]interface{}
	r.GET("/", WithResponseMeta(), func(c *gin.Context) {
		SetMeta(c, "role", "admin")
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, meta)
	assert.Equal(t, "admin", meta["role"])
	assert.Contains(t, meta, "processing_time_ms")
}
