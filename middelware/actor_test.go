package middelware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fieldops-backend/models"
	"fieldops-backend/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockLogger implements the logger interface for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(args ...interface{})                 {}
func (m *MockLogger) Debugf(format string, args ...interface{}) {}
func (m *MockLogger) Info(args ...interface{})                  {}
func (m *MockLogger) Infof(format string, args ...interface{})  {}
func (m *MockLogger) Warn(args ...interface{})                  {}
func (m *MockLogger) Warnf(format string, args ...interface{})  {}
func (m *MockLogger) Error(args ...interface{})                 {}
func (m *MockLogger) Errorf(format string, args ...interface{}) {}
func (m *MockLogger) Fatal(args ...interface{})                 {}
func (m *MockLogger) Fatalf(format string, args ...interface{}) {}
func (m *MockLogger) WithField(key string, value interface{}) logger.Logger {
	return m
}

const testSecret = "unit-test-secret"

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	assert.NoError(t, err)
	return signed
}

func actorRouter() (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	cfg := &models.Config{JWTSecret: testSecret}
	m := NewActorMiddleware(cfg, &MockLogger{})

	var seen string
	r := gin.New()
	r.Use(m.RequireActor())
	r.GET("/protected", func(c *gin.Context) {
		seen = Actor(c)
		c.Status(http.StatusOK)
	})
	return r, &seen
}

func TestRequireActorValidToken(t *testing.T) {
	r, seen := actorRouter()
	token := signedToken(t, jwt.MapClaims{
		"username": "tech-1",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tech-1", *seen)
}

func TestRequireActorFallsBackToSubject(t *testing.T) {
	r, seen := actorRouter()
	token := signedToken(t, jwt.MapClaims{
		"sub": "tech-2",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tech-2", *seen)
}

func TestRequireActorRejections(t *testing.T) {
	expired := func(t *testing.T) string {
		return signedToken(t, jwt.MapClaims{
			"username": "tech-1",
			"exp":      time.Now().Add(-time.Hour).Unix(),
		})
	}
	wrongKey := func(t *testing.T) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"username": "tech-1"})
		signed, err := token.SignedString([]byte("other-secret"))
		assert.NoError(t, err)
		return signed
	}
	noSubject := func(t *testing.T) string {
		return signedToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	}

	testCases := []struct {
		name   string
		header func(t *testing.T) string
	}{
		{"Missing header", func(t *testing.T) string { return "" }},
		{"Not a bearer token", func(t *testing.T) string { return "Basic abc123" }},
		{"Garbage token", func(t *testing.T) string { return "Bearer not.a.token" }},
		{"Expired token", func(t *testing.T) string { return "Bearer " + expired(t) }},
		{"Wrong signing key", func(t *testing.T) string { return "Bearer " + wrongKey(t) }},
		{"No subject claim", func(t *testing.T) string { return "Bearer " + noSubject(t) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := actorRouter()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if h := tc.header(t); h != "" {
				req.Header.Set("Authorization", h)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestActorWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Equal(t, "", Actor(c))
}
