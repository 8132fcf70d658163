package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rongwang/tripsync/internal/api"
	"github.com/rongwang/tripsync/internal/gateway/gatewaytest"
	"github.com/rongwang/tripsync/internal/service"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests
type TestContext struct {
	Router      *gin.Engine
	Gateway     *gatewaytest.Fake
	Registry    *service.Registry
	JWTSecret   []byte
	TestUserID  string
	TestUserJWT string
}

// SetupTestContext wires the bridge router to a fake upstream gateway
func SetupTestContext(t *testing.T) *TestContext {
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gatewaytest.New()
	registry := service.NewRegistry(gw, logger)

	handler := api.NewHandler(registry, []byte(testJWTSecret), logger)
	router := api.NewRouter(handler, logger)

	userID := uuid.New().String()

	return &TestContext{
		Router:      router,
		Gateway:     gw,
		Registry:    registry,
		JWTSecret:   []byte(testJWTSecret),
		TestUserID:  userID,
		TestUserJWT: SignToken(t, userID, testJWTSecret, time.Now().Add(24*time.Hour)),
	}
}

// CleanupTestContext closes every engine and waits for background work
func CleanupTestContext(tc *TestContext) {
	tc.Registry.Close()
}

// SignToken issues an HS256 token for userID
func SignToken(t *testing.T, userID, secret string, expiresAt time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": expiresAt.Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(secret))
	require.NoError(t, err, "Failed to generate JWT token")
	return tokenString
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
