package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func metricsRouter(enabled bool) *gin.Engine {
	router := gin.New()
	router.GET("/metrics", metricsAuthMiddleware(enabled, "prometheus", "secret123"), func(c *gin.Context) {
		c.String(http.StatusOK, "metrics")
	})
	return router
}

func TestMetricsAuthMiddleware_Disabled(t *testing.T) {
	w := httptest.NewRecorder()
	metricsRouter(false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "metrics", w.Body.String())
}

func TestMetricsAuthMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		setAuth  bool
		username string
		password string
		want     int
	}{
		{"valid", true, "prometheus", "secret123", http.StatusOK},
		{"missing header", false, "", "", http.StatusUnauthorized},
		{"wrong username", true, "grafana", "secret123", http.StatusUnauthorized},
		{"wrong password", true, "prometheus", "nope", http.StatusUnauthorized},
		{"empty credentials", true, "", "", http.StatusUnauthorized},
	}

	router := metricsRouter(true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.username, tt.password)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="metrics"`, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}
