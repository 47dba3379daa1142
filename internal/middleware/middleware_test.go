package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
)

type stubTokens struct {
	claims *models.StaffClaims
	err    error
	seen   string
}

func (s *stubTokens) Validate(token string) (*models.StaffClaims, error) {
	s.seen = token
	return s.claims, s.err
}

type observation struct {
	method, path string
	status       int
}

type stubObserver struct {
	seen []observation
}

func (s *stubObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	s.seen = append(s.seen, observation{method: method, path: path, status: status})
}

func protectedRouter(tokens tokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/lessons", StaffAuth(tokens), func(c *gin.Context) {
		claims := StaffFromContext(c)
		c.String(http.StatusOK, claims.Name)
	})
	return r
}

func TestStaffAuth(t *testing.T) {
	tokens := &stubTokens{claims: &models.StaffClaims{StaffID: "staff-1", Name: "Kim"}}
	router := protectedRouter(tokens)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer abc", status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/lessons", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
	assert.Equal(t, "abc", tokens.seen)
}

func TestStaffAuthRejectsInvalidToken(t *testing.T) {
	router := protectedRouter(&stubTokens{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")})
	req := httptest.NewRequest(http.MethodGet, "/lessons", nil)
	req.Header.Set("Authorization", "Bearer expired")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"UNAUTHORIZED"`)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &stubObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/lessons/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/lessons/abc", "/nowhere"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}
	require.Len(t, observer.seen, 2)
	assert.Equal(t, observation{method: http.MethodGet, path: "/lessons/:id", status: http.StatusNoContent}, observer.seen[0])
	assert.Equal(t, "unmatched", observer.seen[1].path)
	assert.Equal(t, http.StatusNotFound, observer.seen[1].status)
}
