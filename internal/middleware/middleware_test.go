package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, setup func(*http.Request)) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	h := func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	}
	require.NoError(t, mw(h)(c))
	return rec, reached
}

func TestAPIAuthValidToken(t *testing.T) {
	mw := APIAuth("secret")
	rec, reached := runMiddleware(t, mw, func(r *http.Request) {
		r.Header.Set("Token", "secret")
	})
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIAuthMissingToken(t *testing.T) {
	mw := APIAuth("secret")
	rec, reached := runMiddleware(t, mw, nil)
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Token is required")
}

func TestAPIAuthWrongToken(t *testing.T) {
	mw := APIAuth("secret")
	rec, reached := runMiddleware(t, mw, func(r *http.Request) {
		r.Header.Set("Token", "wrong")
	})
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIAuthEmptyKeyRejectsAll(t *testing.T) {
	// An unset API key must not turn authentication off.
	mw := APIAuth("")
	_, reached := runMiddleware(t, mw, func(r *http.Request) {
		r.Header.Set("Token", "anything")
	})
	assert.False(t, reached)
}

func TestTelegramIPCheck(t *testing.T) {
	tests := []struct {
		ip      string
		allowed bool
	}{
		{"149.154.167.220", true},
		{"91.108.4.5", true},
		{"91.108.7.255", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"8.8.8.8", false},
		{"203.0.113.7", false},
		// Same /16 as the allowed ranges but outside the published CIDRs.
		{"149.154.100.1", false},
		{"91.108.99.1", false},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			mw := TelegramIPCheck()
			rec, reached := runMiddleware(t, mw, func(r *http.Request) {
				r.Header.Set(echo.HeaderXRealIP, tt.ip)
			})
			assert.Equal(t, tt.allowed, reached)
			if !tt.allowed {
				assert.Equal(t, http.StatusForbidden, rec.Code)
			}
		})
	}
}

func TestCORSHeaders(t *testing.T) {
	mw := CORS()
	rec, reached := runMiddleware(t, mw, nil)
	assert.True(t, reached)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	h := func(c echo.Context) error {
		reached = true
		return nil
	}
	require.NoError(t, CORS()(h)(c))
	assert.False(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
}
