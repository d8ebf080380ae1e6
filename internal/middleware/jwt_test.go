package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dquispe/cineticket/internal/utils"
)

const testSecret = "test-secret"

func runProtected(t *testing.T, authHeader string, mws ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h(c))
	return rec
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 42, "CUSTOMER", 5)
	require.NoError(t, err)

	rec := runProtected(t, "Bearer "+tok.Token, JWTAuth(testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuthRejectsMissingToken(t *testing.T) {
	rec := runProtected(t, "", JWTAuth(testSecret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("other-secret", 42, "CUSTOMER", 5)
	require.NoError(t, err)

	rec := runProtected(t, "Bearer "+tok.Token, JWTAuth(testSecret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	customer, err := utils.NewAccessToken(testSecret, 42, "CUSTOMER", 5)
	require.NoError(t, err)
	admin, err := utils.NewAccessToken(testSecret, 1, "ADMIN", 5)
	require.NoError(t, err)

	rec := runProtected(t, "Bearer "+customer.Token, JWTAuth(testSecret), RequireRole("ADMIN"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = runProtected(t, "Bearer "+admin.Token, JWTAuth(testSecret), RequireRole("ADMIN"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
