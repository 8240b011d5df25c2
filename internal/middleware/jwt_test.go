package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/game-catalog/internal/utils"
)

const secret = "s3cret"

func runJWT(t *testing.T, authHeader string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	h := JWTAuth(secret)(func(c echo.Context) error {
		seen = UserID(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, seen
}

func sign(t *testing.T, claims jwt.Claims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func TestJWTAuth_Valid(t *testing.T) {
	tok, err := utils.NewAccessToken(secret, "user-42", time.Minute)
	require.NoError(t, err)

	rec, uid := runJWT(t, "Bearer "+tok.Token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", uid)
}

func TestJWTAuth_Rejects(t *testing.T) {
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage":        "Bearer not-a-jwt",
		"wrong key":      "Bearer " + sign(t, jwt.RegisteredClaims{Subject: "u", ExpiresAt: future}, "other"),
		"expired":        "Bearer " + sign(t, jwt.RegisteredClaims{Subject: "u", ExpiresAt: past}, secret),
		"no expiry":      "Bearer " + sign(t, jwt.RegisteredClaims{Subject: "u"}, secret),
		"no subject":     "Bearer " + sign(t, jwt.RegisteredClaims{ExpiresAt: future}, secret),
		"numeric sub":    "Bearer " + sign(t, jwt.MapClaims{"sub": 7, "exp": future.Unix()}, secret),
		"long subject":   "Bearer " + sign(t, jwt.RegisteredClaims{Subject: strings.Repeat("u", 65), ExpiresAt: future}, secret),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec, uid := runJWT(t, header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, uid)
		})
	}
}

func TestJWTAuth_RejectsNoneAlgorithm(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	rec, _ := runJWT(t, "Bearer "+raw)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuth_AcceptsSubjectAtColumnWidth(t *testing.T) {
	sub := strings.Repeat("u", maxSubjectLen)
	tok, err := utils.NewAccessToken(secret, sub, time.Minute)
	require.NoError(t, err)

	rec, uid := runJWT(t, "Bearer "+tok.Token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sub, uid)
}
