package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"travel-marketplace/database/dbtest"
	"travel-marketplace/internal/auth/tokens"
	"travel-marketplace/internal/domain/users"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type authResponse struct {
	User struct {
		ID    uint   `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *tokens.Issuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t)
	iss := tokens.NewIssuer("secret", time.Hour, 24*time.Hour)
	h := NewHandler(db, iss)

	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/token/refresh", h.Refresh)
	r.GET("/auth/google", h.GoogleStart)
	return r, db, iss
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) authResponse {
	t.Helper()
	var res authResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestRegisterLoginRefresh(t *testing.T) {
	r, _, iss := newTestRouter(t)

	w := post(r, "/register", map[string]string{"name": "Mei", "email": " Mei@Example.com ", "password": "trip2026ok"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode(t, w)
	assert.Equal(t, "mei@example.com", reg.User.Email)
	assert.Equal(t, users.RoleUser, reg.User.Role)

	claims, err := iss.Parse(reg.AccessToken, tokens.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	w = post(r, "/login", map[string]string{"email": "mei@example.com", "password": "trip2026ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode(t, w)
	assert.NotEmpty(t, login.RefreshToken)

	w = post(r, "/token/refresh", map[string]string{"refresh_token": login.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w).AccessToken)

	w = post(r, "/token/refresh", map[string]string{"refresh_token": login.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "access tokens cannot refresh")
}

func TestRegister_Rejections(t *testing.T) {
	r, _, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated,
		post(r, "/register", map[string]string{"name": "A", "email": "a@example.com", "password": "abcd1234"}).Code)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"duplicate email", map[string]string{"name": "A", "email": "A@example.com", "password": "abcd1234"}, http.StatusConflict},
		{"weak password", map[string]string{"name": "B", "email": "b@example.com", "password": "short"}, http.StatusBadRequest},
		{"letters only", map[string]string{"name": "B", "email": "b@example.com", "password": "abcdefghij"}, http.StatusBadRequest},
		{"missing name", map[string]string{"email": "c@example.com", "password": "abcd1234"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(r, "/register", tt.body).Code)
		})
	}
}

func TestLogin_Rejections(t *testing.T) {
	r, db, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated,
		post(r, "/register", map[string]string{"name": "A", "email": "a@example.com", "password": "abcd1234"}).Code)

	assert.Equal(t, http.StatusUnauthorized,
		post(r, "/login", map[string]string{"email": "a@example.com", "password": "wrong1234"}).Code)
	assert.Equal(t, http.StatusUnauthorized,
		post(r, "/login", map[string]string{"email": "nobody@example.com", "password": "abcd1234"}).Code)

	require.NoError(t, db.Model(&users.User{}).Where("email = ?", "a@example.com").Update("role", users.RoleSuspended).Error)
	assert.Equal(t, http.StatusForbidden,
		post(r, "/login", map[string]string{"email": "a@example.com", "password": "abcd1234"}).Code)
}

func TestRefresh_SuspendedAccount(t *testing.T) {
	r, db, _ := newTestRouter(t)
	w := post(r, "/register", map[string]string{"name": "A", "email": "a@example.com", "password": "abcd1234"})
	require.Equal(t, http.StatusCreated, w.Code)
	reg := decode(t, w)

	require.NoError(t, db.Model(&users.User{}).Where("id = ?", reg.User.ID).Update("role", users.RoleSuspended).Error)
	assert.Equal(t, http.StatusForbidden,
		post(r, "/token/refresh", map[string]string{"refresh_token": reg.RefreshToken}).Code)
}

func TestGoogleStart_NotConfigured(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestEmailNormalisedBeforeValidation(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := post(r, "/register", map[string]string{"name": "Mei", "email": "  Mei@Example.com\t", "password": "trip2026ok"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "mei@example.com", decode(t, w).User.Email)

	w = post(r, "/login", map[string]string{"email": " MEI@example.COM ", "password": "trip2026ok"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, path := range []string{"/register", "/login"} {
		w = post(r, path, map[string]string{"name": "X", "email": " not-an-email ", "password": "trip2026ok"})
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Contains(t, w.Body.String(), "Invalid email format", path)
	}
}
