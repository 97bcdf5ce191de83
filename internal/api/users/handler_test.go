package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"travel-marketplace/database/dbtest"
	"travel-marketplace/internal/domain/users"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedBalance int64

func (b fixedBalance) Balance(context.Context, uint) (int64, error) { return int64(b), nil }

func TestGetCurrentUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t)
	active := users.User{Name: "Ana", Email: "ana@example.com", AuthProvider: "local", Role: users.RoleAgent}
	suspended := users.User{Name: "Bo", Email: "bo@example.com", AuthProvider: "google", Role: users.RoleSuspended}
	require.NoError(t, db.Create(&active).Error)
	require.NoError(t, db.Create(&suspended).Error)

	get := func(userID uint) *httptest.ResponseRecorder {
		r := gin.New()
		r.GET("/me", func(c *gin.Context) {
			if userID != 0 {
				c.Set("user_id", userID)
			}
		}, GetCurrentUser(db, fixedBalance(250)))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		return w
	}

	w := get(active.ID)
	require.Equal(t, http.StatusOK, w.Code)
	var me MeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "ana@example.com", me.User.Email)
	assert.Equal(t, int64(250), me.Credits.Balance)
	assert.True(t, me.Capabilities.CanPurchaseCredits)
	assert.True(t, me.Capabilities.CanConsumeCredits)

	w = get(suspended.ID)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.False(t, me.Capabilities.CanPurchaseCredits)

	assert.Equal(t, http.StatusUnauthorized, get(0).Code)
	assert.Equal(t, http.StatusNotFound, get(999).Code)
}
