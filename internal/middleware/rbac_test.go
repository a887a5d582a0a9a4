package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/classdesk/classdesk-api/internal/models"
)

func performRBAC(t *testing.T, claims *models.JWTClaims, paramID string, allowed ...string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if paramID != "" {
		c.Params = gin.Params{{Key: "id", Value: paramID}}
	}
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}

	called := false
	RBAC(allowed...)(c)
	if !c.IsAborted() {
		called = true
	}
	if called {
		return http.StatusOK
	}
	return rec.Code
}

func TestRBACAllowsRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}
	assert.Equal(t, http.StatusOK, performRBAC(t, claims, "", string(models.RoleTeacher)))
}

func TestRBACForbidsWrongRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}
	assert.Equal(t, http.StatusForbidden, performRBAC(t, claims, "", string(models.RoleTeacher)))
}

func TestRBACSelfMatch(t *testing.T) {
	claims := &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}
	assert.Equal(t, http.StatusOK, performRBAC(t, claims, "s1", string(models.RoleTeacher), "SELF"))
}

func TestRBACSelfMismatch(t *testing.T) {
	claims := &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}
	assert.Equal(t, http.StatusForbidden, performRBAC(t, claims, "s2", string(models.RoleTeacher), "SELF"))
}

func TestRBACMissingClaims(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, performRBAC(t, nil, "", string(models.RoleTeacher)))
}
