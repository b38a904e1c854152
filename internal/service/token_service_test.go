package service

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mkravets/parts_store/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}))
	return db
}

func newContext(e *echo.Echo) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRotateTokenIssuesFreshPair(t *testing.T) {
	db := newTestDB(t)
	svc := &TokenService{DB: db, JWTSecret: []byte("access"), RefreshSecret: []byte("refresh")}

	raw, err := SignRefreshToken(1, models.RoleCustomer, svc.RefreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(db, raw, 1, models.RoleCustomer, NewJTI()))

	access, refresh, err := svc.RotateToken(raw)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	require.NotEqual(t, raw, refresh)

	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestRotateRevokedTokenFails(t *testing.T) {
	db := newTestDB(t)
	svc := &TokenService{DB: db, JWTSecret: []byte("access"), RefreshSecret: []byte("refresh")}

	raw, err := SignRefreshToken(1, models.RoleCustomer, svc.RefreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(db, raw, 1, models.RoleCustomer, NewJTI()))
	require.NoError(t, RevokeRefreshToken(db, raw))

	_, _, err = svc.RotateToken(raw)
	require.Error(t, err)
}

func TestRotateUnknownTokenFails(t *testing.T) {
	db := newTestDB(t)
	svc := &TokenService{DB: db, JWTSecret: []byte("access"), RefreshSecret: []byte("refresh")}

	raw, err := SignRefreshToken(1, models.RoleCustomer, svc.RefreshSecret)
	require.NoError(t, err)

	_, _, err = svc.RotateToken(raw)
	require.Error(t, err)
}

func TestAccessTokenIsNotARefreshToken(t *testing.T) {
	db := newTestDB(t)

	access, err := SignAccessToken(1, models.RoleCustomer, []byte("refresh"))
	require.NoError(t, err)

	_, err = ValidateRefresh(access, []byte("refresh"), db)
	require.Error(t, err)
}

// The role claim in the token is not trusted: the gate re-reads the user row,
// so a demoted user is rejected even with a still-valid token.
func TestRequireRoleReadsRoleFromDatabase(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.User{
		Login: "op", PasswordHash: "x", Role: models.RoleCustomer,
		FirstName: "A", SecondName: "B", Phone: "79000000000",
	}).Error)

	svc := &TokenService{DB: db, JWTSecret: []byte("access"), RefreshSecret: []byte("refresh")}
	e := echo.New()

	handler := svc.RequireRole(models.RoleOperator)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	c, _ := newContext(e)
	c.Set("userID", uint(1))
	c.Set("role", models.RoleOperator) // stale claim

	err := handler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.User{
		Login: "op", PasswordHash: "x", Role: models.RoleOperator,
		FirstName: "A", SecondName: "B", Phone: "79000000000",
	}).Error)

	svc := &TokenService{DB: db, JWTSecret: []byte("access"), RefreshSecret: []byte("refresh")}
	e := echo.New()

	called := false
	handler := svc.RequireRole(models.RoleOperator)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	c, rec := newContext(e)
	c.Set("userID", uint(1))

	require.NoError(t, handler(c))
	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleWithoutUser(t *testing.T) {
	db := newTestDB(t)
	svc := &TokenService{DB: db, JWTSecret: []byte("access"), RefreshSecret: []byte("refresh")}
	e := echo.New()

	handler := svc.RequireRole(models.RoleOperator)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	c, _ := newContext(e)
	err := handler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}
