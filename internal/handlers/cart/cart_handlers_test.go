package cart

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	icart "github.com/mkravets/parts_store/internal/cart"
	"github.com/mkravets/parts_store/internal/models"
	"github.com/mkravets/parts_store/internal/orders"
)

type testEnv struct {
	T  *testing.T
	E  *echo.Echo
	H  *CartHandler
	DB *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Category{}, &models.Product{}, &models.Address{}, &models.User{},
		&models.Order{}, &models.OrderItem{}, &models.OrderLog{},
	))

	engine := &orders.Engine{DB: db, Codes: orders.NewCodeSource()}
	return &testEnv{
		T:  t,
		E:  echo.New(),
		H:  &CartHandler{DB: db, Engine: engine, Sessions: icart.NewStore(time.Hour)},
		DB: db,
	}
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}, sessionID string) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: sessionID})
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) seedProduct(name string, price float64, availability string) models.Product {
	p := models.Product{Name: name, Price: price, CategoryID: 1, Availability: availability}
	require.NoError(env.T, env.DB.Create(&p).Error)
	return p
}

type cartResponse struct {
	Items     []icart.Item `json:"items"`
	CartTotal float64      `json:"cart_total"`
	CartCount uint         `json:"cart_count"`
}

func TestAddToCartMintsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("GPU", 499.99, models.AvailabilityInStock)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart",
		map[string]any{"product_id": p.ID, "quantity": 2}, "")
	require.NoError(t, env.H.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, sessionCookie, cookies[0].Name)
	require.NotEmpty(t, cookies[0].Value)

	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	require.Equal(t, uint(2), resp.CartCount)
}

func TestAddToCartUnavailableProduct(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("GPU", 499.99, "expected next week")

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart",
		map[string]any{"product_id": p.ID, "quantity": 1}, "session-a")
	err := env.H.AddToCart(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, he.Code)
	require.Empty(t, env.H.Sessions.Get("session-a").Items)
}

func TestAddToCartMissingProduct(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart",
		map[string]any{"product_id": 77, "quantity": 1}, "session-a")
	err := env.H.AddToCart(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, he.Code)
}

func TestUpdateQuantityAndRemove(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("GPU", 100, models.AvailabilityInStock)

	var c icart.Cart
	c.Add(p, 2)
	env.H.Sessions.Put("session-a", c)

	rec, ctx := env.doJSONRequest(http.MethodPatch, "/api/v1/cart",
		map[string]any{"product_id": p.ID, "quantity": 5}, "session-a")
	require.NoError(t, env.H.UpdateQuantity(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, uint(5), resp.CartCount)
	require.Equal(t, 500.0, resp.CartTotal)

	rec, ctx = env.doJSONRequest(http.MethodDelete, "/api/v1/cart/1", nil, "session-a")
	ctx.SetParamNames("id")
	ctx.SetParamValues("1")
	require.NoError(t, env.H.RemoveFromCart(ctx))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, env.H.Sessions.Get("session-a").Items)
}

func TestCheckoutCreatesOrderAndClearsCart(t *testing.T) {
	env := newTestEnv(t)
	gpu := env.seedProduct("GPU", 100, models.AvailabilityInStock)
	cpu := env.seedProduct("CPU", 200, models.AvailabilityInStock)

	var cartState icart.Cart
	cartState.Add(gpu, 2)
	cartState.Add(cpu, 1)
	env.H.Sessions.Put("session-a", cartState)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart/checkout", nil, "session-a")
	c.Set("userID", uint(7))
	c.Set("role", models.RoleCustomer)
	require.NoError(t, env.H.Checkout(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		OrderID     uint               `json:"order_id"`
		OverlayCode int                `json:"overlay_code"`
		Status      models.OrderStatus `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotZero(t, resp.OrderID)
	require.GreaterOrEqual(t, resp.OverlayCode, 100000)
	require.LessOrEqual(t, resp.OverlayCode, 999999)
	require.Equal(t, models.StatusNew, resp.Status)

	var order models.Order
	require.NoError(t, env.DB.First(&order, resp.OrderID).Error)
	require.Equal(t, uint(7), order.CustomerID)

	var itemCount int64
	require.NoError(t, env.DB.Model(&models.OrderItem{}).Where("order_id = ?", order.ID).Count(&itemCount).Error)
	require.Equal(t, int64(2), itemCount)

	require.Empty(t, env.H.Sessions.Get("session-a").Items)
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart/checkout", nil, "session-a")
	c.Set("userID", uint(7))
	err := env.H.Checkout(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Code)
}

// A product going out of stock between add and checkout must abort the order
// and keep the cart so the user can adjust it.
func TestCheckoutConflictKeepsCart(t *testing.T) {
	env := newTestEnv(t)
	gpu := env.seedProduct("GPU", 100, models.AvailabilityInStock)

	var cartState icart.Cart
	cartState.Add(gpu, 1)
	env.H.Sessions.Put("session-a", cartState)

	gpu.Availability = "out of stock"
	require.NoError(t, env.DB.Save(&gpu).Error)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart/checkout", nil, "session-a")
	c.Set("userID", uint(7))
	err := env.H.Checkout(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, he.Code)

	require.Len(t, env.H.Sessions.Get("session-a").Items, 1)

	var orderCount int64
	require.NoError(t, env.DB.Model(&models.Order{}).Count(&orderCount).Error)
	require.Zero(t, orderCount)
}

func TestCheckoutRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart/checkout", nil, "session-a")
	err := env.H.Checkout(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestMyOrdersNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	for i, createdAt := range []int64{100, 300, 200} {
		require.NoError(t, env.DB.Create(&models.Order{
			OverlayCode: 100000 + i, CustomerID: 7, Status: models.StatusNew, CreatedAt: createdAt,
		}).Error)
	}
	require.NoError(t, env.DB.Create(&models.Order{
		OverlayCode: 999999, CustomerID: 8, Status: models.StatusNew, CreatedAt: 400,
	}).Error)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/orders", nil, "")
	c.Set("userID", uint(7))
	require.NoError(t, env.H.MyOrders(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 3)
	require.Equal(t, int64(300), resp[0].CreatedAt)
	require.Equal(t, int64(200), resp[1].CreatedAt)
	require.Equal(t, int64(100), resp[2].CreatedAt)
}

func TestOrderDetailsOwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.DB.Create(&models.Order{
		OverlayCode: 123456, CustomerID: 8, Status: models.StatusNew, CreatedAt: 1,
	}).Error)

	_, c := env.doJSONRequest(http.MethodGet, "/api/v1/orders/1", nil, "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	c.Set("userID", uint(7))
	c.Set("role", models.RoleCustomer)

	err := env.H.OrderDetails(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)
}
