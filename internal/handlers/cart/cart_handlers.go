package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mkravets/parts_store/internal/cart"
	"github.com/mkravets/parts_store/internal/logging"
	"github.com/mkravets/parts_store/internal/models"
	"github.com/mkravets/parts_store/internal/mykafka"
	"github.com/mkravets/parts_store/internal/orders"
	"github.com/mkravets/parts_store/internal/service"
)

type CartHandler struct {
	DB       *gorm.DB
	Engine   *orders.Engine
	Sessions *cart.Store
	Producer mykafka.Publisher
}

func (h *CartHandler) GetCart(c echo.Context) error {
	_, current := h.session(c)
	return c.JSON(http.StatusOK, echo.Map{
		"items":      current.Items,
		"cart_total": current.Total(),
		"cart_count": current.Count(),
	})
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var product models.Product
	if err := h.DB.First(&product, req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if product.Availability != models.AvailabilityInStock {
		return echo.NewHTTPError(http.StatusConflict, "product is not available")
	}

	sessionID, current := h.session(c)
	current.Add(product, req.Quantity)
	h.Sessions.Put(sessionID, current)

	h.publish(c, map[string]any{
		"type":      "cart_item_added",
		"session":   sessionID,
		"productID": product.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"items":      current.Items,
		"cart_total": current.Total(),
		"cart_count": current.Count(),
	})
}

func (h *CartHandler) UpdateQuantity(c echo.Context) error {
	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  int  `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	sessionID, current := h.session(c)
	current.SetQuantity(req.ProductID, req.Quantity)
	h.Sessions.Put(sessionID, current)

	return c.JSON(http.StatusOK, echo.Map{
		"items":      current.Items,
		"cart_total": current.Total(),
		"cart_count": current.Count(),
	})
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	sessionID, current := h.session(c)
	current.Remove(uint(id))
	h.Sessions.Put(sessionID, current)

	return c.JSON(http.StatusOK, echo.Map{
		"items":      current.Items,
		"cart_total": current.Total(),
		"cart_count": current.Count(),
	})
}

// Checkout turns the session cart into a durable order. On conflict
// (a product went out of stock) the cart is left untouched so the user can
// adjust and retry.
func (h *CartHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_checkout")

	userID, err := service.UserIDFrom(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	sessionID, current := h.session(c)
	if len(current.Items) == 0 {
		l.Warn("checkout_failed", "status", 400, "reason", "empty_cart")
		return echo.NewHTTPError(http.StatusBadRequest, "no items in cart")
	}

	items := make([]orders.CreateItem, 0, len(current.Items))
	for _, it := range current.Items {
		items = append(items, orders.CreateItem{
			ProductID: it.ProductID,
			UnitPrice: it.Price,
			Quantity:  it.Quantity,
		})
	}

	order, err := h.Engine.CreateOrder(ctx, userID, items)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrValidation):
			l.Warn("checkout_failed", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, orders.ErrNotFound), errors.Is(err, orders.ErrConflict):
			l.Warn("checkout_failed", "status", 409, "error", err)
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			l.Error("checkout_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	h.Sessions.Clear(sessionID)

	h.publish(c, map[string]any{
		"type":        "order_created",
		"userID":      userID,
		"orderID":     order.ID,
		"overlayCode": order.OverlayCode,
	})

	l.Info("checkout_success", "order_id", order.ID, "overlay_code", order.OverlayCode)
	return c.JSON(http.StatusCreated, echo.Map{
		"order_id":     order.ID,
		"overlay_code": order.OverlayCode,
		"status":       order.Status,
	})
}

func (h *CartHandler) MyOrders(c echo.Context) error {
	userID, err := service.UserIDFrom(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	list, err := h.Engine.ListCustomerOrders(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, list)
}

func (h *CartHandler) OrderDetails(c echo.Context) error {
	userID, err := service.UserIDFrom(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	actor := orders.Actor{ID: userID, Role: service.RoleFrom(c)}
	detail, err := h.Engine.GetOrderWithHistory(c.Request().Context(), uint(id), actor)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		case errors.Is(err, orders.ErrUnauthorized):
			return echo.NewHTTPError(http.StatusForbidden, "not your order")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}
	return c.JSON(http.StatusOK, detail)
}
