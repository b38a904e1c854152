package operator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mkravets/parts_store/internal/logging"
	"github.com/mkravets/parts_store/internal/models"
	"github.com/mkravets/parts_store/internal/mykafka"
	"github.com/mkravets/parts_store/internal/orders"
	"github.com/mkravets/parts_store/internal/service"
)

// OperatorHandler is the operator gateway: it may drive an order to any of
// the seven statuses and owns catalog CRUD. The engine below it stays
// permissive, this layer is what decides which transitions get offered.
type OperatorHandler struct {
	DB       *gorm.DB
	Engine   *orders.Engine
	Producer mykafka.Publisher
}

func (h *OperatorHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// ListOrders returns every order oldest first: the triage queue.
func (h *OperatorHandler) ListOrders(c echo.Context) error {
	list, err := h.Engine.ListOrders(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, list)
}

func (h *OperatorHandler) OrderDetails(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	userID, _ := service.UserIDFrom(c)
	actor := orders.Actor{ID: userID, Role: models.RoleOperator}
	detail, err := h.Engine.GetOrderWithHistory(c.Request().Context(), uint(id), actor)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	statuses := make([]echo.Map, 0, 7)
	for s := models.StatusNew; s <= models.StatusCancelled; s++ {
		statuses = append(statuses, echo.Map{"id": int(s), "name": s.Name()})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"detail":   detail,
		"statuses": statuses,
	})
}

// UpdateOrderStatus gives the operator the full enum. Reaching Shipping
// auto-assigns a TRK tracking number when none is set yet.
func (h *OperatorHandler) UpdateOrderStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "operator_update_status")

	userID, err := service.UserIDFrom(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var req struct {
		OrderID uint   `json:"order_id"`
		Status  int    `json:"status"`
		Notes   string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Engine.TransitionStatus(ctx, orders.Transition{
		OrderID:        req.OrderID,
		NewStatus:      models.OrderStatus(req.Status),
		ActorID:        userID,
		Notes:          req.Notes,
		TrackingPrefix: orders.TrackingPrefixOperator,
	})
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrValidation):
			l.Warn("update_status_failed", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, orders.ErrNotFound):
			l.Warn("update_status_failed", "status", 404, "error", err)
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		default:
			l.Error("update_status_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	h.publish(c, map[string]any{
		"type":    "order_status_changed",
		"orderID": req.OrderID,
		"from":    res.OldStatus.Name(),
		"to":      res.NewStatus.Name(),
		"actorID": userID,
	})

	l.Info("update_status_success", "order_id", req.OrderID, "to", res.NewStatus.Name())
	return c.JSON(http.StatusOK, echo.Map{
		"success":         true,
		"old_status":      res.OldStatus,
		"new_status":      res.NewStatus,
		"tracking_number": res.TrackingNumber,
	})
}

func (h *OperatorHandler) Statistics(c echo.Context) error {
	stats, err := h.Engine.Statistics(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *OperatorHandler) ListProducts(c echo.Context) error {
	var products []models.Product
	if err := h.DB.Order("category_id ASC, name ASC").Find(&products).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, products)
}

func (h *OperatorHandler) CreateProduct(c echo.Context) error {
	var req struct {
		Name           string  `json:"name"`
		Price          float64 `json:"price"`
		CategoryID     uint    `json:"category_id"`
		Availability   string  `json:"availability"`
		Specifications string  `json:"specifications"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" || req.Price < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "name required, price must be >= 0")
	}

	prod := models.Product{
		Name:           req.Name,
		Price:          req.Price,
		CategoryID:     req.CategoryID,
		Availability:   req.Availability,
		Specifications: req.Specifications,
	}
	if err := h.DB.Create(&prod).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":      "product_created",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusCreated, prod)
}

func (h *OperatorHandler) PatchProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Name           string  `json:"name"`
		Price          float64 `json:"price"`
		CategoryID     uint    `json:"category_id"`
		Availability   string  `json:"availability"`
		Specifications string  `json:"specifications"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	prod.Name = req.Name
	prod.Price = req.Price
	prod.CategoryID = req.CategoryID
	prod.Availability = req.Availability
	prod.Specifications = req.Specifications

	if err := h.DB.Save(&prod).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":      "product_updated",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusOK, prod)
}

// DeleteProduct refuses to delete a product referenced by any order line:
// order items are immutable history, so the reference must win.
func (h *OperatorHandler) DeleteProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var refs int64
	if err := h.DB.Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&refs).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if refs > 0 {
		return echo.NewHTTPError(http.StatusConflict, "product is referenced by existing orders")
	}

	if err := h.DB.Delete(&models.Product{}, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})

	return c.NoContent(http.StatusNoContent)
}
