package storekeeper

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

// StorekeeperHandler is the fulfillment gateway. It only ever drives an
// order to Picking, Packed, Shipping or Cancelled; New and Accepted are not
// reachable through it. Its queue is the [Accepted, Shipping] range.
type StorekeeperHandler struct {
	DB       *gorm.DB
	Engine   *orders.Engine
	Producer mykafka.Publisher
}

func (h *StorekeeperHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *StorekeeperHandler) Queue(c echo.Context) error {
	list, err := h.Engine.ListOrdersInRange(c.Request().Context(), models.StatusAccepted, models.StatusShipping)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, list)
}

func (h *StorekeeperHandler) OrderDetails(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	userID, _ := service.UserIDFrom(c)
	actor := orders.Actor{ID: userID, Role: models.RoleStorekeeper}
	detail, err := h.Engine.GetOrderWithHistory(c.Request().Context(), uint(id), actor)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	// Only the fulfillment-relevant part of the enum is offered.
	statuses := make([]echo.Map, 0, 5)
	for s := models.StatusPicking; s <= models.StatusCancelled; s++ {
		statuses = append(statuses, echo.Map{"id": int(s), "name": s.Name()})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"detail":   detail,
		"statuses": statuses,
	})
}

func (h *StorekeeperHandler) StartPacking(c echo.Context) error {
	var req struct {
		OrderID uint `json:"order_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return h.transition(c, req.OrderID, models.StatusPicking, "storekeeper started packing the order")
}

func (h *StorekeeperHandler) FinishPacking(c echo.Context) error {
	var req struct {
		OrderID uint `json:"order_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return h.transition(c, req.OrderID, models.StatusPacked, "order packed and ready to ship")
}

// Ship moves the order to Shipping. An explicitly provided tracking number
// overwrites the stored one; otherwise an SHP number is generated.
func (h *StorekeeperHandler) Ship(c echo.Context) error {
	var req struct {
		OrderID        uint   `json:"order_id"`
		TrackingNumber string `json:"tracking_number"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	userID, err := service.UserIDFrom(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	res, err := h.Engine.TransitionStatus(c.Request().Context(), orders.Transition{
		OrderID:        req.OrderID,
		NewStatus:      models.StatusShipping,
		ActorID:        userID,
		Notes:          "order shipped",
		TrackingPrefix: orders.TrackingPrefixStorekeeper,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		return h.transitionError(c, err)
	}

	h.publish(c, map[string]any{
		"type":           "order_shipped",
		"orderID":        req.OrderID,
		"trackingNumber": res.TrackingNumber,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"success":         true,
		"tracking_number": res.TrackingNumber,
	})
}

// Reject cancels an order. A reason is mandatory: an empty one fails the
// whole operation before any status or log mutation happens.
func (h *StorekeeperHandler) Reject(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "storekeeper_reject")

	var req struct {
		OrderID uint   `json:"order_id"`
		Reason  string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Reason == "" {
		l.Warn("reject_failed", "status", 400, "reason", "empty_reason", "order_id", req.OrderID)
		return echo.NewHTTPError(http.StatusBadRequest, "rejection reason is required")
	}

	return h.transition(c, req.OrderID, models.StatusCancelled, "order rejected. Reason: "+req.Reason)
}

func (h *StorekeeperHandler) Inventory(c echo.Context) error {
	var products []models.Product
	if err := h.DB.Order("category_id ASC, name ASC").Find(&products).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, products)
}

// UpdateAvailability overwrites the free-text availability field. Anything
// other than "in stock" makes the product unorderable.
func (h *StorekeeperHandler) UpdateAvailability(c echo.Context) error {
	var req struct {
		ProductID    uint   `json:"product_id"`
		Availability string `json:"availability"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var prod models.Product
	if err := h.DB.First(&prod, req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	prod.Availability = req.Availability
	if err := h.DB.Save(&prod).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":         "availability_changed",
		"productID":    prod.ID,
		"availability": prod.Availability,
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// PackingList is the warehouse-floor read view: items with product data and
// the delivery address, no audit log.
func (h *StorekeeperHandler) PackingList(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	userID, _ := service.UserIDFrom(c)
	actor := orders.Actor{ID: userID, Role: models.RoleStorekeeper}
	detail, err := h.Engine.GetOrderWithHistory(c.Request().Context(), uint(id), actor)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	resp := echo.Map{
		"order": detail.Order,
		"items": detail.Items,
		"total": detail.Total,
	}

	var customer models.User
	if err := h.DB.First(&customer, detail.Order.CustomerID).Error; err == nil {
		resp["customer"] = echo.Map{
			"name":  customer.FirstName + " " + customer.SecondName,
			"phone": customer.Phone,
		}
		if customer.AddressID != nil {
			var address models.Address
			if err := h.DB.First(&address, *customer.AddressID).Error; err == nil {
				resp["address"] = address
			}
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *StorekeeperHandler) transition(c echo.Context, orderID uint, to models.OrderStatus, notes string) error {
	userID, err := service.UserIDFrom(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	res, err := h.Engine.TransitionStatus(c.Request().Context(), orders.Transition{
		OrderID:        orderID,
		NewStatus:      to,
		ActorID:        userID,
		Notes:          notes,
		TrackingPrefix: orders.TrackingPrefixStorekeeper,
	})
	if err != nil {
		return h.transitionError(c, err)
	}

	h.publish(c, map[string]any{
		"type":    "order_status_changed",
		"orderID": orderID,
		"from":    res.OldStatus.Name(),
		"to":      res.NewStatus.Name(),
		"actorID": userID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"old_status": res.OldStatus,
		"new_status": res.NewStatus,
	})
}

func (h *StorekeeperHandler) transitionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, orders.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, orders.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
