package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mkravets/parts_store/internal/logging"
	"github.com/mkravets/parts_store/internal/models"
)

var (
	ErrValidation   = errors.New("validation")   // 400
	ErrNotFound     = errors.New("not found")    // 404
	ErrConflict     = errors.New("conflict")     // 409
	ErrUnauthorized = errors.New("unauthorized") // 403
)

const (
	TrackingPrefixOperator    = "TRK"
	TrackingPrefixStorekeeper = "SHP"
)

// Engine owns orders, their line items and their audit log. It is the only
// mutator of order status. The engine itself accepts any status in range,
// the role gateways restrict which transitions they offer.
type Engine struct {
	DB    *gorm.DB
	Codes CodeSource
}

type Actor struct {
	ID   uint
	Role string
}

type CreateItem struct {
	ProductID uint    `json:"product_id"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  uint    `json:"quantity"`
}

// CreateOrder persists an order from cart snapshots as one unit of work:
// availability re-check, order row, line items and the initial log entry
// either all commit or nothing does. Unit prices are the cart's add-time
// snapshots, availability is checked live.
func (e *Engine) CreateOrder(ctx context.Context, customerID uint, items []CreateItem) (*models.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	for i := range items {
		if items[i].ProductID == 0 {
			return nil, fmt.Errorf("%w: product_id required", ErrValidation)
		}
		if items[i].Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
		}
		if items[i].UnitPrice < 0 {
			return nil, fmt.Errorf("%w: price must be >= 0", ErrValidation)
		}
	}

	merged := make([]CreateItem, 0, len(items))
	index := make(map[uint]int, len(items))
	for _, it := range items {
		if pos, ok := index[it.ProductID]; ok {
			merged[pos].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}

	var order models.Order

	txErr := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, it := range merged {
			var p models.Product
			if err := tx.First(&p, it.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product %d", ErrNotFound, it.ProductID)
				}
				return err
			}
			if p.Availability != models.AvailabilityInStock {
				return fmt.Errorf("%w: product %q is not available", ErrConflict, p.Name)
			}
		}

		order = models.Order{
			OverlayCode: e.Codes.OverlayCode(),
			CustomerID:  customerID,
			Status:      models.StatusNew,
			CreatedAt:   time.Now().Unix(),
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, it := range merged {
			oi := models.OrderItem{
				OrderID:   order.ID,
				ProductID: it.ProductID,
				ItemPrice: it.UnitPrice,
				Quantity:  it.Quantity,
			}
			if err := tx.Create(&oi).Error; err != nil {
				return err
			}
		}

		entry := models.OrderLog{
			OrderID:   order.ID,
			ActorID:   customerID,
			ChangedAt: time.Now().Unix(),
			Action:    "order created by customer",
		}
		return tx.Create(&entry).Error
	})
	if txErr != nil {
		return nil, txErr
	}

	logging.FromContext(ctx).Info("order_created",
		"order_id", order.ID, "overlay_code", order.OverlayCode, "customer_id", customerID)

	return &order, nil
}

type Transition struct {
	OrderID   uint
	NewStatus models.OrderStatus
	ActorID   uint
	Notes     string
	// TrackingPrefix is used when the transition reaches Shipping and no
	// tracking number has been assigned yet.
	TrackingPrefix string
	// TrackingNumber, when set, overwrites the stored one. Only the
	// storekeeper ship action passes it.
	TrackingNumber string
}

type TransitionResult struct {
	OldStatus      models.OrderStatus `json:"old_status"`
	NewStatus      models.OrderStatus `json:"new_status"`
	TrackingNumber string             `json:"tracking_number,omitempty"`
}

// TransitionStatus overwrites the order status and appends one audit log
// entry. Repeated transitions by the same actor on the same order each get
// their own entry.
func (e *Engine) TransitionStatus(ctx context.Context, t Transition) (*TransitionResult, error) {
	if !t.NewStatus.Valid() {
		return nil, fmt.Errorf("%w: status %d out of range", ErrValidation, t.NewStatus)
	}

	var res TransitionResult

	txErr := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, t.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, t.OrderID)
			}
			return err
		}

		res.OldStatus = order.Status
		res.NewStatus = t.NewStatus
		order.Status = t.NewStatus

		if t.TrackingNumber != "" {
			order.TrackingNumber = t.TrackingNumber
		} else if t.NewStatus == models.StatusShipping && order.TrackingNumber == "" {
			prefix := t.TrackingPrefix
			if prefix == "" {
				prefix = TrackingPrefixOperator
			}
			order.TrackingNumber = e.Codes.TrackingNumber(prefix, time.Now())
		}
		res.TrackingNumber = order.TrackingNumber

		if err := tx.Save(&order).Error; err != nil {
			return err
		}

		action := fmt.Sprintf("status changed from %s to %s", res.OldStatus.Name(), res.NewStatus.Name())
		if t.Notes != "" {
			action += ". Note: " + t.Notes
		}
		entry := models.OrderLog{
			OrderID:   order.ID,
			ActorID:   t.ActorID,
			ChangedAt: time.Now().Unix(),
			Action:    action,
		}
		return tx.Create(&entry).Error
	})
	if txErr != nil {
		return nil, txErr
	}

	logging.FromContext(ctx).Info("order_status_changed",
		"order_id", t.OrderID, "from", res.OldStatus.Name(), "to", res.NewStatus.Name(), "actor_id", t.ActorID)

	return &res, nil
}

type ItemView struct {
	ProductID      uint    `json:"product_id"`
	Name           string  `json:"name"`
	Specifications string  `json:"specifications"`
	ItemPrice      float64 `json:"item_price"`
	Quantity       uint    `json:"quantity"`
	LineTotal      float64 `json:"line_total"`
}

type OrderDetail struct {
	Order models.Order      `json:"order"`
	Items []ItemView        `json:"items"`
	Logs  []models.OrderLog `json:"logs"`
	Total float64           `json:"total"`
}

// GetOrderWithHistory returns the order, its line items joined with product
// display data and the full audit log in creation order. Customers may only
// fetch their own orders; operator and storekeeper roles may fetch any.
func (e *Engine) GetOrderWithHistory(ctx context.Context, orderID uint, actor Actor) (*OrderDetail, error) {
	var order models.Order
	if err := e.DB.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}

	if actor.Role != models.RoleOperator && actor.Role != models.RoleStorekeeper && order.CustomerID != actor.ID {
		return nil, fmt.Errorf("%w: order %d belongs to another customer", ErrUnauthorized, orderID)
	}

	var items []models.OrderItem
	if err := e.DB.WithContext(ctx).Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products := map[uint]models.Product{}
	if len(ids) > 0 {
		var ps []models.Product
		if err := e.DB.WithContext(ctx).Where("id IN ?", ids).Find(&ps).Error; err != nil {
			return nil, err
		}
		for _, p := range ps {
			products[p.ID] = p
		}
	}

	detail := &OrderDetail{Order: order}
	for _, it := range items {
		p := products[it.ProductID]
		line := it.ItemPrice * float64(it.Quantity)
		detail.Items = append(detail.Items, ItemView{
			ProductID:      it.ProductID,
			Name:           p.Name,
			Specifications: p.Specifications,
			ItemPrice:      it.ItemPrice,
			Quantity:       it.Quantity,
			LineTotal:      line,
		})
		detail.Total += line
	}

	if err := e.DB.WithContext(ctx).
		Where("order_id = ?", orderID).Order("id ASC").Find(&detail.Logs).Error; err != nil {
		return nil, err
	}

	return detail, nil
}

// ListOrders returns every order oldest first, the operator triage queue.
func (e *Engine) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := e.DB.WithContext(ctx).Order("created_at ASC, id ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListOrdersInRange returns orders whose status falls in [lo, hi], oldest
// first. The storekeeper queue is [Accepted, Shipping].
func (e *Engine) ListOrdersInRange(ctx context.Context, lo, hi models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	if err := e.DB.WithContext(ctx).
		Where("status BETWEEN ? AND ?", lo, hi).
		Order("created_at ASC, id ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (e *Engine) ListCustomerOrders(ctx context.Context, customerID uint) ([]models.Order, error) {
	var orders []models.Order
	if err := e.DB.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

type Statistics struct {
	TotalOrders     int64          `json:"total_orders"`
	NewOrders       int64          `json:"new_orders"`
	DeliveredOrders int64          `json:"delivered_orders"`
	TotalProducts   int64          `json:"total_products"`
	TotalCustomers  int64          `json:"total_customers"`
	RecentOrders    []models.Order `json:"recent_orders"`
}

func (e *Engine) Statistics(ctx context.Context) (*Statistics, error) {
	db := e.DB.WithContext(ctx)
	var s Statistics

	if err := db.Model(&models.Order{}).Count(&s.TotalOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).Where("status = ?", models.StatusNew).Count(&s.NewOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).Where("status = ?", models.StatusDelivered).Count(&s.DeliveredOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Product{}).Count(&s.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleCustomer).Count(&s.TotalCustomers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).
		Order("created_at DESC, id DESC").Limit(10).Find(&s.RecentOrders).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
