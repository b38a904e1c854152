package models

import "fmt"

const (
	RoleCustomer    = "customer"
	RoleOperator    = "operator"
	RoleStorekeeper = "storekeeper"
)

// AvailabilityInStock is the only availability value that allows ordering.
// The field is free text on purpose: storekeepers write whatever fits
// ("expected 05.09", "discontinued").
const AvailabilityInStock = "in stock"

type Category struct {
	ID            uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	AccessoryType string `gorm:"not null"                 json:"accessory_type"`
}

type Product struct {
	ID             uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string  `gorm:"not null"                 json:"name"`
	Price          float64 `gorm:"not null"                 json:"price"`
	CategoryID     uint    `gorm:"index;not null"           json:"category_id"`
	Availability   string  `gorm:"not null"                 json:"availability"`
	Specifications string  `json:"specifications"`
}

type Address struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	City        string `gorm:"not null"                 json:"city"`
	Region      string `gorm:"not null"                 json:"region"`
	HouseNumber int    `gorm:"not null"                 json:"house_number"`
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Login        string `gorm:"unique;not null"          json:"login"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null"                 json:"role"`
	FirstName    string `gorm:"not null"                 json:"first_name"`
	SecondName   string `gorm:"not null"                 json:"second_name"`
	Patronymic   string `json:"patronymic"`
	Phone        string `gorm:"not null"                 json:"phone"`
	AddressID    *uint  `json:"address_id"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	Role      string `gorm:"not null"        json:"role"`
	JTI       string `gorm:"not null"        json:"jti"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Revoked   bool   `gorm:"default:false"   json:"revoked"`
}

// OrderStatus is the seven-valued order lifecycle tag. Numeric order
// matters: the storekeeper queue and its transition set are range filters.
type OrderStatus int

const (
	StatusNew OrderStatus = iota + 1
	StatusAccepted
	StatusPicking
	StatusPacked
	StatusShipping
	StatusDelivered
	StatusCancelled
)

func (s OrderStatus) Valid() bool {
	return s >= StatusNew && s <= StatusCancelled
}

func (s OrderStatus) Name() string {
	switch s {
	case StatusNew:
		return "New"
	case StatusAccepted:
		return "Accepted"
	case StatusPicking:
		return "Picking"
	case StatusPacked:
		return "Packed"
	case StatusShipping:
		return "Shipping"
	case StatusDelivered:
		return "Delivered"
	case StatusCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

type Order struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`
	// OverlayCode is the cosmetic 6-digit code shown to customers,
	// distinct from the durable primary id.
	OverlayCode    int         `gorm:"not null"       json:"overlay_code"`
	CustomerID     uint        `gorm:"index;not null" json:"customer_id"`
	Status         OrderStatus `gorm:"not null"       json:"status"`
	TrackingNumber string      `json:"tracking_number"`
	CreatedAt      int64       `gorm:"not null"       json:"created_at"`
}

// OrderItem is composite-keyed: a product appears at most once per order,
// repeated adds increment the quantity instead. ItemPrice is the price
// snapshot taken at order time, never a live catalog reference.
type OrderItem struct {
	OrderID   uint    `gorm:"primaryKey"                  json:"order_id"`
	ProductID uint    `gorm:"primaryKey"                  json:"product_id"`
	ItemPrice float64 `gorm:"not null"                    json:"item_price"`
	Quantity  uint    `gorm:"default:1;check:quantity>0"  json:"quantity"`
}

// OrderLog is append-only. The surrogate id is deliberate: keying by
// (order, actor) would clobber history when the same actor touches the
// same order twice.
type OrderLog struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint   `gorm:"index;not null"           json:"order_id"`
	ActorID   uint   `gorm:"not null"                 json:"actor_id"`
	ChangedAt int64  `gorm:"not null"                 json:"changed_at"`
	Action    string `gorm:"not null"                 json:"action"`
}
