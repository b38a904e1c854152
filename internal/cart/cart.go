package cart

import "github.com/mkravets/parts_store/internal/models"

// MaxQuantity caps every cart line; values above it are silently clamped,
// not rejected.
const MaxQuantity = 10

// Item is the transient cart line: a denormalized name/price snapshot taken
// at add time. It never touches durable storage, checkout converts it into
// order items.
type Item struct {
	ProductID uint    `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  uint    `json:"quantity"`
}

type Cart struct {
	Items []Item `json:"items"`
}

// Add puts a product into the cart or increments the existing line. The
// resulting quantity is clamped to [1, MaxQuantity].
func (c *Cart) Add(p models.Product, qty uint) {
	if qty < 1 {
		qty = 1
	}
	for i := range c.Items {
		if c.Items[i].ProductID == p.ID {
			c.Items[i].Quantity += qty
			if c.Items[i].Quantity > MaxQuantity {
				c.Items[i].Quantity = MaxQuantity
			}
			return
		}
	}
	if qty > MaxQuantity {
		qty = MaxQuantity
	}
	c.Items = append(c.Items, Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  qty,
	})
}

// SetQuantity sets a line to an exact quantity: qty <= 0 removes the line,
// qty > MaxQuantity clamps.
func (c *Cart) SetQuantity(productID uint, qty int) {
	for i := range c.Items {
		if c.Items[i].ProductID != productID {
			continue
		}
		switch {
		case qty <= 0:
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		case qty > MaxQuantity:
			c.Items[i].Quantity = MaxQuantity
		default:
			c.Items[i].Quantity = uint(qty)
		}
		return
	}
}

func (c *Cart) Remove(productID uint) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
	}
}

func (c *Cart) Total() float64 {
	var total float64
	for _, it := range c.Items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

func (c *Cart) Count() uint {
	var n uint
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}
