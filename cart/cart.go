// Package cart holds the line items a buyer assembles before submitting a
// purchase order. Carts live in memory only and are keyed by product id.
package cart

import (
	"sync"

	"github.com/askgroup/dealerportal/api"
)

// Item is one cart line.
type Item struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice float64
}

// Subtotal is Quantity * UnitPrice.
func (i Item) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// Cart is an insertion-ordered set of items with at most one entry per
// product id. Mutations are immediately visible to every reader. It is safe
// for concurrent use.
type Cart struct {
	mu    sync.RWMutex
	items []Item
	count int
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add appends item, or increments the quantity of the existing entry with
// the same product id. Quantities are not validated; callers pass >= 1.
func (c *Cart) Add(item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count += item.Quantity
	for i := range c.items {
		if c.items[i].ProductID == item.ProductID {
			c.items[i].Quantity += item.Quantity
			return
		}
	}
	c.items = append(c.items, item)
}

// Remove drops the entry for productID. Absent ids are a no-op.
func (c *Cart) Remove(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID != productID {
			continue
		}
		c.count -= c.items[i].Quantity
		c.items = append(c.items[:i], c.items[i+1:]...)
		return
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.count = 0
}

// Items returns a copy of the current lines in insertion order.
func (c *Cart) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// ItemCount is the sum of all quantities.
func (c *Cart) ItemCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// Len is the number of distinct products.
func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Total is the sum of line subtotals.
func (c *Cart) Total() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total float64
	for _, item := range c.items {
		total += item.Subtotal()
	}
	return total
}

// OrderItems converts the cart into purchase-order lines.
func (c *Cart) OrderItems() []api.PurchaseOrderItemCreate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]api.PurchaseOrderItemCreate, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, api.PurchaseOrderItemCreate{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return out
}

// FromProduct builds a cart item priced at the product's trade price.
func FromProduct(p api.Product, quantity int) Item {
	return Item{
		ProductID: p.ProductID,
		Name:      p.Name,
		Quantity:  quantity,
		UnitPrice: p.TradePriceInclVAT,
	}
}
