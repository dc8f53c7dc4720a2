package order

import (
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/foodhub/internal/menu"
)

type CartLine struct {
	Item     menu.Item `json:"item"`
	Quantity int       `json:"quantity"`
}

func (l CartLine) Subtotal() int64 {
	return l.Item.UnitPrice * int64(l.Quantity)
}

// Cart keeps lines in the order items were first added. It lives only in the
// client's memory and is never stored.
type Cart struct {
	ids   []uuid.UUID
	lines map[uuid.UUID]CartLine
}

func NewCart() *Cart {
	return &Cart{lines: make(map[uuid.UUID]CartLine)}
}

// Add puts quantity more of item into the cart. The price seen the first time
// the item was added is kept.
func (c *Cart) Add(item menu.Item, quantity int) error {
	if quantity <= 0 {
		return &ValidationError{Field: "quantity", Message: fmt.Sprintf("must be positive, got %d", quantity)}
	}
	if c.lines == nil {
		c.lines = make(map[uuid.UUID]CartLine)
	}

	line, ok := c.lines[item.ID]
	if !ok {
		c.ids = append(c.ids, item.ID)
		line = CartLine{Item: item}
	}
	line.Quantity += quantity
	c.lines[item.ID] = line
	return nil
}

// SetQuantity replaces the quantity of a line; zero removes it.
func (c *Cart) SetQuantity(itemID uuid.UUID, quantity int) error {
	line, ok := c.lines[itemID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInCart, itemID)
	}
	if quantity < 0 {
		return &ValidationError{Field: "quantity", Message: fmt.Sprintf("must not be negative, got %d", quantity)}
	}
	if quantity == 0 {
		c.Remove(itemID)
		return nil
	}
	line.Quantity = quantity
	c.lines[itemID] = line
	return nil
}

func (c *Cart) Remove(itemID uuid.UUID) {
	if _, ok := c.lines[itemID]; !ok {
		return
	}
	delete(c.lines, itemID)
	for i, id := range c.ids {
		if id == itemID {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			break
		}
	}
}

func (c *Cart) Lines() []CartLine {
	if c == nil {
		return nil
	}
	lines := make([]CartLine, 0, len(c.ids))
	for _, id := range c.ids {
		lines = append(lines, c.lines[id])
	}
	return lines
}

func (c *Cart) Total() int64 {
	var total int64
	for _, l := range c.Lines() {
		total += l.Subtotal()
	}
	return total
}

func (c *Cart) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ids)
}

func (c *Cart) IsEmpty() bool {
	return c.Len() == 0
}
