package menu

import (
	"github.com/gofrs/uuid"
)

// Item is a menu item as read at one moment. Order lines copy from it and
// never reference it afterwards.
type Item struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	RestaurantID  uuid.UUID  `json:"restaurant_id" db:"restaurant_id"`
	CategoryID    *uuid.UUID `json:"category_id,omitempty" db:"category_id"`
	Name          string     `json:"name" db:"name"`
	Description   string     `json:"description" db:"description"`
	UnitPrice     int64      `json:"unit_price" db:"price"`
	OriginalPrice *int64     `json:"original_price,omitempty" db:"original_price"`
	IsAvailable   bool       `json:"is_available" db:"is_available"`
}

// Discounted reports whether the item is sold below its original price.
func (i Item) Discounted() bool {
	return i.OriginalPrice != nil && *i.OriginalPrice > i.UnitPrice
}

type Category struct {
	ID           uuid.UUID `json:"id" db:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id" db:"restaurant_id"`
	Name         string    `json:"name" db:"name"`
	Position     int       `json:"position" db:"position"`
}

type Group struct {
	Category string `json:"category"`
	Items    []Item `json:"items"`
}
