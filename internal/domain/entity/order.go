package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the snapshot a chat window keeps of the order it was opened from.
// It is display data only; the backend owns the order itself.
type Order struct {
	ID           string          `json:"id"`
	ProductTitle string          `json:"product_title"`
	ProductImage string          `json:"product_image,omitempty"`
	Quantity     int             `json:"quantity"`
	Total        decimal.Decimal `json:"total"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}
