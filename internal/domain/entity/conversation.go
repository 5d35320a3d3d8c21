package entity

import "time"

const (
	ConversationStatusActive   = "active"
	ConversationStatusArchived = "archived"
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

type Conversation struct {
	ID            int64     `json:"id"`
	OrderID       string    `json:"order_id"`
	UserID        int64     `json:"user_id"`
	ShopID        int64     `json:"shop_id"`
	Status        string    `json:"status"` // "active", "archived"
	BuyerName     string    `json:"buyer_name,omitempty"`
	ShopName      string    `json:"shop_name,omitempty"`
	ShopAvatarURL string    `json:"shop_avatar_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// TouchLastMessage bumps last_message_at, never backwards. Conversations are
// only mutated locally through this path; everything else is server-owned.
func (c *Conversation) TouchLastMessage(at time.Time) {
	if at.After(c.LastMessageAt) {
		c.LastMessageAt = at
	}
}
