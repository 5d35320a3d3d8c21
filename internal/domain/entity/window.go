package entity

// Position is a window's docked screen position.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ChatWindow is one entry in the multi-chat dock, keyed by order id. A window
// being open says nothing about whether its conversation is active; at most
// one open window is bound to the live subscription at a time.
type ChatWindow struct {
	OrderID      string        `json:"order_id"`
	Conversation *Conversation `json:"conversation"`
	Order        *Order        `json:"order"`
	IsMinimized  bool          `json:"is_minimized"`
	Position     Position      `json:"position"`
	OpenedSeq    int64         `json:"opened_seq"` // monotonic open ordinal, newest wins on compact viewports
}
