package models

// Order states. Orders are created completed by a successful purchase and
// flipped to cancelled when a referenced account is deleted.
const (
	OrderPending   = "pending"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// Order is the durable record of a purchase. Price is frozen at purchase
// time. The *Name fields are denormalized join results for client views.
type Order struct {
	OrderID    string  `json:"order_id"`
	GoodsID    int     `json:"goods_id"`
	GoodsName  string  `json:"goods_name,omitempty"`
	BuyerID    int     `json:"buyer_id"`
	BuyerName  string  `json:"buyer_name,omitempty"`
	SellerID   int     `json:"seller_id"`
	SellerName string  `json:"seller_name,omitempty"`
	Price      float64 `json:"price"`
	Status     string  `json:"status"`
	CreateTime string  `json:"create_time"`
}
