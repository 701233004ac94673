package models

// Goods lifecycle states. Available transitions to sold exactly once (on a
// successful purchase) or to removed; sold and removed are terminal.
const (
	GoodsAvailable = "available"
	GoodsSold      = "sold"
	GoodsRemoved   = "removed"
)

// Goods is a listing published by a seller. SellerName is denormalized for
// marketplace views and omitted elsewhere.
type Goods struct {
	GoodsID     int     `json:"goods_id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	SellerID    int     `json:"seller_id"`
	SellerName  string  `json:"seller_name,omitempty"`
	Status      string  `json:"status"`
	PublishTime string  `json:"publish_time"`
}
