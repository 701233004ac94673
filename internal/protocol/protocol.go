// Package protocol defines the wire contract: JSON envelopes framed by a
// 4-byte big-endian length prefix, symmetric in both directions.
package protocol

import "encoding/json"

// Action names accepted by the dispatcher.
const (
	ActionRegister           = "register"
	ActionLogin              = "login"
	ActionGetAllGoods        = "get_all_goods"
	ActionAddGoods           = "add_goods"
	ActionGetUserGoods       = "get_user_goods"
	ActionPurchaseGoods      = "purchase_goods"
	ActionRechargeBalance    = "recharge_balance"
	ActionGetUserBalance     = "get_user_balance"
	ActionRemoveGoods        = "remove_goods"
	ActionDeleteUser         = "delete_user"
	ActionGetAllUsers        = "get_all_users"
	ActionGetAllOrders       = "get_all_orders"
	ActionGetUserOrders      = "get_user_orders"
	ActionGetCategoryStats   = "get_goods_category_stats"
	ActionGetDailySalesStats = "get_daily_sales_stats"
)

// Request is the client envelope. Data stays raw until the dispatcher knows
// which payload struct the action expects.
type Request struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Response is an open envelope; success responses carry action-specific
// fields next to the success flag.
type Response map[string]any

// OK builds a success response from the given fields.
func OK(fields map[string]any) Response {
	resp := Response{"success": true}
	for k, v := range fields {
		resp[k] = v
	}
	return resp
}

// Fail builds a failure response with an error kind and a human-readable
// message.
func Fail(kind, message string) Response {
	return Response{"success": false, "error": kind, "message": message}
}
