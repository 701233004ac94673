// Package dispatch routes request envelopes to ledger engine operations.
// It validates payload shape before any store access; unknown actions and
// malformed payloads never reach a service.
package dispatch

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"

	"github.com/campustrade/backend/internal/protocol"
	"github.com/campustrade/backend/internal/services"
)

type Dispatcher struct {
	auth     *services.AuthService
	goods    *services.GoodsService
	ledger   *services.LedgerService
	admin    *services.AdminService
	validate *validator.Validate
}

func New(auth *services.AuthService, goods *services.GoodsService, ledger *services.LedgerService, admin *services.AdminService) *Dispatcher {
	return &Dispatcher{
		auth:     auth,
		goods:    goods,
		ledger:   ledger,
		admin:    admin,
		validate: validator.New(),
	}
}

// Result is the outcome of one request. The session fields let the
// connection server track logins and force-close sessions of deleted
// accounts; they are zero for every other action.
type Result struct {
	Response       protocol.Response
	LoggedInUserID int
	DeletedUserID  int
}

type registerPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Contact  string `json:"contact"`
}

type loginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type addGoodsPayload struct {
	Name        string  `json:"name" validate:"required"`
	Category    string  `json:"category" validate:"required"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Description string  `json:"description"`
	SellerID    int     `json:"seller_id" validate:"required,gt=0"`
}

type userIDPayload struct {
	UserID int `json:"user_id" validate:"required,gt=0"`
}

type goodsIDPayload struct {
	GoodsID int `json:"goods_id" validate:"required,gt=0"`
}

type purchasePayload struct {
	GoodsID int `json:"goods_id" validate:"required,gt=0"`
	BuyerID int `json:"buyer_id" validate:"required,gt=0"`
}

type rechargePayload struct {
	UserID int     `json:"user_id" validate:"required,gt=0"`
	Amount float64 `json:"amount" validate:"required"`
}

type dailyStatsPayload struct {
	Days int `json:"days" validate:"omitempty,min=1,max=90"`
}

// Dispatch routes one decoded envelope to its handler.
func (d *Dispatcher) Dispatch(req *protocol.Request) Result {
	switch req.Action {
	case protocol.ActionRegister:
		return d.handleRegister(req.Data)
	case protocol.ActionLogin:
		return d.handleLogin(req.Data)
	case protocol.ActionGetAllGoods:
		return d.handleGetAllGoods()
	case protocol.ActionAddGoods:
		return d.handleAddGoods(req.Data)
	case protocol.ActionGetUserGoods:
		return d.handleGetUserGoods(req.Data)
	case protocol.ActionPurchaseGoods:
		return d.handlePurchase(req.Data)
	case protocol.ActionRechargeBalance:
		return d.handleRecharge(req.Data)
	case protocol.ActionGetUserBalance:
		return d.handleGetBalance(req.Data)
	case protocol.ActionRemoveGoods:
		return d.handleRemoveGoods(req.Data)
	case protocol.ActionDeleteUser:
		return d.handleDeleteUser(req.Data)
	case protocol.ActionGetAllUsers:
		return d.handleGetAllUsers()
	case protocol.ActionGetAllOrders:
		return d.handleGetAllOrders()
	case protocol.ActionGetUserOrders:
		return d.handleGetUserOrders(req.Data)
	case protocol.ActionGetCategoryStats:
		return d.handleCategoryStats()
	case protocol.ActionGetDailySalesStats:
		return d.handleDailySalesStats(req.Data)
	default:
		log.Printf("[DISPATCH] Unknown action: %q", req.Action)
		return fail(services.Errf(services.KindUnknownAction, "unknown action: %s", req.Action))
	}
}

func (d *Dispatcher) handleRegister(data json.RawMessage) Result {
	var p registerPayload
	if err := d.decode(data, &p); err != nil {
		return fail(err)
	}
	if err := d.auth.Register(p.Username, p.Password, p.Contact); err != nil {
		return fail(err)
	}
	return ok(map[string]any{"message": "registration successful"})
}

func (d *Dispatcher) handleLogin(data json.RawMessage) Result {
	var p loginPayload
	if err := d.decode(data, &p); err != nil {
		return fail(err)
	}
	user, token, err := d.auth.Login(p.Username, p.Password)
	if err != nil {
		return fail(err)
	}
	res := ok(map[string]any{"user": user, "token": token})
	res.LoggedInUserID = user.UserID
	return res
}

func (d *Dispatcher) handleGetAllGoods() Result {
	goods, err := d.goods.ListAvailable()
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{"goods": goods})
}

func (d *Dispatcher) handleAddGoods(data json.RawMessage) Result {
	var p addGoodsPayload
	if err := d.decode(data, &p); err != nil {
		return fail(err)
	}
	goodsID, err := d.goods.Publish(p.Name, p.Category, p.Price, p.Description, p.SellerID)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{"goods_id": goodsID})
}

func (d *Dispatcher) handleGetUserGoods(data json.RawMessage) Result {
	var p userIDPayload
	if err := d.decode(data, &p); err != nil {
		return fail(err)
	}
	goods, err := d.goods.BySeller(p.UserID)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{"goods": goods})
}

func (d *Dispatcher) handlePurchase(data json.RawMessage) Result {
	var p purchasePayload
	if err := d.decode(data, &p); err != nil {
		return fail(err)
	}
	res, err := d.ledger.Purchase(p.GoodsID, p.BuyerID)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{
		"message":     "purchase successful",
		"order_id":    res.OrderID,
		"new_balance": res.NewBalance,
	})
}

func (d *Dispatcher) handleRecharge(data json.RawMessage) Result {
	var p rechargePayload
	if err := d.decode(data, &p); err != nil {
		return fail(err)
	}
	balance, err := d.ledger.Recharge(p.UserID, p.Amount)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{"message": "recharge successful", "balance": balance})
}

func (d *Dispatcher) handleGetBalance(data json.RawMessage) Result {
	var p userIDPayload
	if err := d.decode(data, &p); err != nil {
		return fail(err)
	}
	balance, err := d.ledger.Balance(p.UserID)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{"balance": balance})
}

func (d *Dispatcher) handleRemoveGoods(data json.RawMessage) Result {
	var p goodsIDPayload
	if err := d.decode(data, &p); err != nil {
		return fail(err)
	}
	if err := d.goods.Withdraw(p.GoodsID); err != nil {
		return fail(err)
	}
	return ok(map[string]any{"message": "goods removed"})
}

func (d *Dispatcher) handleDeleteUser(data json.RawMessage) Result {
	var p userIDPayload
	if err := d.decode(data, &p); err != nil {
		return fail(err)
	}
	username, err := d.admin.DeleteUser(p.UserID)
	if err != nil {
		return fail(err)
	}
	res := ok(map[string]any{"message": fmt.Sprintf("user %s deleted", username)})
	res.DeletedUserID = p.UserID
	return res
}

func (d *Dispatcher) handleGetAllUsers() Result {
	users, err := d.admin.ListUsers()
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{"users": users})
}

func (d *Dispatcher) handleGetAllOrders() Result {
	orders, err := d.admin.ListAllOrders()
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{"orders": orders})
}

func (d *Dispatcher) handleGetUserOrders(data json.RawMessage) Result {
	var p userIDPayload
	if err := d.decode(data, &p); err != nil {
		return fail(err)
	}
	orders, err := d.admin.OrdersByUser(p.UserID)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{"orders": orders})
}

func (d *Dispatcher) handleCategoryStats() Result {
	stats, err := d.admin.CategoryStats()
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{"stats": stats})
}

func (d *Dispatcher) handleDailySalesStats(data json.RawMessage) Result {
	var p dailyStatsPayload
	if err := d.decode(data, &p); err != nil {
		return fail(err)
	}
	days := p.Days
	if days == 0 {
		days = 7
	}
	stats, err := d.admin.DailySalesStats(days)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{"stats": stats})
}

// decode unmarshals the raw payload and applies struct validation. Both
// failure modes are invalid_argument; the store is never touched.
func (d *Dispatcher) decode(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return services.Errf(services.KindInvalidArgument, "malformed request data")
	}
	if err := d.validate.Struct(dst); err != nil {
		if verrs, okk := err.(validator.ValidationErrors); okk && len(verrs) > 0 {
			return services.Errf(services.KindInvalidArgument,
				"field %s failed validation on tag %s", verrs[0].Field(), verrs[0].Tag())
		}
		return services.Errf(services.KindInvalidArgument, "invalid request data")
	}
	return nil
}

func ok(fields map[string]any) Result {
	return Result{Response: protocol.OK(fields)}
}

func fail(err error) Result {
	return Result{Response: protocol.Fail(services.KindOf(err), services.MessageOf(err))}
}
