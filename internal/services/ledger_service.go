package services

import (
	"database/sql"
	"log"

	"github.com/google/uuid"

	"github.com/campustrade/backend/internal/models"
)

// LedgerService enforces the money and listing invariants. Every mutating
// operation runs in a single transaction with bounded lock waits, so a
// failure of any step leaves the store untouched.
type LedgerService struct {
	db *sql.DB
}

const rechargeRetries = 3

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// PurchaseResult carries the order id and the buyer balance read inside the
// purchase transaction itself.
type PurchaseResult struct {
	OrderID    string
	NewBalance float64
}

// Purchase atomically transfers the listing price from buyer to seller,
// marks the listing sold and records a completed order. The goods row is
// locked first: concurrent purchases of the same listing serialize on that
// lock and the losers see a non-available status.
func (s *LedgerService) Purchase(goodsID, buyerID int) (*PurchaseResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, Internal(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`SET LOCAL lock_timeout = '3s'`); err != nil {
		return nil, Internal(err)
	}

	var (
		priceCents int64
		sellerID   int
		status     string
	)
	err = tx.QueryRow(`SELECT price, seller_id, status FROM goods WHERE goods_id = $1 FOR UPDATE`, goodsID).
		Scan(&priceCents, &sellerID, &status)
	if err == sql.ErrNoRows {
		return nil, Errf(KindNotFound, "goods not found")
	}
	if err != nil {
		if isRetryableConflict(err) {
			return nil, Errf(KindConflict, "goods is being purchased concurrently, retry")
		}
		return nil, Internal(err)
	}

	if status != models.GoodsAvailable {
		return nil, Errf(KindInvalidState, "goods already sold or removed")
	}
	if sellerID == buyerID {
		return nil, Errf(KindInvalidArgument, "cannot purchase your own goods")
	}

	// Lock the two account rows in ascending id order to avoid deadlock.
	firstID, secondID := buyerID, sellerID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}
	first, err := s.lockAccount(tx, firstID)
	if err != nil {
		return nil, err
	}
	second, err := s.lockAccount(tx, secondID)
	if err != nil {
		return nil, err
	}
	buyer, seller := first, second
	if firstID != buyerID {
		buyer, seller = second, first
	}

	if buyer.Balance < priceCents {
		return nil, Errf(KindInsufficientFunds, "insufficient balance, recharge first")
	}

	if err := s.updateBalance(tx, buyer.ID, buyer.Balance-priceCents, buyer.Version); err != nil {
		return nil, err
	}
	if err := s.updateBalance(tx, seller.ID, seller.Balance+priceCents, seller.Version); err != nil {
		return nil, err
	}

	orderID := newOrderID()
	_, err = tx.Exec(
		`INSERT INTO orders (order_id, goods_id, buyer_id, seller_id, price, status) VALUES ($1, $2, $3, $4, $5, 'completed')`,
		orderID, goodsID, buyerID, sellerID, priceCents,
	)
	if err != nil {
		return nil, Internal(err)
	}

	if _, err := tx.Exec(`UPDATE goods SET status = 'sold' WHERE goods_id = $1`, goodsID); err != nil {
		return nil, Internal(err)
	}

	if err := tx.Commit(); err != nil {
		if isRetryableConflict(err) {
			return nil, Errf(KindConflict, "purchase lost a concurrent race, retry")
		}
		return nil, Internal(err)
	}

	log.Printf("[LEDGER] Order %s: goods %d sold to buyer %d for %d cents", orderID, goodsID, buyerID, priceCents)
	return &PurchaseResult{OrderID: orderID, NewBalance: models.Amount(buyer.Balance - priceCents)}, nil
}

// Recharge adds amount to the account balance using an optimistic
// read-modify-write. A lost version race re-reads and retries a bounded
// number of times; the delta is applied exactly once or not at all.
func (s *LedgerService) Recharge(userID int, amount float64) (float64, error) {
	cents := models.Cents(amount)
	if cents <= 0 {
		return 0, Errf(KindInvalidArgument, "recharge amount must be greater than zero")
	}

	for attempt := 0; attempt < rechargeRetries; attempt++ {
		var (
			balance int64
			version int
		)
		err := s.db.QueryRow(`SELECT balance, version FROM users WHERE user_id = $1`, userID).
			Scan(&balance, &version)
		if err == sql.ErrNoRows {
			return 0, Errf(KindNotFound, "user not found")
		}
		if err != nil {
			return 0, Internal(err)
		}

		res, err := s.db.Exec(
			`UPDATE users SET balance = $1, version = version + 1 WHERE user_id = $2 AND version = $3`,
			balance+cents, userID, version,
		)
		if err != nil {
			return 0, Internal(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, Internal(err)
		}
		if affected == 1 {
			log.Printf("[LEDGER] User %d recharged %d cents, balance now %d", userID, cents, balance+cents)
			return models.Amount(balance + cents), nil
		}
		log.Printf("[LEDGER] Recharge version race for user %d, attempt %d", userID, attempt+1)
	}

	return 0, Errf(KindConflict, "balance is being modified concurrently, retry")
}

// Balance returns the current account balance.
func (s *LedgerService) Balance(userID int) (float64, error) {
	var balance int64
	err := s.db.QueryRow(`SELECT balance FROM users WHERE user_id = $1`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, Errf(KindNotFound, "user not found")
	}
	if err != nil {
		return 0, Internal(err)
	}
	return models.Amount(balance), nil
}

func (s *LedgerService) lockAccount(tx *sql.Tx, userID int) (*models.Account, error) {
	account := models.Account{ID: userID}
	err := tx.QueryRow(`SELECT balance, version FROM users WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&account.Balance, &account.Version)
	if err == sql.ErrNoRows {
		return nil, Errf(KindNotFound, "user %d not found", userID)
	}
	if err != nil {
		if isRetryableConflict(err) {
			return nil, Errf(KindConflict, "account is locked by a concurrent operation, retry")
		}
		return nil, Internal(err)
	}
	return &account, nil
}

func (s *LedgerService) updateBalance(tx *sql.Tx, userID int, newBalance int64, version int) error {
	res, err := tx.Exec(
		`UPDATE users SET balance = $1, version = version + 1 WHERE user_id = $2 AND version = $3`,
		newBalance, userID, version,
	)
	if err != nil {
		return Internal(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Internal(err)
	}
	if affected == 0 {
		return Errf(KindConflict, "account %d was modified concurrently, retry", userID)
	}
	return nil
}

// Order ids are short opaque tokens, the first 8 hex chars of a UUID.
func newOrderID() string {
	return uuid.New().String()[:8]
}
