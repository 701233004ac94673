package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/campustrade/backend/internal/models"
)

// AdminService covers account administration and the read-only aggregate
// queries. Aggregates run outside transactions and may observe slightly
// stale data; that is acceptable for statistics.
type AdminService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewAdminService(db *sql.DB, redisClient *redis.Client) *AdminService {
	return &AdminService{db: db, redis: redisClient}
}

// ListUsers returns every account without password hashes.
func (s *AdminService) ListUsers() ([]models.User, error) {
	rows, err := s.db.Query(
		`SELECT user_id, username, role, contact, balance, created_at FROM users ORDER BY user_id`)
	if err != nil {
		return nil, Internal(err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var (
			u         models.User
			contact   sql.NullString
			balance   int64
			createdAt time.Time
		)
		if err := rows.Scan(&u.UserID, &u.Username, &u.Role, &contact, &balance, &createdAt); err != nil {
			return nil, Internal(err)
		}
		u.Contact = contact.String
		u.Balance = models.Amount(balance)
		u.CreatedAt = createdAt.Format(models.TimeLayout)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, Internal(err)
	}
	return users, nil
}

// DeleteUser removes a member account in one transaction: its available
// listings become removed, orders referencing it become cancelled, and the
// account row is deleted. Admin accounts can never be deleted. Returns the
// deleted username.
func (s *AdminService) DeleteUser(userID int) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", Internal(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`SET LOCAL lock_timeout = '3s'`); err != nil {
		return "", Internal(err)
	}

	var username, role string
	err = tx.QueryRow(`SELECT username, role FROM users WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&username, &role)
	if err == sql.ErrNoRows {
		return "", Errf(KindNotFound, "user not found")
	}
	if err != nil {
		if isRetryableConflict(err) {
			return "", Errf(KindConflict, "account is locked by a concurrent operation, retry")
		}
		return "", Internal(err)
	}

	if role == models.RoleAdmin {
		return "", Errf(KindForbidden, "admin account cannot be deleted")
	}

	if _, err := tx.Exec(
		`UPDATE goods SET status = 'removed' WHERE seller_id = $1 AND status = 'available'`, userID); err != nil {
		return "", Internal(err)
	}
	if _, err := tx.Exec(
		`UPDATE orders SET status = 'cancelled' WHERE buyer_id = $1 OR seller_id = $1`, userID); err != nil {
		return "", Internal(err)
	}
	if _, err := tx.Exec(`DELETE FROM users WHERE user_id = $1`, userID); err != nil {
		return "", Internal(err)
	}

	if err := tx.Commit(); err != nil {
		return "", Internal(err)
	}

	if s.redis != nil {
		key := fmt.Sprintf("session:%d", userID)
		if err := s.redis.Del(context.Background(), key).Err(); err != nil {
			log.Printf("[ADMIN] Failed to drop cached session for user %d: %v", userID, err)
		}
	}

	log.Printf("[ADMIN] User %d (%s) deleted", userID, username)
	return username, nil
}

// ListAllOrders returns every order, newest first.
func (s *AdminService) ListAllOrders() ([]models.Order, error) {
	rows, err := s.db.Query(orderSelect + ` ORDER BY o.create_time DESC`)
	if err != nil {
		return nil, Internal(err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// OrdersByUser returns orders where the account is buyer or seller.
func (s *AdminService) OrdersByUser(userID int) ([]models.Order, error) {
	rows, err := s.db.Query(
		orderSelect+` WHERE o.buyer_id = $1 OR o.seller_id = $1 ORDER BY o.create_time DESC`, userID)
	if err != nil {
		return nil, Internal(err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// CategoryStats counts non-removed listings per category.
func (s *AdminService) CategoryStats() (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT category, COUNT(*) FROM goods WHERE status <> 'removed' GROUP BY category`)
	if err != nil {
		return nil, Internal(err)
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var (
			category string
			count    int
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, Internal(err)
		}
		stats[category] = count
	}
	if err := rows.Err(); err != nil {
		return nil, Internal(err)
	}
	return stats, nil
}

// DailySalesStats sums completed order prices per day over the last N days,
// oldest day first. Days outside 1..90 fall back to 7.
func (s *AdminService) DailySalesStats(days int) ([]models.DailySale, error) {
	if days < 1 || days > 90 {
		days = 7
	}

	rows, err := s.db.Query(
		`SELECT DATE(create_time) AS day, SUM(price)
		 FROM orders
		 WHERE status = 'completed' AND create_time >= NOW() - make_interval(days => $1)
		 GROUP BY day
		 ORDER BY day`, days)
	if err != nil {
		return nil, Internal(err)
	}
	defer rows.Close()

	stats := []models.DailySale{}
	for rows.Next() {
		var (
			day   time.Time
			total int64
		)
		if err := rows.Scan(&day, &total); err != nil {
			return nil, Internal(err)
		}
		stats = append(stats, models.DailySale{Date: day.Format("2006-01-02"), Amount: models.Amount(total)})
	}
	if err := rows.Err(); err != nil {
		return nil, Internal(err)
	}
	return stats, nil
}

// Orders of deleted accounts stay visible, so the username joins are LEFT
// JOINs with empty-string fallbacks.
const orderSelect = `SELECT o.order_id, o.goods_id, COALESCE(g.name, ''), o.buyer_id, COALESCE(u1.username, ''),
		o.seller_id, COALESCE(u2.username, ''), o.price, o.status, o.create_time
	 FROM orders o
	 LEFT JOIN goods g ON o.goods_id = g.goods_id
	 LEFT JOIN users u1 ON o.buyer_id = u1.user_id
	 LEFT JOIN users u2 ON o.seller_id = u2.user_id`

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	orders := []models.Order{}
	for rows.Next() {
		var (
			o          models.Order
			priceCents int64
			createTime time.Time
		)
		err := rows.Scan(&o.OrderID, &o.GoodsID, &o.GoodsName, &o.BuyerID, &o.BuyerName,
			&o.SellerID, &o.SellerName, &priceCents, &o.Status, &createTime)
		if err != nil {
			return nil, Internal(err)
		}
		o.Price = models.Amount(priceCents)
		o.CreateTime = createTime.Format(models.TimeLayout)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, Internal(err)
	}
	return orders, nil
}
