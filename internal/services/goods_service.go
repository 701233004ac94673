package services

import (
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/campustrade/backend/internal/models"
)

// GoodsService owns the listing lifecycle outside of purchases.
type GoodsService struct {
	db *sql.DB
}

func NewGoodsService(db *sql.DB) *GoodsService {
	return &GoodsService{db: db}
}

// ListAvailable returns available listings newest first, with the seller's
// username denormalized for marketplace views.
func (s *GoodsService) ListAvailable() ([]models.Goods, error) {
	rows, err := s.db.Query(
		`SELECT g.goods_id, g.name, g.category, g.price, g.description, g.seller_id, u.username, g.status, g.publish_time
		 FROM goods g
		 JOIN users u ON g.seller_id = u.user_id
		 WHERE g.status = 'available'
		 ORDER BY g.publish_time DESC`)
	if err != nil {
		return nil, Internal(err)
	}
	defer rows.Close()

	return scanGoods(rows, true)
}

// Publish creates an available listing and returns its id.
func (s *GoodsService) Publish(name, category string, price float64, description string, sellerID int) (int, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(category) == "" {
		return 0, Errf(KindInvalidArgument, "name and category must not be blank")
	}
	priceCents := models.Cents(price)
	if priceCents <= 0 {
		return 0, Errf(KindInvalidArgument, "price must be greater than zero")
	}

	var goodsID int
	err := s.db.QueryRow(
		`INSERT INTO goods (name, category, price, description, seller_id) VALUES ($1, $2, $3, $4, $5) RETURNING goods_id`,
		name, category, priceCents, description, sellerID,
	).Scan(&goodsID)
	if err != nil {
		log.Printf("[GOODS] Publish failed for seller %d: %v", sellerID, err)
		return 0, Internal(err)
	}

	log.Printf("[GOODS] Listing %d published by seller %d", goodsID, sellerID)
	return goodsID, nil
}

// BySeller returns every listing of one seller regardless of status.
func (s *GoodsService) BySeller(sellerID int) ([]models.Goods, error) {
	rows, err := s.db.Query(
		`SELECT goods_id, name, category, price, description, seller_id, status, publish_time
		 FROM goods
		 WHERE seller_id = $1
		 ORDER BY publish_time DESC`, sellerID)
	if err != nil {
		return nil, Internal(err)
	}
	defer rows.Close()

	return scanGoods(rows, false)
}

// Withdraw removes an available listing. Withdrawing an already-removed
// listing is a no-op success; a sold listing cannot be withdrawn.
func (s *GoodsService) Withdraw(goodsID int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return Internal(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`SET LOCAL lock_timeout = '3s'`); err != nil {
		return Internal(err)
	}

	var status string
	err = tx.QueryRow(`SELECT status FROM goods WHERE goods_id = $1 FOR UPDATE`, goodsID).Scan(&status)
	if err == sql.ErrNoRows {
		return Errf(KindNotFound, "goods not found")
	}
	if err != nil {
		if isRetryableConflict(err) {
			return Errf(KindConflict, "goods is being modified concurrently, retry")
		}
		return Internal(err)
	}

	switch status {
	case models.GoodsSold:
		return Errf(KindInvalidState, "goods already sold")
	case models.GoodsRemoved:
		return tx.Commit()
	}

	if _, err := tx.Exec(`UPDATE goods SET status = 'removed' WHERE goods_id = $1`, goodsID); err != nil {
		return Internal(err)
	}
	if err := tx.Commit(); err != nil {
		return Internal(err)
	}

	log.Printf("[GOODS] Listing %d withdrawn", goodsID)
	return nil
}

// scanGoods drains a goods result set; withSeller indicates the seller
// username column is present.
func scanGoods(rows *sql.Rows, withSeller bool) ([]models.Goods, error) {
	goods := []models.Goods{}
	for rows.Next() {
		var (
			g           models.Goods
			priceCents  int64
			description sql.NullString
			publishTime time.Time
		)
		var err error
		if withSeller {
			err = rows.Scan(&g.GoodsID, &g.Name, &g.Category, &priceCents, &description, &g.SellerID, &g.SellerName, &g.Status, &publishTime)
		} else {
			err = rows.Scan(&g.GoodsID, &g.Name, &g.Category, &priceCents, &description, &g.SellerID, &g.Status, &publishTime)
		}
		if err != nil {
			return nil, Internal(err)
		}
		g.Price = models.Amount(priceCents)
		g.Description = description.String
		g.PublishTime = publishTime.Format(models.TimeLayout)
		goods = append(goods, g)
	}
	if err := rows.Err(); err != nil {
		return nil, Internal(err)
	}
	return goods, nil
}
