package services

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoodsService_Publish(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewGoodsService(db)

	t.Run("successful publish", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(
			`INSERT INTO goods (name, category, price, description, seller_id) VALUES ($1, $2, $3, $4, $5) RETURNING goods_id`)).
			WithArgs("Lamp", "dorm", int64(3000), "barely used", 2).
			WillReturnRows(sqlmock.NewRows([]string{"goods_id"}).AddRow(5))

		goodsID, err := service.Publish("Lamp", "dorm", 30, "barely used", 2)
		require.NoError(t, err)
		assert.Equal(t, 5, goodsID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid input rejected before any query", func(t *testing.T) {
		_, err := service.Publish("", "dorm", 30, "", 2)
		assert.Equal(t, KindInvalidArgument, KindOf(err))

		_, err = service.Publish("Lamp", "  ", 30, "", 2)
		assert.Equal(t, KindInvalidArgument, KindOf(err))

		_, err = service.Publish("Lamp", "dorm", 0, "", 2)
		assert.Equal(t, KindInvalidArgument, KindOf(err))

		_, err = service.Publish("Lamp", "dorm", -1, "", 2)
		assert.Equal(t, KindInvalidArgument, KindOf(err))

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGoodsService_ListAvailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewGoodsService(db)

	published := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT g\.goods_id, g\.name, g\.category, g\.price, g\.description, g\.seller_id, u\.username, g\.status, g\.publish_time`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"goods_id", "name", "category", "price", "description", "seller_id", "username", "status", "publish_time"}).
			AddRow(5, "Lamp", "dorm", 3000, "barely used", 2, "bob", "available", published).
			AddRow(4, "Textbook", "books", 1550, nil, 3, "carol", "available", published))

	goods, err := service.ListAvailable()
	require.NoError(t, err)
	require.Len(t, goods, 2)
	assert.Equal(t, "Lamp", goods[0].Name)
	assert.Equal(t, 30.0, goods[0].Price)
	assert.Equal(t, "bob", goods[0].SellerName)
	assert.Equal(t, "2026-03-02 09:30:00", goods[0].PublishTime)
	assert.Equal(t, 15.5, goods[1].Price)
	assert.Equal(t, "", goods[1].Description)
}

func TestGoodsService_BySeller(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewGoodsService(db)

	published := time.Now()
	mock.ExpectQuery(`SELECT goods_id, name, category, price, description, seller_id, status, publish_time`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(
			[]string{"goods_id", "name", "category", "price", "description", "seller_id", "status", "publish_time"}).
			AddRow(5, "Lamp", "dorm", 3000, "", 2, "sold", published).
			AddRow(6, "Chair", "dorm", 2000, "", 2, "removed", published))

	goods, err := service.BySeller(2)
	require.NoError(t, err)
	require.Len(t, goods, 2)
	assert.Equal(t, "sold", goods[0].Status)
	assert.Equal(t, "removed", goods[1].Status)
	assert.Empty(t, goods[0].SellerName)
}

func TestGoodsService_Withdraw(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewGoodsService(db)

	qSelectStatus := regexp.QuoteMeta(`SELECT status FROM goods WHERE goods_id = $1 FOR UPDATE`)

	t.Run("available listing is removed", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(qLockTimeout)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(qSelectStatus).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("available"))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE goods SET status = 'removed' WHERE goods_id = $1`)).
			WithArgs(5).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, service.Withdraw(5))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already removed is a no-op success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(qLockTimeout)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(qSelectStatus).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("removed"))
		mock.ExpectCommit()

		assert.NoError(t, service.Withdraw(5))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sold listing cannot be withdrawn", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(qLockTimeout)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(qSelectStatus).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("sold"))
		mock.ExpectRollback()

		assert.Equal(t, KindInvalidState, KindOf(service.Withdraw(5)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing listing", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(qLockTimeout)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(qSelectStatus).
			WithArgs(404).
			WillReturnRows(sqlmock.NewRows([]string{"status"}))
		mock.ExpectRollback()

		assert.Equal(t, KindNotFound, KindOf(service.Withdraw(404)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
