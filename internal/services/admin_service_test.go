package services

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminService_DeleteUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	qSelectRole := regexp.QuoteMeta(`SELECT username, role FROM users WHERE user_id = $1 FOR UPDATE`)

	t.Run("cascading delete runs in one transaction", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewAdminService(db, redisClient)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(qLockTimeout)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(qSelectRole).
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows([]string{"username", "role"}).AddRow("carol", "member"))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE goods SET status = 'removed' WHERE seller_id = $1 AND status = 'available'`)).
			WithArgs(3).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE orders SET status = 'cancelled' WHERE buyer_id = $1 OR seller_id = $1`)).
			WithArgs(3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE user_id = $1`)).
			WithArgs(3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		redisMock.ExpectDel("session:3").SetVal(1)

		username, err := service.DeleteUser(3)
		require.NoError(t, err)
		assert.Equal(t, "carol", username)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("admin account can never be deleted", func(t *testing.T) {
		service := NewAdminService(db, nil)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(qLockTimeout)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(qSelectRole).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"username", "role"}).AddRow("admin", "admin"))
		mock.ExpectRollback()

		_, err := service.DeleteUser(1)
		assert.Equal(t, KindForbidden, KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		service := NewAdminService(db, nil)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(qLockTimeout)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(qSelectRole).
			WithArgs(404).
			WillReturnRows(sqlmock.NewRows([]string{"username", "role"}))
		mock.ExpectRollback()

		_, err := service.DeleteUser(404)
		assert.Equal(t, KindNotFound, KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdminService_ListUsers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAdminService(db, nil)

	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT user_id, username, role, contact, balance, created_at FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "username", "role", "contact", "balance", "created_at"}).
			AddRow(1, "admin", "admin", "admin@campus.com", 100000, created).
			AddRow(2, "bob", "member", nil, 3000, created))

	users, err := service.ListUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Role)
	assert.Equal(t, 1000.0, users[0].Balance)
	assert.Equal(t, "", users[1].Contact)
	assert.Equal(t, 30.0, users[1].Balance)
}

func TestAdminService_Orders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAdminService(db, nil)

	cols := []string{"order_id", "goods_id", "goods_name", "buyer_id", "buyer_name",
		"seller_id", "seller_name", "price", "status", "create_time"}
	created := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)

	t.Run("all orders", func(t *testing.T) {
		mock.ExpectQuery(`SELECT o\.order_id, o\.goods_id, COALESCE\(g\.name, ''\)`).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("a1b2c3d4", 5, "Lamp", 1, "alice", 2, "bob", 3000, "completed", created).
				AddRow("ffee0011", 6, "", 7, "", 2, "bob", 1000, "cancelled", created))

		orders, err := service.ListAllOrders()
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, "a1b2c3d4", orders[0].OrderID)
		assert.Equal(t, 30.0, orders[0].Price)
		assert.Equal(t, "completed", orders[0].Status)
		assert.Equal(t, "2026-03-05 14:00:00", orders[0].CreateTime)
		// Orders of deleted accounts stay visible with blank names.
		assert.Equal(t, "cancelled", orders[1].Status)
		assert.Equal(t, "", orders[1].BuyerName)
	})

	t.Run("orders by user", func(t *testing.T) {
		mock.ExpectQuery(`SELECT o\.order_id, o\.goods_id, COALESCE\(g\.name, ''\)`).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("a1b2c3d4", 5, "Lamp", 1, "alice", 2, "bob", 3000, "completed", created))

		orders, err := service.OrdersByUser(1)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, 1, orders[0].BuyerID)
	})
}

func TestAdminService_Stats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAdminService(db, nil)

	t.Run("category stats", func(t *testing.T) {
		mock.ExpectQuery(`SELECT category, COUNT\(\*\) FROM goods`).
			WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).
				AddRow("dorm", 3).
				AddRow("books", 1))

		stats, err := service.CategoryStats()
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"dorm": 3, "books": 1}, stats)
	})

	t.Run("daily sales stats", func(t *testing.T) {
		mock.ExpectQuery(`SELECT DATE\(create_time\) AS day, SUM\(price\)`).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"day", "sum"}).
				AddRow(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), 3000).
				AddRow(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), 4550))

		stats, err := service.DailySalesStats(7)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "2026-03-04", stats[0].Date)
		assert.Equal(t, 30.0, stats[0].Amount)
		assert.Equal(t, 45.5, stats[1].Amount)
	})

	t.Run("out-of-range days falls back to default", func(t *testing.T) {
		mock.ExpectQuery(`SELECT DATE\(create_time\) AS day, SUM\(price\)`).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"day", "sum"}))

		stats, err := service.DailySalesStats(0)
		require.NoError(t, err)
		assert.Empty(t, stats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
