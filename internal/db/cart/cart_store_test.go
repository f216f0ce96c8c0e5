package cartdb

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	}

	return db, mock, cleanup
}

var joinedCols = []string{
	"id", "user_id", "product_id", "quantity", "created_at", "updated_at",
	"p_id", "p_name", "p_description", "p_price", "p_category",
	"p_stock_quantity", "p_is_active", "p_created_at", "p_updated_at",
}

func joinedRow(rows *sqlmock.Rows, itemID, userID, productID string, qty int, stock int) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(itemID, userID, productID, qty, now, now,
		productID, "Keyboard", nil, int64(45000), "keyboards", stock, true, now, now)
}

func TestCartStore_ItemsForOwner(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	rows := sqlmock.NewRows(joinedCols)
	joinedRow(rows, "ci1", "user-1", "p1", 2, 10)

	mock.ExpectQuery(`SELECT (.+) FROM cart_items ci\s+JOIN products p ON p.id = ci.product_id WHERE ci.user_id = \$1 ORDER BY ci.created_at DESC`).
		WithArgs("user-1").
		WillReturnRows(rows)
	mock.ExpectClose()

	store := NewCartStore(db)
	items, err := store.ItemsForOwner(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Product.Name != "Keyboard" || items[0].Product.StockQuantity != 10 {
		t.Fatalf("product snapshot not joined: %+v", items[0].Product)
	}
}

func TestCartStore_GetForOwner_NoRowIsNil(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectQuery(`WHERE ci.id = \$1 AND ci.user_id = \$2`).
		WithArgs("ci1", "user-2").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectClose()

	store := NewCartStore(db)
	it, err := store.GetForOwner(context.Background(), "user-2", "ci1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it != nil {
		t.Fatalf("expected nil for foreign or missing row")
	}
}

func TestCartStore_Insert(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec(`INSERT INTO cart_items`).
		WithArgs(sqlmock.AnyArg(), "user-1", "p1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	store := NewCartStore(db)
	if err := store.Insert(context.Background(), "user-1", "p1", 2); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestCartStore_UpdateQuantity_ScopedToOwner(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec(`UPDATE cart_items SET quantity = \$3, updated_at = NOW\(\)\s+WHERE id = \$1 AND user_id = \$2`).
		WithArgs("ci1", "user-1", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE cart_items`).
		WithArgs("ci1", "intruder", 5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	store := NewCartStore(db)
	ok, err := store.UpdateQuantity(context.Background(), "user-1", "ci1", 5)
	if err != nil || !ok {
		t.Fatalf("owner update: ok=%v err=%v", ok, err)
	}

	ok, err = store.UpdateQuantity(context.Background(), "intruder", "ci1", 5)
	if err != nil {
		t.Fatalf("foreign update: %v", err)
	}
	if ok {
		t.Fatalf("foreign update must not touch rows")
	}
}

func TestCartStore_DeleteAllForOwner(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec(`DELETE FROM cart_items WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectClose()

	store := NewCartStore(db)
	if err := store.DeleteAllForOwner(context.Background(), "user-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
}

func TestCartStore_CountForOwner(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cart_items WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectClose()

	store := NewCartStore(db)
	count, err := store.CountForOwner(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
}

func TestCartStore_FindForProduct_ErrorPropagates(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectQuery(`FROM cart_items WHERE user_id = \$1 AND product_id = \$2`).
		WithArgs("user-1", "p1").
		WillReturnError(errors.New("boom"))
	mock.ExpectClose()

	store := NewCartStore(db)
	if _, err := store.FindForProduct(context.Background(), "user-1", "p1"); err == nil {
		t.Fatalf("expected error")
	}
}
