package tasksdb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func TestAddInsertsRow(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewTaskStore(db)

	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(sqlmock.AnyArg(), "user-1", "restock keyboards", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	task, err := store.Add(context.Background(), "user-1", "restock keyboards")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if task.ID == "" || task.Title != "restock keyboards" || task.Done {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestListForOwnerScopesByUser(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewTaskStore(db)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, user_id, title, done, created_at FROM tasks WHERE user_id").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "done", "created_at"}).
			AddRow("t-2", "user-1", "newer", false, now).
			AddRow("t-1", "user-1", "older", true, now.Add(-time.Hour)))

	tasks, err := store.ListForOwner(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "t-2" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestListForOwnerEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewTaskStore(db)

	mock.ExpectQuery("SELECT id, user_id, title, done, created_at FROM tasks").
		WithArgs("user-9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "done", "created_at"}))

	tasks, err := store.ListForOwner(context.Background(), "user-9")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected none, got %+v", tasks)
	}
}
