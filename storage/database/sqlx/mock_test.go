package sqlxrepos_test

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func fkViolation() error {
	return &pq.Error{Code: "23503", Message: "violates foreign key constraint"}
}

const (
	id1 = "8b5a2f3e-43a4-4b8e-9f05-5a7c0c9d1e2f"
	id2 = "0d6f4e1a-9c2b-4d7e-8a13-2f6b5c4d3e21"
	id3 = "f1e2d3c4-b5a6-4978-8695-a4b3c2d1e0f9"
)

// newMockDB creates a sqlmock backed *sqlx.DB that checks every expectation on cleanup.
func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}
