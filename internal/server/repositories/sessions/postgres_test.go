package sessions

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/estately/internal/common"
)

const (
	testUserID = "7f1c2f0e-4a36-4c41-9a43-2a7d8d0c9b11"

	getQ    = `(?s)^SELECT\s+refresh_token,\s*refresh_token_expiry\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`
	saveQ   = `(?s)^UPDATE\s+users\s+SET\s+refresh_token\s*=\s*\$2,\s*refresh_token_expiry\s*=\s*\$3,.*WHERE\s+id\s*=\s*\$1\s*$`
	rotateQ = `(?s)^UPDATE\s+users\s+SET\s+refresh_token\s*=\s*\$3,\s*refresh_token_expiry\s*=\s*\$4,.*WHERE\s+id\s*=\s*\$1\s+AND\s+refresh_token\s*=\s*\$2\s*$`
	clearQ  = `(?s)^UPDATE\s+users\s+SET\s+refresh_token\s*=\s*NULL,\s*refresh_token_expiry\s*=\s*NULL,.*WHERE\s+id\s*=\s*\$1\s*$`
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresStore(db), mock, db
}

func TestPostgresGet_Found(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour).UTC()
	mock.ExpectQuery(getQ).WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"refresh_token", "refresh_token_expiry"}).AddRow("d1", exp))

	got, err := s.Get(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.TokenDigest != "d1" || !got.ExpiresAt.Equal(exp) || got.UserID != testUserID {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestPostgresGet_NoSession(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(getQ).WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"refresh_token", "refresh_token_expiry"}).AddRow(nil, nil))

	if _, err := s.Get(context.Background(), testUserID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestPostgresGet_NoUser(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(getQ).WithArgs(testUserID).WillReturnError(sql.ErrNoRows)

	if _, err := s.Get(context.Background(), testUserID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
	if _, err := s.Get(context.Background(), "garbage"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound for malformed id, got %v", err)
	}
}

func TestPostgresGet_DBError(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(getQ).WithArgs(testUserID).WillReturnError(errors.New("db err"))

	_, err := s.Get(context.Background(), testUserID)
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestPostgresSave(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	mock.ExpectExec(saveQ).WithArgs(testUserID, "d1", exp).WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.Save(context.Background(), testUserID, "d1", exp); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	mock.ExpectExec(saveQ).WithArgs(testUserID, "d1", exp).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.Save(context.Background(), testUserID, "d1", exp); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestPostgresRotate(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	mock.ExpectExec(rotateQ).WithArgs(testUserID, "old", "new", exp).WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.Rotate(context.Background(), testUserID, "old", "new", exp); err != nil {
		t.Fatalf("Rotate error: %v", err)
	}

	mock.ExpectExec(rotateQ).WithArgs(testUserID, "old", "new", exp).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.Rotate(context.Background(), testUserID, "old", "new", exp); !errors.Is(err, common.ErrorConflict) {
		t.Fatalf("want common.ErrorConflict, got %v", err)
	}

	mock.ExpectExec(rotateQ).WithArgs(testUserID, "old", "new", exp).WillReturnError(errors.New("db down"))
	err := s.Rotate(context.Background(), testUserID, "old", "new", exp)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestPostgresClear(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(clearQ).WithArgs(testUserID).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.Clear(context.Background(), testUserID); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
