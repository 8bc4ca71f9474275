package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/estately/internal/common"
	"github.com/dmitrijs2005/estately/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	insertQ     = `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*email,\s*password_hash,\s*first_name,\s*last_name,\s*phone,\s*role\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*RETURNING\s+email_verified,\s*created_at,\s*updated_at\s*$`
	byEmailQ    = `(?s)^SELECT\s+id,\s*email,\s*password_hash,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`
	byIDQ       = `(?s)^SELECT\s+id,\s*email,\s*password_hash,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`
	updateRoleQ = `(?s)^UPDATE\s+users\s+SET\s+role\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s*$`
	testUserID  = "7f1c2f0e-4a36-4c41-9a43-2a7d8d0c9b11"
)

var userCols = []string{"id", "email", "password_hash", "first_name", "last_name", "phone", "role", "email_verified", "created_at", "updated_at"}

func strPtr(s string) *string { return &s }

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(insertQ).
		WithArgs(testUserID, "alice@example.com", "hash", "Alice", "Smith", "555", "buyer").
		WillReturnRows(sqlmock.NewRows([]string{"email_verified", "created_at", "updated_at"}).AddRow(false, now, now))

	u := &models.User{
		ID: testUserID, Email: "alice@example.com", PasswordHash: strPtr("hash"),
		FirstName: "Alice", LastName: "Smith", Phone: "555", Role: "buyer",
	}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != testUserID || !got.CreatedAt.Equal(now) || got.EmailVerified {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_GeneratesID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(insertQ).
		WithArgs(sqlmock.AnyArg(), "bob@example.com", nil, "", "", "", "seller").
		WillReturnRows(sqlmock.NewRows([]string{"email_verified", "created_at", "updated_at"}).AddRow(false, now, now))

	got, err := repo.Create(context.Background(), &models.User{Email: "bob@example.com", Role: "seller"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(got.ID) != 36 {
		t.Fatalf("expected generated uuid, got %q", got.ID)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &models.User{Email: "alice@example.com", Role: "buyer"})
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("want common.ErrorAlreadyExists, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "alice@example.com", Role: "buyer"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(userCols).
		AddRow(testUserID, "alice@example.com", "hash", "Alice", "Smith", "", "seller", true, now, now)
	mock.ExpectQuery(byEmailQ).WithArgs("alice@example.com").WillReturnRows(rows)

	got, err := repo.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.ID != testUserID || got.Role != "seller" || !got.EmailVerified {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.PasswordHash == nil || *got.PasswordHash != "hash" {
		t.Fatalf("unexpected password hash: %v", got.PasswordHash)
	}
}

func TestGetByEmail_NullPasswordHash(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(userCols).
		AddRow(testUserID, "sso@example.com", nil, "", "", "", "buyer", true, now, now)
	mock.ExpectQuery(byEmailQ).WithArgs("sso@example.com").WillReturnRows(rows)

	got, err := repo.GetByEmail(context.Background(), "sso@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.PasswordHash != nil {
		t.Fatalf("expected nil password hash, got %q", *got.PasswordHash)
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byEmailQ).WithArgs("ghost@example.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(userCols).
		AddRow(testUserID, "alice@example.com", "hash", "", "", "", "broker", false, now, now)
	mock.ExpectQuery(byIDQ).WithArgs(testUserID).WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Role != "broker" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetByID_MalformedIDIsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no query expected: %v", err)
	}
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQ).WithArgs(testUserID).WillReturnError(errors.New("db err"))

	_, err := repo.GetByID(context.Background(), testUserID)
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestUpdateRole(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(updateRoleQ).WithArgs(testUserID, "seller").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.UpdateRole(context.Background(), testUserID, "seller"); err != nil {
		t.Fatalf("UpdateRole error: %v", err)
	}

	mock.ExpectExec(updateRoleQ).WithArgs(testUserID, "seller").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.UpdateRole(context.Background(), testUserID, "seller"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}

	mock.ExpectExec(updateRoleQ).WithArgs(testUserID, "seller").WillReturnError(errors.New("db err"))
	if err := repo.UpdateRole(context.Background(), testUserID, "seller"); err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
