package secrets

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/spec-kit/securevault/internal/common"
	"github.com/spec-kit/securevault/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func secretColumns() []string {
	return []string{"id", "user_id", "name", "description", "encrypted_content", "nonce", "created_at", "updated_at"}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+secrets`).
		WithArgs("s-1", "u-1", "github", "personal token", "Y2lwaGVy", "bm9uY2U=").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	s := &models.Secret{
		ID: "s-1", UserID: "u-1", Name: "github", Description: "personal token",
		EncryptedContent: "Y2lwaGVy", Nonce: "bm9uY2U=",
	}
	got, err := repo.Create(context.Background(), s)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("created_at not populated")
	}
}

func TestGetByID_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT.+FROM\s+secrets\s+WHERE\s+id`).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows(secretColumns()).
			AddRow("s-1", "u-1", "github", "", "Y2lwaGVy", "bm9uY2U=", now, now))

	got, err := repo.GetByID(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.UserID != "u-1" || got.EncryptedContent != "Y2lwaGVy" {
		t.Fatalf("unexpected secret: %+v", got)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT.+FROM\s+secrets\s+WHERE\s+id`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestListByUser_Pagination(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(secretColumns()).
		AddRow("s-2", "u-1", "newer", "", "YQ==", "bg==", now, now).
		AddRow("s-1", "u-1", "older", "", "Yg==", "bg==", now.Add(-time.Hour), now.Add(-time.Hour))
	mock.ExpectQuery(`(?s)SELECT.+FROM\s+secrets\s+WHERE\s+user_id.+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT`).
		WithArgs("u-1", 10, 20).
		WillReturnRows(rows)

	got, err := repo.ListByUser(context.Background(), "u-1", 20, 10)
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "newer" {
		t.Fatalf("unexpected page: %+v", got)
	}
}

func TestListByUser_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT.+FROM\s+secrets\s+WHERE\s+user_id`).
		WithArgs("u-1", 10, 0).
		WillReturnRows(sqlmock.NewRows(secretColumns()))

	got, err := repo.ListByUser(context.Background(), "u-1", 0, 10)
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty page, got %d items", len(got))
	}
}

func TestCountByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+count\(\*\)\s+FROM\s+secrets`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	total, err := repo.CountByUser(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("CountByUser error: %v", err)
	}
	if total != 42 {
		t.Fatalf("expected 42, got %d", total)
	}
}

func TestUpdate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)UPDATE\s+secrets\s+SET`).
		WithArgs("s-1", "renamed", "new desc", "bmV3", "bm9uY2Uy").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	s := &models.Secret{ID: "s-1", Name: "renamed", Description: "new desc",
		EncryptedContent: "bmV3", Nonce: "bm9uY2Uy"}
	if _, err := repo.Update(context.Background(), s); err != nil {
		t.Fatalf("Update error: %v", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)UPDATE\s+secrets\s+SET`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), &models.Secret{ID: "nope"})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestDelete_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+secrets\s+WHERE\s+id`).
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "s-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+secrets\s+WHERE\s+id`).
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "nope"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}
