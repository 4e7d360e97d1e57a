package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/spec-kit/securevault/internal/common"
	"github.com/spec-kit/securevault/internal/dbx"
	"github.com/spec-kit/securevault/internal/server/config"
	"github.com/spec-kit/securevault/internal/server/cryptox"
	"github.com/spec-kit/securevault/internal/server/models"
	"github.com/spec-kit/securevault/internal/server/repositories/repomanager"
	secretsrepo "github.com/spec-kit/securevault/internal/server/repositories/secrets"
	usersrepo "github.com/spec-kit/securevault/internal/server/repositories/users"
)

// --- helpers ---

var testArgon2 = cryptox.Argon2Params{Time: 1, Memory: 8192, Parallelism: 1}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecretKey:                 "unit-test-jwt-secret-key-0123456789",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		EncryptionMasterKey:          "unit-test-master-key-0123456789abcd",
		Argon2TimeCost:               testArgon2.Time,
		Argon2MemoryCost:             testArgon2.Memory,
		Argon2Parallelism:            testArgon2.Parallelism,
	}
}

func newUserService(t *testing.T, db *sql.DB, rm repomanager.RepositoryManager) *UserService {
	t.Helper()
	return NewUserService(db, rm, testConfig())
}

func hashPassword(t *testing.T, password string, params cryptox.Argon2Params) string {
	t.Helper()
	h, err := cryptox.NewHasher(params).Hash(password)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	return h
}

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	byEmailOut *models.User
	byEmailErr error

	byIDOut *models.User
	byIDErr error

	updatedHash    string
	updateHashErr  error
	lastLoginAt    *time.Time
	updateLoginErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.byEmailErr != nil {
		return nil, f.byEmailErr
	}
	return f.byEmailOut, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	return f.byIDOut, nil
}

func (f *fakeUsersRepo) UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error {
	if f.updateHashErr != nil {
		return f.updateHashErr
	}
	f.updatedHash = passwordHash
	return nil
}

func (f *fakeUsersRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if f.updateLoginErr != nil {
		return f.updateLoginErr
	}
	f.lastLoginAt = &at
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	s *fakeSecretsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.u }
func (m *fakeRepoManager) Secrets(db dbx.DBTX) secretsrepo.Repository   { return m.s }

// --- Register ---

func TestRegister_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}}
	s := newUserService(t, db, rm)

	u, err := s.Register(context.Background(), "  Alice@Example.COM ", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", u.Email)
	}
	if u.ID == "" {
		t.Errorf("expected generated id")
	}
	if !u.IsActive || u.IsVerified {
		t.Errorf("expected active unverified user, got %+v", u)
	}
	if u.PasswordHash == "correct horse battery staple" || u.PasswordHash == "" {
		t.Fatalf("password not hashed")
	}
	if !cryptox.NewHasher(testArgon2).Verify("correct horse battery staple", u.PasswordHash) {
		t.Errorf("stored hash does not verify")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{createErr: common.ErrorAlreadyExists}}
	s := newUserService(t, db, rm)

	_, err := s.Register(context.Background(), "dup@example.com", "p4ssw0rd-p4ssw0rd")
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("expected ErrorAlreadyExists, got %v", err)
	}
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeUsersRepo{byEmailOut: &models.User{
		ID: "u1", Email: "alice@example.com", IsActive: true,
		PasswordHash: hashPassword(t, "pw-pw-pw", testArgon2),
	}}
	s := newUserService(t, db, &fakeRepoManager{u: repo})

	pair, err := s.Login(context.Background(), "alice@example.com", "pw-pw-pw")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("incomplete token pair: %+v", pair)
	}
	if repo.lastLoginAt == nil {
		t.Errorf("last login not recorded")
	}
	if repo.updatedHash != "" {
		t.Errorf("unexpected rehash on matching parameters")
	}

	claims, err := s.Tokens().VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess error: %v", err)
	}
	if claims.Subject != "u1" {
		t.Errorf("expected subject u1, got %q", claims.Subject)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{byEmailOut: &models.User{
		ID: "u1", IsActive: true,
		PasswordHash: hashPassword(t, "right", testArgon2),
	}}
	s := newUserService(t, db, &fakeRepoManager{u: repo})

	_, err := s.Login(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{byEmailErr: common.ErrorNotFound}
	s := newUserService(t, db, &fakeRepoManager{u: repo})

	_, err := s.Login(context.Background(), "ghost@example.com", "whatever1")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{byEmailOut: &models.User{
		ID: "u1", IsActive: false,
		PasswordHash: hashPassword(t, "pw-pw-pw", testArgon2),
	}}
	s := newUserService(t, db, &fakeRepoManager{u: repo})

	_, err := s.Login(context.Background(), "alice@example.com", "pw-pw-pw")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UpgradesStaleHash(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	stale := cryptox.Argon2Params{Time: 2, Memory: 8192, Parallelism: 1}
	repo := &fakeUsersRepo{byEmailOut: &models.User{
		ID: "u1", IsActive: true,
		PasswordHash: hashPassword(t, "pw-pw-pw", stale),
	}}
	s := newUserService(t, db, &fakeRepoManager{u: repo})

	if _, err := s.Login(context.Background(), "alice@example.com", "pw-pw-pw"); err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if repo.updatedHash == "" {
		t.Fatalf("expected credential upgrade")
	}
	if !cryptox.NewHasher(testArgon2).Verify("pw-pw-pw", repo.updatedHash) {
		t.Errorf("upgraded hash does not verify")
	}
}

// --- Refresh ---

func TestRefresh_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{byIDOut: &models.User{ID: "u1", IsActive: true}}
	s := newUserService(t, db, &fakeRepoManager{u: repo})

	refresh, err := s.Tokens().IssueRefresh("u1")
	if err != nil {
		t.Fatalf("IssueRefresh error: %v", err)
	}

	pair, err := s.Refresh(context.Background(), refresh)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("incomplete token pair: %+v", pair)
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := newUserService(t, db, &fakeRepoManager{u: &fakeUsersRepo{}})

	access, err := s.Tokens().IssueAccess("u1")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}
	if _, err := s.Refresh(context.Background(), access); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRefresh_UnknownUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{byIDErr: common.ErrorNotFound}
	s := newUserService(t, db, &fakeRepoManager{u: repo})

	refresh, _ := s.Tokens().IssueRefresh("gone")
	if _, err := s.Refresh(context.Background(), refresh); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRefresh_DeactivatedAccount(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{byIDOut: &models.User{ID: "u1", IsActive: false}}
	s := newUserService(t, db, &fakeRepoManager{u: repo})

	refresh, _ := s.Tokens().IssueRefresh("u1")
	// Indistinguishable from a bad token: refresh must not reveal that
	// the account exists but is deactivated.
	if _, err := s.Refresh(context.Background(), refresh); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

// --- ChangePassword ---

func TestChangePassword_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{byIDOut: &models.User{
		ID: "u1", IsActive: true,
		PasswordHash: hashPassword(t, "old-old-old", testArgon2),
	}}
	s := newUserService(t, db, &fakeRepoManager{u: repo})

	if err := s.ChangePassword(context.Background(), "u1", "old-old-old", "new-new-new"); err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}
	if repo.updatedHash == "" {
		t.Fatalf("credential not replaced")
	}
	if !cryptox.NewHasher(testArgon2).Verify("new-new-new", repo.updatedHash) {
		t.Errorf("new hash does not verify")
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{byIDOut: &models.User{
		ID: "u1", PasswordHash: hashPassword(t, "old-old-old", testArgon2),
	}}
	s := newUserService(t, db, &fakeRepoManager{u: repo})

	err := s.ChangePassword(context.Background(), "u1", "bad-guess", "new-new-new")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePassword_SamePassword(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{byIDOut: &models.User{
		ID: "u1", PasswordHash: hashPassword(t, "old-old-old", testArgon2),
	}}
	s := newUserService(t, db, &fakeRepoManager{u: repo})

	err := s.ChangePassword(context.Background(), "u1", "old-old-old", "old-old-old")
	if !errors.Is(err, common.ErrSamePassword) {
		t.Fatalf("expected ErrSamePassword, got %v", err)
	}
	if repo.updatedHash != "" {
		t.Errorf("credential must not change")
	}
}
