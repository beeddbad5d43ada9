package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// AccountStore is the SQLite credential store. Email uniqueness comes from the
// uniq_accounts_email index; a violation surfaces as domain.ErrEmailExists.
type AccountStore struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

func NewAccountStore(writeDB, readDB *sql.DB) *AccountStore {
	return &AccountStore{writeDB: writeDB, readDB: readDB}
}

func (s *AccountStore) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	created := *account
	created.ID = uuid.NewString()
	created.CreatedAt = account.CreatedAt.UTC().Truncate(time.Second)

	_, err := s.writeDB.ExecContext(ctx,
		`INSERT INTO accounts (id, name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		created.ID, created.Name, created.Email, created.PasswordHash, string(created.Role), created.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrEmailExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return &created, nil
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var (
		a         domain.Account
		role      string
		createdAt int64
	)
	err := s.readDB.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, role, created_at FROM accounts WHERE email = ?`, email,
	).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &role, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	r, ok := domain.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("account %s: unknown role %q", a.ID, role)
	}
	a.Role = r
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &a, nil
}

func (s *AccountStore) Ping(ctx context.Context) error {
	if err := s.writeDB.PingContext(ctx); err != nil {
		return err
	}
	return s.readDB.PingContext(ctx)
}

// Close releases both pools.
func (s *AccountStore) Close() error {
	return errors.Join(s.readDB.Close(), s.writeDB.Close())
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
