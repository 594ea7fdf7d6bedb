package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
)

const uniqueViolation = "23505"

const accountColumns = `id, name, email, password_hash, role, status, profile_picture,
	last_login_at, current_login_at, created_at, updated_at`

// SearchField is a public field name admins may search accounts by.
type SearchField string

const (
	SearchByName   SearchField = "name"
	SearchByEmail  SearchField = "email"
	SearchByRole   SearchField = "role"
	SearchByStatus SearchField = "status"
)

// searchColumns is the only mapping from client-supplied field names to SQL
// columns. Credential and upload fields are deliberately absent.
var searchColumns = map[SearchField]string{
	SearchByName:   "name",
	SearchByEmail:  "email",
	SearchByRole:   "role",
	SearchByStatus: "status",
}

func ParseSearchField(name string) (SearchField, bool) {
	field := SearchField(strings.ToLower(strings.TrimSpace(name)))
	_, ok := searchColumns[field]
	return field, ok
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		account        Account
		role, status   string
		profilePicture sql.NullString
		lastLogin      sql.NullTime
		currentLogin   sql.NullTime
	)
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&role,
		&status,
		&profilePicture,
		&lastLogin,
		&currentLogin,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}

	account.Role = Role(role)
	account.Status = Status(status)
	account.ProfilePicture = profilePicture.String
	if lastLogin.Valid {
		value := lastLogin.Time.UTC()
		account.LastLoginAt = &value
	}
	if currentLogin.Valid {
		value := currentLogin.Time.UTC()
		account.CurrentLoginAt = &value
	}

	return account, nil
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("query account: %w", err)
	}
	return account, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Account, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Account, error) {
	return r.getOne(ctx, `email = $1`, email)
}

func (r *Repository) Create(ctx context.Context, account Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, email, password_hash, role, status, profile_picture, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, account.ID, account.Name, account.Email, account.PasswordHash, string(account.Role), string(account.Status),
		nullString(account.ProfilePicture), account.CreatedAt.UTC(), account.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// UpdateLogin persists the login window and the status derived from it.
func (r *Repository) UpdateLogin(ctx context.Context, account Account) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET last_login_at = $2, current_login_at = $3, status = $4, updated_at = $5
		WHERE id = $1
	`, account.ID, nullTime(account.LastLoginAt), nullTime(account.CurrentLoginAt), string(account.Status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update account login: %w", err)
	}
	return expectOneRow(res)
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	return expectOneRow(res)
}

func (r *Repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update account password: %w", err)
	}
	return expectOneRow(res)
}

func (r *Repository) UpdateProfile(ctx context.Context, id, name, email string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET name = $2, email = $3, updated_at = $4
		WHERE id = $1
	`, id, name, email, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("update account profile: %w", err)
	}
	return expectOneRow(res)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return expectOneRow(res)
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return total, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Account, error) {
	return r.query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY created_at ASC, id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]Account, error) {
	return r.query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
	`, string(status))
}

// ListWithLoginActivity returns active accounts that have both login timestamps.
func (r *Repository) ListWithLoginActivity(ctx context.Context) ([]Account, error) {
	return r.query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE status = 'active'
		  AND last_login_at IS NOT NULL
		  AND current_login_at IS NOT NULL
		ORDER BY id ASC
	`)
}

// Search performs a case-insensitive substring match on an allow-listed field.
func (r *Repository) Search(ctx context.Context, field SearchField, value string) ([]Account, error) {
	column, ok := searchColumns[field]
	if !ok {
		return nil, fmt.Errorf("search field %q is not allowed", field)
	}

	return r.query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE `+column+` ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at ASC, id ASC
	`, escapeLike(value))
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC()
}
