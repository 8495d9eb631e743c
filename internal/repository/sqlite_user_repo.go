package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// sqliteTimeLayout はSQLiteに保存する時刻の書式。
// UTC・ナノ秒固定長のため文字列の大小比較が時系列順と一致する。
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteDateLayout は期日の書式。
const sqliteDateLayout = "2006-01-02"

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

// isSQLiteUniqueViolation はSQLiteの一意制約違反かどうかを判定する。
func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// SQLiteUserRepo はSQLiteを使用したユーザーリポジトリ。
type SQLiteUserRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteUserRepo はSQLiteUserRepoを生成する。
func NewSQLiteUserRepo(db *sql.DB) *SQLiteUserRepo {
	return &SQLiteUserRepo{db: db, now: time.Now}
}

const sqliteUserColumns = `id, name, email, password_hash, refresh_token, refresh_token_expires_at, created_at, updated_at`

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *SQLiteUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanSQLiteUser(r.db.QueryRowContext(ctx,
		`SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *SQLiteUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanSQLiteUser(r.db.QueryRowContext(ctx,
		`SELECT `+sqliteUserColumns+` FROM users WHERE email = ?`, email,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *SQLiteUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, refresh_token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '', ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash,
		formatSQLiteTime(user.CreatedAt), formatSQLiteTime(user.UpdatedAt),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// SetRefreshToken は保存済みのリフレッシュトークンを上書きする。
func (r *SQLiteUserRepo) SetRefreshToken(ctx context.Context, id, token string, expiresAt *time.Time) error {
	var expires sql.NullString
	if expiresAt != nil {
		expires = sql.NullString{String: formatSQLiteTime(*expiresAt), Valid: true}
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = ?, refresh_token_expires_at = ?, updated_at = ? WHERE id = ?`,
		token, expires, formatSQLiteTime(r.now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set refresh token: %w", err)
	}
	return requireAffected(result)
}

// SwapRefreshToken は保存値がoldと一致する場合のみnewに置き換える。
func (r *SQLiteUserRepo) SwapRefreshToken(ctx context.Context, id, old, new string, expiresAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = ?, refresh_token_expires_at = ?, updated_at = ?
		 WHERE id = ? AND refresh_token = ? AND refresh_token <> ''`,
		new, formatSQLiteTime(expiresAt), formatSQLiteTime(r.now()), id, old,
	)
	if err != nil {
		return false, fmt.Errorf("failed to swap refresh token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ClearExpiredRefreshTokens は期限切れのリフレッシュトークンを消去する。
func (r *SQLiteUserRepo) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = '', refresh_token_expires_at = NULL, updated_at = ?
		 WHERE refresh_token <> '' AND refresh_token_expires_at <= ?`,
		formatSQLiteTime(r.now()), formatSQLiteTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired refresh tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func scanSQLiteUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var expiresAt sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.RefreshToken, &expiresAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if user.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t, err := parseSQLiteTime(expiresAt.String)
		if err != nil {
			return nil, err
		}
		user.RefreshTokenExpiresAt = &t
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*SQLiteUserRepo)(nil)
