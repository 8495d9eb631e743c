package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/taskman/internal/model"
)

// pqUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pqUniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const pgUserColumns = `id, name, email, password_hash, refresh_token, refresh_token_expires_at, created_at, updated_at`

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanPostgresUser(r.db.QueryRowContext(ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanPostgresUser(r.db.QueryRowContext(ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, refresh_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, '', $5, $6)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// SetRefreshToken は保存済みのリフレッシュトークンを上書きする。
func (r *PostgresUserRepo) SetRefreshToken(ctx context.Context, id, token string, expiresAt *time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $1, refresh_token_expires_at = $2, updated_at = now()
		 WHERE id = $3`,
		token, nullTime(expiresAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set refresh token: %w", err)
	}
	return requireAffected(result)
}

// SwapRefreshToken は保存値がoldと一致する場合のみnewに置き換える。
func (r *PostgresUserRepo) SwapRefreshToken(ctx context.Context, id, old, new string, expiresAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $1, refresh_token_expires_at = $2, updated_at = now()
		 WHERE id = $3 AND refresh_token = $4 AND refresh_token <> ''`,
		new, expiresAt, id, old,
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
func (r *PostgresUserRepo) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = '', refresh_token_expires_at = NULL, updated_at = now()
		 WHERE refresh_token <> '' AND refresh_token_expires_at <= $1`,
		now,
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

func scanPostgresUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var expiresAt sql.NullTime
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.RefreshToken, &expiresAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		user.RefreshTokenExpiresAt = &t
	}
	return user, nil
}

// nullTime はnilをsql.NullTimeに変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// requireAffected は1行も更新されなかった場合にErrNotFoundを返す。
func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
