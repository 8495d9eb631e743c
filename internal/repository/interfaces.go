// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

var (
	// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrNotFound は更新・削除対象の行が存在しないことを表す。
	ErrNotFound = errors.New("record not found")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが登録済みの場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// SetRefreshToken は保存済みのリフレッシュトークンを無条件に上書きする。
	// 空文字列とnilを渡すとセッションを破棄する。
	SetRefreshToken(ctx context.Context, id, token string, expiresAt *time.Time) error

	// SwapRefreshToken は保存値がoldと一致する場合のみnewに置き換える。
	// 1行の条件付きUPDATEで行い、置き換えられたかどうかを返す。
	SwapRefreshToken(ctx context.Context, id, old, new string, expiresAt time.Time) (bool, error)

	// ClearExpiredRefreshTokens は有効期限がnow以前のリフレッシュトークンを消去し、件数を返す。
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// TaskQuery はタスク一覧・検索の条件。
// OwnerIDは必須で、結果は常に所有者のタスクに限定される。
type TaskQuery struct {
	OwnerID string
	Filter  model.TaskFilter
	// Text は全文検索語。空の場合は作成日時の降順で返す（Searchのみ）。
	Text string
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// List は条件に一致するタスクを作成日時の昇順で返す。
	List(ctx context.Context, q TaskQuery) ([]*model.Task, error)

	// Search は条件に一致するタスクを関連度の降順で返す。
	// 同点の場合は作成日時の降順。
	Search(ctx context.Context, q TaskQuery) ([]*model.ScoredTask, error)

	// Update はタスクの可変フィールドとupdated_atを上書きする。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, task *model.Task) error

	// Delete は所有者が一致するタスクを物理削除する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id, ownerID string) error
}
