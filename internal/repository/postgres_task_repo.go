package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/taskman/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// 全文検索は生成列search_vector（english設定）とGINインデックスを使う。
type PostgresTaskRepo struct {
	db *sqlx.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: sqlx.NewDb(db, "postgres")}
}

const pgTaskColumns = `id, owner_id, title, description, priority, status, due_date, created_at, updated_at`

// pgTaskRow はtasksテーブルの1行。Scoreは検索時のみ埋まる。
type pgTaskRow struct {
	ID          string       `db:"id"`
	OwnerID     string       `db:"owner_id"`
	Title       string       `db:"title"`
	Description string       `db:"description"`
	Priority    string       `db:"priority"`
	Status      string       `db:"status"`
	DueDate     sql.NullTime `db:"due_date"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
	Score       float64      `db:"score"`
}

func (row pgTaskRow) toModel() *model.Task {
	task := &model.Task{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		Title:       row.Title,
		Description: row.Description,
		Priority:    model.Priority(row.Priority),
		Status:      model.TaskStatus(row.Status),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.DueDate.Valid {
		d := row.DueDate.Time
		task.DueDate = &d
	}
	return task
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, owner_id, title, description, priority, status, due_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.OwnerID, task.Title, task.Description,
		string(task.Priority), string(task.Status), nullTime(task.DueDate),
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var row pgTaskRow
	err := r.db.GetContext(ctx, &row, `SELECT `+pgTaskColumns+` FROM tasks WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task by ID: %w", err)
	}
	return row.toModel(), nil
}

// List は条件に一致するタスクを作成日時の昇順で返す。
func (r *PostgresTaskRepo) List(ctx context.Context, q TaskQuery) ([]*model.Task, error) {
	where, args := taskPredicates(q, "")
	query := r.db.Rebind(`SELECT ` + pgTaskColumns + ` FROM tasks WHERE ` + where +
		` ORDER BY created_at ASC, id ASC`)

	var rows []pgTaskRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*model.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toModel())
	}
	return tasks, nil
}

// Search は条件に一致するタスクを関連度の降順で返す。
// 検索語はいずれか1語でも一致すればヒットとする（plainto_tsqueryのANDをORに置換）。
func (r *PostgresTaskRepo) Search(ctx context.Context, q TaskQuery) ([]*model.ScoredTask, error) {
	query, args := r.buildSearchQuery(q)

	var rows []pgTaskRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search tasks: %w", err)
	}

	results := make([]*model.ScoredTask, 0, len(rows))
	for _, row := range rows {
		results = append(results, &model.ScoredTask{Task: *row.toModel(), Score: row.Score})
	}
	return results, nil
}

func (r *PostgresTaskRepo) buildSearchQuery(q TaskQuery) (string, []any) {
	if q.Text == "" {
		where, args := taskPredicates(q, "t")
		return r.db.Rebind(`SELECT ` + prefixed("t", pgTaskColumns) + `, 0::float8 AS score
			FROM tasks t WHERE ` + where + `
			ORDER BY t.created_at DESC, t.id DESC`), args
	}

	where, args := taskPredicates(q, "t")
	args = append([]any{q.Text}, args...)
	return r.db.Rebind(`SELECT ` + prefixed("t", pgTaskColumns) + `, ts_rank(t.search_vector, tsq.query)::float8 AS score
		FROM tasks t,
		     (SELECT replace(plainto_tsquery('english', ?)::text, ' & ', ' | ')::tsquery AS query) tsq
		WHERE t.search_vector @@ tsq.query AND ` + where + `
		ORDER BY score DESC, t.created_at DESC, t.id DESC`), args
}

// Update はタスクの可変フィールドを上書きする。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET title = $1, description = $2, priority = $3, status = $4, due_date = $5, updated_at = $6
		 WHERE id = $7 AND owner_id = $8`,
		task.Title, task.Description, string(task.Priority), string(task.Status),
		nullTime(task.DueDate), task.UpdatedAt, task.ID, task.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireAffected(result)
}

// Delete は所有者が一致するタスクを物理削除する。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id, ownerID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireAffected(result)
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
