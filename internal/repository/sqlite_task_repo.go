package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/taskman/internal/model"
)

// SQLiteTaskRepo はSQLiteを使用したタスクリポジトリ。
// 全文検索はFTS5のtasks_ftsとbm25で行う。
type SQLiteTaskRepo struct {
	db *sqlx.DB
}

// NewSQLiteTaskRepo はSQLiteTaskRepoを生成する。
func NewSQLiteTaskRepo(db *sql.DB) *SQLiteTaskRepo {
	return &SQLiteTaskRepo{db: sqlx.NewDb(db, "sqlite3")}
}

const sqliteTaskColumns = `id, owner_id, title, description, priority, status, due_date, created_at, updated_at`

// bm25の列重み（title, description）。タイトルの一致を優先する。
const sqliteRankExpr = `-bm25(tasks_fts, 2.0, 1.0)`

type sqliteTaskRow struct {
	ID          string         `db:"id"`
	OwnerID     string         `db:"owner_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Priority    string         `db:"priority"`
	Status      string         `db:"status"`
	DueDate     sql.NullString `db:"due_date"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
	Score       float64        `db:"score"`
}

func (row sqliteTaskRow) toModel() (*model.Task, error) {
	task := &model.Task{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		Title:       row.Title,
		Description: row.Description,
		Priority:    model.Priority(row.Priority),
		Status:      model.TaskStatus(row.Status),
	}

	var err error
	if task.CreatedAt, err = parseSQLiteTime(row.CreatedAt); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseSQLiteTime(row.UpdatedAt); err != nil {
		return nil, err
	}
	if row.DueDate.Valid {
		d, err := time.Parse(sqliteDateLayout, row.DueDate.String)
		if err != nil {
			return nil, fmt.Errorf("invalid stored due date %q: %w", row.DueDate.String, err)
		}
		task.DueDate = &d
	}
	return task, nil
}

func sqliteDueDate(d *time.Time) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.UTC().Format(sqliteDateLayout), Valid: true}
}

// Create はタスクを作成する。
func (r *SQLiteTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, owner_id, title, description, priority, status, due_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.OwnerID, task.Title, task.Description,
		string(task.Priority), string(task.Status), sqliteDueDate(task.DueDate),
		formatSQLiteTime(task.CreatedAt), formatSQLiteTime(task.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (r *SQLiteTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var row sqliteTaskRow
	err := r.db.GetContext(ctx, &row, `SELECT `+sqliteTaskColumns+` FROM tasks WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task by ID: %w", err)
	}
	return row.toModel()
}

// List は条件に一致するタスクを作成日時の昇順で返す。
func (r *SQLiteTaskRepo) List(ctx context.Context, q TaskQuery) ([]*model.Task, error) {
	where, args := taskPredicates(q, "")

	var rows []sqliteTaskRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+sqliteTaskColumns+` FROM tasks WHERE `+where+` ORDER BY created_at ASC, seq ASC`,
		args...,
	); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*model.Task, 0, len(rows))
	for _, row := range rows {
		task, err := row.toModel()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Search は条件に一致するタスクを関連度の降順で返す。
// 検索語はいずれか1語でも一致すればヒットとする。
func (r *SQLiteTaskRepo) Search(ctx context.Context, q TaskQuery) ([]*model.ScoredTask, error) {
	where, args := taskPredicates(q, "t")

	var query string
	match := ftsAnyTermQuery(q.Text)
	if match == "" {
		query = `SELECT ` + prefixed("t", sqliteTaskColumns) + `, 0.0 AS score
			FROM tasks t WHERE ` + where + `
			ORDER BY t.created_at DESC, t.seq DESC`
	} else {
		query = `SELECT ` + prefixed("t", sqliteTaskColumns) + `, ` + sqliteRankExpr + ` AS score
			FROM tasks_fts
			JOIN tasks t ON t.seq = tasks_fts.rowid
			WHERE tasks_fts MATCH ? AND ` + where + `
			ORDER BY score DESC, t.created_at DESC, t.seq DESC`
		args = append([]any{match}, args...)
	}

	var rows []sqliteTaskRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search tasks: %w", err)
	}

	results := make([]*model.ScoredTask, 0, len(rows))
	for _, row := range rows {
		task, err := row.toModel()
		if err != nil {
			return nil, err
		}
		results = append(results, &model.ScoredTask{Task: *task, Score: row.Score})
	}
	return results, nil
}

// Update はタスクの可変フィールドを上書きする。
func (r *SQLiteTaskRepo) Update(ctx context.Context, task *model.Task) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET title = ?, description = ?, priority = ?, status = ?, due_date = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		task.Title, task.Description, string(task.Priority), string(task.Status),
		sqliteDueDate(task.DueDate), formatSQLiteTime(task.UpdatedAt), task.ID, task.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireAffected(result)
}

// Delete は所有者が一致するタスクを物理削除する。
func (r *SQLiteTaskRepo) Delete(ctx context.Context, id, ownerID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireAffected(result)
}

// ftsAnyTermQuery は検索語をFTS5のOR検索式に変換する。
// 各語はダブルクォートで囲み、FTS5の構文として解釈されないようにする。
func ftsAnyTermQuery(text string) string {
	words := strings.Fields(text)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, "")
		if w == "" {
			continue
		}
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

// compile-time interface check
var _ TaskRepository = (*SQLiteTaskRepo)(nil)
