// Package model はドメインモデルを定義する。
package model

import "time"

// Task はユーザーが所有するタスクを表す。
// OwnerIDは作成後に変更されない。
type Task struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ScoredTask は全文検索の関連度スコア付きタスク。
// スコアは大きいほど関連度が高い。
type ScoredTask struct {
	Task
	Score float64 `json:"score"`
}

// Priority はタスクの優先度を表す。
type Priority string

const (
	// PriorityLow は低優先度。デフォルト値。
	PriorityLow Priority = "low"
	// PriorityMedium は中優先度。
	PriorityMedium Priority = "medium"
	// PriorityHigh は高優先度。
	PriorityHigh Priority = "high"
)

// Valid は定義済みの優先度かどうかを返す。
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// TaskStatus はタスクの進捗状態を表す。
type TaskStatus string

const (
	// StatusToDo は未着手。デフォルト値。
	StatusToDo TaskStatus = "To Do"
	// StatusInProgress は作業中。
	StatusInProgress TaskStatus = "In Progress"
	// StatusDone は完了。
	StatusDone TaskStatus = "Done"
)

// Valid は定義済みのステータスかどうかを返す。
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// TaskFilter はタスク一覧・検索の絞り込み条件。
// nilのフィールドは条件に含めない。
type TaskFilter struct {
	Priority *Priority
	Status   *TaskStatus
}

// TaskPatch はタスクの部分更新内容を表す。
// nilのフィールドは既存値を維持する。
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *Priority
	Status      *TaskStatus
	DueDate     *time.Time
}

// IsEmpty は更新対象のフィールドが1つもないかを返す。
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Status == nil && p.DueDate == nil
}

// ApplyTo はpatchで指定されたフィールドのみをtaskに上書きする。
func (p TaskPatch) ApplyTo(task *Task) {
	if p.Title != nil {
		task.Title = *p.Title
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.Status != nil {
		task.Status = *p.Status
	}
	if p.DueDate != nil {
		d := *p.DueDate
		task.DueDate = &d
	}
}
