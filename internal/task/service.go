// Package task はタスクの作成・一覧・検索・編集・削除のドメインロジックを提供する。
// 全ての操作は呼び出し元ユーザー（所有者）のスコープで行う。
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/security"
)

// メトリクスに記録する操作名。
const (
	OpCreate = "create"
	OpList   = "list"
	OpSearch = "search"
	OpEdit   = "edit"
	OpDelete = "delete"
)

// CreateInput はタスク作成の入力。
// 所有者は含まない。常に認証済みユーザーが所有者になる。
type CreateInput struct {
	Title       string
	Description string
	Priority    *model.Priority
	Status      *model.TaskStatus
	DueDate     *time.Time
}

// Service はタスク管理のサービス層。
type Service struct {
	repo      repository.TaskRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// sanitizerがnilの場合はStrictPolicyのサニタイザを、mcがnilの場合はNopCollectorを使う。
func NewService(
	repo repository.TaskRepository,
	sanitizer security.TextSanitizer,
	mc metrics.MetricsCollector,
) *Service {
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   mc,
		now:       time.Now,
	}
}

// Create はownerIDを所有者としてタスクを作成する。
// 優先度・ステータスが未指定の場合はlow / To Doになる。
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.Task, error) {
	title := s.sanitizer.SanitizeText(in.Title)
	if title == "" {
		return nil, titleRequiredError()
	}

	now := s.now().UTC()
	task := &model.Task{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       title,
		Description: s.sanitizer.SanitizeText(in.Description),
		Priority:    model.PriorityLow,
		Status:      model.StatusToDo,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Priority != nil {
		task.Priority = *in.Priority
	}
	if in.Status != nil {
		task.Status = *in.Status
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}

	s.metrics.RecordTaskOperation(OpCreate)
	slog.Info("task created", slog.String("user_id", ownerID), slog.String("task_id", task.ID))
	return task, nil
}

// List はフィルタに一致する所有者のタスクを作成順に返す。
func (s *Service) List(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error) {
	tasks, err := s.repo.List(ctx, repository.TaskQuery{OwnerID: ownerID, Filter: filter})
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	s.metrics.RecordTaskOperation(OpList)
	return tasks, nil
}

// Search は所有者のタスクを全文検索する。
// 検索語は前後の空白を除去し、空の場合はフィルタのみ適用して作成日時の降順で返す。
func (s *Service) Search(ctx context.Context, ownerID, query string, filter model.TaskFilter) ([]*model.ScoredTask, error) {
	tasks, err := s.repo.Search(ctx, repository.TaskQuery{
		OwnerID: ownerID,
		Filter:  filter,
		Text:    strings.TrimSpace(query),
	})
	if err != nil {
		return nil, fmt.Errorf("タスクの検索に失敗しました: %w", err)
	}
	s.metrics.RecordTaskOperation(OpSearch)
	return tasks, nil
}

// Edit はpatchで指定されたフィールドのみを更新し、更新後のタスクを返す。
func (s *Service) Edit(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	if patch.IsEmpty() {
		return nil, model.NewValidationError([]model.FieldError{
			{Field: "body", Message: "At least one field must be provided"},
		})
	}

	task, err := s.findOwned(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := s.sanitizer.SanitizeText(*patch.Title)
		if title == "" {
			return nil, titleRequiredError()
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		desc := s.sanitizer.SanitizeText(*patch.Description)
		patch.Description = &desc
	}

	patch.ApplyTo(task)
	task.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, task); err != nil {
		// 読み込み後に削除された場合
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewTaskNotFoundError(taskID)
		}
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}

	s.metrics.RecordTaskOperation(OpEdit)
	slog.Info("task updated", slog.String("user_id", ownerID), slog.String("task_id", taskID))
	return task, nil
}

// Delete はタスクを物理削除する。
func (s *Service) Delete(ctx context.Context, ownerID, taskID string) error {
	if _, err := s.findOwned(ctx, ownerID, taskID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, taskID, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewTaskNotFoundError(taskID)
		}
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}

	s.metrics.RecordTaskOperation(OpDelete)
	slog.Info("task deleted", slog.String("user_id", ownerID), slog.String("task_id", taskID))
	return nil
}

// findOwned はタスクを取得し、所有者を確認する。
// 存在確認が所有者確認より先に行われるため、他人の存在しないIDはNotFoundになる。
func (s *Service) findOwned(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	// 不正な形式のIDは存在しないものとして扱う
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	task, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	if task.OwnerID != ownerID {
		slog.Warn("task access denied",
			slog.String("user_id", ownerID),
			slog.String("task_id", taskID),
		)
		return nil, model.NewTaskForbiddenError()
	}
	return task, nil
}

func titleRequiredError() *model.APIError {
	return model.NewValidationError([]model.FieldError{
		{Field: "title", Message: "Title is required"},
	})
}
