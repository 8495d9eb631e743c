package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/task"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	Create(ctx context.Context, ownerID string, in task.CreateInput) (*model.Task, error)
	List(ctx context.Context, ownerID string, filter model.TaskFilter) ([]*model.Task, error)
	Search(ctx context.Context, ownerID, query string, filter model.TaskFilter) ([]*model.ScoredTask, error)
	Edit(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, ownerID, taskID string) error
}

var _ TaskServiceInterface = (*task.Service)(nil)

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

type taskData struct {
	Task taskResponse `json:"task"`
}

type taskListData struct {
	Count int            `json:"count"`
	Tasks []taskResponse `json:"tasks"`
}

type taskSearchData struct {
	Count int            `json:"count"`
	Query *string        `json:"query"`
	Tasks []taskResponse `json:"tasks"`
}

// Create はタスクを作成する。所有者は常に認証済みユーザー。
// POST /api/v1/tasks/create
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, errs := validateCreateTask(req)
	if len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	created, err := h.service.Create(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Task created successfully", taskData{Task: toTaskResponse(created)})
}

// List は認証済みユーザーのタスク一覧を返す。
// GET /api/v1/tasks/get?priority=&status=
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	filter, errs := parseTaskFilter(r.URL.Query())
	if len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	tasks, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", taskListData{Count: len(tasks), Tasks: toTaskResponses(tasks)})
}

// Search は認証済みユーザーのタスクを全文検索する。
// GET /api/v1/tasks/search?q=&priority=&status=
func (h *TaskHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	params := r.URL.Query()
	filter, errs := parseTaskFilter(params)
	if len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}
	query := strings.TrimSpace(params.Get("q"))

	tasks, err := h.service.Search(r.Context(), userID, query, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	data := taskSearchData{
		Count: len(tasks),
		Tasks: toScoredTaskResponses(tasks),
	}
	// 検索語が空のときはnullを返す
	if query != "" {
		data.Query = &query
	}
	writeSuccess(w, http.StatusOK, "", data)
}

// Update は指定されたフィールドのみを更新する。
// PATCH /api/v1/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch, errs := validateUpdateTask(req)
	if len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	updated, err := h.service.Edit(r.Context(), userID, chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Task updated successfully", taskData{Task: toTaskResponse(updated)})
}

// Delete はタスクを削除する。
// DELETE /api/v1/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Task deleted successfully", nil)
}
