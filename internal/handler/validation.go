package handler

import (
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/task"
)

// 入力値の制約
const (
	minPasswordLength    = 6
	maxPasswordLength    = 20
	maxTitleLength       = 200
	maxDescriptionLength = 1000
	dueDateLayout        = "2006-01-02"
)

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// createTaskRequest はタスク作成リクエストのボディ。
// ownerフィールドは受け付けない（送られても無視される）。
type createTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	DueDate     *string `json:"dueDate"`
}

// updateTaskRequest はタスク更新リクエストのボディ。
// nullと未指定はどちらも「変更しない」を表す。
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	DueDate     *string `json:"dueDate"`
}

// fieldErrors はバリデーションエラーを蓄積する。
type fieldErrors []model.FieldError

func (fe *fieldErrors) add(field, message string) {
	*fe = append(*fe, model.FieldError{Field: field, Message: message})
}

func validateRegister(req registerRequest) (auth.RegisterInput, []model.FieldError) {
	var errs fieldErrors
	name := strings.TrimSpace(req.Name)
	if name == "" {
		errs.add("name", "Name is required")
	}
	email := validateEmail(&errs, req.Email)
	validatePassword(&errs, req.Password)
	return auth.RegisterInput{Name: name, Email: email, Password: req.Password}, errs
}

func validateLogin(req loginRequest) (string, []model.FieldError) {
	var errs fieldErrors
	email := validateEmail(&errs, req.Email)
	validatePassword(&errs, req.Password)
	return email, errs
}

// validateEmail はアドレス部のみの形式（表示名なし）を要求する。
func validateEmail(errs *fieldErrors, raw string) string {
	email := strings.TrimSpace(raw)
	if email == "" {
		errs.add("email", "Email is required")
		return email
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		errs.add("email", "Invalid email address")
	}
	return email
}

func validatePassword(errs *fieldErrors, password string) {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength || n > maxPasswordLength {
		errs.add("password", "Password must be between 6 and 20 characters")
	}
}

func validateCreateTask(req createTaskRequest) (task.CreateInput, []model.FieldError) {
	var errs fieldErrors
	in := task.CreateInput{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
	}

	validateTitle(&errs, in.Title)
	validateDescription(&errs, in.Description)
	in.Priority = parsePriority(&errs, req.Priority)
	in.Status = parseStatus(&errs, req.Status)
	in.DueDate = parseDueDate(&errs, req.DueDate)

	return in, errs
}

func validateUpdateTask(req updateTaskRequest) (model.TaskPatch, []model.FieldError) {
	var errs fieldErrors
	var patch model.TaskPatch

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		validateTitle(&errs, title)
		patch.Title = &title
	}
	if req.Description != nil {
		validateDescription(&errs, *req.Description)
		patch.Description = req.Description
	}
	patch.Priority = parsePriority(&errs, req.Priority)
	patch.Status = parseStatus(&errs, req.Status)
	patch.DueDate = parseDueDate(&errs, req.DueDate)

	if len(errs) == 0 && patch.IsEmpty() {
		errs.add("body", "At least one field must be provided")
	}
	return patch, errs
}

func validateTitle(errs *fieldErrors, title string) {
	switch n := utf8.RuneCountInString(title); {
	case n == 0:
		errs.add("title", "Title is required")
	case n > maxTitleLength:
		errs.add("title", "Title must be at most 200 characters")
	}
}

func validateDescription(errs *fieldErrors, desc string) {
	if utf8.RuneCountInString(desc) > maxDescriptionLength {
		errs.add("description", "Description must be at most 1000 characters")
	}
}

func parsePriority(errs *fieldErrors, raw *string) *model.Priority {
	if raw == nil {
		return nil
	}
	p := model.Priority(*raw)
	if !p.Valid() {
		errs.add("priority", "Priority must be one of: low, medium, high")
		return nil
	}
	return &p
}

func parseStatus(errs *fieldErrors, raw *string) *model.TaskStatus {
	if raw == nil {
		return nil
	}
	s := model.TaskStatus(*raw)
	if !s.Valid() {
		errs.add("status", "Status must be one of: To Do, In Progress, Done")
		return nil
	}
	return &s
}

func parseDueDate(errs *fieldErrors, raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	d, err := time.Parse(dueDateLayout, *raw)
	if err != nil {
		errs.add("dueDate", "Due date must be in YYYY-MM-DD format")
		return nil
	}
	return &d
}

// parseTaskFilter はクエリパラメータのpriority/statusを絞り込み条件に変換する。
// 空文字列は未指定として扱う。
func parseTaskFilter(q url.Values) (model.TaskFilter, []model.FieldError) {
	var errs fieldErrors
	var filter model.TaskFilter
	if v := q.Get("priority"); v != "" {
		filter.Priority = parsePriority(&errs, &v)
	}
	if v := q.Get("status"); v != "" {
		filter.Status = parseStatus(&errs, &v)
	}
	return filter, errs
}
