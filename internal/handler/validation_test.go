package handler

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

func ptr[T any](v T) *T { return &v }

func fieldsOf(errs []model.FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestValidateRegister(t *testing.T) {
	tests := []struct {
		name       string
		req        registerRequest
		wantFields []string
	}{
		{"正常", registerRequest{Name: "Alice", Email: "alice@example.com", Password: "secret1"}, nil},
		{"名前が空白のみ", registerRequest{Name: "   ", Email: "alice@example.com", Password: "secret1"}, []string{"name"}},
		{"メール形式不正", registerRequest{Name: "Alice", Email: "not-an-email", Password: "secret1"}, []string{"email"}},
		{"表示名付きアドレスは不可", registerRequest{Name: "Alice", Email: "Alice <alice@example.com>", Password: "secret1"}, []string{"email"}},
		{"パスワードが短い", registerRequest{Name: "Alice", Email: "alice@example.com", Password: "12345"}, []string{"password"}},
		{"パスワードが長い", registerRequest{Name: "Alice", Email: "alice@example.com", Password: strings.Repeat("a", 21)}, []string{"password"}},
		{"全て不正", registerRequest{}, []string{"name", "email", "password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := validateRegister(tt.req)
			got := fieldsOf(errs)
			if strings.Join(got, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("fields = %v, want %v", got, tt.wantFields)
			}
		})
	}
}

func TestValidateRegister_TrimsNameAndEmail(t *testing.T) {
	in, errs := validateRegister(registerRequest{Name: " Alice ", Email: " alice@example.com ", Password: "secret1"})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if in.Name != "Alice" || in.Email != "alice@example.com" {
		t.Errorf("got name=%q email=%q", in.Name, in.Email)
	}
}

func TestValidateLogin(t *testing.T) {
	email, errs := validateLogin(loginRequest{Email: "bob@example.com", Password: "abcdef"})
	if len(errs) != 0 || email != "bob@example.com" {
		t.Errorf("email=%q errs=%v", email, errs)
	}

	_, errs = validateLogin(loginRequest{Email: "bob", Password: "x"})
	if got := fieldsOf(errs); strings.Join(got, ",") != "email,password" {
		t.Errorf("fields = %v", got)
	}
}

func TestValidateCreateTask(t *testing.T) {
	tests := []struct {
		name       string
		req        createTaskRequest
		wantFields []string
	}{
		{"タイトルのみ", createTaskRequest{Title: "Buy milk"}, nil},
		{"全項目", createTaskRequest{Title: "Buy milk", Description: "2L", Priority: ptr("high"), Status: ptr("In Progress"), DueDate: ptr("2026-03-10")}, nil},
		{"タイトルなし", createTaskRequest{Title: "  "}, []string{"title"}},
		{"タイトルが長い", createTaskRequest{Title: strings.Repeat("あ", 201)}, []string{"title"}},
		{"タイトル200文字はOK", createTaskRequest{Title: strings.Repeat("あ", 200)}, nil},
		{"説明が長い", createTaskRequest{Title: "x", Description: strings.Repeat("a", 1001)}, []string{"description"}},
		{"優先度不正", createTaskRequest{Title: "x", Priority: ptr("urgent")}, []string{"priority"}},
		{"ステータス不正", createTaskRequest{Title: "x", Status: ptr("done")}, []string{"status"}},
		{"期日形式不正", createTaskRequest{Title: "x", DueDate: ptr("10/03/2026")}, []string{"dueDate"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := validateCreateTask(tt.req)
			got := fieldsOf(errs)
			if strings.Join(got, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("fields = %v, want %v", got, tt.wantFields)
			}
		})
	}
}

func TestValidateCreateTask_ParsesValues(t *testing.T) {
	in, errs := validateCreateTask(createTaskRequest{
		Title: " Buy milk ", Priority: ptr("medium"), Status: ptr("Done"), DueDate: ptr("2026-03-10"),
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if in.Title != "Buy milk" {
		t.Errorf("Title = %q", in.Title)
	}
	if in.Priority == nil || *in.Priority != model.PriorityMedium {
		t.Errorf("Priority = %v", in.Priority)
	}
	if in.Status == nil || *in.Status != model.StatusDone {
		t.Errorf("Status = %v", in.Status)
	}
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if in.DueDate == nil || !in.DueDate.Equal(want) {
		t.Errorf("DueDate = %v, want %v", in.DueDate, want)
	}
}

func TestValidateUpdateTask(t *testing.T) {
	tests := []struct {
		name       string
		req        updateTaskRequest
		wantFields []string
	}{
		{"ステータスのみ", updateTaskRequest{Status: ptr("Done")}, nil},
		{"空のボディ", updateTaskRequest{}, []string{"body"}},
		{"空タイトル", updateTaskRequest{Title: ptr("")}, []string{"title"}},
		{"優先度不正", updateTaskRequest{Priority: ptr("x")}, []string{"priority"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := validateUpdateTask(tt.req)
			got := fieldsOf(errs)
			if strings.Join(got, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("fields = %v, want %v", got, tt.wantFields)
			}
		})
	}
}

func TestValidateUpdateTask_OnlyPresentFields(t *testing.T) {
	patch, errs := validateUpdateTask(updateTaskRequest{Status: ptr("Done")})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if patch.Title != nil || patch.Description != nil || patch.Priority != nil || patch.DueDate != nil {
		t.Errorf("unexpected fields in patch: %+v", patch)
	}
	if patch.Status == nil || *patch.Status != model.StatusDone {
		t.Errorf("Status = %v", patch.Status)
	}
}

func TestParseTaskFilter(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantPriority *model.Priority
		wantStatus   *model.TaskStatus
		wantErr      bool
	}{
		{"指定なし", "", nil, nil, false},
		{"空文字列は未指定", "priority=&status=", nil, nil, false},
		{"ステータス", "status=Done", nil, ptr(model.StatusDone), false},
		{"両方", "priority=high&status=In+Progress", ptr(model.PriorityHigh), ptr(model.StatusInProgress), false},
		{"不正な優先度", "priority=urgent", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			filter, errs := parseTaskFilter(q)
			if (len(errs) > 0) != tt.wantErr {
				t.Fatalf("errs = %v, wantErr %v", errs, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (filter.Priority == nil) != (tt.wantPriority == nil) ||
				(filter.Priority != nil && *filter.Priority != *tt.wantPriority) {
				t.Errorf("Priority = %v, want %v", filter.Priority, tt.wantPriority)
			}
			if (filter.Status == nil) != (tt.wantStatus == nil) ||
				(filter.Status != nil && *filter.Status != *tt.wantStatus) {
				t.Errorf("Status = %v, want %v", filter.Status, tt.wantStatus)
			}
		})
	}
}
