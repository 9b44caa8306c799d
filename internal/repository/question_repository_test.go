package repository

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marville001/eduaiapp/internal/model"
)

// setupTestDB 每个测试独立的内存数据库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(model.AllModels...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newPendingQuestion(userID string) *model.Question {
	return &model.Question{
		QuestionID:   uuid.NewString(),
		SubjectID:    "math",
		UserID:       userID,
		QuestionText: "What is the derivative of x^2?",
		Status:       model.QuestionStatusPending,
	}
}

func TestQuestionRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuestionRepository(db)

	q := newPendingQuestion("user-1")
	q.Attachments = []model.QuestionAttachment{
		{ID: uuid.NewString(), Position: 1, FileName: "b.png", ContentType: "image/png", AccessKey: "k2"},
		{ID: uuid.NewString(), Position: 0, FileName: "a.png", ContentType: "image/png", AccessKey: "k1"},
	}
	if err := repo.Create(q); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := repo.GetByQuestionID(q.QuestionID)
	if err != nil {
		t.Fatalf("GetByQuestionID() error: %v", err)
	}
	if got.Status != model.QuestionStatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if len(got.Attachments) != 2 {
		t.Fatalf("Attachments len = %d, want 2", len(got.Attachments))
	}
	// 附件按提交顺序返回
	if got.Attachments[0].FileName != "a.png" || got.Attachments[1].FileName != "b.png" {
		t.Errorf("attachments out of order: %s, %s", got.Attachments[0].FileName, got.Attachments[1].FileName)
	}
}

func TestQuestionRepository_MarkAnswered(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuestionRepository(db)

	q := newPendingQuestion("user-1")
	if err := repo.Create(q); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	ok, err := repo.MarkAnswered(q.QuestionID, "2x", 42, 1500, "openai/gpt-4o-mini")
	if err != nil {
		t.Fatalf("MarkAnswered() error: %v", err)
	}
	if !ok {
		t.Fatal("MarkAnswered() = false, want transition to happen")
	}

	got, _ := repo.GetByQuestionID(q.QuestionID)
	if got.Status != model.QuestionStatusAnswered {
		t.Errorf("Status = %q, want answered", got.Status)
	}
	if got.AnswerText != "2x" || got.TokenUsage != 42 || got.AIModelID != "openai/gpt-4o-mini" {
		t.Errorf("answer fields not persisted: %+v", got)
	}

	// 第二次转移必须是空操作，不改写已有答案
	ok, err = repo.MarkAnswered(q.QuestionID, "overwritten", 1, 1, "other")
	if err != nil {
		t.Fatalf("second MarkAnswered() error: %v", err)
	}
	if ok {
		t.Error("second MarkAnswered() = true, want no-op")
	}
	got, _ = repo.GetByQuestionID(q.QuestionID)
	if got.AnswerText != "2x" {
		t.Errorf("AnswerText overwritten to %q", got.AnswerText)
	}
}

func TestQuestionRepository_MarkFailed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuestionRepository(db)

	q := newPendingQuestion("user-1")
	if err := repo.Create(q); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	ok, err := repo.MarkFailed(q.QuestionID, "provider unavailable", 3000)
	if err != nil {
		t.Fatalf("MarkFailed() error: %v", err)
	}
	if !ok {
		t.Fatal("MarkFailed() = false, want transition")
	}

	got, _ := repo.GetByQuestionID(q.QuestionID)
	if got.Status != model.QuestionStatusFailed || got.ErrorMessage != "provider unavailable" {
		t.Errorf("failed fields not persisted: status=%q msg=%q", got.Status, got.ErrorMessage)
	}

	// failed 是终态，不能再转为 answered
	ok, _ = repo.MarkAnswered(q.QuestionID, "late answer", 1, 1, "m")
	if ok {
		t.Error("MarkAnswered() after failed = true, want no-op")
	}
}

func TestQuestionRepository_ListByUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuestionRepository(db)

	for i := 0; i < 3; i++ {
		if err := repo.Create(newPendingQuestion("user-1")); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}
	if err := repo.Create(newPendingQuestion("user-2")); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	questions, total, err := repo.ListByUser("user-1", 0, 2)
	if err != nil {
		t.Fatalf("ListByUser() error: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(questions) != 2 {
		t.Errorf("page len = %d, want 2", len(questions))
	}
}

func TestQuestionRepository_AdminList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuestionRepository(db)

	q1 := newPendingQuestion("user-1")
	q1.QuestionText = "Explain photosynthesis"
	q2 := newPendingQuestion("user-2")
	for _, q := range []*model.Question{q1, q2} {
		if err := repo.Create(q); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}
	if _, err := repo.MarkFailed(q2.QuestionID, "boom", 10); err != nil {
		t.Fatalf("MarkFailed() error: %v", err)
	}

	tests := []struct {
		name      string
		status    string
		search    string
		wantTotal int64
	}{
		{"no filter", "", "", 2},
		{"status filter", model.QuestionStatusFailed, "", 1},
		{"search filter", "", "photosynthesis", 1},
		{"no match", model.QuestionStatusAnswered, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := repo.AdminList(tt.status, tt.search, 0, 20)
			if err != nil {
				t.Fatalf("AdminList() error: %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
		})
	}

	// 软删除的记录在管理端列表中仍然可见
	if err := repo.SoftDelete(q1.QuestionID); err != nil {
		t.Fatalf("SoftDelete() error: %v", err)
	}
	_, total, err := repo.AdminList("", "", 0, 20)
	if err != nil {
		t.Fatalf("AdminList() after delete error: %v", err)
	}
	if total != 2 {
		t.Errorf("total after soft delete = %d, want 2", total)
	}
}

func TestQuestionRepository_CountStatsByUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuestionRepository(db)

	answered := newPendingQuestion("user-1")
	failed := newPendingQuestion("user-1")
	pending := newPendingQuestion("user-1")
	for _, q := range []*model.Question{answered, failed, pending} {
		if err := repo.Create(q); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}
	repo.MarkAnswered(answered.QuestionID, "a", 1, 1, "m")
	repo.MarkFailed(failed.QuestionID, "e", 1)

	stats, err := repo.CountStatsByUser("user-1")
	if err != nil {
		t.Fatalf("CountStatsByUser() error: %v", err)
	}
	if stats.Total != 3 || stats.Answered != 1 || stats.Failed != 1 || stats.Pending != 1 {
		t.Errorf("stats = %+v, want 3/1/1/1", stats)
	}
}

func TestQuestionRepository_SoftDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuestionRepository(db)

	q := newPendingQuestion("user-1")
	if err := repo.Create(q); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := repo.SoftDelete(q.QuestionID); err != nil {
		t.Fatalf("SoftDelete() error: %v", err)
	}

	if _, err := repo.GetByQuestionID(q.QuestionID); err == nil {
		t.Error("GetByQuestionID() after delete succeeded, want not found")
	}

	// 管理端仍能查到软删除的记录
	got, err := repo.GetByQuestionIDUnscoped(q.QuestionID)
	if err != nil {
		t.Fatalf("GetByQuestionIDUnscoped() error: %v", err)
	}
	if got.QuestionID != q.QuestionID {
		t.Errorf("unscoped lookup returned wrong question: %s", got.QuestionID)
	}
}
