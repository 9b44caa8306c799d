package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/marville001/eduaiapp/internal/model"
)

func TestChatRepository_MessageOrdering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)

	questionID := uuid.NewString()
	base := time.Now().Add(-time.Minute)
	contents := []struct {
		role    string
		content string
	}{
		{model.RoleUser, "why?"},
		{model.RoleAssistant, "because"},
		{model.RoleUser, "still why?"},
	}
	for i, m := range contents {
		msg := &model.ChatMessage{
			ID:         uuid.NewString(),
			QuestionID: questionID,
			Role:       m.role,
			Content:    m.content,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.CreateMessage(msg); err != nil {
			t.Fatalf("CreateMessage() error: %v", err)
		}
	}

	messages, err := repo.GetMessagesByQuestionID(questionID)
	if err != nil {
		t.Fatalf("GetMessagesByQuestionID() error: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("len = %d, want 3", len(messages))
	}
	for i, m := range messages {
		if m.Content != contents[i].content {
			t.Errorf("message %d = %q, want %q", i, m.Content, contents[i].content)
		}
	}

	last, err := repo.GetLastMessage(questionID)
	if err != nil {
		t.Fatalf("GetLastMessage() error: %v", err)
	}
	if last.Content != "still why?" || last.Role != model.RoleUser {
		t.Errorf("last message = %q (%s), want the latest user message", last.Content, last.Role)
	}

	// 删除最后一条消息后上一条重新成为最新
	if err := repo.DeleteMessage(last.ID); err != nil {
		t.Fatalf("DeleteMessage() error: %v", err)
	}
	last, err = repo.GetLastMessage(questionID)
	if err != nil {
		t.Fatalf("GetLastMessage() after delete error: %v", err)
	}
	if last.Content != "because" || last.Role != model.RoleAssistant {
		t.Errorf("last message after delete = %q (%s), want the assistant reply", last.Content, last.Role)
	}
}

func TestChatRepository_GetLastMessageEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)

	if _, err := repo.GetLastMessage(uuid.NewString()); err == nil {
		t.Error("GetLastMessage() on empty thread succeeded, want error")
	}
}
