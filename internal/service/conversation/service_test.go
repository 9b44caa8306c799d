package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marville001/eduaiapp/internal/config"
	"github.com/marville001/eduaiapp/internal/model"
	"github.com/marville001/eduaiapp/internal/queue"
	"github.com/marville001/eduaiapp/internal/repository"
	"github.com/marville001/eduaiapp/internal/service/usage"
)

// ----- Fake queue -----

type fakeEnqueuer struct {
	mu   sync.Mutex
	jobs []queue.Job
	err  error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, job queue.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func setupService(t *testing.T, freePlan config.FreePlanConfig) (*Service, *repository.Repositories, *fakeEnqueuer, *Locker) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	dsn := fmt.Sprintf("file:conv_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(model.AllModels...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	repos := repository.NewRepositories(db)
	ledger := usage.NewLedger(client, repos, freePlan)
	locker := NewLocker(client, 10*time.Minute)
	enq := &fakeEnqueuer{}
	limits := config.LimitsConfig{MaxQuestionLength: 4000}

	return NewService(repos, ledger, locker, enq, limits), repos, enq, locker
}

func createQuestion(t *testing.T, repos *repository.Repositories, userID, status string) *model.Question {
	t.Helper()
	q := &model.Question{
		QuestionID:   uuid.NewString(),
		SubjectID:    "math",
		UserID:       userID,
		QuestionText: "What is a limit?",
		Status:       status,
	}
	if status == model.QuestionStatusAnswered {
		q.AnswerText = "A limit describes the value a function approaches."
	}
	if err := repos.Question.Create(q); err != nil {
		t.Fatalf("create question: %v", err)
	}
	return q
}

func TestSendFollowUp_Success(t *testing.T) {
	svc, repos, enq, locker := setupService(t, config.FreePlanConfig{MaxChatsPerMonth: 10, CreditMultiplier: 1.0})
	ctx := context.Background()
	q := createQuestion(t, repos, "user-1", model.QuestionStatusAnswered)

	msg, err := svc.SendFollowUp(ctx, q.QuestionID, "user-1", "Can you give an example?")
	if err != nil {
		t.Fatalf("SendFollowUp() error: %v", err)
	}
	if msg.Role != model.RoleUser {
		t.Errorf("Role = %q, want user", msg.Role)
	}

	// 用户消息立即落库
	messages, _ := repos.Chat.GetMessagesByQuestionID(q.QuestionID)
	if len(messages) != 1 || messages[0].Content != "Can you give an example?" {
		t.Fatalf("messages = %+v, want the follow-up persisted", messages)
	}

	// 投递了追问作业
	if len(enq.jobs) != 1 || enq.jobs[0].Kind != queue.KindFollowUp || enq.jobs[0].QuestionID != q.QuestionID {
		t.Errorf("jobs = %+v, want one follow_up job", enq.jobs)
	}

	// 回答生成前会话保持占用
	busy, _ := locker.IsBusy(ctx, q.QuestionID)
	if !busy {
		t.Error("conversation not busy after accepted follow-up")
	}
}

func TestSendFollowUp_Validation(t *testing.T) {
	svc, repos, _, _ := setupService(t, config.FreePlanConfig{MaxChatsPerMonth: 10, CreditMultiplier: 1.0})
	ctx := context.Background()
	q := createQuestion(t, repos, "user-1", model.QuestionStatusAnswered)

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"empty", "", ErrEmptyMessage},
		{"whitespace only", "   \n ", ErrEmptyMessage},
		{"too long", string(make([]byte, 5000)), ErrMessageTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendFollowUp(ctx, q.QuestionID, "user-1", tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SendFollowUp() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSendFollowUp_NotReady(t *testing.T) {
	svc, repos, _, _ := setupService(t, config.FreePlanConfig{MaxChatsPerMonth: 10, CreditMultiplier: 1.0})
	ctx := context.Background()

	tests := []struct {
		name   string
		status string
	}{
		{"pending question", model.QuestionStatusPending},
		{"failed question", model.QuestionStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := createQuestion(t, repos, "user-1", tt.status)
			_, err := svc.SendFollowUp(ctx, q.QuestionID, "user-1", "follow-up")
			if !errors.Is(err, ErrConversationNotReady) {
				t.Errorf("SendFollowUp() = %v, want ErrConversationNotReady", err)
			}
		})
	}
}

func TestSendFollowUp_NotFoundAndOwnership(t *testing.T) {
	svc, repos, _, _ := setupService(t, config.FreePlanConfig{MaxChatsPerMonth: 10, CreditMultiplier: 1.0})
	ctx := context.Background()

	if _, err := svc.SendFollowUp(ctx, uuid.NewString(), "user-1", "hello"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SendFollowUp() unknown id = %v, want ErrNotFound", err)
	}

	// 他人的提问表现为不存在，不泄露归属信息
	q := createQuestion(t, repos, "user-1", model.QuestionStatusAnswered)
	if _, err := svc.SendFollowUp(ctx, q.QuestionID, "user-2", "hello"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SendFollowUp() wrong owner = %v, want ErrNotFound", err)
	}
}

func TestSendFollowUp_Busy(t *testing.T) {
	svc, repos, _, _ := setupService(t, config.FreePlanConfig{MaxChatsPerMonth: 10, CreditMultiplier: 1.0})
	ctx := context.Background()
	q := createQuestion(t, repos, "user-1", model.QuestionStatusAnswered)

	if _, err := svc.SendFollowUp(ctx, q.QuestionID, "user-1", "first"); err != nil {
		t.Fatalf("first SendFollowUp() error: %v", err)
	}
	if _, err := svc.SendFollowUp(ctx, q.QuestionID, "user-1", "second"); !errors.Is(err, ErrConversationBusy) {
		t.Errorf("second SendFollowUp() = %v, want ErrConversationBusy", err)
	}

	// 被拒绝的追问不落库
	messages, _ := repos.Chat.GetMessagesByQuestionID(q.QuestionID)
	if len(messages) != 1 {
		t.Errorf("messages = %d, want 1", len(messages))
	}
}

func TestSendFollowUp_QuotaExceededReleasesLock(t *testing.T) {
	svc, repos, _, locker := setupService(t, config.FreePlanConfig{MaxChatsPerMonth: 0, CreditMultiplier: 1.0})
	ctx := context.Background()
	q := createQuestion(t, repos, "user-1", model.QuestionStatusAnswered)

	_, err := svc.SendFollowUp(ctx, q.QuestionID, "user-1", "hello")
	if !errors.Is(err, usage.ErrQuotaExceeded) {
		t.Fatalf("SendFollowUp() = %v, want ErrQuotaExceeded", err)
	}

	// 配额拒绝后必须解锁，不能把会话卡死
	busy, _ := locker.IsBusy(ctx, q.QuestionID)
	if busy {
		t.Error("conversation still busy after quota rejection")
	}
}

func TestSendFollowUp_EnqueueFailureReleasesLock(t *testing.T) {
	svc, repos, enq, locker := setupService(t, config.FreePlanConfig{MaxChatsPerMonth: 10, CreditMultiplier: 1.0})
	ctx := context.Background()
	q := createQuestion(t, repos, "user-1", model.QuestionStatusAnswered)
	enq.err = errors.New("redis down")

	if _, err := svc.SendFollowUp(ctx, q.QuestionID, "user-1", "hello"); err == nil {
		t.Fatal("SendFollowUp() succeeded despite enqueue failure")
	}

	busy, _ := locker.IsBusy(ctx, q.QuestionID)
	if busy {
		t.Error("conversation still busy after enqueue failure")
	}

	// 回答不会生成，已落库的用户消息要删掉，避免下一条追问出现连续的用户消息
	messages, _ := repos.Chat.GetMessagesByQuestionID(q.QuestionID)
	if len(messages) != 0 {
		t.Errorf("messages = %d, want the orphaned follow-up removed", len(messages))
	}
}

// 投递失败要归还额度，否则重试会被配额误拒
func TestSendFollowUp_EnqueueFailureReleasesQuota(t *testing.T) {
	svc, repos, enq, _ := setupService(t, config.FreePlanConfig{MaxChatsPerMonth: 1, CreditMultiplier: 1.0})
	ctx := context.Background()
	q := createQuestion(t, repos, "user-1", model.QuestionStatusAnswered)

	enq.err = errors.New("redis down")
	if _, err := svc.SendFollowUp(ctx, q.QuestionID, "user-1", "hello"); err == nil {
		t.Fatal("SendFollowUp() succeeded despite enqueue failure")
	}

	enq.err = nil
	if _, err := svc.SendFollowUp(ctx, q.QuestionID, "user-1", "hello again"); err != nil {
		t.Fatalf("retry after enqueue failure = %v, want accepted", err)
	}
	if len(enq.jobs) != 1 {
		t.Errorf("jobs = %d, want 1", len(enq.jobs))
	}
}
