package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/marville001/eduaiapp/internal/config"
)

// ========== stubChatModel ==========

type stubChatModel struct {
	resp *schema.Message
	err  error
}

func (m *stubChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return m.resp, m.err
}

func (m *stubChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestChatModelProvider_Generate(t *testing.T) {
	tests := []struct {
		name       string
		resp       *schema.Message
		err        error
		wantText   string
		wantTokens int
		wantErr    bool
	}{
		{
			name: "trimmed content with usage",
			resp: &schema.Message{
				Role:    schema.Assistant,
				Content: "  hello  ",
				ResponseMeta: &schema.ResponseMeta{
					Usage: &schema.TokenUsage{TotalTokens: 21},
				},
			},
			wantText:   "hello",
			wantTokens: 21,
		},
		{
			name:     "missing usage metadata",
			resp:     &schema.Message{Role: schema.Assistant, Content: "answer"},
			wantText: "answer",
		},
		{
			name:    "empty completion is an error",
			resp:    &schema.Message{Role: schema.Assistant, Content: "   "},
			wantErr: true,
		},
		{
			name:    "provider error passes through",
			err:     errors.New("rate limited"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &chatModelProvider{
				chatModel: &stubChatModel{resp: tt.resp, err: tt.err},
				modelID:   "openai/gpt-4o-mini",
			}
			result, err := p.Generate(context.Background(), []*schema.Message{schema.UserMessage("q")})
			if tt.wantErr {
				if err == nil {
					t.Fatal("Generate() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate() error: %v", err)
			}
			if result.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", result.Text, tt.wantText)
			}
			if result.TokenUsage != tt.wantTokens {
				t.Errorf("TokenUsage = %d, want %d", result.TokenUsage, tt.wantTokens)
			}
		})
	}
}

func TestNewProvider_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		ai   config.AIConfig
	}{
		{"unknown provider", config.AIConfig{Provider: "nope"}},
		{"missing api key", config.AIConfig{Provider: "openai"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(ctx, &config.Config{AI: tt.ai}); err == nil {
				t.Error("NewProvider() succeeded, want error")
			}
		})
	}
}
