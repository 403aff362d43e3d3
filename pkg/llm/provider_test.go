package llm

import (
	"context"
	"testing"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{0.1, 0.2, 0.3}
	}
	return result, nil
}

func (m *mockProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockProvider) Chat(_ context.Context, _ []Message, _ GenerateOptions) (string, error) {
	return "mock response", nil
}

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("test-provider", func(config map[string]any) (Provider, error) {
		name := "test-provider"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &mockProvider{name: name}, nil
	})

	provider, err := NewProvider("test-provider", map[string]any{"name": "custom-name"})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if provider.Name() != "custom-name" {
		t.Errorf("expected name 'custom-name', got '%s'", provider.Name())
	}
}

func TestNewProviderUnknown(t *testing.T) {
	if _, err := NewProvider("unknown-provider", nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewEmbeddingProvider(t *testing.T) {
	RegisterEmbeddingProvider("embed-only", func(map[string]any) (EmbeddingProvider, error) {
		return &mockProvider{name: "embed-only"}, nil
	})

	provider, err := NewEmbeddingProvider("embed-only", nil)
	if err != nil {
		t.Fatalf("NewEmbeddingProvider failed: %v", err)
	}
	if provider.Name() != "embed-only" {
		t.Errorf("expected name 'embed-only', got '%s'", provider.Name())
	}

	// 回退到完整供应商
	RegisterProvider("full", func(map[string]any) (Provider, error) {
		return &mockProvider{name: "full"}, nil
	})
	if _, err := NewEmbeddingProvider("full", nil); err != nil {
		t.Fatalf("NewEmbeddingProvider fallback failed: %v", err)
	}
}

func TestNewChatProvider(t *testing.T) {
	RegisterChatProvider("chat-only", func(map[string]any) (ChatProvider, error) {
		return &mockProvider{name: "chat-only"}, nil
	})

	provider, err := NewChatProvider("chat-only", nil)
	if err != nil {
		t.Fatalf("NewChatProvider failed: %v", err)
	}
	if provider.Name() != "chat-only" {
		t.Errorf("expected name 'chat-only', got '%s'", provider.Name())
	}
	if _, err := NewChatProvider("missing", nil); err == nil {
		t.Error("expected error for unknown chat provider")
	}
}

func TestListProvidersSorted(t *testing.T) {
	RegisterChatProvider("zz-last", func(map[string]any) (ChatProvider, error) { return &mockProvider{}, nil })
	RegisterChatProvider("aa-first", func(map[string]any) (ChatProvider, error) { return &mockProvider{}, nil })

	names := ListProviders()
	if len(names) < 2 {
		t.Fatalf("expected at least two providers, got %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("providers not sorted: %v", names)
		}
	}
}

func TestPromptText(t *testing.T) {
	got := PromptText([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "b"},
	})
	if got != "a\n\nb" {
		t.Errorf("unexpected prompt %q", got)
	}
}
