package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ringsight/ringsight/llm"
	"github.com/ringsight/ringsight/models"
)

type fakeChats struct {
	turns     []models.ChatMessage
	appendErr error
}

func (f *fakeChats) Append(ctx context.Context, userID uint, role, content string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.turns = append(f.turns, models.ChatMessage{
		ID:        uint(len(f.turns) + 1),
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeChats) Recent(ctx context.Context, userID uint, limit int) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	for i := len(f.turns) - 1; i >= 0; i-- {
		if f.turns[i].UserID != userID {
			continue
		}
		out = append(out, f.turns[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type stubCompleter struct {
	reply        string
	err          error
	systemPrompt string
	history      []llm.Message
	userMessage  string
}

func (s *stubCompleter) Complete(ctx context.Context, systemPrompt string, history []llm.Message, userMessage string) (string, error) {
	s.systemPrompt = systemPrompt
	s.history = append([]llm.Message(nil), history...)
	s.userMessage = userMessage
	return s.reply, s.err
}

func TestAsk_StoresUserThenAssistantTurn(t *testing.T) {
	chats := &fakeChats{}
	completer := &stubCompleter{reply: "You slept well this week."}
	svc := NewChatService(&fakeMetrics{}, chats, completer)

	reply, ts, err := svc.Ask(context.Background(), 1, "How did I sleep?", false)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply != "You slept well this week." {
		t.Errorf("reply = %q", reply)
	}
	if ts.IsZero() {
		t.Error("timestamp should be set")
	}

	if len(chats.turns) != 2 {
		t.Fatalf("stored turns = %d, want 2", len(chats.turns))
	}
	if chats.turns[0].Role != models.RoleUser || chats.turns[0].Content != "How did I sleep?" {
		t.Errorf("first turn = %s %q, want user turn", chats.turns[0].Role, chats.turns[0].Content)
	}
	if chats.turns[1].Role != models.RoleAssistant || chats.turns[1].Content != completer.reply {
		t.Errorf("second turn = %s %q, want assistant turn", chats.turns[1].Role, chats.turns[1].Content)
	}
}

func TestAsk_SanitizesInboundHTML(t *testing.T) {
	chats := &fakeChats{}
	completer := &stubCompleter{reply: "ok"}
	svc := NewChatService(&fakeMetrics{}, chats, completer)

	if _, _, err := svc.Ask(context.Background(), 1, `<script>alert(1)</script>How are my scores?`, false); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if completer.userMessage != "How are my scores?" {
		t.Errorf("model saw %q, want the stripped message", completer.userMessage)
	}
	if strings.Contains(chats.turns[0].Content, "<script>") {
		t.Errorf("stored turn still contains markup: %q", chats.turns[0].Content)
	}
}

func TestAsk_RejectsMarkupOnlyMessage(t *testing.T) {
	chats := &fakeChats{}
	completer := &stubCompleter{reply: "ok"}
	svc := NewChatService(&fakeMetrics{}, chats, completer)

	_, _, err := svc.Ask(context.Background(), 1, `<script>alert(1)</script>`, false)
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
	if completer.userMessage != "" {
		t.Error("the model must not be called for a message that strips to nothing")
	}
	if len(chats.turns) != 0 {
		t.Errorf("stored turns = %d, want 0", len(chats.turns))
	}
}

func TestAsk_HistoryPassedChronologically(t *testing.T) {
	chats := &fakeChats{}
	for _, c := range []string{"first question", "first answer", "second question", "second answer"} {
		role := models.RoleUser
		if strings.HasSuffix(c, "answer") {
			role = models.RoleAssistant
		}
		if err := chats.Append(context.Background(), 1, role, c); err != nil {
			t.Fatal(err)
		}
	}

	completer := &stubCompleter{reply: "third answer"}
	svc := NewChatService(&fakeMetrics{}, chats, completer)

	if _, _, err := svc.Ask(context.Background(), 1, "third question", true); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if len(completer.history) != 4 {
		t.Fatalf("history length = %d, want 4", len(completer.history))
	}
	if completer.history[0].Content != "first question" || completer.history[3].Content != "second answer" {
		t.Errorf("history out of order: first=%q last=%q",
			completer.history[0].Content, completer.history[3].Content)
	}
}

func TestAsk_HistoryExcludedWhenDisabled(t *testing.T) {
	chats := &fakeChats{}
	if err := chats.Append(context.Background(), 1, models.RoleUser, "earlier question"); err != nil {
		t.Fatal(err)
	}

	completer := &stubCompleter{reply: "ok"}
	svc := NewChatService(&fakeMetrics{}, chats, completer)

	if _, _, err := svc.Ask(context.Background(), 1, "fresh question", false); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(completer.history) != 0 {
		t.Errorf("history length = %d, want 0", len(completer.history))
	}
}

func TestAsk_MetricContextReachesSystemPrompt(t *testing.T) {
	metrics := &fakeMetrics{}
	today := time.Now().UTC().Format("2006-01-02")
	score := 88
	metrics.sleep = append(metrics.sleep, models.DailySleep{
		UserID: 1,
		Day:    today,
		Score:  &score,
	})

	completer := &stubCompleter{reply: "ok"}
	svc := NewChatService(metrics, &fakeChats{}, completer)

	if _, _, err := svc.Ask(context.Background(), 1, "how is my sleep", false); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.Contains(completer.systemPrompt, today) {
		t.Error("system prompt should embed the user's sleep rows")
	}
}

func TestAsk_CompleterFailureStoresNothing(t *testing.T) {
	chats := &fakeChats{}
	completer := &stubCompleter{err: errors.New("model unavailable")}
	svc := NewChatService(&fakeMetrics{}, chats, completer)

	if _, _, err := svc.Ask(context.Background(), 1, "hello", false); err == nil {
		t.Fatal("expected error from failing completer")
	}
	if len(chats.turns) != 0 {
		t.Errorf("stored turns = %d, want 0 on model failure", len(chats.turns))
	}
}

func TestHistory_ChronologicalAndScopedToUser(t *testing.T) {
	chats := &fakeChats{}
	for i, c := range []string{"q1", "a1", "q2", "a2"} {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		if err := chats.Append(context.Background(), 1, role, c); err != nil {
			t.Fatal(err)
		}
	}
	if err := chats.Append(context.Background(), 2, models.RoleUser, "other user"); err != nil {
		t.Fatal(err)
	}

	svc := NewChatService(&fakeMetrics{}, chats, &stubCompleter{})

	turns, err := svc.History(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("turns = %d, want 4", len(turns))
	}
	if turns[0].Content != "q1" || turns[3].Content != "a2" {
		t.Errorf("turns out of order: first=%q last=%q", turns[0].Content, turns[3].Content)
	}
	for _, turn := range turns {
		if turn.Content == "other user" {
			t.Error("history leaked another user's turn")
		}
	}
}

func TestHistory_EmptyIsEmptyList(t *testing.T) {
	svc := NewChatService(&fakeMetrics{}, &fakeChats{}, &stubCompleter{})

	turns, err := svc.History(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if turns == nil {
		t.Fatal("want an empty slice, not nil")
	}
	if len(turns) != 0 {
		t.Errorf("turns = %d, want 0", len(turns))
	}
}

func TestHistory_LimitKeepsMostRecent(t *testing.T) {
	chats := &fakeChats{}
	for i := 0; i < 6; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		if err := chats.Append(context.Background(), 1, role, strings.Repeat("x", i+1)); err != nil {
			t.Fatal(err)
		}
	}

	svc := NewChatService(&fakeMetrics{}, chats, &stubCompleter{})

	turns, err := svc.History(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	// The two most recent turns, oldest of the pair first.
	if len(turns[0].Content) != 5 || len(turns[1].Content) != 6 {
		t.Errorf("kept lengths = %d,%d, want 5,6", len(turns[0].Content), len(turns[1].Content))
	}
}
