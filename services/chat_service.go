package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ringsight/ringsight/llm"
	"github.com/ringsight/ringsight/models"
	"github.com/ringsight/ringsight/store"
	"github.com/ringsight/ringsight/utils"
)

const (
	// contextWindowDays / contextRowCap bound the metric context handed to
	// the model; historyCap bounds the prior turns included.
	contextWindowDays = 30
	contextRowCap     = 30
	historyCap        = 10
)

// ErrEmptyMessage reports a message with no content left once the HTML is
// stripped.
var ErrEmptyMessage = errors.New("message is empty")

// ChatService assembles the health-data context, invokes the language model,
// and appends both turns to the conversation log.
type ChatService struct {
	metrics   store.Metrics
	chats     store.Chats
	completer llm.Completer
	sanitizer *bluemonday.Policy
}

// NewChatService wires the chat pipeline.
func NewChatService(metrics store.Metrics, chats store.Chats, completer llm.Completer) *ChatService {
	return &ChatService{
		metrics:   metrics,
		chats:     chats,
		completer: completer,
		// Strip HTML from inbound messages before they are stored and
		// echoed back by the dashboard.
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Ask answers one user message. The stored turns are always the sanitized user
// message followed by the assistant reply, in that order.
func (s *ChatService) Ask(ctx context.Context, userID uint, message string, includeHistory bool) (string, time.Time, error) {
	// Sanitize first: a message that is pure markup must not reach the model
	// or the log as an empty turn.
	message = strings.TrimSpace(s.sanitizer.Sanitize(message))
	if message == "" {
		return "", time.Time{}, ErrEmptyMessage
	}

	sinceDay, _ := utils.DayRange(contextWindowDays)

	var (
		wg        sync.WaitGroup
		sleep     []models.DailySleep
		activity  []models.DailyActivity
		readiness []models.DailyReadiness
		errOnce   sync.Once
		readErr   error
	)
	fail := func(err error) {
		if err != nil {
			errOnce.Do(func() { readErr = err })
		}
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		var err error
		sleep, err = s.metrics.ListSleep(ctx, userID, sinceDay, contextRowCap)
		fail(err)
	}()
	go func() {
		defer wg.Done()
		var err error
		activity, err = s.metrics.ListActivity(ctx, userID, sinceDay, contextRowCap)
		fail(err)
	}()
	go func() {
		defer wg.Done()
		var err error
		readiness, err = s.metrics.ListReadiness(ctx, userID, sinceDay, contextRowCap)
		fail(err)
	}()
	wg.Wait()

	if readErr != nil {
		return "", time.Time{}, readErr
	}

	// Lists come back most-recent-first; the model gets chronological order.
	reverse(sleep)
	reverse(activity)
	reverse(readiness)

	var history []llm.Message
	if includeHistory {
		turns, err := s.chats.Recent(ctx, userID, historyCap)
		if err != nil {
			return "", time.Time{}, err
		}
		reverse(turns)
		history = make([]llm.Message, 0, len(turns))
		for _, t := range turns {
			history = append(history, llm.Message{Role: t.Role, Content: t.Content})
		}
	}

	systemPrompt := llm.HealthSystemPrompt(llm.HealthContext{
		Sleep:     sleep,
		Activity:  activity,
		Readiness: readiness,
	})

	reply, err := s.completer.Complete(ctx, systemPrompt, history, message)
	if err != nil {
		return "", time.Time{}, err
	}

	if err := s.chats.Append(ctx, userID, models.RoleUser, message); err != nil {
		return "", time.Time{}, err
	}
	if err := s.chats.Append(ctx, userID, models.RoleAssistant, reply); err != nil {
		return "", time.Time{}, err
	}

	return reply, time.Now().UTC(), nil
}

// History returns up to limit turns in chronological order. No turns is an
// empty list, not an error.
func (s *ChatService) History(ctx context.Context, userID uint, limit int) ([]models.ChatMessage, error) {
	turns, err := s.chats.Recent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	reverse(turns)
	if turns == nil {
		turns = []models.ChatMessage{}
	}
	return turns, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
