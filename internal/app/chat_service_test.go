package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aidesk/internal/ai"
	"aidesk/internal/model"
	"aidesk/internal/repository"
)

type fakeChatStore struct {
	chats  map[uint]*model.Chat
	nextID uint
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{chats: make(map[uint]*model.Chat)}
}

func (s *fakeChatStore) Create(chat *model.Chat) error {
	s.nextID++
	chat.ID = s.nextID
	chat.CreatedAt = time.Now()
	copied := *chat
	s.chats[chat.ID] = &copied
	return nil
}

func (s *fakeChatStore) ListByUserID(userID uint) ([]model.Chat, error) {
	var out []model.Chat
	for _, chat := range s.chats {
		if chat.UserID == userID {
			out = append(out, *chat)
		}
	}
	return out, nil
}

func (s *fakeChatStore) GetByIDAndUserID(chatID, userID uint) (*model.Chat, error) {
	chat, ok := s.chats[chatID]
	if !ok || chat.UserID != userID {
		return nil, nil
	}
	copied := *chat
	return &copied, nil
}

func (s *fakeChatStore) UpdateTitle(chatID uint, title string) error {
	if chat, ok := s.chats[chatID]; ok {
		chat.Title = title
	}
	return nil
}

func (s *fakeChatStore) DeleteByIDAndUserID(chatID, userID uint) error {
	delete(s.chats, chatID)
	return nil
}

type fakeMessageStore struct {
	messages []model.Message
	nextID   uint
	listErr  error
}

func (s *fakeMessageStore) Create(message *model.Message) error {
	s.nextID++
	message.ID = s.nextID
	message.CreatedAt = time.Now()
	s.messages = append(s.messages, *message)
	return nil
}

func (s *fakeMessageStore) ListByChatID(chatID uint) ([]model.Message, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.Message
	for _, msg := range s.messages {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) LastByChatID(chatID uint) (*model.Message, error) {
	var last *model.Message
	for i := range s.messages {
		if s.messages[i].ChatID == chatID {
			last = &s.messages[i]
		}
	}
	if last == nil {
		return nil, nil
	}
	copied := *last
	return &copied, nil
}

func (s *fakeMessageStore) CountByChatID(chatID uint) (int64, error) {
	var count int64
	for _, msg := range s.messages {
		if msg.ChatID == chatID {
			count++
		}
	}
	return count, nil
}

func (s *fakeMessageStore) ListByChatIDWithFiles(chatID uint) ([]repository.MessageWithFile, error) {
	messages, _ := s.ListByChatID(chatID)
	out := make([]repository.MessageWithFile, 0, len(messages))
	for _, msg := range messages {
		out = append(out, repository.MessageWithFile{Message: msg})
	}
	return out, nil
}

func (s *fakeMessageStore) DeleteByChatID(chatID uint) error {
	kept := s.messages[:0]
	for _, msg := range s.messages {
		if msg.ChatID != chatID {
			kept = append(kept, msg)
		}
	}
	s.messages = kept
	return nil
}

type fakeFileStore struct {
	files  []model.ChatFile
	nextID uint
}

func (s *fakeFileStore) Create(file *model.ChatFile) error {
	s.nextID++
	file.ID = s.nextID
	s.files = append(s.files, *file)
	return nil
}

func (s *fakeFileStore) DeleteByChatID(chatID uint) error { return nil }

type fakeKnowledgeStore struct {
	items []model.KnowledgeItem
}

func (s *fakeKnowledgeStore) ListAll() ([]model.KnowledgeItem, error) {
	return s.items, nil
}

func (s *fakeKnowledgeStore) Search(query string) ([]model.KnowledgeItem, error) {
	var out []model.KnowledgeItem
	lowered := strings.ToLower(query)
	for _, item := range s.items {
		if strings.Contains(lowered, strings.ToLower(item.Question)) ||
			strings.Contains(strings.ToLower(item.Question), lowered) ||
			strings.Contains(strings.ToLower(item.Answer), lowered) {
			out = append(out, item)
		}
	}
	return out, nil
}

type fakeContextStore struct {
	contexts []model.Context
}

func (s *fakeContextStore) ListByUserID(userID uint) ([]model.Context, error) {
	var out []model.Context
	for _, ctx := range s.contexts {
		if ctx.UserID == userID {
			out = append(out, ctx)
		}
	}
	return out, nil
}

type fakeCompletion struct {
	calls    int
	failures int
	chunks   []string

	lastSystem   string
	lastMessages []ai.ChatMessage
}

func (c *fakeCompletion) StreamComplete(
	ctx context.Context,
	cfg ai.ChatConfig,
	system string,
	messages []ai.ChatMessage,
	onDelta func(string) error,
) (string, error) {
	c.calls++
	c.lastSystem = system
	c.lastMessages = messages
	if c.calls <= c.failures {
		return "", errors.New("upstream unavailable")
	}

	var full strings.Builder
	for _, chunk := range c.chunks {
		full.WriteString(chunk)
		if err := onDelta(chunk); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

type fakePublisher struct {
	entries []model.PromptLog
}

func (p *fakePublisher) Publish(ctx context.Context, entry model.PromptLog) error {
	p.entries = append(p.entries, entry)
	return nil
}

type turnFixture struct {
	chats      *fakeChatStore
	messages   *fakeMessageStore
	files      *fakeFileStore
	knowledge  *fakeKnowledgeStore
	contexts   *fakeContextStore
	completion *fakeCompletion
	publisher  *fakePublisher
	service    *ChatService
}

func newTurnFixture() *turnFixture {
	f := &turnFixture{
		chats:      newFakeChatStore(),
		messages:   &fakeMessageStore{},
		files:      &fakeFileStore{},
		knowledge:  &fakeKnowledgeStore{},
		contexts:   &fakeContextStore{},
		completion: &fakeCompletion{chunks: []string{"Hello", ", world"}},
		publisher:  &fakePublisher{},
	}
	f.service = NewChatService(
		f.chats, f.messages, f.files, f.knowledge, f.contexts,
		f.completion, f.publisher, nil, nil,
		ai.ChatConfig{Model: "test-model", MaxTokens: 1000},
		TurnOptions{MaxAttempts: 3, RetryBaseDelay: time.Millisecond},
	)
	f.service.sleep = func(time.Duration) {}
	return f
}

func collectEvents(events *[]StreamEvent) func(StreamEvent) error {
	return func(ev StreamEvent) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestStreamTurnRejectsEmptyInput(t *testing.T) {
	f := newTurnFixture()

	var events []StreamEvent
	err := f.service.StreamTurn(context.Background(), TurnInput{UserID: 1, Content: "   "}, collectEvents(&events))

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Type)
	assert.Empty(t, f.chats.chats, "no chat must be created for an empty turn")
	assert.Empty(t, f.messages.messages, "no message must be written for an empty turn")
	assert.Zero(t, f.completion.calls)
}

func TestStreamTurnSuccess(t *testing.T) {
	f := newTurnFixture()

	var events []StreamEvent
	err := f.service.StreamTurn(context.Background(), TurnInput{
		UserID:  1,
		Content: "tell me a joke",
		Feature: model.FeatureGeneral,
	}, collectEvents(&events))

	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, StreamEvent{Type: "message", Content: "Hello"}, events[0])
	assert.Equal(t, StreamEvent{Type: "message", Content: ", world"}, events[1])
	assert.Equal(t, "done", events[2].Type)
	assert.NotZero(t, events[2].ChatID)

	require.Len(t, f.messages.messages, 2)
	assert.True(t, f.messages.messages[0].IsUser)
	assert.Equal(t, "tell me a joke", f.messages.messages[0].Content)
	assert.False(t, f.messages.messages[1].IsUser)
	assert.Equal(t, "Hello, world", f.messages.messages[1].Content)

	require.Len(t, f.publisher.entries, 1)
	assert.Equal(t, uint(1), f.publisher.entries[0].UserID)
}

func TestStreamTurnDerivesTitleFromFirstMessage(t *testing.T) {
	long := strings.Repeat("a", 60)
	short := "short one"

	f := newTurnFixture()
	var events []StreamEvent
	require.NoError(t, f.service.StreamTurn(context.Background(),
		TurnInput{UserID: 1, Content: long}, collectEvents(&events)))

	chat := f.chats.chats[1]
	require.NotNil(t, chat)
	assert.Equal(t, strings.Repeat("a", 50)+"...", chat.Title)

	f2 := newTurnFixture()
	events = nil
	require.NoError(t, f2.service.StreamTurn(context.Background(),
		TurnInput{UserID: 1, Content: short}, collectEvents(&events)))

	chat = f2.chats.chats[1]
	require.NotNil(t, chat)
	assert.Equal(t, short, chat.Title)
}

func TestStreamTurnKeepsTitleAfterFirstMessage(t *testing.T) {
	f := newTurnFixture()

	var events []StreamEvent
	require.NoError(t, f.service.StreamTurn(context.Background(),
		TurnInput{UserID: 1, Content: "first message"}, collectEvents(&events)))

	events = nil
	require.NoError(t, f.service.StreamTurn(context.Background(),
		TurnInput{UserID: 1, ChatID: 1, Content: "second message"}, collectEvents(&events)))

	assert.Equal(t, "first message", f.chats.chats[1].Title)
}

func TestStreamTurnFAQShortCircuit(t *testing.T) {
	f := newTurnFixture()
	f.knowledge.items = []model.KnowledgeItem{
		{ID: 1, Question: "How do I reset my password?", Answer: "Use the reset link on the login page."},
	}

	var events []StreamEvent
	err := f.service.StreamTurn(context.Background(), TurnInput{
		UserID:  1,
		Content: "How do I reset my password?",
	}, collectEvents(&events))

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "message", events[0].Type)
	assert.Equal(t, "Use the reset link on the login page.", events[0].Content)
	assert.Equal(t, "done", events[1].Type)
	assert.Zero(t, f.completion.calls, "a direct FAQ hit must not reach the completion client")

	require.Len(t, f.messages.messages, 1)
	assert.False(t, f.messages.messages[0].IsUser)
	assert.Equal(t, "Use the reset link on the login page.", f.messages.messages[0].Content)
}

func TestStreamTurnFAQAnswerIncludesImage(t *testing.T) {
	f := newTurnFixture()
	f.knowledge.items = []model.KnowledgeItem{
		{ID: 1, Question: "Where is the office?", Answer: "Downtown.", ImagePath: "uploads/map.png"},
	}

	var events []StreamEvent
	require.NoError(t, f.service.StreamTurn(context.Background(),
		TurnInput{UserID: 1, Content: "Where is the office?"}, collectEvents(&events)))

	require.NotEmpty(t, events)
	assert.Equal(t, "Downtown.\n uploads/map.png", events[0].Content)
}

func TestStreamTurnRetryExhaustion(t *testing.T) {
	f := newTurnFixture()
	f.completion.failures = 3

	var events []StreamEvent
	err := f.service.StreamTurn(context.Background(), TurnInput{
		UserID:  1,
		Content: "anyone there?",
	}, collectEvents(&events))

	require.NoError(t, err)
	assert.Equal(t, 3, f.completion.calls)

	require.NotEmpty(t, events)
	assert.Equal(t, "error", events[len(events)-1].Type)

	// The user message written before the call survives; no assistant
	// message is persisted for a fully failed turn.
	require.Len(t, f.messages.messages, 1)
	assert.True(t, f.messages.messages[0].IsUser)
	assert.Empty(t, f.publisher.entries)
}

func TestStreamTurnStoreFailureNotRetried(t *testing.T) {
	f := newTurnFixture()
	f.messages.listErr = errors.New("connection refused")

	var slept int
	f.service.sleep = func(time.Duration) { slept++ }

	var events []StreamEvent
	err := f.service.StreamTurn(context.Background(), TurnInput{
		UserID:  1,
		Content: "hello",
	}, collectEvents(&events))
	require.NoError(t, err)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "error", last.Type)
	assert.Equal(t, "failed to load chat history", last.Content)
	assert.Zero(t, f.completion.calls, "a store failure must not reach the completion client")
	assert.Zero(t, slept, "a store failure must not be retried")
}

func TestStreamTurnRetrySucceedsAfterTransientFailure(t *testing.T) {
	f := newTurnFixture()
	f.completion.failures = 1

	var events []StreamEvent
	err := f.service.StreamTurn(context.Background(), TurnInput{
		UserID:  1,
		Content: "retry me",
	}, collectEvents(&events))

	require.NoError(t, err)
	assert.Equal(t, 2, f.completion.calls)
	assert.Equal(t, "done", events[len(events)-1].Type)

	require.Len(t, f.messages.messages, 2)
	assert.Equal(t, "Hello, world", f.messages.messages[1].Content)
}

func TestStreamTurnInsertsPlaceholderAfterCrash(t *testing.T) {
	f := newTurnFixture()
	chat := &model.Chat{UserID: 1, Title: "existing"}
	require.NoError(t, f.chats.Create(chat))
	require.NoError(t, f.messages.Create(&model.Message{ChatID: chat.ID, Content: "old question", IsUser: true}))

	var events []StreamEvent
	err := f.service.StreamTurn(context.Background(), TurnInput{
		UserID:  1,
		ChatID:  chat.ID,
		Content: "are you still there?",
	}, collectEvents(&events))

	require.NoError(t, err)

	history, _ := f.messages.ListByChatID(chat.ID)
	require.Len(t, history, 4)
	assert.Equal(t, "I'm processing your previous message.", history[1].Content)
	assert.False(t, history[1].IsUser)

	// The full persisted history alternates after recovery.
	for i := 1; i < len(history); i++ {
		assert.NotEqual(t, history[i-1].IsUser, history[i].IsUser)
	}
}

func TestStreamTurnPromptExcludesCurrentTurnRows(t *testing.T) {
	f := newTurnFixture()

	var events []StreamEvent
	require.NoError(t, f.service.StreamTurn(context.Background(), TurnInput{
		UserID:  1,
		Content: "only once please",
	}, collectEvents(&events)))

	var userTurns int
	for _, msg := range f.completion.lastMessages {
		if msg.Role == "user" && len(msg.Content) > 0 && msg.Content[0].Text == "only once please" {
			userTurns++
		}
	}
	assert.Equal(t, 1, userTurns, "the new user turn must appear exactly once in the prompt")
}

func TestStreamTurnRecordsFileAttachments(t *testing.T) {
	f := newTurnFixture()

	var events []StreamEvent
	err := f.service.StreamTurn(context.Background(), TurnInput{
		UserID:  1,
		Content: "check this file",
		Files: []FileAttachment{
			{Name: "report.txt", Path: "uploads/abc_report.txt", Content: "quarterly numbers"},
		},
	}, collectEvents(&events))

	require.NoError(t, err)
	require.Len(t, f.files.files, 1)
	assert.Equal(t, "report.txt", f.files.files[0].FileName)

	var marker *model.Message
	for i := range f.messages.messages {
		if f.messages.messages[i].FileID != nil {
			marker = &f.messages.messages[i]
		}
	}
	require.NotNil(t, marker)
	assert.Equal(t, "File attached: report.txt", marker.Content)
	assert.True(t, marker.IsUser)

	last := f.completion.lastMessages[len(f.completion.lastMessages)-1]
	require.Len(t, last.Content, 2)
	assert.Contains(t, last.Content[1].Text, "File: report.txt")
	assert.Contains(t, last.Content[1].Text, "quarterly numbers")
}

func TestStreamTurnUnknownChat(t *testing.T) {
	f := newTurnFixture()

	var events []StreamEvent
	err := f.service.StreamTurn(context.Background(), TurnInput{
		UserID:  1,
		ChatID:  99,
		Content: "hello?",
	}, collectEvents(&events))

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Type)
	assert.Equal(t, ErrChatNotFound.Error(), events[0].Content)
}

func TestGetHistoryIsIdempotent(t *testing.T) {
	f := newTurnFixture()

	var events []StreamEvent
	require.NoError(t, f.service.StreamTurn(context.Background(),
		TurnInput{UserID: 1, Content: "seed history"}, collectEvents(&events)))

	first, err := f.service.GetHistory(context.Background(), 1, 1)
	require.NoError(t, err)
	second, err := f.service.GetHistory(context.Background(), 1, 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGetHistoryUnknownChat(t *testing.T) {
	f := newTurnFixture()

	_, err := f.service.GetHistory(context.Background(), 1, 42)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "short", deriveTitle("short"))

	exactly50 := strings.Repeat("b", 50)
	assert.Equal(t, exactly50, deriveTitle(exactly50))

	sixty := strings.Repeat("c", 60)
	assert.Equal(t, strings.Repeat("c", 50)+"...", deriveTitle(sixty))
}
