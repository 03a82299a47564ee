package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"aidesk/internal/ai"
	"aidesk/internal/model"
	"aidesk/internal/prompt"
	"aidesk/internal/repository"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrEmptyTurn    = errors.New("message is empty and no files are attached")

	// errStoreRead marks a durable-store read failure during prompt
	// composition. Unlike upstream failures it is not retried.
	errStoreRead = errors.New("load chat state failed")
)

const (
	defaultChatTitle     = "New Chat"
	titleLimit           = 50
	placeholderAssistant = "I'm processing your previous message."
	emptyModelResponse   = "The model returned an empty response."
	exhaustedMessage     = "The assistant is unavailable right now. Please try again later."
)

// Narrow store interfaces consumed by the orchestrator. The gorm repositories
// satisfy them; tests substitute in-memory fakes.
type ChatStore interface {
	Create(chat *model.Chat) error
	ListByUserID(userID uint) ([]model.Chat, error)
	GetByIDAndUserID(chatID, userID uint) (*model.Chat, error)
	UpdateTitle(chatID uint, title string) error
	DeleteByIDAndUserID(chatID, userID uint) error
}

type MessageStore interface {
	Create(message *model.Message) error
	ListByChatID(chatID uint) ([]model.Message, error)
	ListByChatIDWithFiles(chatID uint) ([]repository.MessageWithFile, error)
	LastByChatID(chatID uint) (*model.Message, error)
	CountByChatID(chatID uint) (int64, error)
	DeleteByChatID(chatID uint) error
}

type ChatFileStore interface {
	Create(file *model.ChatFile) error
	DeleteByChatID(chatID uint) error
}

type KnowledgeStore interface {
	ListAll() ([]model.KnowledgeItem, error)
	Search(query string) ([]model.KnowledgeItem, error)
}

type ContextStore interface {
	ListByUserID(userID uint) ([]model.Context, error)
}

type CompletionClient interface {
	StreamComplete(ctx context.Context, cfg ai.ChatConfig, system string, messages []ai.ChatMessage, onDelta func(delta string) error) (string, error)
}

type PromptLogPublisher interface {
	Publish(ctx context.Context, entry model.PromptLog) error
}

type TurnLocker interface {
	Acquire(ctx context.Context, chatID uint) (string, error)
	Release(ctx context.Context, chatID uint, token string) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, chatID uint) ([]repository.MessageWithFile, bool, error)
	SetHistory(ctx context.Context, chatID uint, messages []repository.MessageWithFile) error
	DeleteHistory(ctx context.Context, chatID uint) error
	MarkDirty(ctx context.Context, chatID uint) error
	IsDirty(ctx context.Context, chatID uint) (bool, error)
}

// StreamEvent is one outbound frame of a streamed turn. Type is "message",
// "error" or "done"; exactly one "done" frame closes a successful turn.
type StreamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	ChatID  uint   `json:"chat_id,omitempty"`
}

// FileAttachment is an uploaded file reduced to what the turn needs: the
// original name, where it was stored, and its decoded text.
type FileAttachment struct {
	Name    string
	Path    string
	Content string
}

type TurnInput struct {
	UserID  uint
	ChatID  uint // 0 = create a new chat
	Content string
	Feature model.Feature
	Files   []FileAttachment
}

type TurnOptions struct {
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

type ChatService struct {
	chats      ChatStore
	messages   MessageStore
	files      ChatFileStore
	knowledge  KnowledgeStore
	contexts   ContextStore
	completion CompletionClient
	publisher  PromptLogPublisher
	cache      HistoryCache
	locker     TurnLocker

	llm         ai.ChatConfig
	maxAttempts int
	retryBase   time.Duration
	sleep       func(time.Duration)
}

func NewChatService(
	chats ChatStore,
	messages MessageStore,
	files ChatFileStore,
	knowledge KnowledgeStore,
	contexts ContextStore,
	completion CompletionClient,
	publisher PromptLogPublisher,
	cache HistoryCache,
	locker TurnLocker,
	llm ai.ChatConfig,
	opts TurnOptions,
) *ChatService {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	return &ChatService{
		chats:       chats,
		messages:    messages,
		files:       files,
		knowledge:   knowledge,
		contexts:    contexts,
		completion:  completion,
		publisher:   publisher,
		cache:       cache,
		locker:      locker,
		llm:         llm,
		maxAttempts: opts.MaxAttempts,
		retryBase:   opts.RetryBaseDelay,
		sleep:       time.Sleep,
	}
}

// StreamTurn drives one chat turn and relays its frames through emit. After
// the first frame all errors travel in-band as "error" frames, so StreamTurn
// itself returns nil unless the inputs were unusable before any frame was
// written. A broken emit (client gone) stops the relay but not the turn: the
// upstream response is still accumulated and persisted.
func (s *ChatService) StreamTurn(ctx context.Context, input TurnInput, emit func(StreamEvent) error) error {
	if input.UserID == 0 {
		return ErrInvalidInput
	}

	relayFailed := false
	relay := func(ev StreamEvent) {
		if relayFailed {
			return
		}
		if err := emit(ev); err != nil {
			relayFailed = true
			log.Printf("relay frame to client failed (chat %d): %v", input.ChatID, err)
		}
	}

	content := strings.TrimSpace(input.Content)
	if content == "" && len(input.Files) == 0 {
		relay(StreamEvent{Type: "error", Content: ErrEmptyTurn.Error()})
		return nil
	}

	// The turn keeps going if the client disconnects mid-stream so history
	// stays consistent; only the relay is dropped.
	turnCtx := context.WithoutCancel(ctx)

	chatID := input.ChatID
	if chatID == 0 {
		chat := &model.Chat{
			UserID:  input.UserID,
			Title:   defaultChatTitle,
			Feature: string(input.Feature),
		}
		if err := s.chats.Create(chat); err != nil {
			log.Printf("create chat for user %d failed: %v", input.UserID, err)
			relay(StreamEvent{Type: "error", Content: "failed to create chat"})
			return nil
		}
		chatID = chat.ID
	} else {
		chat, err := s.chats.GetByIDAndUserID(chatID, input.UserID)
		if err != nil {
			log.Printf("load chat %d failed: %v", chatID, err)
			relay(StreamEvent{Type: "error", Content: "failed to load chat"})
			return nil
		}
		if chat == nil {
			relay(StreamEvent{Type: "error", Content: ErrChatNotFound.Error()})
			return nil
		}
	}

	if s.locker != nil {
		token, err := s.locker.Acquire(turnCtx, chatID)
		if err != nil {
			log.Printf("acquire lock for chat %d failed: %v", chatID, err)
			relay(StreamEvent{Type: "error", Content: "chat is busy, try again"})
			return nil
		}
		defer func() {
			if err := s.locker.Release(turnCtx, chatID, token); err != nil {
				log.Printf("release lock for chat %d failed: %v", chatID, err)
			}
		}()
	}

	count, err := s.messages.CountByChatID(chatID)
	if err != nil {
		log.Printf("count history for chat %d failed: %v", chatID, err)
		relay(StreamEvent{Type: "error", Content: "failed to load chat history"})
		return nil
	}

	if count == 0 && content != "" {
		if err := s.chats.UpdateTitle(chatID, deriveTitle(content)); err != nil {
			log.Printf("update title for chat %d failed: %v", chatID, err)
		}
	}

	// A trailing user message means a previous turn never got its assistant
	// reply. Bridge it so role alternation survives the crash.
	if count > 0 {
		last, err := s.messages.LastByChatID(chatID)
		if err != nil {
			log.Printf("load last message for chat %d failed: %v", chatID, err)
			relay(StreamEvent{Type: "error", Content: "failed to load chat history"})
			return nil
		}
		if last != nil && last.IsUser {
			placeholder := &model.Message{ChatID: chatID, Content: placeholderAssistant, IsUser: false}
			if err := s.persistMessage(turnCtx, placeholder); err != nil {
				relay(StreamEvent{Type: "error", Content: "failed to update chat history"})
				return nil
			}
		}
	}

	if content != "" {
		hits, err := s.knowledge.Search(content)
		if err != nil {
			log.Printf("knowledge search failed for chat %d: %v", chatID, err)
			relay(StreamEvent{Type: "error", Content: "failed to search knowledge base"})
			return nil
		}
		if len(hits) > 0 {
			// First match wins; no LLM call for direct FAQ hits.
			answer := hits[0].Answer
			if hits[0].ImagePath != "" {
				answer += "\n " + hits[0].ImagePath
			}
			if err := s.persistMessage(turnCtx, &model.Message{ChatID: chatID, Content: answer, IsUser: false}); err != nil {
				relay(StreamEvent{Type: "error", Content: "failed to save response"})
				return nil
			}
			relay(StreamEvent{Type: "message", Content: answer})
			relay(StreamEvent{Type: "done", ChatID: chatID})
			return nil
		}
	}

	// This turn's own rows are written before the call; prompt building below
	// excludes them so the model sees each exchange exactly once.
	var turnFloorID uint
	userMessage := &model.Message{ChatID: chatID, Content: content, IsUser: true}
	if err := s.persistMessage(turnCtx, userMessage); err != nil {
		relay(StreamEvent{Type: "error", Content: "failed to save message"})
		return nil
	}
	turnFloorID = userMessage.ID

	excerpts := make([]prompt.FileExcerpt, 0, len(input.Files))
	for _, attachment := range input.Files {
		file := &model.ChatFile{ChatID: chatID, FileName: attachment.Name, FilePath: attachment.Path}
		if err := s.files.Create(file); err != nil {
			log.Printf("record file %q for chat %d failed: %v", attachment.Name, chatID, err)
			relay(StreamEvent{Type: "error", Content: "failed to save attachment"})
			return nil
		}
		fileID := file.ID
		marker := &model.Message{
			ChatID:  chatID,
			Content: "File attached: " + attachment.Name,
			IsUser:  true,
			FileID:  &fileID,
		}
		if err := s.persistMessage(turnCtx, marker); err != nil {
			relay(StreamEvent{Type: "error", Content: "failed to save attachment"})
			return nil
		}
		excerpts = append(excerpts, prompt.FileExcerpt{Name: attachment.Name, Content: attachment.Content})
	}

	full, err := s.callWithRetry(turnCtx, input, chatID, content, turnFloorID, excerpts, relay)
	if err != nil {
		message := exhaustedMessage
		if errors.Is(err, errStoreRead) {
			message = "failed to load chat history"
		}
		relay(StreamEvent{Type: "error", Content: message})
		return nil
	}

	full = strings.TrimSpace(full)
	if full == "" {
		full = emptyModelResponse
	}
	if err := s.persistMessage(turnCtx, &model.Message{ChatID: chatID, Content: full, IsUser: false}); err != nil {
		relay(StreamEvent{Type: "error", Content: "failed to save response"})
		return nil
	}

	relay(StreamEvent{Type: "done", ChatID: chatID})
	return nil
}

// callWithRetry recomposes the prompt from freshly reloaded state on every
// attempt and backs off exponentially between upstream failures. Messages
// written for the current turn (id >= turnFloorID) are excluded from the
// history so the new user turn is not duplicated. Store read failures are
// returned immediately, wrapped in errStoreRead; only the upstream call is
// retried.
func (s *ChatService) callWithRetry(
	ctx context.Context,
	input TurnInput,
	chatID uint,
	content string,
	turnFloorID uint,
	excerpts []prompt.FileExcerpt,
	relay func(StreamEvent),
) (string, error) {
	delay := s.retryBase
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		history, err := s.messages.ListByChatID(chatID)
		if err != nil {
			return "", fmt.Errorf("%w: %v", errStoreRead, err)
		}
		prior := history[:0:0]
		for _, msg := range history {
			if turnFloorID != 0 && msg.ID >= turnFloorID {
				continue
			}
			prior = append(prior, msg)
		}

		var faqItems []model.KnowledgeItem
		if input.Feature == model.FeatureFAQBot {
			faqItems, err = s.knowledge.ListAll()
			if err != nil {
				return "", fmt.Errorf("%w: %v", errStoreRead, err)
			}
		}
		contexts, err := s.contexts.ListByUserID(input.UserID)
		if err != nil {
			return "", fmt.Errorf("%w: %v", errStoreRead, err)
		}

		system := prompt.ComposeSystemPrompt(input.Feature, faqItems, contexts)
		messages := prompt.Sequence(prior, content, excerpts)

		full, callErr := s.completion.StreamComplete(ctx, s.llm, system, messages, func(delta string) error {
			relay(StreamEvent{Type: "message", Content: delta})
			return nil
		})
		if callErr == nil {
			s.logPrompt(ctx, input.UserID, chatID, system, messages)
			return full, nil
		}
		lastErr = callErr
		log.Printf("llm attempt %d/%d for user %d chat %d failed: %v",
			attempt, s.maxAttempts, input.UserID, chatID, callErr)

		if attempt < s.maxAttempts {
			s.sleep(delay)
			delay *= 2
		}
	}
	return "", lastErr
}

func (s *ChatService) logPrompt(ctx context.Context, userID, chatID uint, system string, messages []ai.ChatMessage) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		log.Printf("marshal prompt transcript failed: %v", err)
		return
	}
	entry := model.PromptLog{
		UserID:       userID,
		ChatID:       chatID,
		SystemPrompt: system,
		Messages:     string(payload),
	}
	if err := s.publisher.Publish(ctx, entry); err != nil {
		// Transcript logging is bookkeeping; the turn succeeded regardless.
		log.Printf("publish prompt transcript failed: %v", err)
	}
}

func (s *ChatService) persistMessage(ctx context.Context, message *model.Message) error {
	if s.cache != nil {
		_ = s.cache.MarkDirty(ctx, message.ChatID)
		_ = s.cache.DeleteHistory(ctx, message.ChatID)
	}
	if err := s.messages.Create(message); err != nil {
		log.Printf("persist message for chat %d failed: %v", message.ChatID, err)
		return err
	}
	return nil
}

func (s *ChatService) ListChats(userID uint) ([]model.Chat, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.chats.ListByUserID(userID)
}

func (s *ChatService) GetHistory(ctx context.Context, userID, chatID uint) ([]repository.MessageWithFile, error) {
	if userID == 0 || chatID == 0 {
		return nil, ErrInvalidInput
	}

	chat, err := s.chats.GetByIDAndUserID(chatID, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	if s.cache != nil {
		dirty, err := s.cache.IsDirty(ctx, chatID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.cache.GetHistory(ctx, chatID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.messages.ListByChatIDWithFiles(chatID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if dirty, dirtyErr := s.cache.IsDirty(ctx, chatID); dirtyErr == nil && !dirty {
			_ = s.cache.SetHistory(ctx, chatID, messages)
		}
	}
	return messages, nil
}

func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID uint) error {
	if userID == 0 || chatID == 0 {
		return ErrInvalidInput
	}
	chat, err := s.chats.GetByIDAndUserID(chatID, userID)
	if err != nil {
		return err
	}
	if chat == nil {
		return ErrChatNotFound
	}
	if err := s.messages.DeleteByChatID(chatID); err != nil {
		return err
	}
	if err := s.files.DeleteByChatID(chatID); err != nil {
		return err
	}
	if err := s.chats.DeleteByIDAndUserID(chatID, userID); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.DeleteHistory(ctx, chatID)
	}
	return nil
}

func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleLimit {
		return content
	}
	return string(runes[:titleLimit]) + "..."
}
