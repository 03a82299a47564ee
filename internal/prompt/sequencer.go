package prompt

import (
	"fmt"
	"strings"

	"aidesk/internal/ai"
	"aidesk/internal/model"
)

const (
	fillerAssistant = "I understand."
	fillerUser      = "Please continue."
	fillerBeforeNew = "I understand. How can I help you?"

	// fileExcerptLimit bounds how much of an attached file reaches the prompt.
	fileExcerptLimit = 1000
)

// FileExcerpt is an attached file reduced to its name and decoded text.
type FileExcerpt struct {
	Name    string
	Content string
}

// Sequence turns a chronological history plus the new user turn into the
// strictly alternating message list the completion API requires. Whenever two
// consecutive history entries share a role, a fixed filler of the opposite
// role is bridged in; a final filler assistant entry guarantees the new user
// turn never follows a user entry.
func Sequence(history []model.Message, newUserText string, files []FileExcerpt) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(history)+2)

	lastRole := ""
	for _, msg := range history {
		role := "assistant"
		if msg.IsUser {
			role = "user"
		}
		if role == lastRole {
			if role == "user" {
				messages = append(messages, ai.ChatMessage{
					Role:    "assistant",
					Content: []ai.ContentBlock{ai.TextBlock(fillerAssistant)},
				})
			} else {
				messages = append(messages, ai.ChatMessage{
					Role:    "user",
					Content: []ai.ContentBlock{ai.TextBlock(fillerUser)},
				})
			}
		}
		messages = append(messages, ai.ChatMessage{
			Role:    role,
			Content: []ai.ContentBlock{ai.TextBlock(msg.Content)},
		})
		lastRole = role
	}

	// The API demands a leading user message, so an empty history gets no
	// bridge entry.
	if lastRole == "user" {
		messages = append(messages, ai.ChatMessage{
			Role:    "assistant",
			Content: []ai.ContentBlock{ai.TextBlock(fillerBeforeNew)},
		})
	}

	blocks := make([]ai.ContentBlock, 0, len(files)+1)
	if strings.TrimSpace(newUserText) != "" || len(files) == 0 {
		blocks = append(blocks, ai.TextBlock(newUserText))
	}
	for _, file := range files {
		blocks = append(blocks, ai.TextBlock(fmt.Sprintf("File: %s\nContent: %s", file.Name, truncate(file.Content, fileExcerptLimit))))
	}
	messages = append(messages, ai.ChatMessage{Role: "user", Content: blocks})

	return messages
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
