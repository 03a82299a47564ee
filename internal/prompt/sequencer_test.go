package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aidesk/internal/model"
)

func historyFromFlags(flags []bool) []model.Message {
	history := make([]model.Message, 0, len(flags))
	for i, isUser := range flags {
		history = append(history, model.Message{
			ID:      uint(i + 1),
			Content: "turn",
			IsUser:  isUser,
		})
	}
	return history
}

func TestSequenceAlternation(t *testing.T) {
	patterns := [][]bool{
		{},
		{true},
		{false},
		{true, false},
		{true, true},
		{false, false},
		{true, true, true},
		{false, true, true, false, false},
		{true, false, true, true, false, false, true},
		{false, false, false, true, true, true},
	}

	for _, flags := range patterns {
		messages := Sequence(historyFromFlags(flags), "hello", nil)
		require.NotEmpty(t, messages)

		for i := 1; i < len(messages); i++ {
			assert.NotEqual(t, messages[i-1].Role, messages[i].Role,
				"consecutive entries %d and %d share role %q for pattern %v", i-1, i, messages[i].Role, flags)
		}

		last := messages[len(messages)-1]
		assert.Equal(t, "user", last.Role)
		assert.Equal(t, "hello", last.Content[0].Text)
	}
}

func TestSequenceBridgesRepeatedRoles(t *testing.T) {
	history := []model.Message{
		{ID: 1, Content: "first question", IsUser: true},
		{ID: 2, Content: "second question", IsUser: true},
	}

	messages := Sequence(history, "third question", nil)

	require.Len(t, messages, 5)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "I understand.", messages[1].Content[0].Text)
	assert.Equal(t, "user", messages[2].Role)
	assert.Equal(t, "assistant", messages[3].Role)
	assert.Equal(t, "I understand. How can I help you?", messages[3].Content[0].Text)
	assert.Equal(t, "user", messages[4].Role)
}

func TestSequenceBridgesRepeatedAssistantRoles(t *testing.T) {
	history := []model.Message{
		{ID: 1, Content: "question", IsUser: true},
		{ID: 2, Content: "answer", IsUser: false},
		{ID: 3, Content: "follow-up answer", IsUser: false},
	}

	messages := Sequence(history, "next", nil)

	require.Len(t, messages, 5)
	assert.Equal(t, "user", messages[2].Role)
	assert.Equal(t, "Please continue.", messages[2].Content[0].Text)
	assert.Equal(t, "assistant", messages[3].Role)
}

func TestSequenceEmptyHistory(t *testing.T) {
	messages := Sequence(nil, "hi", nil)

	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "hi", messages[0].Content[0].Text)
}

func TestSequenceFileBlocks(t *testing.T) {
	files := []FileExcerpt{
		{Name: "notes.txt", Content: "short content"},
		{Name: "big.txt", Content: strings.Repeat("x", 1500)},
	}

	messages := Sequence(nil, "look at these", files)

	last := messages[len(messages)-1]
	require.Len(t, last.Content, 3)
	assert.Equal(t, "look at these", last.Content[0].Text)
	assert.Contains(t, last.Content[1].Text, "File: notes.txt")
	assert.Contains(t, last.Content[1].Text, "short content")
	assert.Contains(t, last.Content[2].Text, "File: big.txt")
	assert.Contains(t, last.Content[2].Text, strings.Repeat("x", 1000)+"...")
	assert.NotContains(t, last.Content[2].Text, strings.Repeat("x", 1001))
}

func TestSequenceFilesOnlyTurn(t *testing.T) {
	files := []FileExcerpt{{Name: "doc.pdf", Content: "extracted"}}

	messages := Sequence(nil, "", files)

	last := messages[len(messages)-1]
	require.NotEmpty(t, last.Content)
	assert.Contains(t, last.Content[0].Text, "File: doc.pdf")
}
