package usecase

import (
	"strings"

	"github.com/samber/lo"

	"chat-dispatch/internal/domain"
)

// geminiPrompt flattens messages into one prompt: list contents joined by
// newlines in order, or the string as-is. Roles are dropped.
func geminiPrompt(m domain.Messages) (string, bool) {
	if text, ok := m.Text(); ok {
		return text, true
	}
	list, ok := m.List()
	if !ok {
		return "", false
	}
	contents := lo.Map(list, func(msg domain.ChatMessage, _ int) string {
		return msg.Content
	})
	return strings.Join(contents, "\n"), true
}

// chatMessages projects a message list to role/content pairs. Only the list
// variant is accepted.
func chatMessages(m domain.Messages) ([]domain.ChatMessage, bool) {
	list, ok := m.List()
	if !ok {
		return nil, false
	}
	return lo.Map(list, func(msg domain.ChatMessage, _ int) domain.ChatMessage {
		return domain.ChatMessage{Role: msg.Role, Content: msg.Content}
	}), true
}
