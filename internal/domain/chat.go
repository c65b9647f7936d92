package domain

import (
	"bytes"
	"encoding/json"
)

// ChatMessage is the provider-agnostic chat message shape used by the handler
// and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesKind int

const (
	messagesInvalid messagesKind = iota
	messagesList
	messagesText
)

// Messages is the inbound "messages" field: either a list of chat messages or a
// single prompt string. Any other JSON shape decodes to a value that is neither.
type Messages struct {
	kind messagesKind
	list []ChatMessage
	text string
}

// MessageList builds the list variant.
func MessageList(msgs []ChatMessage) Messages {
	if msgs == nil {
		msgs = []ChatMessage{}
	}
	return Messages{kind: messagesList, list: msgs}
}

// PromptText builds the plain string variant.
func PromptText(s string) Messages {
	return Messages{kind: messagesText, text: s}
}

// List returns the messages and true when m is the list variant.
func (m Messages) List() ([]ChatMessage, bool) {
	return m.list, m.kind == messagesList
}

// Text returns the prompt and true when m is the string variant.
func (m Messages) Text() (string, bool) {
	return m.text, m.kind == messagesText
}

// UnmarshalJSON never fails on shape mismatches; it leaves m invalid so
// the caller can answer with a validation error instead of a decode error.
func (m *Messages) UnmarshalJSON(data []byte) error {
	*m = Messages{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*m = PromptText(s)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil
		}
		msgs := make([]ChatMessage, 0, len(items))
		for _, raw := range items {
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 || raw[0] != '{' {
				return nil
			}
			var cm ChatMessage
			if err := json.Unmarshal(raw, &cm); err != nil {
				return nil
			}
			msgs = append(msgs, cm)
		}
		*m = MessageList(msgs)
	}
	return nil
}
