package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/apps"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// ChatMessage is one message inside a conversation.
type ChatMessage struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// Conversation groups messages between participants.
type Conversation struct {
	ID           string        `json:"conversation_id"`
	Participants []string      `json:"participants"`
	Messages     []ChatMessage `json:"messages"`
}

// Messaging simulates a chat app with named conversations.
type Messaging struct {
	mu            sync.Mutex
	self          string
	conversations map[string]*Conversation
}

func NewMessaging(self string) *Messaging {
	return &Messaging{self: self, conversations: make(map[string]*Conversation)}
}

func (m *Messaging) Name() string { return "messaging" }

func (m *Messaging) Tools() []apps.Tool {
	return []apps.Tool{
		{
			Name:          "create_conversation",
			Description:   "Start a conversation with the given participants.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"participants"},
				"additionalProperties": false,
				"properties": map[string]any{
					"participants": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
			Handler: m.createConversation,
		},
		{
			Name:          "send_message",
			Description:   "Send a message in an existing conversation.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"conversation_id", "content"},
				"additionalProperties": false,
				"properties": map[string]any{
					"conversation_id": map[string]any{"type": "string"},
					"content":         map[string]any{"type": "string"},
					"sender":          map[string]any{"type": "string"},
				},
			},
			Handler: m.sendMessage,
		},
		{
			Name:          "get_messages",
			Description:   "Read the messages of a conversation.",
			OperationType: events.OperationRead,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"conversation_id"},
				"additionalProperties": false,
				"properties": map[string]any{
					"conversation_id": map[string]any{"type": "string"},
				},
			},
			Handler: m.getMessages,
		},
		{
			Name:          "list_conversations",
			Description:   "List conversation ids and participants.",
			OperationType: events.OperationRead,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           map[string]any{},
			},
			Handler: m.listConversations,
		},
	}
}

func (m *Messaging) createConversation(_ context.Context, args map[string]any) (any, error) {
	participants, err := stringSliceArg(args, "participants")
	if err != nil {
		return nil, err
	}
	conv := &Conversation{ID: uuid.NewString(), Participants: participants}
	m.mu.Lock()
	m.conversations[conv.ID] = conv
	m.mu.Unlock()
	return conv.ID, nil
}

func (m *Messaging) sendMessage(_ context.Context, args map[string]any) (any, error) {
	id, err := stringArg(args, "conversation_id")
	if err != nil {
		return nil, err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return nil, err
	}
	sender := optionalStringArg(args, "sender", m.self)

	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation not found: %s", id)
	}
	conv.Messages = append(conv.Messages, ChatMessage{Sender: sender, Content: content})
	return "message sent", nil
}

func (m *Messaging) getMessages(_ context.Context, args map[string]any) (any, error) {
	id, err := stringArg(args, "conversation_id")
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation not found: %s", id)
	}
	out := make([]ChatMessage, len(conv.Messages))
	copy(out, conv.Messages)
	return out, nil
}

func (m *Messaging) listConversations(context.Context, map[string]any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		out = append(out, Conversation{ID: c.ID, Participants: c.Participants})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type messagingState struct {
	Self          string                   `json:"self"`
	Conversations map[string]*Conversation `json:"conversations"`
}

func (m *Messaging) GetState() (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return json.Marshal(messagingState{Self: m.self, Conversations: m.conversations})
}

func (m *Messaging) LoadState(state json.RawMessage) error {
	var s messagingState
	if err := json.Unmarshal(state, &s); err != nil {
		return err
	}
	if s.Conversations == nil {
		s.Conversations = make(map[string]*Conversation)
	}
	m.mu.Lock()
	m.self = s.Self
	m.conversations = s.Conversations
	m.mu.Unlock()
	return nil
}

func (m *Messaging) Reset() {
	m.mu.Lock()
	m.conversations = make(map[string]*Conversation)
	m.mu.Unlock()
}
