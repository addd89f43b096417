package builtin

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/apps"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// AgentUserInterface is the message channel between the simulated user and
// the agent. User turns arrive as scheduled send_message_to_agent events;
// agent replies are send_message_to_user calls.
type AgentUserInterface struct {
	mu       sync.Mutex
	messages []AUIMessage
}

// AUIMessage is one message in either direction.
type AUIMessage struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

func NewAgentUserInterface() *AgentUserInterface {
	return &AgentUserInterface{}
}

func (a *AgentUserInterface) Name() string { return "agentuserinterface" }

func (a *AgentUserInterface) Tools() []apps.Tool {
	messageSchema := map[string]any{
		"type":                 "object",
		"required":             []any{"content"},
		"additionalProperties": false,
		"properties": map[string]any{
			"content": map[string]any{"type": "string"},
		},
	}
	return []apps.Tool{
		{
			Name:          "send_message_to_user",
			Description:   "Send a message from the agent to the user.",
			OperationType: events.OperationWrite,
			ArgsSchema:    messageSchema,
			Handler:       a.sendTo("agent"),
		},
		{
			Name:          "send_message_to_agent",
			Description:   "Deliver a user message to the agent.",
			OperationType: events.OperationWrite,
			ArgsSchema:    messageSchema,
			Handler:       a.sendTo("user"),
		},
	}
}

func (a *AgentUserInterface) sendTo(sender string) apps.Handler {
	return func(_ context.Context, args map[string]any) (any, error) {
		content, err := stringArg(args, "content")
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.messages = append(a.messages, AUIMessage{Sender: sender, Content: content})
		a.mu.Unlock()
		return "message sent", nil
	}
}

// Messages returns a copy of the conversation so far.
func (a *AgentUserInterface) Messages() []AUIMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AUIMessage, len(a.messages))
	copy(out, a.messages)
	return out
}

func (a *AgentUserInterface) GetState() (json.RawMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return json.Marshal(struct {
		Messages []AUIMessage `json:"messages"`
	}{a.messages})
}

func (a *AgentUserInterface) LoadState(state json.RawMessage) error {
	var s struct {
		Messages []AUIMessage `json:"messages"`
	}
	if err := json.Unmarshal(state, &s); err != nil {
		return err
	}
	a.mu.Lock()
	a.messages = s.Messages
	a.mu.Unlock()
	return nil
}

func (a *AgentUserInterface) Reset() {
	a.mu.Lock()
	a.messages = nil
	a.mu.Unlock()
}
