package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/apps"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// Email folders.
const (
	FolderInbox = "inbox"
	FolderSent  = "sent"
)

// EmailMessage is one email in a folder.
type EmailMessage struct {
	ID        string   `json:"email_id"`
	From      string   `json:"from"`
	To        []string `json:"to"`
	Subject   string   `json:"subject"`
	Content   string   `json:"content"`
	InReplyTo string   `json:"in_reply_to,omitempty"`
}

// EmailClient simulates the user's mailbox. Environment events deliver mail
// through receive_email; the agent sends, replies, and forwards on the
// user's behalf.
type EmailClient struct {
	mu      sync.Mutex
	address string
	inbox   []EmailMessage
	sent    []EmailMessage
}

func NewEmailClient(address string) *EmailClient {
	return &EmailClient{address: address}
}

func (e *EmailClient) Name() string { return "email" }

func (e *EmailClient) Tools() []apps.Tool {
	return []apps.Tool{
		{
			Name:          "send_email",
			Description:   "Send an email from the user's address.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"to", "subject", "content"},
				"additionalProperties": false,
				"properties": map[string]any{
					"to":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"subject": map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
				},
			},
			Handler: e.sendEmail,
		},
		{
			Name:          "receive_email",
			Description:   "Deliver an email into the inbox.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"from", "subject", "content"},
				"additionalProperties": false,
				"properties": map[string]any{
					"from":    map[string]any{"type": "string"},
					"subject": map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
				},
			},
			Handler: e.receiveEmail,
		},
		{
			Name:          "get_emails",
			Description:   "List emails in a folder (inbox or sent).",
			OperationType: events.OperationRead,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"folder": map[string]any{"type": "string", "enum": []any{FolderInbox, FolderSent}},
				},
			},
			Handler: e.getEmails,
		},
		{
			Name:          "reply_to_email",
			Description:   "Reply to an email in the inbox.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"email_id", "content"},
				"additionalProperties": false,
				"properties": map[string]any{
					"email_id": map[string]any{"type": "string"},
					"content":  map[string]any{"type": "string"},
				},
			},
			Handler: e.replyToEmail,
		},
		{
			Name:          "forward_email",
			Description:   "Forward an inbox email to other recipients.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"email_id", "to"},
				"additionalProperties": false,
				"properties": map[string]any{
					"email_id": map[string]any{"type": "string"},
					"to":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
			Handler: e.forwardEmail,
		},
	}
}

func (e *EmailClient) sendEmail(_ context.Context, args map[string]any) (any, error) {
	to, err := stringSliceArg(args, "to")
	if err != nil {
		return nil, err
	}
	subject, err := stringArg(args, "subject")
	if err != nil {
		return nil, err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return nil, err
	}

	msg := EmailMessage{
		ID:      uuid.NewString(),
		From:    e.address,
		To:      to,
		Subject: subject,
		Content: content,
	}
	e.mu.Lock()
	e.sent = append(e.sent, msg)
	e.mu.Unlock()
	return msg.ID, nil
}

func (e *EmailClient) receiveEmail(_ context.Context, args map[string]any) (any, error) {
	from, err := stringArg(args, "from")
	if err != nil {
		return nil, err
	}
	subject, err := stringArg(args, "subject")
	if err != nil {
		return nil, err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return nil, err
	}

	msg := EmailMessage{
		ID:      uuid.NewString(),
		From:    from,
		To:      []string{e.address},
		Subject: subject,
		Content: content,
	}
	e.mu.Lock()
	e.inbox = append(e.inbox, msg)
	e.mu.Unlock()
	return msg.ID, nil
}

func (e *EmailClient) getEmails(_ context.Context, args map[string]any) (any, error) {
	folder := optionalStringArg(args, "folder", FolderInbox)

	e.mu.Lock()
	defer e.mu.Unlock()
	var src []EmailMessage
	switch folder {
	case FolderInbox:
		src = e.inbox
	case FolderSent:
		src = e.sent
	default:
		return nil, fmt.Errorf("unknown folder: %s", folder)
	}
	out := make([]EmailMessage, len(src))
	copy(out, src)
	return out, nil
}

func (e *EmailClient) replyToEmail(_ context.Context, args map[string]any) (any, error) {
	id, err := stringArg(args, "email_id")
	if err != nil {
		return nil, err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	orig, ok := e.findInbox(id)
	if !ok {
		return nil, fmt.Errorf("email not found: %s", id)
	}
	msg := EmailMessage{
		ID:        uuid.NewString(),
		From:      e.address,
		To:        []string{orig.From},
		Subject:   replySubject(orig.Subject),
		Content:   content,
		InReplyTo: orig.ID,
	}
	e.sent = append(e.sent, msg)
	return msg.ID, nil
}

func (e *EmailClient) forwardEmail(_ context.Context, args map[string]any) (any, error) {
	id, err := stringArg(args, "email_id")
	if err != nil {
		return nil, err
	}
	to, err := stringSliceArg(args, "to")
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	orig, ok := e.findInbox(id)
	if !ok {
		return nil, fmt.Errorf("email not found: %s", id)
	}
	msg := EmailMessage{
		ID:      uuid.NewString(),
		From:    e.address,
		To:      to,
		Subject: forwardSubject(orig.Subject),
		Content: orig.Content,
	}
	e.sent = append(e.sent, msg)
	return msg.ID, nil
}

func (e *EmailClient) findInbox(id string) (EmailMessage, bool) {
	for _, m := range e.inbox {
		if m.ID == id {
			return m, true
		}
	}
	return EmailMessage{}, false
}

func replySubject(s string) string {
	if strings.HasPrefix(s, "Re: ") {
		return s
	}
	return "Re: " + s
}

func forwardSubject(s string) string {
	if strings.HasPrefix(s, "Fwd: ") {
		return s
	}
	return "Fwd: " + s
}

// Inbox returns a copy of the inbox, for scenario predicates.
func (e *EmailClient) Inbox() []EmailMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]EmailMessage, len(e.inbox))
	copy(out, e.inbox)
	return out
}

// Sent returns a copy of the sent folder, for scenario predicates.
func (e *EmailClient) Sent() []EmailMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]EmailMessage, len(e.sent))
	copy(out, e.sent)
	return out
}

type emailState struct {
	Address string         `json:"address"`
	Inbox   []EmailMessage `json:"inbox"`
	Sent    []EmailMessage `json:"sent"`
}

func (e *EmailClient) GetState() (json.RawMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.Marshal(emailState{Address: e.address, Inbox: e.inbox, Sent: e.sent})
}

func (e *EmailClient) LoadState(state json.RawMessage) error {
	var s emailState
	if err := json.Unmarshal(state, &s); err != nil {
		return err
	}
	e.mu.Lock()
	e.address = s.Address
	e.inbox = s.Inbox
	e.sent = s.Sent
	e.mu.Unlock()
	return nil
}

func (e *EmailClient) Reset() {
	e.mu.Lock()
	e.inbox = nil
	e.sent = nil
	e.mu.Unlock()
}
