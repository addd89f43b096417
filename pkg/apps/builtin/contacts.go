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

// Contact is one address-book entry.
type Contact struct {
	ID    string `json:"contact_id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Contacts is the user's address book.
type Contacts struct {
	mu      sync.Mutex
	entries []Contact
}

func NewContacts() *Contacts {
	return &Contacts{}
}

func (c *Contacts) Name() string { return "contacts" }

func (c *Contacts) Tools() []apps.Tool {
	return []apps.Tool{
		{
			Name:          "add_contact",
			Description:   "Add a contact to the address book.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"name"},
				"additionalProperties": false,
				"properties": map[string]any{
					"name":  map[string]any{"type": "string"},
					"phone": map[string]any{"type": "string"},
					"email": map[string]any{"type": "string"},
				},
			},
			Handler: c.addContact,
		},
		{
			Name:          "get_contacts",
			Description:   "List all contacts.",
			OperationType: events.OperationRead,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           map[string]any{},
			},
			Handler: c.getContacts,
		},
		{
			Name:          "search_contacts",
			Description:   "Search contacts by name substring.",
			OperationType: events.OperationRead,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"query"},
				"additionalProperties": false,
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
			},
			Handler: c.searchContacts,
		},
		{
			Name:          "delete_contact",
			Description:   "Remove a contact by id.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"contact_id"},
				"additionalProperties": false,
				"properties": map[string]any{
					"contact_id": map[string]any{"type": "string"},
				},
			},
			Handler: c.deleteContact,
		},
	}
}

func (c *Contacts) addContact(_ context.Context, args map[string]any) (any, error) {
	name, err := stringArg(args, "name")
	if err != nil {
		return nil, err
	}
	entry := Contact{
		ID:    uuid.NewString(),
		Name:  name,
		Phone: optionalStringArg(args, "phone", ""),
		Email: optionalStringArg(args, "email", ""),
	}
	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
	return entry.ID, nil
}

func (c *Contacts) getContacts(context.Context, map[string]any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Contact, len(c.entries))
	copy(out, c.entries)
	return out, nil
}

func (c *Contacts) searchContacts(_ context.Context, args map[string]any) (any, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)

	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Contact
	for _, entry := range c.entries {
		if strings.Contains(strings.ToLower(entry.Name), needle) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (c *Contacts) deleteContact(_ context.Context, args map[string]any) (any, error) {
	id, err := stringArg(args, "contact_id")
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, entry := range c.entries {
		if entry.ID == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return "contact deleted", nil
		}
	}
	return nil, fmt.Errorf("contact not found: %s", id)
}

func (c *Contacts) GetState() (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return json.Marshal(struct {
		Contacts []Contact `json:"contacts"`
	}{c.entries})
}

func (c *Contacts) LoadState(state json.RawMessage) error {
	var s struct {
		Contacts []Contact `json:"contacts"`
	}
	if err := json.Unmarshal(state, &s); err != nil {
		return err
	}
	c.mu.Lock()
	c.entries = s.Contacts
	c.mu.Unlock()
	return nil
}

func (c *Contacts) Reset() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}
