package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/apps"
)

// call runs a tool handler directly, resolving it by name from the app.
func call(t *testing.T, app apps.App, name string, args map[string]any) (any, error) {
	t.Helper()
	for _, tool := range app.Tools() {
		if tool.Name == name {
			return tool.Handler(context.Background(), args)
		}
	}
	t.Fatalf("tool %s not found on app %s", name, app.Name())
	return nil, nil
}

func mustCall(t *testing.T, app apps.App, name string, args map[string]any) any {
	t.Helper()
	res, err := call(t, app, name, args)
	require.NoError(t, err)
	return res
}

func TestAllAppsRegister(t *testing.T) {
	r := apps.NewRegistry()
	for _, app := range []apps.App{
		NewAgentUserInterface(),
		NewFiles(),
		NewEmailClient("user@example.com"),
		NewMessaging("user"),
		NewContacts(),
		NewCalendar(),
		NewHome("kitchen"),
	} {
		require.NoError(t, r.RegisterApp(app), app.Name())
	}
	assert.Contains(t, r.ToolNames(), "agentuserinterface.send_message_to_user")
	assert.Contains(t, r.ToolNames(), "home.lock_door")
}

func TestAUIMessages(t *testing.T) {
	aui := NewAgentUserInterface()
	mustCall(t, aui, "send_message_to_agent", map[string]any{"content": "turn on the lights"})
	mustCall(t, aui, "send_message_to_user", map[string]any{"content": "done"})

	msgs := aui.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Sender)
	assert.Equal(t, "agent", msgs[1].Sender)
}

func TestFilesReadWriteList(t *testing.T) {
	f := NewFiles()
	mustCall(t, f, "write_file", map[string]any{"path": "/notes/todo.txt", "content": "milk"})
	mustCall(t, f, "write_file", map[string]any{"path": "/other.txt", "content": "x"})

	content := mustCall(t, f, "read_file", map[string]any{"path": "notes/todo.txt"})
	assert.Equal(t, "milk", content)

	listed := mustCall(t, f, "list_files", map[string]any{"path": "/notes"})
	assert.Equal(t, []string{"/notes/todo.txt"}, listed)

	_, err := call(t, f, "read_file", map[string]any{"path": "/missing"})
	assert.Error(t, err)

	mustCall(t, f, "delete_file", map[string]any{"path": "/other.txt"})
	assert.False(t, f.Exists("/other.txt"))
}

func TestEmailSendReceiveReplyForward(t *testing.T) {
	e := NewEmailClient("user@example.com")

	recvID := mustCall(t, e, "receive_email", map[string]any{
		"from": "boss@example.com", "subject": "report", "content": "please send",
	}).(string)

	mustCall(t, e, "reply_to_email", map[string]any{"email_id": recvID, "content": "attached"})
	mustCall(t, e, "forward_email", map[string]any{"email_id": recvID, "to": []any{"peer@example.com"}})
	mustCall(t, e, "send_email", map[string]any{
		"to": []any{"friend@example.com"}, "subject": "hi", "content": "hello",
	})

	sent := e.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "Re: report", sent[0].Subject)
	assert.Equal(t, []string{"boss@example.com"}, sent[0].To)
	assert.Equal(t, recvID, sent[0].InReplyTo)
	assert.Equal(t, "Fwd: report", sent[1].Subject)
	assert.Equal(t, "please send", sent[1].Content)

	inbox := mustCall(t, e, "get_emails", map[string]any{"folder": "inbox"}).([]EmailMessage)
	require.Len(t, inbox, 1)
	assert.Equal(t, "boss@example.com", inbox[0].From)
}

func TestMessagingConversation(t *testing.T) {
	m := NewMessaging("user")
	id := mustCall(t, m, "create_conversation", map[string]any{
		"participants": []any{"user", "alice"},
	}).(string)

	mustCall(t, m, "send_message", map[string]any{"conversation_id": id, "content": "hey"})
	mustCall(t, m, "send_message", map[string]any{
		"conversation_id": id, "content": "hi back", "sender": "alice",
	})

	msgs := mustCall(t, m, "get_messages", map[string]any{"conversation_id": id}).([]ChatMessage)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Sender)
	assert.Equal(t, "alice", msgs[1].Sender)

	_, err := call(t, m, "send_message", map[string]any{"conversation_id": "nope", "content": "x"})
	assert.Error(t, err)
}

func TestContactsSearchAndDelete(t *testing.T) {
	c := NewContacts()
	id := mustCall(t, c, "add_contact", map[string]any{
		"name": "Alice Smith", "phone": "+1 555 0100",
	}).(string)
	mustCall(t, c, "add_contact", map[string]any{"name": "Bob"})

	found := mustCall(t, c, "search_contacts", map[string]any{"query": "alice"}).([]Contact)
	require.Len(t, found, 1)
	assert.Equal(t, "Alice Smith", found[0].Name)

	mustCall(t, c, "delete_contact", map[string]any{"contact_id": id})
	all := mustCall(t, c, "get_contacts", nil).([]Contact)
	require.Len(t, all, 1)
	assert.Equal(t, "Bob", all[0].Name)
}

func TestCalendarAddListDelete(t *testing.T) {
	c := NewCalendar()
	id := mustCall(t, c, "add_calendar_event", map[string]any{
		"title":          "standup",
		"start_datetime": "2026-08-25 09:00:00",
		"end_datetime":   "2026-08-25 09:15:00",
		"attendees":      []any{"alice", "bob"},
	}).(string)
	mustCall(t, c, "add_calendar_event", map[string]any{
		"title":          "earlier",
		"start_datetime": "2026-08-25 08:00:00",
		"end_datetime":   "2026-08-25 08:30:00",
	})

	listed := c.Events()
	require.Len(t, listed, 2)
	assert.Equal(t, "earlier", listed[0].Title, "sorted by start time")
	assert.Equal(t, []string{"alice", "bob"}, listed[1].Attendees)

	mustCall(t, c, "delete_calendar_event", map[string]any{"event_id": id})
	assert.Len(t, c.Events(), 1)
}

func TestHomeControls(t *testing.T) {
	h := NewHome("kitchen", "bedroom")

	mustCall(t, h, "set_light", map[string]any{"name": "kitchen", "on": true})
	assert.True(t, h.LightOn("kitchen"))
	assert.False(t, h.LightOn("bedroom"))

	_, err := call(t, h, "set_light", map[string]any{"name": "garage", "on": true})
	assert.Error(t, err)

	mustCall(t, h, "set_thermostat", map[string]any{"target": 22.5})
	assert.Equal(t, 22.5, h.Thermostat())

	mustCall(t, h, "unlock_door", nil)
	assert.False(t, h.DoorLocked())
	mustCall(t, h, "lock_door", nil)
	assert.True(t, h.DoorLocked())
}

func TestStateRoundTrip(t *testing.T) {
	h := NewHome("kitchen")
	mustCall(t, h, "set_light", map[string]any{"name": "kitchen", "on": true})
	mustCall(t, h, "set_thermostat", map[string]any{"target": 18.0})

	snap, err := h.GetState()
	require.NoError(t, err)

	h.Reset()
	assert.False(t, h.LightOn("kitchen"))

	require.NoError(t, h.LoadState(snap))
	assert.True(t, h.LightOn("kitchen"))
	assert.Equal(t, 18.0, h.Thermostat())
}
