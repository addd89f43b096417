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

// CalendarEvent is one scheduled entry. Datetimes are plain
// "YYYY-MM-DD HH:MM:SS" strings, matching what the agent sees.
type CalendarEvent struct {
	ID            string   `json:"event_id"`
	Title         string   `json:"title"`
	StartDatetime string   `json:"start_datetime"`
	EndDatetime   string   `json:"end_datetime"`
	Location      string   `json:"location,omitempty"`
	Attendees     []string `json:"attendees,omitempty"`
}

// Calendar is the user's calendar app.
type Calendar struct {
	mu      sync.Mutex
	entries map[string]CalendarEvent
}

func NewCalendar() *Calendar {
	return &Calendar{entries: make(map[string]CalendarEvent)}
}

func (c *Calendar) Name() string { return "calendar" }

func (c *Calendar) Tools() []apps.Tool {
	return []apps.Tool{
		{
			Name:          "add_calendar_event",
			Description:   "Create a calendar event.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"title", "start_datetime", "end_datetime"},
				"additionalProperties": false,
				"properties": map[string]any{
					"title":          map[string]any{"type": "string"},
					"start_datetime": map[string]any{"type": "string"},
					"end_datetime":   map[string]any{"type": "string"},
					"location":       map[string]any{"type": "string"},
					"attendees":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
			Handler: c.addEvent,
		},
		{
			Name:          "get_calendar_events",
			Description:   "List calendar events ordered by start time.",
			OperationType: events.OperationRead,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           map[string]any{},
			},
			Handler: c.getEvents,
		},
		{
			Name:          "delete_calendar_event",
			Description:   "Delete a calendar event by id.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"event_id"},
				"additionalProperties": false,
				"properties": map[string]any{
					"event_id": map[string]any{"type": "string"},
				},
			},
			Handler: c.deleteEvent,
		},
	}
}

func (c *Calendar) addEvent(_ context.Context, args map[string]any) (any, error) {
	title, err := stringArg(args, "title")
	if err != nil {
		return nil, err
	}
	start, err := stringArg(args, "start_datetime")
	if err != nil {
		return nil, err
	}
	end, err := stringArg(args, "end_datetime")
	if err != nil {
		return nil, err
	}
	var attendees []string
	if _, ok := args["attendees"]; ok {
		if attendees, err = stringSliceArg(args, "attendees"); err != nil {
			return nil, err
		}
	}

	entry := CalendarEvent{
		ID:            uuid.NewString(),
		Title:         title,
		StartDatetime: start,
		EndDatetime:   end,
		Location:      optionalStringArg(args, "location", ""),
		Attendees:     attendees,
	}
	c.mu.Lock()
	c.entries[entry.ID] = entry
	c.mu.Unlock()
	return entry.ID, nil
}

func (c *Calendar) getEvents(context.Context, map[string]any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CalendarEvent, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDatetime != out[j].StartDatetime {
			return out[i].StartDatetime < out[j].StartDatetime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *Calendar) deleteEvent(_ context.Context, args map[string]any) (any, error) {
	id, err := stringArg(args, "event_id")
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; !ok {
		return nil, fmt.Errorf("calendar event not found: %s", id)
	}
	delete(c.entries, id)
	return "event deleted", nil
}

// Events returns a copy of all entries, for scenario predicates.
func (c *Calendar) Events() []CalendarEvent {
	out, _ := c.getEvents(context.Background(), nil)
	return out.([]CalendarEvent)
}

func (c *Calendar) GetState() (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return json.Marshal(struct {
		Events map[string]CalendarEvent `json:"events"`
	}{c.entries})
}

func (c *Calendar) LoadState(state json.RawMessage) error {
	var s struct {
		Events map[string]CalendarEvent `json:"events"`
	}
	if err := json.Unmarshal(state, &s); err != nil {
		return err
	}
	if s.Events == nil {
		s.Events = make(map[string]CalendarEvent)
	}
	c.mu.Lock()
	c.entries = s.Events
	c.mu.Unlock()
	return nil
}

func (c *Calendar) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]CalendarEvent)
	c.mu.Unlock()
}
