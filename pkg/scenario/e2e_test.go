package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/apps/builtin"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/env"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/judge"
)

// End-to-end scenarios: author a scenario, replay or synthesize an agent
// trace, and judge it.

func runGraphJudge(t *testing.T, cfg *judge.Config, s *Scenario,
	trace []*events.CompletedEvent) *judge.Judgment {
	t.Helper()
	turnOf := func(id string) int {
		turn, _ := s.TurnIndex(id)
		return turn
	}
	j, err := judge.NewGraphJudge(cfg, nil).Judge(context.Background(), trace, s.Events(), turnOf)
	require.NoError(t, err)
	return j
}

func completedAgentCall(id, app, function string, args map[string]any,
	at float64, ret any) *events.CompletedEvent {
	e := events.NewWithAction(events.EventTypeAgent, &events.Action{
		App:           app,
		Function:      function,
		Args:          args,
		OperationType: events.OperationWrite,
	}).WithID(id)
	e.Time = &at
	return e.Completed(events.Metadata{ReturnValue: ret, Completed: true})
}

func completedOf(e *events.Event, ret any) *events.CompletedEvent {
	return e.Completed(events.Metadata{ReturnValue: ret, Completed: true})
}

// A scattered directory with one image; the agent must name it to the user.
func buildFindImageScenario(t *testing.T) *Scenario {
	t.Helper()
	s := New("find_image", env.Config{Duration: 30, QueueBasedLoop: true})
	require.NoError(t, s.Registry().RegisterApp(builtin.NewAgentUserInterface()))

	files := builtin.NewFiles()
	contents := map[string]string{"/llama.jpg": "\xff\xd8 not really a jpeg"}
	for _, name := range []string{"notes", "todo", "draft", "log", "ideas",
		"recipe", "report", "budget", "letter", "misc"} {
		contents["/"+name+".txt"] = "text"
	}
	raw, err := json.Marshal(map[string]any{"files": contents})
	require.NoError(t, err)
	require.NoError(t, files.LoadState(raw))
	require.NoError(t, s.Registry().RegisterApp(files))

	prompt := userPrompt(t, s, "u1", "find the image file in my documents and send me its name", 0)
	require.NoError(t, s.AddEvent(prompt))

	oracle := agentReply(t, s, "o1", "llama.jpg", prompt, 1)
	oracle.Oracle()
	require.NoError(t, s.AddEvent(oracle))
	return s
}

func findImageJudgeConfig() *judge.Config {
	return &judge.Config{
		PerToolArgCheckers: map[string]map[string]judge.CheckerType{
			"agentuserinterface.send_message_to_user": {"content": judge.CheckerContainAll},
		},
	}
}

func TestFindImageOracleReplayAndReflexivity(t *testing.T) {
	s := buildFindImageScenario(t)

	trace, err := s.ReplayOracle(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, trace, 2)

	aui, _ := s.Registry().App("agentuserinterface")
	msgs := aui.(*builtin.AgentUserInterface).Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "llama.jpg", msgs[1].Content)

	j := runGraphJudge(t, findImageJudgeConfig(), s, trace)
	assert.True(t, j.Success, j.FailureReason)
}

func TestFindImageToleratesExtraReads(t *testing.T) {
	s := buildFindImageScenario(t)
	u1, _ := s.Event("u1")
	u1.ResolveAbsoluteTime(0)

	trace := []*events.CompletedEvent{completedOf(u1, "message sent")}
	for i, p := range []string{"/notes.txt", "/todo.txt", "/llama.jpg"} {
		read := completedAgentCall(fmt.Sprintf("r%d", i), "files", "read_file",
			map[string]any{"path": p}, float64(i), "content")
		read.Action.OperationType = events.OperationRead
		trace = append(trace, read)
	}
	trace = append(trace, completedAgentCall("a1", "agentuserinterface", "send_message_to_user",
		map[string]any{"content": "I found llama.jpg in your documents"}, 4, "message sent"))

	j := runGraphJudge(t, findImageJudgeConfig(), s, trace)
	assert.True(t, j.Success, j.FailureReason)
	assert.Equal(t, "o1", j.AgentToOracle["a1"])
}

func TestFindImageWrongAnswerFails(t *testing.T) {
	s := buildFindImageScenario(t)
	u1, _ := s.Event("u1")
	u1.ResolveAbsoluteTime(0)

	trace := []*events.CompletedEvent{
		completedOf(u1, "message sent"),
		completedAgentCall("a1", "agentuserinterface", "send_message_to_user",
			map[string]any{"content": "I could not find any image"}, 1, "message sent"),
	}

	j := runGraphJudge(t, findImageJudgeConfig(), s, trace)
	require.False(t, j.Success)
	match, ok := j.Failure.(*judge.OracleEventMatchingFailure)
	require.True(t, ok, j.FailureReason)
	assert.Equal(t, "o1", match.OracleID)
}

// A forwarding task with a distractor message thread: when Greg's email
// arrives the agent forwards it to John.
func buildForwardScenario(t *testing.T) *Scenario {
	t.Helper()
	s := New("forward_on_arrival", env.Config{Duration: 60, QueueBasedLoop: true})
	require.NoError(t, s.Registry().RegisterApp(builtin.NewAgentUserInterface()))
	require.NoError(t, s.Registry().RegisterApp(builtin.NewEmailClient("user@example.com")))
	require.NoError(t, s.Registry().RegisterApp(builtin.NewMessaging("user")))

	prompt := userPrompt(t, s, "u1",
		"when the email from Greg arrives, forward it to John Doe", 0)
	require.NoError(t, s.AddEvent(prompt))

	conv := events.NewWithAction(events.EventTypeEnv, &events.Action{
		App: "messaging", Function: "create_conversation",
		Args:          map[string]any{"participants": []any{"John Doe"}},
		OperationType: events.OperationWrite,
	}).WithID("m0")
	require.NoError(t, conv.DependsOn(prompt, 4))
	require.NoError(t, s.AddEvent(conv))

	ping := events.NewWithAction(events.EventTypeEnv, &events.Action{
		App: "messaging", Function: "send_message",
		Args: map[string]any{
			"conversation_id": "{{m0}}",
			"content":         "lunch tomorrow?",
			"sender":          "John Doe",
		},
		OperationType: events.OperationWrite,
	}).WithID("m1")
	require.NoError(t, ping.DependsOn(conv, 1))
	require.NoError(t, s.AddEvent(ping))

	gregMail := events.NewWithAction(events.EventTypeEnv, &events.Action{
		App: "email", Function: "receive_email",
		Args: map[string]any{
			"from":    "greg@example.com",
			"subject": "Q3 numbers",
			"content": "attached: music.pdf",
		},
		OperationType: events.OperationWrite,
	}).WithID("e_greg")
	require.NoError(t, gregMail.DependsOn(prompt, 16))
	require.NoError(t, s.AddEvent(gregMail))

	forward := events.NewWithAction(events.EventTypeAgent, &events.Action{
		App: "email", Function: "forward_email",
		Args: map[string]any{
			"email_id": "{{e_greg}}",
			"to":       []any{"johndoe@example.com"},
		},
		OperationType: events.OperationWrite,
	}).WithID("o1").Oracle()
	require.NoError(t, forward.DependsOn(gregMail, 1))
	require.NoError(t, s.AddEvent(forward))
	return s
}

func forwardJudgeConfig() *judge.Config {
	return &judge.Config{
		PerToolArgCheckers: map[string]map[string]judge.CheckerType{
			"email.forward_email": {"to": judge.CheckerUnorderedList},
		},
	}
}

func TestForwardOnArrivalOracleReplay(t *testing.T) {
	s := buildForwardScenario(t)

	trace, err := s.ReplayOracle(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, trace, 5)

	email, _ := s.Registry().App("email")
	sent := email.(*builtin.EmailClient).Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Fwd: Q3 numbers", sent[0].Subject)
	assert.Equal(t, []string{"johndoe@example.com"}, sent[0].To)

	j := runGraphJudge(t, forwardJudgeConfig(), s, trace)
	assert.True(t, j.Success, j.FailureReason)
}

func TestForwardToWrongRecipientFails(t *testing.T) {
	s := buildForwardScenario(t)

	trace, err := s.ReplayOracle(context.Background(), nil)
	require.NoError(t, err)

	// Swap the oracle's forward for one addressed to the wrong person.
	var emailID any
	bad := make([]*events.CompletedEvent, 0, len(trace))
	for _, ce := range trace {
		if ce.ID == "e_greg" {
			emailID = ce.Metadata.ReturnValue
		}
		if ce.ID == "o1" {
			continue
		}
		bad = append(bad, ce)
	}
	require.NotNil(t, emailID)
	bad = append(bad, completedAgentCall("a_bad", "email", "forward_email",
		map[string]any{"email_id": emailID, "to": []any{"greg@example.com"}},
		18, "fwd-id"))

	j := runGraphJudge(t, forwardJudgeConfig(), s, bad)
	require.False(t, j.Success)
	match, ok := j.Failure.(*judge.OracleEventMatchingFailure)
	require.True(t, ok, j.FailureReason)
	assert.Equal(t, "o1", match.OracleID)
}

// A broken scenario whose oracle references an email that never exists must
// abort the replay with an OracleRunError instead of handing the judge a
// trace containing the failure.
func TestReplayOracleAbortsOnFailedEvent(t *testing.T) {
	s := New("broken_forward", env.Config{Duration: 30, QueueBasedLoop: true})
	require.NoError(t, s.Registry().RegisterApp(builtin.NewAgentUserInterface()))
	require.NoError(t, s.Registry().RegisterApp(builtin.NewEmailClient("user@example.com")))

	prompt := userPrompt(t, s, "u1", "forward Greg's email to John Doe", 0)
	require.NoError(t, s.AddEvent(prompt))

	forward := events.NewWithAction(events.EventTypeAgent, &events.Action{
		App: "email", Function: "forward_email",
		Args: map[string]any{
			"email_id": "does-not-exist",
			"to":       []any{"johndoe@example.com"},
		},
		OperationType: events.OperationWrite,
	}).WithID("o1").Oracle()
	require.NoError(t, forward.DependsOn(prompt, 1))
	require.NoError(t, s.AddEvent(forward))

	_, err := s.ReplayOracle(context.Background(), nil)
	require.Error(t, err)

	var ore *judge.OracleRunError
	require.ErrorAs(t, err, &ore)
	assert.Equal(t, "o1", ore.EventID)
	assert.Contains(t, ore.Exception, "email not found")
}

// A deadline task: the calendar entry must exist before the pinned
// wall-clock deadline, checked with a LESS_THAN comparator.
func buildDeadlineScenario(t *testing.T) (*Scenario, map[string]any) {
	t.Helper()
	s := New("qbr_deadline", env.Config{Duration: 12000, QueueBasedLoop: true})
	require.NoError(t, s.Registry().RegisterApp(builtin.NewAgentUserInterface()))
	require.NoError(t, s.Registry().RegisterApp(builtin.NewCalendar()))

	prompt := userPrompt(t, s, "u1",
		"schedule the QBR with the tokyo office before their day ends", 0)
	require.NoError(t, s.AddEvent(prompt))

	args := map[string]any{
		"title":          "QBR with Tokyo office",
		"start_datetime": "2026-03-02 09:00:00",
		"end_datetime":   "2026-03-02 10:00:00",
	}
	oracle := events.NewWithAction(events.EventTypeAgent, &events.Action{
		App: "calendar", Function: "add_calendar_event",
		Args:          args,
		OperationType: events.OperationWrite,
	}).WithID("o1").Oracle().WithComparator(events.ComparatorLessThan)
	deadline := 10800.0
	oracle.AbsoluteTime = &deadline
	require.NoError(t, oracle.DependsOn(prompt, 1))
	require.NoError(t, s.AddEvent(oracle))

	u1, _ := s.Event("u1")
	u1.ResolveAbsoluteTime(0)
	oracle.ResolveAbsoluteTime(0)
	return s, args
}

func TestDeadlineComparator(t *testing.T) {
	tests := []struct {
		name    string
		at      float64
		success bool
	}{
		{"well before the deadline", 10700, true},
		{"past the deadline", 10900, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, args := buildDeadlineScenario(t)
			u1, _ := s.Event("u1")

			trace := []*events.CompletedEvent{
				completedOf(u1, "message sent"),
				completedAgentCall("a1", "calendar", "add_calendar_event", args, tt.at, "cal-1"),
			}
			j := runGraphJudge(t, &judge.Config{}, s, trace)
			assert.Equal(t, tt.success, j.Success, j.FailureReason)
			if !tt.success {
				_, ok := j.Failure.(*judge.OracleEventMatchingFailure)
				assert.True(t, ok, j.FailureReason)
			}
		})
	}
}

// A vacation-mode task judged by world state, not by a structural oracle:
// milestones must hold within the window and minefields must never trip.
func buildVacationScenario(t *testing.T, extraEnv ...*events.Event) *Scenario {
	t.Helper()
	s := New("vacation_mode", env.Config{Duration: 30, QueueBasedLoop: true})
	require.NoError(t, s.Registry().RegisterApp(builtin.NewAgentUserInterface()))

	home := builtin.NewHome("porch")
	raw, err := json.Marshal(map[string]any{
		"lights":      map[string]bool{"porch": true},
		"thermostat":  21.0,
		"door_locked": true,
		"camera_on":   true,
	})
	require.NoError(t, err)
	require.NoError(t, home.LoadState(raw))
	require.NoError(t, s.Registry().RegisterApp(home))

	prompt := userPrompt(t, s, "u1", "put the house into vacation mode", 0)
	require.NoError(t, s.AddEvent(prompt))

	lightOff := events.NewWithAction(events.EventTypeEnv, &events.Action{
		App: "home", Function: "set_light",
		Args:          map[string]any{"name": "porch", "on": false},
		OperationType: events.OperationWrite,
	}).WithID("h1")
	require.NoError(t, lightOff.DependsOn(prompt, 2))
	require.NoError(t, s.AddEvent(lightOff))

	lowerHeat := events.NewWithAction(events.EventTypeEnv, &events.Action{
		App: "home", Function: "set_thermostat",
		Args:          map[string]any{"target": 16.0},
		OperationType: events.OperationWrite,
	}).WithID("h2")
	require.NoError(t, lowerHeat.DependsOn(prompt, 3))
	require.NoError(t, s.AddEvent(lowerHeat))

	for _, ev := range extraEnv {
		require.NoError(t, ev.DependsOn(prompt, 2))
		require.NoError(t, s.AddEvent(ev))
	}

	homeOf := func(ws events.WorldState) *builtin.Home {
		h, _ := ws.App("home")
		return h.(*builtin.Home)
	}
	validation := events.NewValidation(
		[]events.Milestone{
			{Name: "porch light off", Check: func(ws events.WorldState) (bool, error) {
				return !homeOf(ws).LightOn("porch"), nil
			}},
			{Name: "thermostat reduced", Check: func(ws events.WorldState) (bool, error) {
				return homeOf(ws).Thermostat() <= 17, nil
			}},
		},
		[]events.Milestone{
			{Name: "door unlocked", Check: func(ws events.WorldState) (bool, error) {
				return !homeOf(ws).DoorLocked(), nil
			}},
			{Name: "camera disabled", Check: func(ws events.WorldState) (bool, error) {
				return !homeOf(ws).CameraOn(), nil
			}},
		},
		2, 20,
	).WithID("v1")
	require.NoError(t, validation.DependsOn(prompt, 1))
	require.NoError(t, s.AddEvent(validation))
	return s
}

func TestVacationModeMilestonesAchieved(t *testing.T) {
	s := buildVacationScenario(t)

	e, err := s.NewEnvironment(nil)
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, env.StateStopped, e.State())

	home, _ := s.Registry().App("home")
	h := home.(*builtin.Home)
	assert.False(t, h.LightOn("porch"))
	assert.InDelta(t, 16.0, h.Thermostat(), 0.001)
	assert.True(t, h.DoorLocked())
	assert.True(t, h.CameraOn())
}

func TestVacationModeMinefieldTripped(t *testing.T) {
	unlock := events.NewWithAction(events.EventTypeEnv, &events.Action{
		App: "home", Function: "unlock_door",
		Args:          map[string]any{},
		OperationType: events.OperationWrite,
	}).WithID("h_bad")
	s := buildVacationScenario(t, unlock)

	e, err := s.NewEnvironment(nil)
	require.NoError(t, err)
	runErr := e.Run(context.Background())
	require.Error(t, runErr)

	var verr *env.ValidationError
	require.ErrorAs(t, runErr, &verr)
	assert.Contains(t, verr.EventID, "v1")
	assert.Contains(t, verr.Reason, "door unlocked")
	assert.Equal(t, env.StateFailed, e.State())
}

// Extra-message tolerance: one oracle reply, two agent messages.
func buildChattyScenario(t *testing.T) *Scenario {
	t.Helper()
	s := New("chatty_agent", env.Config{Duration: 30, QueueBasedLoop: true})
	require.NoError(t, s.Registry().RegisterApp(builtin.NewAgentUserInterface()))

	prompt := userPrompt(t, s, "u1", "let me know when you are done", 0)
	require.NoError(t, s.AddEvent(prompt))
	oracle := agentReply(t, s, "o1", "done", prompt, 1)
	oracle.Oracle()
	require.NoError(t, s.AddEvent(oracle))

	u1, _ := s.Event("u1")
	u1.ResolveAbsoluteTime(0)
	return s
}

func TestExtraUserMessageTolerance(t *testing.T) {
	s := buildChattyScenario(t)
	u1, _ := s.Event("u1")

	trace := []*events.CompletedEvent{
		completedOf(u1, "message sent"),
		completedAgentCall("a1", "agentuserinterface", "send_message_to_user",
			map[string]any{"content": "done"}, 1, "message sent"),
		completedAgentCall("a2", "agentuserinterface", "send_message_to_user",
			map[string]any{"content": "anything else I can help with?"}, 2, "message sent"),
	}

	// The default tolerance allows one extra user-facing message.
	j := runGraphJudge(t, &judge.Config{}, s, trace)
	assert.True(t, j.Success, j.FailureReason)

	zero := 0
	j = runGraphJudge(t, &judge.Config{ExtraSendMessageToUserAllowed: &zero}, s, trace)
	require.False(t, j.Success)
	counts, ok := j.Failure.(*judge.ToolCallCountsFailure)
	require.True(t, ok, j.FailureReason)
	assert.Contains(t, counts.Extra, "agentuserinterface.send_message_to_user")
}

// Placeholder resolution: the oracle references an environment event's
// return value by id, and the judge substitutes the matched agent-side value.
func buildReplyScenario(t *testing.T) *Scenario {
	t.Helper()
	s := New("reply_to_greg", env.Config{Duration: 60, QueueBasedLoop: true})
	require.NoError(t, s.Registry().RegisterApp(builtin.NewAgentUserInterface()))
	require.NoError(t, s.Registry().RegisterApp(builtin.NewEmailClient("user@example.com")))

	prompt := userPrompt(t, s, "u1", "acknowledge Greg's email when it arrives", 0)
	require.NoError(t, s.AddEvent(prompt))

	gregMail := events.NewWithAction(events.EventTypeEnv, &events.Action{
		App: "email", Function: "receive_email",
		Args: map[string]any{
			"from":    "greg@example.com",
			"subject": "ping",
			"content": "are we still on?",
		},
		OperationType: events.OperationWrite,
	}).WithID("e_greg")
	require.NoError(t, gregMail.DependsOn(prompt, 5))
	require.NoError(t, s.AddEvent(gregMail))

	reply := events.NewWithAction(events.EventTypeAgent, &events.Action{
		App: "email", Function: "reply_to_email",
		Args: map[string]any{
			"email_id": "{{e_greg}}",
			"content":  "yes, confirmed",
		},
		OperationType: events.OperationWrite,
	}).WithID("o1").Oracle()
	require.NoError(t, reply.DependsOn(gregMail, 1))
	require.NoError(t, s.AddEvent(reply))

	u1, _ := s.Event("u1")
	u1.ResolveAbsoluteTime(0)
	gregMail.ResolveAbsoluteTime(0)
	reply.ResolveAbsoluteTime(0)
	return s
}

func TestPlaceholderResolvesToMatchedReturnValue(t *testing.T) {
	s := buildReplyScenario(t)
	u1, _ := s.Event("u1")
	gregMail, _ := s.Event("e_greg")

	tests := []struct {
		name    string
		emailID string
		success bool
	}{
		{"agent replies to the delivered email", "uuid-greg-123", true},
		{"agent replies to some other email", "uuid-other-999", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trace := []*events.CompletedEvent{
				completedOf(u1, "message sent"),
				completedOf(gregMail, "uuid-greg-123"),
				completedAgentCall("a1", "email", "reply_to_email",
					map[string]any{"email_id": tt.emailID, "content": "yes, confirmed"},
					6, "reply-id"),
			}
			j := runGraphJudge(t, &judge.Config{}, s, trace)
			assert.Equal(t, tt.success, j.Success, j.FailureReason)
			if tt.success {
				assert.Equal(t, "o1", j.AgentToOracle["a1"])
			}
		})
	}
}
