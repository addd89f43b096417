package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/apps"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// Home simulates a smart-home controller: named lights, a thermostat, the
// front-door lock, and a security camera.
type Home struct {
	mu         sync.Mutex
	lights     map[string]bool
	thermostat float64
	doorLocked bool
	cameraOn   bool
}

// NewHome starts with the given lights off, the door locked, the camera on,
// and the thermostat at 20 degrees.
func NewHome(lightNames ...string) *Home {
	lights := make(map[string]bool, len(lightNames))
	for _, name := range lightNames {
		lights[name] = false
	}
	return &Home{lights: lights, thermostat: 20, doorLocked: true, cameraOn: true}
}

func (h *Home) Name() string { return "home" }

func (h *Home) Tools() []apps.Tool {
	emptySchema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           map[string]any{},
	}
	return []apps.Tool{
		{
			Name:          "set_light",
			Description:   "Turn a named light on or off.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"name", "on"},
				"additionalProperties": false,
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
					"on":   map[string]any{"type": "boolean"},
				},
			},
			Handler: h.setLight,
		},
		{
			Name:          "set_thermostat",
			Description:   "Set the thermostat target temperature in celsius.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"target"},
				"additionalProperties": false,
				"properties": map[string]any{
					"target": map[string]any{"type": "number", "minimum": 5, "maximum": 35},
				},
			},
			Handler: h.setThermostat,
		},
		{
			Name:          "lock_door",
			Description:   "Lock the front door.",
			OperationType: events.OperationWrite,
			ArgsSchema:    emptySchema,
			Handler:       h.setLock(true),
		},
		{
			Name:          "unlock_door",
			Description:   "Unlock the front door.",
			OperationType: events.OperationWrite,
			ArgsSchema:    emptySchema,
			Handler:       h.setLock(false),
		},
		{
			Name:          "set_camera",
			Description:   "Enable or disable the security camera.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"on"},
				"additionalProperties": false,
				"properties": map[string]any{
					"on": map[string]any{"type": "boolean"},
				},
			},
			Handler: h.setCamera,
		},
		{
			Name:          "get_home_status",
			Description:   "Read the full home state.",
			OperationType: events.OperationRead,
			ArgsSchema:    emptySchema,
			Handler:       h.getStatus,
		},
	}
}

func (h *Home) setLight(_ context.Context, args map[string]any) (any, error) {
	name, err := stringArg(args, "name")
	if err != nil {
		return nil, err
	}
	on, err := boolArg(args, "on")
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.lights[name]; !ok {
		return nil, fmt.Errorf("unknown light: %s", name)
	}
	h.lights[name] = on
	return "light updated", nil
}

func (h *Home) setThermostat(_ context.Context, args map[string]any) (any, error) {
	target, err := floatArg(args, "target")
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.thermostat = target
	h.mu.Unlock()
	return "thermostat updated", nil
}

func (h *Home) setLock(locked bool) apps.Handler {
	return func(context.Context, map[string]any) (any, error) {
		h.mu.Lock()
		h.doorLocked = locked
		h.mu.Unlock()
		if locked {
			return "door locked", nil
		}
		return "door unlocked", nil
	}
}

func (h *Home) setCamera(_ context.Context, args map[string]any) (any, error) {
	on, err := boolArg(args, "on")
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.cameraOn = on
	h.mu.Unlock()
	return "camera updated", nil
}

type homeState struct {
	Lights     map[string]bool `json:"lights"`
	Thermostat float64         `json:"thermostat"`
	DoorLocked bool            `json:"door_locked"`
	CameraOn   bool            `json:"camera_on"`
}

func (h *Home) getStatus(context.Context, map[string]any) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	lights := make(map[string]bool, len(h.lights))
	for k, v := range h.lights {
		lights[k] = v
	}
	return homeState{
		Lights:     lights,
		Thermostat: h.thermostat,
		DoorLocked: h.doorLocked,
		CameraOn:   h.cameraOn,
	}, nil
}

// LightOn reports the state of one light, for scenario predicates.
func (h *Home) LightOn(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lights[name]
}

// DoorLocked reports whether the front door is locked.
func (h *Home) DoorLocked() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doorLocked
}

// CameraOn reports whether the security camera is enabled.
func (h *Home) CameraOn() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cameraOn
}

// Thermostat returns the current target temperature.
func (h *Home) Thermostat() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.thermostat
}

func (h *Home) GetState() (json.RawMessage, error) {
	s, err := h.getStatus(context.Background(), nil)
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

func (h *Home) LoadState(state json.RawMessage) error {
	var s homeState
	if err := json.Unmarshal(state, &s); err != nil {
		return err
	}
	if s.Lights == nil {
		s.Lights = make(map[string]bool)
	}
	h.mu.Lock()
	h.lights = s.Lights
	h.thermostat = s.Thermostat
	h.doorLocked = s.DoorLocked
	h.cameraOn = s.CameraOn
	h.mu.Unlock()
	return nil
}

func (h *Home) Reset() {
	h.mu.Lock()
	for name := range h.lights {
		h.lights[name] = false
	}
	h.thermostat = 20
	h.doorLocked = true
	h.cameraOn = true
	h.mu.Unlock()
}
