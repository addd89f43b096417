package apps

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

func TestFaultInjectorProbabilityBounds(t *testing.T) {
	assert.Nil(t, NewFaultInjector(ToolAugmentationConfig{}))
	assert.Nil(t, NewFaultInjector(ToolAugmentationConfig{FailureProbability: -0.5}))

	always := NewFaultInjector(ToolAugmentationConfig{FailureProbability: 2, Seed: 7})
	require.NotNil(t, always)
	for i := 0; i < 10; i++ {
		assert.True(t, always.Trip())
	}

	var nilInjector *FaultInjector
	assert.False(t, nilInjector.Trip())
}

func TestFaultInjectorFailsCalls(t *testing.T) {
	rec := &fakeRecorder{now: 3}
	reg := echoRegistry(t, nil)
	inv := NewInvoker(reg, rec).
		WithFaultInjector(NewFaultInjector(ToolAugmentationConfig{FailureProbability: 1, Seed: 1}))

	ev, _, err := inv.Call(context.Background(), "echo", "say", map[string]any{"text": "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInjectedFailure)

	require.Len(t, rec.completed, 1)
	ce := rec.completed[0]
	assert.Equal(t, ev.ID, ce.ID)
	assert.False(t, ce.Metadata.Completed)
	assert.Contains(t, ce.Metadata.Exception, "injected tool failure")
}

func TestFaultInjectorDeterministicSequence(t *testing.T) {
	a := NewFaultInjector(ToolAugmentationConfig{FailureProbability: 0.5, Seed: 42})
	b := NewFaultInjector(ToolAugmentationConfig{FailureProbability: 0.5, Seed: 42})
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Trip(), b.Trip(), "trip %d", i)
	}
}

func TestDescribeWithoutAugmentation(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Tool{
		App: "files", Name: "read_file", Description: "Read a file.",
		OperationType: events.OperationRead,
		Handler:       func(context.Context, map[string]any) (any, error) { return nil, nil },
	}))
	require.NoError(t, reg.Register(Tool{
		App: "email", Name: "send_email", Description: "Send an email.",
		OperationType: events.OperationWrite,
		Handler:       func(context.Context, map[string]any) (any, error) { return nil, nil },
	}))

	tools := reg.Describe(nil)
	require.Len(t, tools, 2)
	assert.Equal(t, "email.send_email", tools[0].Name)
	assert.Equal(t, "files.read_file", tools[1].Name)
	assert.Equal(t, "Read a file.", tools[1].Description)
}

func TestDescribeAugmentsNamesAndDescriptions(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Tool{
		App: "files", Name: "read_file", Description: "Read a file.",
		OperationType: events.OperationRead,
		Handler:       func(context.Context, map[string]any) (any, error) { return nil, nil },
	}))

	cfg := &ToolAugmentationConfig{AugmentNames: true, AugmentDescriptions: true, Seed: 9}
	first := reg.Describe(cfg)
	require.Len(t, first, 1)
	assert.True(t, strings.HasPrefix(first[0].Name, "files.read_file_"))
	assert.NotEqual(t, "files.read_file", first[0].Name)
	assert.True(t, strings.HasPrefix(first[0].Description, "Read a file. "))
	assert.Greater(t, len(first[0].Description), len("Read a file. "))

	// Same seed, same listing.
	second := reg.Describe(cfg)
	assert.Equal(t, first, second)

	// The registry itself is untouched.
	_, ok := reg.Lookup("files", "read_file")
	assert.True(t, ok)
}
