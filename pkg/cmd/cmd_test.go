package cmd

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fera765/flui/pkg/persistence/file"
	"github.com/fera765/flui/pkg/persistence/memory"
	"github.com/fera765/flui/pkg/tools/trigger"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewPersistence(t *testing.T) {
	dir := t.TempDir()

	p, err := NewPersistence(t.Context(), discard(), "memory://")
	require.NoError(t, err)
	assert.IsType(t, &memory.Persistence{}, p)

	p, err = NewPersistence(t.Context(), discard(), "file://"+dir)
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)

	p, err = NewPersistence(t.Context(), discard(), dir)
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("none", nil, discard())
	require.NoError(t, err)
	assert.Nil(t, bus)

	bus, err = NewEventBus("gochannel", nil, discard())
	require.NoError(t, err)
	require.NotNil(t, bus)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", nil, discard())
	require.Error(t, err)

	_, err = NewEventBus("carrier-pigeon", nil, discard())
	require.Error(t, err)
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(t.Context(), discard(), t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{trigger.TypeManual, trigger.TypeWebhook, trigger.TypeSchedule, "log", "transform", "http_request"} {
		assert.True(t, reg.HasTool(id), id)
	}

	assert.True(t, reg.HasAgent("http"))
}
