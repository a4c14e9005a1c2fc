package farm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectAll_PartialFailure(t *testing.T) {
	registry := NewRegistry()
	var started atomic.Int32

	results := ConnectAll(context.Background(), testCatalog(), registry, "http://example.com/",
		[]Spec{ParseSpec("chrome"), ParseSpec("konqueror")},
		func(_ context.Context, agent Agent, target string) (*Worker, error) {
			started.Add(1)
			return &Worker{SessionID: "session-" + agent.ID}, nil
		})

	require.Len(t, results, 2)
	assert.True(t, results[0].OK())
	assert.Equal(t, "session-chrome", results[0].Worker.SessionID)
	assert.Equal(t, "http://example.com/", results[0].Worker.URL)
	assert.False(t, results[0].Worker.StartedAt.IsZero())
	assert.Equal(t, 25, results[0].Worker.Agent.Version)

	assert.False(t, results[1].OK())
	assert.ErrorIs(t, results[1].Err, ErrUnresolvedAgent)

	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, []string{"session-chrome"}, registry.IDs())
}

func TestConnectAll_StartFailureIsPerAgent(t *testing.T) {
	registry := NewRegistry()
	vendorErr := &VendorAPIError{Vendor: "test", Op: "worker", Message: "quota exceeded"}

	results := ConnectAll(context.Background(), testCatalog(), registry, "http://example.com/",
		[]Spec{ParseSpec("chrome"), ParseSpec("firefox")},
		func(_ context.Context, agent Agent, _ string) (*Worker, error) {
			if agent.ID == "firefox" {
				return nil, vendorErr
			}
			return &Worker{SessionID: "ok"}, nil
		})

	assert.True(t, results[0].OK())
	assert.ErrorIs(t, results[1].Err, ErrVendorAPI)
	assert.Contains(t, results[1].Err.Error(), "Mozilla Firefox 19")
	assert.Equal(t, "firefox", results[1].Agent.ID)
	assert.Equal(t, 1, registry.Len())
}

func TestKillAll_RemovesEveryWorkerDespiteFailures(t *testing.T) {
	registry := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		registry.Add(&Worker{SessionID: id})
	}

	var kills atomic.Int32
	err := KillAll(context.Background(), registry, func(_ context.Context, w *Worker) error {
		kills.Add(1)
		if w.SessionID == "b" {
			return errors.New("already gone")
		}
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kill b")
	assert.Equal(t, int32(3), kills.Load())
	assert.Equal(t, 0, registry.Len())
}

func TestKillAll_Empty(t *testing.T) {
	err := KillAll(context.Background(), NewRegistry(), func(context.Context, *Worker) error {
		t.Fatal("no workers to kill")
		return nil
	})
	assert.NoError(t, err)
}
