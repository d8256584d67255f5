package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distkit/conveyor/internal/testutils"
	"github.com/distkit/conveyor/pkg/capability"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.SaveJob(ctx, Record{ID: "j1", Status: StatusPending}))

		rec, err := store.GetJob(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, StatusPending, rec.Status)
		assert.False(t, rec.UpdatedAt.IsZero())
	})

	t.Run("save overwrites", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.SaveJob(ctx, Record{ID: "j1", Status: StatusPending}))
		require.NoError(t, store.SaveJob(ctx, Record{ID: "j1", Status: StatusCompleted, Result: "ok"}))

		rec, err := store.GetJob(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, rec.Status)
		assert.Equal(t, "ok", rec.Result)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("missing job", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.GetJob(ctx, "nope")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("updated_at comes from the clock", func(t *testing.T) {
		mock := testutils.NewMockClock(t)
		store := NewMemoryStoreWithClock(testutils.NewClockWrapper(mock))

		require.NoError(t, store.SaveJob(ctx, Record{ID: "j1", Status: StatusPending}))
		rec, err := store.GetJob(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, mock.Now(), rec.UpdatedAt)
	})
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	newStore := func(t *testing.T) *SQLiteStore {
		t.Helper()
		store, err := NewSQLiteStore(t.TempDir() + "/jobs.db")
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	}

	t.Run("save and get", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SaveJob(ctx, Record{
			ID:     "j1",
			Status: StatusCompleted,
			Result: map[string]any{"count": float64(3)},
		}))

		rec, err := store.GetJob(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, rec.Status)
		assert.Equal(t, map[string]any{"count": float64(3)}, rec.Result)
	})

	t.Run("upsert moves status forward", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SaveJob(ctx, Record{ID: "j1", Status: StatusPending}))
		require.NoError(t, store.SaveJob(ctx, Record{ID: "j1", Status: StatusRunning}))
		require.NoError(t, store.SaveJob(ctx, Record{ID: "j1", Status: StatusFailed, Error: "boom"}))

		rec, err := store.GetJob(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, rec.Status)
		assert.Equal(t, "boom", rec.Error)
		assert.Nil(t, rec.Result)
	})

	t.Run("missing job", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetJob(ctx, "nope")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

// stubRunner accepts or rejects every envelope.
type stubRunner struct {
	err       error
	submitted []capability.Envelope
}

func (r *stubRunner) Submit(_ context.Context, env capability.Envelope) (capability.Ack, error) {
	if r.err != nil {
		return capability.Ack{}, r.err
	}
	r.submitted = append(r.submitted, env)
	return capability.Ack{ID: env.PipelineID}, nil
}

func TestTrackingRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("records pending before hand-off", func(t *testing.T) {
		store := NewMemoryStore()
		inner := &stubRunner{}
		runner := NewTrackingRunner(inner, store)

		ack, err := runner.Submit(ctx, capability.Envelope{PipelineID: "p-1"})
		require.NoError(t, err)
		assert.Equal(t, "p-1", ack.ID)

		rec, err := store.GetJob(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, StatusPending, rec.Status)
		require.Len(t, inner.submitted, 1)
	})

	t.Run("assigns an ID when the envelope has none", func(t *testing.T) {
		store := NewMemoryStore()
		inner := &stubRunner{}
		runner := NewTrackingRunner(inner, store)

		ack, err := runner.Submit(ctx, capability.Envelope{})
		require.NoError(t, err)
		require.NotEmpty(t, ack.ID)

		_, err = store.GetJob(ctx, ack.ID)
		assert.NoError(t, err)
	})

	t.Run("records failed when the substrate refuses", func(t *testing.T) {
		store := NewMemoryStore()
		refused := errors.New("substrate unreachable")
		runner := NewTrackingRunner(&stubRunner{err: refused}, store)

		_, err := runner.Submit(ctx, capability.Envelope{PipelineID: "p-2"})
		assert.ErrorIs(t, err, refused)

		rec, err := store.GetJob(ctx, "p-2")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, rec.Status)
		assert.Equal(t, refused.Error(), rec.Error)
	})
}

func TestHooks(t *testing.T) {
	ctx := context.Background()
	env := capability.Envelope{PipelineID: "p-3"}

	t.Run("start marks running", func(t *testing.T) {
		store := NewMemoryStore()
		hooks := Hooks(store)

		hooks.OnStart(ctx, env)
		rec, err := store.GetJob(ctx, "p-3")
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, rec.Status)
	})

	t.Run("finish marks completed with result", func(t *testing.T) {
		store := NewMemoryStore()
		hooks := Hooks(store)

		hooks.OnFinish(ctx, env, "done", nil)
		rec, err := store.GetJob(ctx, "p-3")
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, rec.Status)
		assert.Equal(t, "done", rec.Result)
	})

	t.Run("finish marks failed with error", func(t *testing.T) {
		store := NewMemoryStore()
		hooks := Hooks(store)

		hooks.OnFinish(ctx, env, nil, errors.New("replay boom"))
		rec, err := store.GetJob(ctx, "p-3")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, rec.Status)
		assert.Equal(t, "replay boom", rec.Error)
	})
}
