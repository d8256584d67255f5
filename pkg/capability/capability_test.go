package capability

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distkit/conveyor/pkg/task"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "execute", KindExecute.String())
	assert.Equal(t, "dispatch", KindDispatch.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input       string
		want        Kind
		expectError bool
	}{
		{input: "execute", want: KindExecute},
		{input: "dispatch", want: KindDispatch},
		{input: "Execute", expectError: true},
		{input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStageSpecJSONRoundTrip(t *testing.T) {
	specs := []StageSpec{
		{Kind: KindExecute, Plugin: "logging", Config: map[string]any{"name": "demo"}},
		{Kind: KindDispatch, Plugin: "background"},
	}

	data, err := json.Marshal(specs)
	require.NoError(t, err)

	var decoded []StageSpec
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded, 2)
	assert.Equal(t, KindExecute, decoded[0].Kind)
	assert.Equal(t, "logging", decoded[0].Plugin)
	assert.Equal(t, "demo", decoded[0].Config["name"])
	assert.Equal(t, KindDispatch, decoded[1].Kind)
}

func TestEnvelopeJSONRoundTrip(t *testing.T) {
	env := Envelope{
		PipelineID:  "p-1",
		ContextKind: "map",
		Context:     task.Portable{"path": "/tmp/x", "size": float64(3)},
		Stages: []StageSpec{
			{Kind: KindExecute, Plugin: "record", Config: map[string]any{"label": "a"}},
			{Kind: KindDispatch, Plugin: "background"},
			{Kind: KindExecute, Plugin: "record", Config: map[string]any{"label": "b"}},
		},
		Resume: 2,
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, env.PipelineID, decoded.PipelineID)
	assert.Equal(t, env.ContextKind, decoded.ContextKind)
	assert.Equal(t, env.Resume, decoded.Resume)
	require.Len(t, decoded.Stages, 3)
	assert.Equal(t, KindDispatch, decoded.Stages[1].Kind)
	assert.Equal(t, env.Context["path"], decoded.Context["path"])
}

type fakeSubmitter struct {
	submitted []Envelope
	err       error
}

func (f *fakeSubmitter) Submit(_ context.Context, env Envelope) (Ack, error) {
	if f.err != nil {
		return Ack{}, f.err
	}
	f.submitted = append(f.submitted, env)
	return Ack{ID: env.PipelineID}, nil
}

func TestHandoffSubmit(t *testing.T) {
	env := Envelope{PipelineID: "p-2"}

	t.Run("successful submission marks handoff", func(t *testing.T) {
		h := NewHandoff(env)
		assert.False(t, h.Submitted())

		sub := &fakeSubmitter{}
		ack, err := h.SubmitTo(context.Background(), sub)
		require.NoError(t, err)
		assert.Equal(t, "p-2", ack.ID)
		assert.True(t, h.Submitted())
		require.Len(t, sub.submitted, 1)
	})

	t.Run("failed submission leaves handoff unmarked", func(t *testing.T) {
		h := NewHandoff(env)
		sub := &fakeSubmitter{err: errors.New("substrate unreachable")}

		_, err := h.SubmitTo(context.Background(), sub)
		assert.Error(t, err)
		assert.False(t, h.Submitted())
	})
}

func TestHandoffContextCarrier(t *testing.T) {
	h := NewHandoff(Envelope{PipelineID: "p-3"})

	_, ok := HandoffFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithHandoff(context.Background(), h)
	got, ok := HandoffFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "p-3", got.Envelope().PipelineID)
}

func TestShortCircuit(t *testing.T) {
	v, err := ShortCircuit("halted")
	require.NoError(t, err)
	assert.Equal(t, "halted", v)
}
