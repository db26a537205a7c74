package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testContainer = Experiment("3f1f6a48-0a7e-4bb0-9f4f-6a2b6c1d8e90")

func mergeEvent(id string, data map[string]any) Event {
	return Event{Container: testContainer, ID: id, IsMerge: true, Data: data}
}

func replaceEvent(id string, data map[string]any) Event {
	return Event{Container: testContainer, ID: id, IsMerge: false, Data: data}
}

func TestMergePartialUpdates(t *testing.T) {
	events := []Event{
		mergeEvent("x", map[string]any{"input": map[string]any{"a": 12}}),
		mergeEvent("x", map[string]any{"input": map[string]any{"b": 10}}),
		mergeEvent("x", map[string]any{"input": map[string]any{"c": "hello"}}),
	}

	out, err := Merge(events)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.True(t, out[0].IsMerge)
	assert.Equal(t, map[string]any{
		"input": map[string]any{"a": 12, "b": 10, "c": "hello"},
	}, out[0].Data)
}

func TestMergeClobberWithLineage(t *testing.T) {
	events := []Event{
		replaceEvent("y", map[string]any{
			"input":   map[string]any{"a": "hello"},
			"span_id": "span-1",
			"created": "2026-01-01T00:00:00Z",
		}),
		replaceEvent("y", map[string]any{"input": map[string]any{"b": 10}}),
		mergeEvent("y", map[string]any{"input": map[string]any{"c": 12}}),
	}

	out, err := Merge(events)
	require.NoError(t, err)
	require.Len(t, out, 1)

	// wholesale replace of payload, lineage carried forward, flag unset
	// because not all contributors were merge-flagged
	assert.False(t, out[0].IsMerge)
	assert.Equal(t, map[string]any{
		"input":   map[string]any{"b": 10, "c": 12},
		"span_id": "span-1",
		"created": "2026-01-01T00:00:00Z",
	}, out[0].Data)
}

func TestMergeLineageLastWriterWins(t *testing.T) {
	events := []Event{
		replaceEvent("z", map[string]any{"span_id": "old", "output": "one"}),
		replaceEvent("z", map[string]any{"span_id": "new", "output": "two"}),
	}

	out, err := Merge(events)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "new", out[0].Data["span_id"])
	assert.Equal(t, "two", out[0].Data["output"])
}

func TestMergeSingletonUnchanged(t *testing.T) {
	ev := mergeEvent("solo", map[string]any{"input": "hi"})

	out, err := Merge([]Event{ev, replaceEvent("other", map[string]any{})})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, ev, out[0])
}

func TestMergeAssociativity(t *testing.T) {
	a := mergeEvent("x", map[string]any{"metrics": map[string]any{"tokens": 3}})
	b := mergeEvent("x", map[string]any{"metrics": map[string]any{"latency": 0.5}})
	c := mergeEvent("x", map[string]any{"output": "done"})

	direct, err := Merge([]Event{a, b, c})
	require.NoError(t, err)

	partial, err := Merge([]Event{a, b})
	require.NoError(t, err)
	stepwise, err := Merge([]Event{partial[0], c})
	require.NoError(t, err)

	assert.Equal(t, direct, stepwise)
}

func TestMergePreservesGroupOrder(t *testing.T) {
	events := []Event{
		mergeEvent("first", map[string]any{"n": 1}),
		mergeEvent("second", map[string]any{"n": 2}),
		mergeEvent("first", map[string]any{"m": 1}),
		mergeEvent("third", map[string]any{"n": 3}),
		mergeEvent("second", map[string]any{"m": 2}),
	}

	out, err := Merge(events)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "first", out[0].ID)
	assert.Equal(t, "second", out[1].ID)
	assert.Equal(t, "third", out[2].ID)
}

func TestMergeDistinctContainersDoNotCollide(t *testing.T) {
	other := ProjectLogs("9a1b2c3d-4e5f-4a6b-8c7d-0e1f2a3b4c5d")
	events := []Event{
		mergeEvent("x", map[string]any{"n": 1}),
		{Container: other, ID: "x", IsMerge: true, Data: map[string]any{"n": 2}},
	}

	out, err := Merge(events)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestMergeObjectIntoScalarFails(t *testing.T) {
	events := []Event{
		mergeEvent("x", map[string]any{"input": "scalar"}),
		mergeEvent("x", map[string]any{"input": map[string]any{"a": 1}}),
	}

	_, err := Merge(events)
	assert.Error(t, err)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	first := map[string]any{"input": map[string]any{"a": 1}}
	events := []Event{
		mergeEvent("x", first),
		mergeEvent("x", map[string]any{"input": map[string]any{"b": 2}}),
	}

	_, err := Merge(events)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"input": map[string]any{"a": 1}}, first)
}
