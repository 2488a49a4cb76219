package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Counter(t *testing.T) {
	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden_Counter -update
	result, err := RunWithGolden(t, loadScenario(t, "counter_increments"))
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario := loadScenario(t, "todo_select")
	set := loadUI(t)

	var outputs [][]byte
	for i := 0; i < 3; i++ {
		result, err := Run(context.Background(), scenario, WithManifests(set))
		require.NoError(t, err)
		data, err := NewSnapshot(scenario.Name, result).MarshalCanonical()
		require.NoError(t, err)
		outputs = append(outputs, data)
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[1], outputs[2])
}

func TestSnapshot_OmitsEmptyState(t *testing.T) {
	result := NewResult()
	result.HTML = "<x-a></x-a>"

	data, err := NewSnapshot("empty", result).MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<x-a></x-a>","patches":[],"scenario_name":"empty"}`, string(data))
}
