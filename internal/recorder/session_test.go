package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webtestflow/recorder/internal/models"
)

func TestStepStore_RemoveKeepsOrder(t *testing.T) {
	store := NewStepStore()
	for i := 1; i <= 4; i++ {
		store.Append(models.Step{Index: i})
	}

	assert.True(t, store.Remove(2))
	assert.False(t, store.Remove(2))
	assert.False(t, store.Remove(99))

	var indices []int
	for _, s := range store.Steps() {
		indices = append(indices, s.Index)
	}
	assert.Equal(t, []int{1, 3, 4}, indices)
	assert.Equal(t, 3, store.Len())
}

func TestStepStore_StepsIsACopy(t *testing.T) {
	store := NewStepStore(models.Step{Index: 1, URL: "/a"})
	steps := store.Steps()
	steps[0].URL = "/mutated"

	step, ok := store.Find(1)
	require.True(t, ok)
	assert.Equal(t, "/a", step.URL)

	store.Reset()
	assert.NotNil(t, store.Steps())
	assert.Zero(t, store.Len())
}

func TestSession_Transitions(t *testing.T) {
	s := NewSession()
	assert.Equal(t, models.PhaseIdle, s.Phase())

	_, ok := s.Stop()
	assert.False(t, ok)

	require.True(t, s.Start())
	first := s.ID
	assert.NotEmpty(t, first)
	assert.False(t, s.Start())
	assert.Equal(t, first, s.ID)

	step, ok := s.Record(models.Step{Action: models.ActionClick})
	require.True(t, ok)
	assert.Equal(t, 1, step.Index)

	s.TogglePause()
	_, ok = s.Record(models.Step{Action: models.ActionInput})
	assert.False(t, ok)
	step, ok = s.Record(models.Step{Action: models.ActionAlert})
	require.True(t, ok)
	assert.Equal(t, 2, step.Index)

	steps, ok := s.Stop()
	require.True(t, ok)
	assert.Len(t, steps, 2)

	require.True(t, s.Start())
	assert.NotEqual(t, first, s.ID)
	step, _ = s.Record(models.Step{Action: models.ActionClick})
	assert.Equal(t, 1, step.Index)
}
