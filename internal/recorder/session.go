package recorder

import (
	"github.com/google/uuid"

	"webtestflow/recorder/internal/models"
)

// StepStore is an ordered step sequence. Indices are assigned before a step reaches the
// store; removal keeps the survivors in their original order. It is not safe for
// concurrent use; the owner serializes access.
type StepStore struct {
	steps []models.Step
}

func NewStepStore(steps ...models.Step) *StepStore {
	s := &StepStore{steps: make([]models.Step, 0, len(steps))}
	s.steps = append(s.steps, steps...)
	return s
}

func (s *StepStore) Append(step models.Step) {
	s.steps = append(s.steps, step)
}

// Steps returns a copy of the sequence. It is never nil.
func (s *StepStore) Steps() []models.Step {
	out := make([]models.Step, len(s.steps))
	copy(out, s.steps)
	return out
}

func (s *StepStore) Len() int {
	return len(s.steps)
}

// Remove drops the step with the given index. It reports whether one was found.
func (s *StepStore) Remove(index int) bool {
	for i, step := range s.steps {
		if step.Index == index {
			s.steps = append(s.steps[:i], s.steps[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns a pointer into the store for in-place edits by the owner.
func (s *StepStore) Find(index int) (*models.Step, bool) {
	for i := range s.steps {
		if s.steps[i].Index == index {
			return &s.steps[i], true
		}
	}
	return nil, false
}

func (s *StepStore) Reset() {
	s.steps = s.steps[:0:0]
}

// Session is the recording state machine. Only the coordinator goroutine touches it.
type Session struct {
	ID        string
	phase     models.Phase
	store     *StepStore
	nextIndex int

	// AlertsHonorPause drops alert steps while paused like any other step.
	AlertsHonorPause bool
}

func NewSession() *Session {
	return &Session{phase: models.PhaseIdle, store: NewStepStore(), nextIndex: 1}
}

func (s *Session) Phase() models.Phase {
	return s.phase
}

func (s *Session) Paused() bool {
	return s.phase == models.PhasePaused
}

// Active reports whether a session is recording or paused.
func (s *Session) Active() bool {
	return s.phase == models.PhaseRecording || s.phase == models.PhasePaused
}

// Start moves idle to recording with an empty sequence and the counter at 1. It reports
// false, changing nothing, when a session is already active.
func (s *Session) Start() bool {
	if s.Active() {
		return false
	}
	s.ID = uuid.NewString()
	s.phase = models.PhaseRecording
	s.store.Reset()
	s.nextIndex = 1
	return true
}

// TogglePause flips between recording and paused. Idle stays idle.
func (s *Session) TogglePause() {
	switch s.phase {
	case models.PhaseRecording:
		s.phase = models.PhasePaused
	case models.PhasePaused:
		s.phase = models.PhaseRecording
	}
}

// Stop finalizes an active session and returns its full sequence. ok is false when
// nothing was active.
func (s *Session) Stop() (steps []models.Step, ok bool) {
	if !s.Active() {
		return nil, false
	}
	s.phase = models.PhaseIdle
	return s.store.Steps(), true
}

// Accepts reports whether a submitted step with action is recorded in the current phase.
// Alert surfaces are still captured while paused unless AlertsHonorPause is set.
func (s *Session) Accepts(action models.Action) bool {
	switch s.phase {
	case models.PhaseRecording:
		return true
	case models.PhasePaused:
		return action == models.ActionAlert && !s.AlertsHonorPause
	default:
		return false
	}
}

// Record assigns the next index to step and appends it when the phase accepts it.
func (s *Session) Record(step models.Step) (models.Step, bool) {
	if !s.Accepts(step.Action) {
		return models.Step{}, false
	}
	step.Index = s.nextIndex
	s.nextIndex++
	s.store.Append(step)
	return step, true
}

func (s *Session) Steps() []models.Step {
	return s.store.Steps()
}
