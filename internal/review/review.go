// Package review is the reviewer's view of a finished recording: it loads the stored
// sequence once, lets the reviewer drop steps and pick identifiers, and exports the
// result for automation tooling.
package review

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"webtestflow/recorder/internal/models"
	"webtestflow/recorder/internal/recorder"
	"webtestflow/recorder/internal/storage"
)

var (
	ErrStepNotFound   = errors.New("step not found")
	ErrReviewNotFound = errors.New("review not found")
	ErrUnknownKind    = errors.New("identifier kind not available for step")
)

// Review is one loaded recording under edit.
type Review struct {
	ID        string
	SessionID string

	mu      sync.Mutex
	steps   *recorder.StepStore
	choices map[int]string
}

func newReview(sessionID string, steps []models.Step) *Review {
	return &Review{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		steps:     recorder.NewStepStore(steps...),
		choices:   make(map[int]string),
	}
}

func (r *Review) Steps() []models.Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.steps.Steps()
}

// Remove drops the step with the given index. Survivors keep their order and indices.
func (r *Review) Remove(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.steps.Remove(index) {
		return fmt.Errorf("%w: %d", ErrStepNotFound, index)
	}
	delete(r.choices, index)
	return nil
}

// ChooseIdentifier selects which identifier kind is exported for a step.
func (r *Review) ChooseIdentifier(index int, kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.steps.Find(index)
	if !ok {
		return fmt.Errorf("%w: %d", ErrStepNotFound, index)
	}
	if _, ok := step.Identifiers.Get(kind); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	r.choices[index] = kind
	return nil
}

func (r *Review) Export() models.ExportDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Export(r.steps.Steps(), r.choices)
}

// Export builds the downstream document. Exported indices restart at zero in sequence
// order; element is the chosen identifier, or the highest ranked one when none was
// chosen.
func Export(steps []models.Step, choices map[int]string) models.ExportDocument {
	doc := models.ExportDocument{Steps: make([]models.ExportStep, 0, len(steps))}
	for i, step := range steps {
		element := ""
		if kind, ok := choices[step.Index]; ok {
			element, _ = step.Identifiers.Get(kind)
		} else if first, ok := step.Identifiers.First(); ok {
			element = first.Selector
		}
		doc.Steps = append(doc.Steps, models.ExportStep{
			Index:      i,
			URL:        step.URL,
			Action:     step.Action,
			Element:    element,
			Type:       step.ElementType,
			Screenshot: step.Screenshot,
		})
	}
	return doc
}

// Service tracks open reviews.
type Service struct {
	store  storage.Storage
	key    string
	logger *zap.Logger

	mu      sync.RWMutex
	reviews map[string]*Review
}

func NewService(store storage.Storage, key string, logger *zap.Logger) *Service {
	if key == "" {
		key = recorder.DefaultStorageKey
	}
	return &Service{
		store:   store,
		key:     key,
		logger:  logger.Named("review"),
		reviews: make(map[string]*Review),
	}
}

// Load consumes the sequence stored by sessionID and opens a review on it. A second Load
// for the same stop finds nothing, and a later recording under the key is left alone.
func (s *Service) Load(ctx context.Context, sessionID string) (*Review, error) {
	steps, err := s.store.Take(ctx, s.key, sessionID)
	if err != nil {
		return nil, err
	}
	r := newReview(sessionID, steps)

	s.mu.Lock()
	s.reviews[r.ID] = r
	s.mu.Unlock()

	s.logger.Info("Review opened",
		zap.String("review_id", r.ID),
		zap.String("session_id", sessionID),
		zap.Int("steps", len(steps)))
	return r, nil
}

func (s *Service) Get(id string) (*Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	return r, nil
}

func (s *Service) Close(id string) {
	s.mu.Lock()
	delete(s.reviews, id)
	s.mu.Unlock()
}

// Reset drops every open review.
func (s *Service) Reset() {
	s.mu.Lock()
	s.reviews = make(map[string]*Review)
	s.mu.Unlock()
}
