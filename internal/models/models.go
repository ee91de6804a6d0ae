package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type BaseModel struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Action is the semantic kind of a recorded step.
type Action string

const (
	ActionClick    Action = "click"
	ActionInput    Action = "input"
	ActionKeyEnter Action = "key_enter"
	ActionNavigate Action = "navigate"
	ActionAlert    Action = "alert"
)

// Identifier kinds, in resolution priority order.
const (
	KindID        = "id"
	KindDataTest  = "data-test"
	KindAriaLabel = "aria-label"
	KindName      = "name"
	KindTitle     = "title"
	KindNth       = "nth"
)

// AttributeKinds are the semantic attributes checked after id, in order.
var AttributeKinds = []string{KindDataTest, KindAriaLabel, KindName, KindTitle}

// Phase is the recording lifecycle state of a session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRecording Phase = "recording"
	PhasePaused    Phase = "paused"
)

type Identifier struct {
	Kind     string
	Selector string
}

// Identifiers is a ranked identifier-kind to selector mapping. It serializes as a JSON
// object whose key order is the rank order.
type Identifiers []Identifier

func (ids Identifiers) Get(kind string) (string, bool) {
	for _, id := range ids {
		if id.Kind == kind {
			return id.Selector, true
		}
	}
	return "", false
}

// First returns the highest ranked identifier.
func (ids Identifiers) First() (Identifier, bool) {
	if len(ids) == 0 {
		return Identifier{}, false
	}
	return ids[0], true
}

func (ids Identifiers) Kinds() []string {
	kinds := make([]string, 0, len(ids))
	for _, id := range ids {
		kinds = append(kinds, id.Kind)
	}
	return kinds
}

func (ids Identifiers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id.Kind)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(id.Selector)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (ids *Identifiers) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*ids = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("identifiers: expected object, got %v", tok)
	}
	out := Identifiers{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("identifiers: unexpected key %v", keyTok)
		}
		var selector string
		if err := dec.Decode(&selector); err != nil {
			return fmt.Errorf("identifiers: value for %q: %w", key, err)
		}
		out = append(out, Identifier{Kind: key, Selector: selector})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*ids = out
	return nil
}

// BoundingBox is an element box in page coordinates, rounded to whole pixels.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Step is one recorded interaction or detected surface.
type Step struct {
	Index       int         `json:"index"`
	URL         string      `json:"url"`
	Action      Action      `json:"action"`
	Identifiers Identifiers `json:"identifiers"`
	ElementType string      `json:"elementType"`
	Screenshot  *string     `json:"screenshot"`
}

// NavigateStep builds the synthetic step for a top-level navigation.
func NavigateStep(url string) Step {
	return Step{
		URL:         url,
		Action:      ActionNavigate,
		Identifiers: Identifiers{},
	}
}

type ExportStep struct {
	Index      int     `json:"index"`
	URL        string  `json:"url"`
	Action     Action  `json:"action"`
	Element    string  `json:"element"`
	Type       string  `json:"type"`
	Screenshot *string `json:"screenshot"`
}

// ExportDocument is the file handed to downstream automation tooling.
type ExportDocument struct {
	Steps []ExportStep `json:"steps"`
}

// StoredRecording is a finalized step sequence held in session-scoped storage.
type StoredRecording struct {
	BaseModel
	Key       string `json:"key" gorm:"column:storage_key;uniqueIndex;size:100;not null"`
	SessionID string `json:"session_id" gorm:"size:64"`
	Steps     string `json:"steps" gorm:"type:longtext"` // JSON Step array
}

func (r *StoredRecording) GetSteps() ([]Step, error) {
	steps := []Step{}
	if r.Steps == "" {
		return steps, nil
	}
	err := json.Unmarshal([]byte(r.Steps), &steps)
	return steps, err
}

func (r *StoredRecording) SetSteps(steps []Step) error {
	if steps == nil {
		steps = []Step{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	r.Steps = string(data)
	return nil
}
