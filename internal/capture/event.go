package capture

import (
	"encoding/json"
	"fmt"

	"webtestflow/recorder/internal/models"
)

// Raw DOM event kinds forwarded by the page script.
const (
	KindClick   = "click"
	KindChange  = "change"
	KindKeyDown = "keydown"
)

// RawEvent is one low-level event observed in the capture phase.
type RawEvent struct {
	Token   string     `json:"token"`
	Kind    string     `json:"kind"`
	Key     string     `json:"key,omitempty"`
	Trusted bool       `json:"trusted"`
	URL     string     `json:"url"`
	Target  *Described `json:"target"`
}

// Insertion is one element node added to the document.
type Insertion struct {
	Token string     `json:"token"`
	URL   string     `json:"url"`
	Node  *Described `json:"node"`
}

type envelope struct {
	Type      string     `json:"type"`
	Event     *RawEvent  `json:"event,omitempty"`
	Insertion *Insertion `json:"insertion,omitempty"`
}

// Normalize maps a raw event to a step action. Synthetic events and key presses other
// than Enter are rejected.
func Normalize(ev RawEvent) (models.Action, bool) {
	if !ev.Trusted {
		return "", false
	}
	switch ev.Kind {
	case KindClick:
		return models.ActionClick, true
	case KindChange:
		return models.ActionInput, true
	case KindKeyDown:
		if ev.Key == "Enter" {
			return models.ActionKeyEnter, true
		}
	}
	return "", false
}

func decodePayload(payload string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return env, fmt.Errorf("failed to decode capture payload: %w", err)
	}
	switch env.Type {
	case "event":
		if env.Event == nil {
			return env, fmt.Errorf("capture payload %q has no body", env.Type)
		}
	case "insertion":
		if env.Insertion == nil {
			return env, fmt.Errorf("capture payload %q has no body", env.Type)
		}
	default:
		return env, fmt.Errorf("unknown capture payload type %q", env.Type)
	}
	return env, nil
}
