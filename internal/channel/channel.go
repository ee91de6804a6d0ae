// Package channel defines the messages exchanged between the page-side capture
// pipeline, the operator UI and the session coordinator.
package channel

import (
	"context"

	"webtestflow/recorder/internal/models"
)

type MessageType string

const (
	TypeStart             MessageType = "start"
	TypeStop              MessageType = "stop"
	TypePauseToggle       MessageType = "pause-toggle"
	TypeStatus            MessageType = "status"
	TypeStepSubmit        MessageType = "step-submit"
	TypeScreenshotRequest MessageType = "screenshot-request"
	// TypeNavigation is raised by the browser on a navigation commit.
	TypeNavigation MessageType = "navigation"
)

type Message struct {
	Type MessageType         `json:"type"`
	Step *models.Step        `json:"step,omitempty"`
	Box  *models.BoundingBox `json:"box,omitempty"`

	// Navigation details, only for TypeNavigation.
	URL       string `json:"url,omitempty"`
	MainFrame bool   `json:"mainFrame,omitempty"`
}

type Response struct {
	Phase      models.Phase `json:"phase"`
	IsPaused   bool         `json:"isPaused"`
	Screenshot *string      `json:"screenshot,omitempty"`
	// ReviewURL is set on stop when a review surface is available.
	ReviewURL string `json:"reviewUrl,omitempty"`
}

// Channel carries request/response and fire-and-forget messages.
type Channel interface {
	Request(ctx context.Context, msg Message) (Response, error)
	Send(ctx context.Context, msg Message) error
}
