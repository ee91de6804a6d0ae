package review

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// TicketIssuer signs a single-use ticket naming the session to review.
type TicketIssuer interface {
	IssueTicket(sessionID string) (string, error)
}

// Opener shows a URL to the operator, typically as a new browser tab.
type Opener interface {
	OpenTab(ctx context.Context, url string) error
}

// Handoff points the operator at the review surface after a stop.
type Handoff struct {
	baseURL string
	issuer  TicketIssuer
	opener  Opener
}

func NewHandoff(baseURL string, issuer TicketIssuer, opener Opener) *Handoff {
	return &Handoff{baseURL: strings.TrimRight(baseURL, "/"), issuer: issuer, opener: opener}
}

func (h *Handoff) ReviewURL(sessionID string) (string, error) {
	ticket, err := h.issuer.IssueTicket(sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to issue review ticket: %w", err)
	}
	return h.baseURL + "/api/v1/review?ticket=" + url.QueryEscape(ticket), nil
}

func (h *Handoff) Open(ctx context.Context, url string) error {
	if h.opener == nil {
		return nil
	}
	return h.opener.OpenTab(ctx, url)
}
