// Package capture turns raw page events into step candidates for the coordinator.
package capture

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"webtestflow/recorder/internal/alert"
	"webtestflow/recorder/internal/channel"
	"webtestflow/recorder/internal/identifier"
	"webtestflow/recorder/internal/models"
	"webtestflow/recorder/internal/snapshot"
)

const defaultQueueSize = 256

// Pipeline filters and normalizes page events, resolves identifiers, requests
// screenshots and submits step candidates. User events and insertions are drained by
// separate workers so that alert detection does not wait behind user events.
type Pipeline struct {
	ch      channel.Channel
	watcher *alert.Watcher
	logger  *zap.Logger

	mu    sync.RWMutex
	token string

	events     chan RawEvent
	insertions chan Insertion
}

func NewPipeline(ch channel.Channel, logger *zap.Logger, queueSize int) *Pipeline {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	p := &Pipeline{
		ch:         ch,
		logger:     logger.Named("capture"),
		events:     make(chan RawEvent, queueSize),
		insertions: make(chan Insertion, queueSize),
	}
	p.watcher = alert.NewWatcher(p, logger)
	return p
}

// NewDocument issues the token for a freshly attached document. Payloads carrying any
// earlier token come from a destroyed document and are ignored.
func (p *Pipeline) NewDocument() string {
	token := uuid.NewString()
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
	return token
}

func (p *Pipeline) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

func (p *Pipeline) current(token string) bool {
	t := p.Token()
	return t != "" && t == token
}

// Dispatch queues one binding payload from the page. It never blocks the caller.
func (p *Pipeline) Dispatch(payload string) {
	env, err := decodePayload(payload)
	if err != nil {
		p.logger.Debug("Dropping capture payload", zap.Error(err))
		return
	}

	// Tokens are checked on arrival. Anything queued before a re-attach came from a live
	// document and is still processed.
	switch env.Type {
	case "event":
		if !p.current(env.Event.Token) {
			p.logger.Debug("Ignoring event from stale document", zap.String("kind", env.Event.Kind))
			return
		}
		select {
		case p.events <- *env.Event:
		default:
			p.logger.Warn("Event queue full, dropping event", zap.String("kind", env.Event.Kind))
		}
	case "insertion":
		if !p.current(env.Insertion.Token) {
			return
		}
		select {
		case p.insertions <- *env.Insertion:
		default:
			p.logger.Warn("Insertion queue full, dropping node")
		}
	}
}

// Run drains both queues until ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-p.events:
				p.HandleEvent(ctx, ev)
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ins := <-p.insertions:
				p.HandleInsertion(ctx, ins)
			}
		}
	})
	return g.Wait()
}

// HandleEvent turns one accepted raw event into exactly one step submission.
func (p *Pipeline) HandleEvent(ctx context.Context, ev RawEvent) {
	action, ok := Normalize(ev)
	if !ok || ev.Target == nil {
		return
	}

	step := models.Step{
		URL:         ev.URL,
		Action:      action,
		Identifiers: identifier.Resolve(ev.Target),
		ElementType: identifier.ElementType(ev.Target),
		Screenshot:  p.Shoot(ctx, ev.Target.BoundingBox()),
	}
	p.submit(ctx, step)
}

// HandleInsertion submits an alert step when the inserted node is an alert surface.
func (p *Pipeline) HandleInsertion(ctx context.Context, ins Insertion) {
	if ins.Node == nil {
		return
	}
	step, ok := p.watcher.Observe(ctx, ins.Node, ins.URL)
	if !ok {
		return
	}
	p.submit(ctx, step)
}

// Shoot asks the coordinator for the full view and crops it to box. It returns nil when
// any part of the round trip fails.
func (p *Pipeline) Shoot(ctx context.Context, box models.BoundingBox) *string {
	resp, err := p.ch.Request(ctx, channel.Message{Type: channel.TypeScreenshotRequest, Box: &box})
	if err != nil {
		p.logger.Debug("Screenshot request failed", zap.Error(err))
		return nil
	}
	if resp.Screenshot == nil {
		return nil
	}
	cropped, err := snapshot.Crop(*resp.Screenshot, box)
	if err != nil {
		p.logger.Debug("Screenshot crop failed", zap.Error(err))
		return nil
	}
	return &cropped
}

func (p *Pipeline) submit(ctx context.Context, step models.Step) {
	if err := p.ch.Send(ctx, channel.Message{Type: channel.TypeStepSubmit, Step: &step}); err != nil {
		p.logger.Warn("Step submission failed", zap.String("action", string(step.Action)), zap.Error(err))
	}
}
