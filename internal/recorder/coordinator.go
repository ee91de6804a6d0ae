// Package recorder owns the recording session: phase transitions, index assignment,
// re-injection after navigation and hand-off of the finished sequence.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"webtestflow/recorder/internal/capture"
	"webtestflow/recorder/internal/channel"
	"webtestflow/recorder/internal/models"
	"webtestflow/recorder/internal/storage"
)

const (
	DefaultStorageKey    = "recordedSteps"
	defaultInjectTimeout = 10 * time.Second
	mailboxSize          = 64
)

var ErrCoordinatorClosed = errors.New("coordinator is not running")

// Attacher makes sure the active document reports events.
type Attacher interface {
	EnsureAttached(ctx context.Context) error
}

// FullViewer captures the visible viewport as a data URI, or nil.
type FullViewer interface {
	CaptureFullView(ctx context.Context) *string
}

// Handoff presents a finalized session to the reviewer.
type Handoff interface {
	// ReviewURL returns where the stored sequence of sessionID can be reviewed.
	ReviewURL(sessionID string) (string, error)
	// Open shows url to the operator.
	Open(ctx context.Context, url string) error
}

type Config struct {
	StorageKey       string
	AlertsHonorPause bool
	InjectTimeout    time.Duration
}

type envelope struct {
	msg   channel.Message
	query func(*Session)
	reply chan result
}

type result struct {
	resp channel.Response
	err  error
}

// Coordinator serializes every state change of the session through one goroutine. It
// implements channel.Channel for both the operator UI and the capture pipeline.
type Coordinator struct {
	cfg      Config
	session  *Session
	attacher Attacher
	viewer   FullViewer
	store    storage.Storage
	handoff  Handoff
	hub      *Hub
	logger   *zap.Logger

	mailbox chan envelope
	done    chan struct{}
	wg      sync.WaitGroup
}

type Option func(*Coordinator)

func WithAttacher(a Attacher) Option     { return func(c *Coordinator) { c.attacher = a } }
func WithFullViewer(v FullViewer) Option { return func(c *Coordinator) { c.viewer = v } }
func WithHandoff(h Handoff) Option       { return func(c *Coordinator) { c.handoff = h } }
func WithHub(h *Hub) Option              { return func(c *Coordinator) { c.hub = h } }

func NewCoordinator(cfg Config, store storage.Storage, logger *zap.Logger, opts ...Option) *Coordinator {
	if cfg.StorageKey == "" {
		cfg.StorageKey = DefaultStorageKey
	}
	if cfg.InjectTimeout <= 0 {
		cfg.InjectTimeout = defaultInjectTimeout
	}
	session := NewSession()
	session.AlertsHonorPause = cfg.AlertsHonorPause

	c := &Coordinator{
		cfg:     cfg,
		session: session,
		store:   store,
		hub:     NewHub(),
		logger:  logger.Named("coordinator"),
		mailbox: make(chan envelope, mailboxSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Hub() *Hub {
	return c.hub
}

// SetAttacher wires the capture injector once the browser tab exists. It must be called
// before Run.
func (c *Coordinator) SetAttacher(a Attacher) {
	c.attacher = a
}

// Run processes messages one at a time until ctx is done. It waits for pending
// injections before returning.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.wg.Wait()

	c.logger.Info("Coordinator started", zap.String("storage_key", c.cfg.StorageKey))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Coordinator stopped")
			return nil
		case env := <-c.mailbox:
			c.handle(ctx, env)
		}
	}
}

// Request sends msg and waits for the answer. Screenshot requests are answered without
// entering the mailbox since they never touch session state.
func (c *Coordinator) Request(ctx context.Context, msg channel.Message) (channel.Response, error) {
	if msg.Type == channel.TypeScreenshotRequest {
		return channel.Response{Screenshot: c.fullView(ctx)}, nil
	}
	return c.call(ctx, envelope{msg: msg})
}

// Send enqueues msg without waiting for it to be processed.
func (c *Coordinator) Send(ctx context.Context, msg channel.Message) error {
	return c.enqueue(ctx, envelope{msg: msg})
}

// Steps returns a copy of the sequence recorded so far.
func (c *Coordinator) Steps(ctx context.Context) ([]models.Step, error) {
	var steps []models.Step
	if _, err := c.call(ctx, envelope{query: func(s *Session) { steps = s.Steps() }}); err != nil {
		return nil, err
	}
	return steps, nil
}

// ToggleFrom flips pause only when the session is in phase from, checked and applied in
// one turn of the mailbox. The bool reports whether the flip happened; the response is
// the resulting status either way.
func (c *Coordinator) ToggleFrom(ctx context.Context, from models.Phase) (channel.Response, bool, error) {
	var toggled bool
	resp, err := c.call(ctx, envelope{query: func(s *Session) {
		if s.Phase() != from {
			return
		}
		s.TogglePause()
		toggled = true
		c.logger.Info("Pause toggled", zap.String("phase", string(s.Phase())))
	}})
	if err != nil {
		return channel.Response{}, false, err
	}
	return resp, toggled, nil
}

func (c *Coordinator) call(ctx context.Context, env envelope) (channel.Response, error) {
	env.reply = make(chan result, 1)
	if err := c.enqueue(ctx, env); err != nil {
		return channel.Response{}, err
	}
	select {
	case res := <-env.reply:
		return res.resp, res.err
	case <-ctx.Done():
		return channel.Response{}, ctx.Err()
	case <-c.done:
		return channel.Response{}, ErrCoordinatorClosed
	}
}

func (c *Coordinator) enqueue(ctx context.Context, env envelope) error {
	select {
	case <-c.done:
		return ErrCoordinatorClosed
	default:
	}
	select {
	case c.mailbox <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrCoordinatorClosed
	}
}

func (c *Coordinator) handle(ctx context.Context, env envelope) {
	var res result
	if env.query != nil {
		env.query(c.session)
		res.resp = c.status()
	} else {
		res.resp, res.err = c.dispatch(ctx, env.msg)
	}
	if env.reply != nil {
		env.reply <- res
	}
}

func (c *Coordinator) dispatch(ctx context.Context, msg channel.Message) (channel.Response, error) {
	switch msg.Type {
	case channel.TypeStart:
		c.start(ctx)
	case channel.TypeStop:
		return c.stop(ctx), nil
	case channel.TypePauseToggle:
		c.session.TogglePause()
		c.logger.Info("Pause toggled", zap.String("phase", string(c.session.Phase())))
	case channel.TypeStatus:
	case channel.TypeStepSubmit:
		c.submit(msg.Step)
	case channel.TypeNavigation:
		c.navigate(ctx, msg)
	default:
		return c.status(), fmt.Errorf("unknown message type %q", msg.Type)
	}
	return c.status(), nil
}

func (c *Coordinator) status() channel.Response {
	return channel.Response{Phase: c.session.Phase(), IsPaused: c.session.Paused()}
}

func (c *Coordinator) start(ctx context.Context) {
	if !c.session.Start() {
		c.logger.Debug("Start ignored, session already active", zap.String("phase", string(c.session.Phase())))
		return
	}
	c.logger.Info("Recording started", zap.String("session_id", c.session.ID))
	c.inject(ctx)
}

func (c *Coordinator) stop(ctx context.Context) channel.Response {
	sessionID := c.session.ID
	steps, ok := c.session.Stop()
	resp := c.status()
	if !ok {
		return resp
	}

	if err := c.store.Put(ctx, c.cfg.StorageKey, sessionID, steps); err != nil {
		c.logger.Error("Failed to persist recording", zap.String("session_id", sessionID), zap.Error(err))
		return resp
	}
	c.logger.Info("Recording stopped", zap.String("session_id", sessionID), zap.Int("steps", len(steps)))

	if c.handoff == nil {
		return resp
	}
	reviewURL, err := c.handoff.ReviewURL(sessionID)
	if err != nil {
		c.logger.Warn("Failed to prepare review hand-off", zap.Error(err))
		return resp
	}
	resp.ReviewURL = reviewURL
	c.async(ctx, func(ctx context.Context) {
		if err := c.handoff.Open(ctx, reviewURL); err != nil {
			c.logger.Warn("Failed to open review surface", zap.Error(err))
		}
	})
	return resp
}

func (c *Coordinator) submit(step *models.Step) {
	if step == nil {
		return
	}
	recorded, ok := c.session.Record(*step)
	if !ok {
		c.logger.Debug("Step dropped",
			zap.String("action", string(step.Action)),
			zap.String("phase", string(c.session.Phase())))
		return
	}
	c.logger.Debug("Step recorded", zap.Int("index", recorded.Index), zap.String("action", string(recorded.Action)))
	if c.hub != nil {
		c.hub.Publish(recorded)
	}
}

func (c *Coordinator) navigate(ctx context.Context, msg channel.Message) {
	if !msg.MainFrame || !c.session.Active() {
		return
	}
	if c.session.Phase() == models.PhaseRecording {
		c.submit(ptr(models.NavigateStep(PathAndQuery(msg.URL))))
	}
	c.inject(ctx)
}

// inject re-attaches capture in the background; failures never end the session.
func (c *Coordinator) inject(ctx context.Context) {
	if c.attacher == nil {
		return
	}
	c.async(ctx, func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.InjectTimeout)
		defer cancel()
		err := c.attacher.EnsureAttached(ctx)
		switch {
		case err == nil:
		case errors.Is(err, capture.ErrNoActivePage):
			c.logger.Debug("No active page, capture injection skipped")
		default:
			c.logger.Warn("Capture injection failed", zap.Error(err))
		}
	})
}

func (c *Coordinator) async(ctx context.Context, fn func(context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(ctx)
	}()
}

func (c *Coordinator) fullView(ctx context.Context) *string {
	if c.viewer == nil {
		return nil
	}
	return c.viewer.CaptureFullView(ctx)
}

// PathAndQuery reduces an absolute URL to the path and query a step records.
func PathAndQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	out := u.EscapedPath()
	if out == "" {
		out = "/"
	}
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
