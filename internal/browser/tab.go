package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"webtestflow/recorder/internal/capture"
	"webtestflow/recorder/internal/channel"
	"webtestflow/recorder/internal/config"
)

const navigationBuffer = 16

// Tab is the recorded browser tab. It hosts the capture script, produces viewport
// screenshots, reports main-frame navigations and opens the review surface.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu    sync.Mutex
	bound map[string]bool

	dmu         sync.RWMutex
	dispatch    func(payload string)
	navigations chan channel.Message
}

// Launch starts Chrome, applies the configured device and opens the start URL.
func Launch(parent context.Context, cfg config.ChromeConfig, logger *zap.Logger) (*Tab, error) {
	logger = logger.Named("browser")
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, AllocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Warnf),
	)

	t := newTab(tabCtx, func() {
		tabCancel()
		allocCancel()
	}, logger)

	var actions []chromedp.Action
	if dev, ok := LookupDevice(cfg.Device); ok {
		logger.Info("Applying device emulation",
			zap.String("device", dev.Name), zap.Int64("width", dev.Width), zap.Int64("height", dev.Height))
		actions = append(actions, chromedp.Emulate(dev))
	}
	startURL := cfg.StartURL
	if startURL == "" {
		startURL = "about:blank"
	}
	actions = append(actions, chromedp.Navigate(startURL))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		t.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	chromedp.ListenTarget(tabCtx, t.handleEvent)
	logger.Info("Browser ready", zap.String("url", startURL))
	return t, nil
}

func newTab(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger) *Tab {
	return &Tab{
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		bound:       make(map[string]bool),
		dispatch:    func(string) {},
		navigations: make(chan channel.Message, navigationBuffer),
	}
}

// OnBinding routes capture payloads to dispatch. Set it before any document is attached.
func (t *Tab) OnBinding(dispatch func(payload string)) {
	t.dmu.Lock()
	t.dispatch = dispatch
	t.dmu.Unlock()
}

// ErrBrowserClosed ends Forward when the browser goes away underneath the tab.
var ErrBrowserClosed = errors.New("browser closed")

// Forward delivers navigation commits to ch in order until ctx is done or the
// browser closes.
func (t *Tab) Forward(ctx context.Context, ch channel.Channel) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.ctx.Done():
			return ErrBrowserClosed
		case msg := <-t.navigations:
			if err := ch.Send(ctx, msg); err != nil {
				t.logger.Warn("Failed to forward navigation", zap.String("url", msg.URL), zap.Error(err))
			}
		}
	}
}

// handleEvent runs on the DevTools event loop and must not issue commands.
func (t *Tab) handleEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *page.EventFrameNavigated:
		if ev.Frame == nil {
			return
		}
		msg := channel.Message{
			Type:      channel.TypeNavigation,
			URL:       ev.Frame.URL,
			MainFrame: ev.Frame.ParentID == "",
		}
		select {
		case t.navigations <- msg:
		default:
			t.logger.Warn("Navigation buffer full, dropping commit", zap.String("url", msg.URL))
		}
	case *runtime.EventBindingCalled:
		if ev.Name != capture.BindingName {
			return
		}
		t.dmu.RLock()
		dispatch := t.dispatch
		t.dmu.RUnlock()
		dispatch(ev.Payload)
	}
}

func (t *Tab) executor(ctx context.Context) (context.Context, error) {
	if t.ctx.Err() != nil {
		return nil, capture.ErrNoActivePage
	}
	c := chromedp.FromContext(t.ctx)
	if c == nil || c.Target == nil {
		return nil, capture.ErrNoActivePage
	}
	return cdp.WithExecutor(ctx, c.Target), nil
}

// ExposeBinding installs name on the tab. Bindings survive navigations, so each name
// is only added once.
func (t *Tab) ExposeBinding(ctx context.Context, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bound[name] {
		return nil
	}
	execCtx, err := t.executor(ctx)
	if err != nil {
		return err
	}
	if err := runtime.AddBinding(name).Do(execCtx); err != nil {
		return err
	}
	t.bound[name] = true
	return nil
}

func (t *Tab) Evaluate(ctx context.Context, expression string) (string, error) {
	execCtx, err := t.executor(ctx)
	if err != nil {
		return "", err
	}
	var result string
	if err := chromedp.Evaluate(expression, &result).Do(execCtx); err != nil {
		return "", err
	}
	return result, nil
}

// CaptureViewport returns a PNG of the visible viewport.
func (t *Tab) CaptureViewport(ctx context.Context) ([]byte, error) {
	execCtx, err := t.executor(ctx)
	if err != nil {
		return nil, err
	}
	return page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(execCtx)
}

// OpenTab opens url next to the recorded tab.
func (t *Tab) OpenTab(ctx context.Context, url string) error {
	execCtx, err := t.executor(ctx)
	if err != nil {
		return err
	}
	id, err := target.CreateTarget(url).Do(execCtx)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	t.logger.Info("Opened review tab", zap.String("target_id", string(id)))
	return nil
}

// Close shuts the browser down.
func (t *Tab) Close() {
	if err := chromedp.Cancel(t.ctx); err != nil {
		t.logger.Debug("Browser cancel", zap.Error(err))
	}
	t.cancel()
}
