package capture

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// BindingName is the page global the capture script reports through.
const BindingName = "__stepRecorderEmit"

// ErrNoActivePage is returned by a Page that has no document to attach to.
var ErrNoActivePage = errors.New("no active page")

// pageScript installs the capture-phase listeners and the insertion observer.
//
//go:embed recorder.js
var pageScript string

// Page is the document host capture attaches to.
type Page interface {
	ExposeBinding(ctx context.Context, name string) error
	// Evaluate runs expression in the current document and returns its string result.
	Evaluate(ctx context.Context, expression string) (string, error)
}

// Script renders the page script for one document token.
func Script(token string) string {
	quotedToken, _ := json.Marshal(token)
	quotedBinding, _ := json.Marshal(BindingName)
	return strings.NewReplacer(
		"__TOKEN__", string(quotedToken),
		"__BINDING__", string(quotedBinding),
	).Replace(pageScript)
}

// Injector attaches the capture script to whatever document the page currently holds.
type Injector struct {
	page     Page
	pipeline *Pipeline
	logger   *zap.Logger
	mu       sync.Mutex
}

func NewInjector(page Page, pipeline *Pipeline, logger *zap.Logger) *Injector {
	return &Injector{page: page, pipeline: pipeline, logger: logger.Named("inject")}
}

// EnsureAttached makes sure the current document has exactly one capture listener set
// reporting under a fresh token. Calling it again for the same document only retargets
// the existing listeners.
func (i *Injector) EnsureAttached(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.page.ExposeBinding(ctx, BindingName); err != nil {
		return fmt.Errorf("failed to expose capture binding: %w", err)
	}
	token := i.pipeline.NewDocument()
	result, err := i.page.Evaluate(ctx, Script(token))
	if err != nil {
		return fmt.Errorf("failed to inject capture script: %w", err)
	}
	if result == "unbound" {
		return fmt.Errorf("capture binding %s missing in document", BindingName)
	}
	i.logger.Debug("Capture attached", zap.String("result", result))
	return nil
}
