// Package alert recognizes error and alert surfaces that a page inserts on its own.
package alert

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"webtestflow/recorder/internal/identifier"
	"webtestflow/recorder/internal/models"
)

// ElementType is recorded for every alert step.
const ElementType = "alert"

var (
	classPattern = regexp.MustCompile(`(?i)error|alert|invalid|warning|toast`)
	textPattern  = regexp.MustCompile(`(?i)error|incorrect|failed|invalid`)
)

// Shooter returns a cropped screenshot of box, or nil when none could be taken.
type Shooter interface {
	Shoot(ctx context.Context, box models.BoundingBox) *string
}

// IsAlertSurface reports whether an inserted element looks like an alert, error,
// warning or toast.
func IsAlertSurface(el identifier.Element) bool {
	if el == nil {
		return false
	}
	if role, ok := el.Attribute("role"); ok && (role == "alert" || role == "alertdialog") {
		return true
	}
	if class, ok := el.Attribute("class"); ok && classPattern.MatchString(class) {
		return true
	}
	if t, ok := el.(identifier.TextElement); ok && textPattern.MatchString(t.TextContent()) {
		return true
	}
	return false
}

type Watcher struct {
	shooter Shooter
	logger  *zap.Logger
}

func NewWatcher(shooter Shooter, logger *zap.Logger) *Watcher {
	return &Watcher{shooter: shooter, logger: logger.Named("alert")}
}

// Observe classifies one inserted element. When it is an alert surface it returns the
// step candidate describing the inserted node itself.
func (w *Watcher) Observe(ctx context.Context, el identifier.Element, url string) (models.Step, bool) {
	if !IsAlertSurface(el) {
		return models.Step{}, false
	}

	step := models.Step{
		URL:         url,
		Action:      models.ActionAlert,
		Identifiers: identifier.Resolve(el),
		ElementType: ElementType,
	}
	if g, ok := el.(identifier.Geometry); ok && w.shooter != nil {
		step.Screenshot = w.shooter.Shoot(ctx, g.BoundingBox())
	}

	w.logger.Debug("Alert surface detected",
		zap.String("url", url),
		zap.Strings("identifiers", step.Identifiers.Kinds()))
	return step, true
}
