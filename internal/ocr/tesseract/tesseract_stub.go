//go:build !gosseract

package tesseract

import (
	"context"
	"fmt"

	"rfp/internal/domain"
)

// Engine is unavailable without the gosseract build tag.
type Engine struct{}

// New reports that in-process OCR was not compiled in.
func New() (*Engine, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags gosseract", domain.ErrNotImplemented)
}

// Recognize always fails.
func (e *Engine) Recognize(context.Context, []byte, string) (string, error) {
	return "", domain.ErrNotImplemented
}

// Close is a no-op.
func (e *Engine) Close() error { return nil }
