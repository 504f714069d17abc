//go:build gosseract

package tesseract

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"rfp/internal/domain"
)

// Engine wraps a single gosseract client. Calls are serialised because the
// underlying TessBaseAPI is not safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates an in-process OCR engine.
func New() (*Engine, error) {
	return &Engine{client: gosseract.NewClient()}, nil
}

// Recognize runs OCR on an encoded image.
func (e *Engine) Recognize(ctx context.Context, image []byte, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if lang == "" {
		lang = "eng"
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.client.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrOCR, err)
	}
	if err := e.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrOCR, err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrOCR, err)
	}
	return text, nil
}

// Close releases the native client.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}
