// Package ocr renders PDF pages to images and recognises text in images
// using the poppler and tesseract command-line tools.
package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"rfp/internal/domain"
)

// Rasterizer renders every page of a PDF to an encoded image, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte, dpi int) ([][]byte, error)
}

// Engine recognises text in a single encoded image.
type Engine interface {
	Recognize(ctx context.Context, image []byte, lang string) (string, error)
}

// CommandRunner runs an external program and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", domain.ErrOCRUnavailable, name)
	}
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Poppler rasterizes PDFs with pdftoppm.
type Poppler struct {
	Runner CommandRunner
}

// NewPoppler returns a rasterizer using runner, or os/exec when runner is nil.
func NewPoppler(runner CommandRunner) *Poppler {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Poppler{Runner: runner}
}

func (p *Poppler) Rasterize(ctx context.Context, pdf []byte, dpi int) ([][]byte, error) {
	dir, err := os.MkdirTemp("", "rfp-ocr-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, err
	}
	prefix := filepath.Join(dir, "page")
	if _, err := p.Runner.Run(ctx, "pdftoppm", "-r", strconv.Itoa(dpi), "-png", in, prefix); err != nil {
		return nil, fmt.Errorf("%w: rendering pages: %w", domain.ErrOCR, err)
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	// pdftoppm zero-pads page numbers to a common width, so lexical order is page order.
	sort.Strings(pages)
	images := make([][]byte, 0, len(pages))
	for _, page := range pages {
		data, err := os.ReadFile(page)
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: pdftoppm produced no pages", domain.ErrOCR)
	}
	return images, nil
}

// TesseractCLI recognises text by running the tesseract binary.
type TesseractCLI struct {
	Runner CommandRunner
}

// NewTesseractCLI returns an engine using runner, or os/exec when runner is nil.
func NewTesseractCLI(runner CommandRunner) *TesseractCLI {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &TesseractCLI{Runner: runner}
}

func (t *TesseractCLI) Recognize(ctx context.Context, image []byte, lang string) (string, error) {
	f, err := os.CreateTemp("", "rfp-ocr-*.img")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(image); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if lang == "" {
		lang = "eng"
	}
	out, err := t.Runner.Run(ctx, "tesseract", f.Name(), "stdout", "-l", lang)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrOCR, err)
	}
	return string(out), nil
}
