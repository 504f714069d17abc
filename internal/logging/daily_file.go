package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DailyFile is an io.Writer that appends to <dir>/<prefix>-YYYY-MM-DD.log and
// switches files when the date changes. It is safe for concurrent use.
type DailyFile struct {
	dir    string
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	current *os.File
	name    string
}

// NewDailyFile creates dir if needed and opens today's file.
func NewDailyFile(dir, prefix string) (*DailyFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f := &DailyFile{dir: dir, prefix: prefix, now: time.Now}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.rotateLocked(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *DailyFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.rotateLocked(); err != nil {
		return 0, err
	}
	return f.current.Write(p)
}

// Name returns the path of the file currently written to.
func (f *DailyFile) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filepath.Join(f.dir, f.name)
}

func (f *DailyFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil
	}
	err := f.current.Close()
	f.current = nil
	f.name = ""
	return err
}

func (f *DailyFile) rotateLocked() error {
	name := fmt.Sprintf("%s-%s.log", f.prefix, f.now().Format("2006-01-02"))
	if name == f.name && f.current != nil {
		return nil
	}
	if f.current != nil {
		f.current.Close()
	}
	file, err := os.OpenFile(filepath.Join(f.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	f.current = file
	f.name = name
	return nil
}
