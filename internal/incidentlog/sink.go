// Package incidentlog persists detailed failure descriptions that must not
// reach API clients. Each incident is one named text entry.
package incidentlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/bookclub/internal/filex"
)

// NameLayout is the time layout used for incident entry names.
const NameLayout = "2006-01-02 15-04-05.000000000"

// Sink stores one incident entry.
type Sink interface {
	Write(ctx context.Context, name string, body []byte) error
}

// EntryName returns the entry name for an incident recorded at t.
func EntryName(t time.Time) string {
	return t.UTC().Format(NameLayout) + ".txt"
}

// FileSink writes each entry into its own file under Dir.
type FileSink struct {
	Dir string

	mu sync.Mutex
}

// NewFileSink creates dir if needed. Relative paths are resolved against
// the working directory.
func NewFileSink(dir string) (*FileSink, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("create incident dir: %w", err)
	}
	return &FileSink{Dir: abs}, nil
}

func (s *FileSink) Write(_ context.Context, name string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.Dir, filepath.Base(name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open incident file: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return fmt.Errorf("write incident file: %w", err)
	}
	return f.Close()
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, name string, body []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, name, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Write(context.Context, string, []byte) error { return nil }
