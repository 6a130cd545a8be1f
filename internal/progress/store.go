// Package progress records which cities have finished a pipeline stage so an
// interrupted run resumes where it stopped.
package progress

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Store is a checkpoint file for one stage: a flat text file with one city
// name per line. Safe for concurrent use within a process.
type Store struct {
	mu    sync.Mutex
	path  string
	done  map[string]struct{}
	order []string
}

// FileName returns the checkpoint file name of a stage.
func FileName(stage string) string {
	return stage + "_progress.txt"
}

// Open loads the checkpoint of stage under dir. A missing file means no city
// has finished yet.
func Open(dir, stage string) (*Store, error) {
	s := &Store{
		path: filepath.Join(dir, FileName(stage)),
		done: make(map[string]struct{}),
	}

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		city := strings.TrimSpace(sc.Text())
		if city == "" {
			continue
		}
		if _, ok := s.done[city]; ok {
			continue
		}
		s.done[city] = struct{}{}
		s.order = append(s.order, city)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", s.path, err)
	}
	return s, nil
}

// Path returns the checkpoint file location.
func (s *Store) Path() string { return s.path }

// IsDone reports whether city has been checkpointed.
func (s *Store) IsDone(city string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[city]
	return ok
}

// Done returns the checkpointed cities in the order they finished.
func (s *Store) Done() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

// MarkDone checkpoints city. Marking a city twice is a no-op.
func (s *Store) MarkDone(city string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.done[city]; ok {
		return nil
	}
	s.done[city] = struct{}{}
	s.order = append(s.order, city)

	if err := s.flush(); err != nil {
		delete(s.done, city)
		s.order = s.order[:len(s.order)-1]
		return err
	}
	return nil
}

// Reset forgets every city and removes the checkpoint file.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	s.done = make(map[string]struct{})
	s.order = nil
	return nil
}

// flush rewrites the file through a temp file and rename so a crash never
// leaves a half-written checkpoint. Callers hold mu.
func (s *Store) flush() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".progress-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, city := range s.order {
		w.WriteString(city)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}
