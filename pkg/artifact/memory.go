package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"sync"
)

// Memory is an in-process store, mostly for tests.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	opens map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		blobs: make(map[string][]byte),
		opens: make(map[string]int),
	}
}

func (s *Memory) Driver() Driver { return DriverMemory }

// Put stores b under key, replacing any previous content.
func (s *Memory) Put(key string, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = bytes.Clone(b)
}

// Opens reports how many times key has been opened.
func (s *Memory) Opens(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opens[key]
}

func (s *Memory) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens[key]++
	b, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("artifact %s: %w", key, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}
