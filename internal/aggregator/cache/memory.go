package cache

import (
	"context"
	"sync"
)

// InProcess is the default cache backend: a mutex-guarded map, used when no
// Redis URL is configured.
type InProcess struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewInProcess returns an empty in-process cache.
func NewInProcess() *InProcess {
	return &InProcess{entries: make(map[string][]byte)}
}

func (c *InProcess) Get(_ context.Context, name string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[name]
	return v, ok, nil
}

func (c *InProcess) Set(_ context.Context, name string, encoded []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = encoded
	return nil
}

func (c *InProcess) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	return nil
}
