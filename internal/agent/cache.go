package agent

import "sync"

// Cache memoizes a lazily-constructed Agent so every route handler shares a
// single instance per process. Construction runs at most once until Reset.
type Cache struct {
	mu    sync.Mutex
	build func() (Agent, error)
	agent Agent
}

// NewCache creates a cache around an agent constructor. The constructor is
// not called until the first Get.
func NewCache(build func() (Agent, error)) *Cache {
	return &Cache{build: build}
}

// Get returns the cached agent, constructing it on first use. A constructor
// error is not cached; the next Get retries.
func (c *Cache) Get() (Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.agent != nil {
		return c.agent, nil
	}
	a, err := c.build()
	if err != nil {
		return nil, err
	}
	c.agent = a
	return a, nil
}

// Reset clears the cached instance so the next Get rebuilds it.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.agent = nil
	c.mu.Unlock()
}
